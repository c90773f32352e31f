package peerhttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"orderchain/internal/adapters/out/peerhttp"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	seller  = kernel.MustPrincipal("O=Seller,L=Paris")
	shipper = kernel.MustPrincipal("O=Shipper,L=Berlin")
)

func quickRetries() peerhttp.Option {
	return peerhttp.WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	})
}

func newClient(t *testing.T, url string) *peerhttp.Client {
	t.Helper()
	c, err := peerhttp.NewClient(map[kernel.Principal]string{seller: url + "/"}, nil, quickRetries())
	require.NoError(t, err)
	return c
}

func TestClient_SendProposal_DeliversReply(t *testing.T) {
	// Given
	var received proposal.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, peerhttp.ProposalsPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(proposal.Reply{
			ProposalID: received.ProposalID,
			Signature:  &proposal.WireSignature{Signer: seller.Name(), Bytes: []byte{1, 2, 3}},
		})
	}))
	defer server.Close()

	// When
	reply, err := newClient(t, server.URL).SendProposal(t.Context(), seller,
		proposal.Request{ProposalID: "p-1", Recipient: seller.Name(), Command: "Confirm"})

	// Then
	require.NoError(t, err)
	assert.Equal(t, "p-1", reply.ProposalID)
	require.NotNil(t, reply.Signature)
	assert.Equal(t, []byte{1, 2, 3}, reply.Signature.Bytes)
	assert.Equal(t, "Confirm", received.Command)
}

func TestClient_SendProposal_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(proposal.Reply{ProposalID: "p-2", Rejected: true, Reason: "stale"})
	}))
	defer server.Close()

	reply, err := newClient(t, server.URL).SendProposal(t.Context(), seller, proposal.Request{ProposalID: "p-2"})

	require.NoError(t, err)
	assert.True(t, reply.Rejected)
	assert.Equal(t, "stale", reply.Reason)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_SendProposal_Failures(t *testing.T) {
	var calls atomic.Int32
	badRequest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer badRequest.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	t.Run("client errors are not retried", func(t *testing.T) {
		_, err := newClient(t, badRequest.URL).SendProposal(t.Context(), seller, proposal.Request{})

		require.ErrorIs(t, err, ports.ErrPeerUnreachable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries are bounded", func(t *testing.T) {
		_, err := newClient(t, down.URL).SendProposal(t.Context(), seller, proposal.Request{})

		require.ErrorIs(t, err, ports.ErrPeerUnreachable)
	})

	t.Run("unknown peer", func(t *testing.T) {
		_, err := newClient(t, down.URL).SendProposal(t.Context(), shipper, proposal.Request{})

		require.ErrorIs(t, err, ports.ErrPeerUnreachable)
	})
}

func TestClient_SendProposal_StopsWithContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := peerhttp.NewClient(map[kernel.Principal]string{seller: server.URL}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err = c.SendProposal(ctx, seller, proposal.Request{})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := peerhttp.NewClient(nil, nil)
	require.Error(t, err)

	_, err = peerhttp.NewClient(map[kernel.Principal]string{seller: ""}, nil)
	require.Error(t, err)

	c, err := peerhttp.NewClient(map[kernel.Principal]string{seller: "http://seller:8080/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://seller:8080", c.Addresses()[seller])
}
