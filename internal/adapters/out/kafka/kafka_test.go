package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"orderchain/internal/adapters/out/keyring"
	"orderchain/internal/core/application/peer"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	buyer   = kernel.MustPrincipal("O=Buyer,L=London")
	seller  = kernel.MustPrincipal("O=Seller,L=Paris")
	shipper = kernel.MustPrincipal("O=Shipper,L=Berlin")
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then reports EOF.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type MockApplier struct{ mock.Mock }

func (m *MockApplier) Apply(ctx context.Context, tx proposal.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func createTx(t *testing.T) proposal.Transaction {
	t.Helper()
	rec, err := order.NewRecord(kernel.NewUUID(), order.Terms{
		SKU: "SKU-1", ProductName: "Widget",
		UnitPrice: kernel.MoneyFromFloat(10), Quantity: 2,
		ShippingCost: kernel.MoneyFromFloat(1.5),
		BuyerAddress: "A", SellerAddress: "B",
	}, order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper})
	require.NoError(t, err)
	cmd, err := order.NewCommand(order.CommandCreate, buyer)
	require.NoError(t, err)
	sig, err := proposal.NewSignature(buyer, []byte("signature"))
	require.NoError(t, err)
	return proposal.Transaction{Command: cmd, Record: rec, Signatures: []proposal.Signature{sig}}
}

func message(t *testing.T, offset int64, tx proposal.Transaction, recipients ...kernel.Principal) kafka.Message {
	t.Helper()
	value, err := encode(tx, recipients)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(tx.Record.OrderID().String()), Value: value}
}

func newConsumer(t *testing.T, reader MessageReader, applier *MockApplier, hosted ...kernel.Principal) *Consumer {
	t.Helper()
	identity := keyring.New()
	for _, p := range hosted {
		require.NoError(t, identity.Generate(p))
	}
	c, err := NewConsumer(reader, applier, identity, nil)
	require.NoError(t, err)
	c.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5) }
	c.retryDelay = time.Millisecond
	return c
}

func TestDistributor_Distribute(t *testing.T) {
	// Given
	writer := &fakeWriter{}
	d, err := NewDistributor(writer)
	require.NoError(t, err)
	tx := createTx(t)

	// When
	err = d.Distribute(t.Context(), tx, tx.Record.Participants())

	// Then
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, tx.Record.OrderID().String(), string(msg.Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, []string{buyer.Name(), seller.Name(), shipper.Name()}, env.Recipients)

	recipients, decoded, err := decode(msg.Value)
	require.NoError(t, err)
	assert.Len(t, recipients, 3)
	assert.True(t, decoded.Record.IsEqual(tx.Record))
	assert.Equal(t, order.CommandCreate, decoded.Command.Kind())
	assert.Nil(t, decoded.ConsumedRef)
}

func TestDistributor_WriteError(t *testing.T) {
	failure := errors.New("broker down")
	d, err := NewDistributor(&fakeWriter{err: failure})
	require.NoError(t, err)

	err = d.Distribute(t.Context(), createTx(t), []kernel.Principal{seller})

	require.ErrorIs(t, err, failure)
}

func TestConsumer_Run(t *testing.T) {
	addressed := createTx(t)
	foreign := createTx(t)
	refusedTx := createTx(t)
	flaky := createTx(t)

	reader := &fakeReader{queue: []kafka.Message{
		message(t, 1, addressed, buyer, seller, shipper),
		message(t, 2, foreign, kernel.MustPrincipal("O=Elsewhere,L=Oslo")),
		{Offset: 3, Value: []byte("{not json")},
		message(t, 4, refusedTx, seller),
		message(t, 5, flaky, seller),
	}}

	applier := new(MockApplier)
	isTx := func(want proposal.Transaction) any {
		return mock.MatchedBy(func(tx proposal.Transaction) bool { return tx.Record.IsEqual(want.Record) })
	}
	applier.On("Apply", mock.Anything, isTx(addressed)).Return(nil).Once()
	applier.On("Apply", mock.Anything, isTx(refusedTx)).Return(peer.ErrForked).Once()
	applier.On("Apply", mock.Anything, isTx(flaky)).Return(errors.New("connection reset")).Twice()
	applier.On("Apply", mock.Anything, isTx(flaky)).Return(nil).Once()

	c := newConsumer(t, reader, applier, seller)

	err := c.Run(t.Context())

	require.ErrorIs(t, err, io.EOF)
	applier.AssertExpectations(t)
	applier.AssertNotCalled(t, "Apply", mock.Anything, isTx(foreign))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, reader.committed)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{message(t, 1, createTx(t), seller)}}
	applier := new(MockApplier)
	c := newConsumer(t, reader, applier, seller)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, c.Run(ctx))
	applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
	assert.Empty(t, reader.committed)
}

func TestRefused(t *testing.T) {
	assert.True(t, refused(peer.ErrStaleProposal))
	assert.True(t, refused(proposal.ErrNotQuorate))
	assert.True(t, refused(peer.ErrNotNotarized))
	assert.False(t, refused(errors.New("connection reset")))
	assert.False(t, refused(context.DeadlineExceeded))
}
