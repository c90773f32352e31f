// Package peerhttp carries signature requests to other nodes over HTTP.
package peerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ProposalsPath is the route on which every node accepts signature requests.
const ProposalsPath = "/peer/proposals"

const (
	defaultRequestTimeout = 5 * time.Second
	maxReplyBytes         = 1 << 20
)

// Client is a ports.PeerMessenger that posts requests to the node hosting
// the recipient. Transport failures and 5xx answers are retried with
// exponential backoff until ctx expires; a refusal is an ordinary reply and
// is never retried.
type Client struct {
	addresses  map[kernel.Principal]string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client with a 5s timeout per attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBackOff replaces the exponential policy, mainly for tests.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(cl *Client) {
		cl.newBackOff = newBackOff
	}
}

// NewClient takes the address book: principal → base URL of its node.
func NewClient(addresses map[kernel.Principal]string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if len(addresses) == 0 {
		return nil, errs.NewValueIsRequiredError("addresses")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	book := make(map[kernel.Principal]string, len(addresses))
	for p, url := range addresses {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if url == "" {
			return nil, errs.NewValueIsRequiredError("address of " + p.Name())
		}
		book[p] = strings.TrimRight(url, "/")
	}

	c := &Client{
		addresses:  book,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Addresses returns a copy of the address book.
func (c *Client) Addresses() map[kernel.Principal]string {
	out := make(map[kernel.Principal]string, len(c.addresses))
	for p, url := range c.addresses {
		out[p] = url
	}
	return out
}

func (c *Client) SendProposal(ctx context.Context, peer kernel.Principal, req proposal.Request) (proposal.Reply, error) {
	base, ok := c.addresses[peer]
	if !ok {
		return proposal.Reply{}, fmt.Errorf("%w: no address for %s", ports.ErrPeerUnreachable, peer)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return proposal.Reply{}, err
	}

	var reply proposal.Reply
	attempt := 0
	operation := func() error {
		attempt++
		r, sendErr := c.post(ctx, base+ProposalsPath, body)
		if sendErr != nil {
			c.logger.Debug("peer request failed",
				zap.Stringer("peer", peer),
				zap.Int("attempt", attempt),
				zap.Error(sendErr),
			)
			return sendErr
		}
		reply = r
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return proposal.Reply{}, ctxErr
		}
		return proposal.Reply{}, fmt.Errorf("%w: %s: %w", ports.ErrPeerUnreachable, peer, err)
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) (proposal.Reply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return proposal.Reply{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return proposal.Reply{}, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBytes))
	if err != nil {
		return proposal.Reply{}, err
	}

	switch {
	case res.StatusCode >= http.StatusInternalServerError:
		return proposal.Reply{}, fmt.Errorf("peer answered %d", res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return proposal.Reply{}, backoff.Permanent(fmt.Errorf("peer answered %d: %s", res.StatusCode, payload))
	}

	var reply proposal.Reply
	if err = json.Unmarshal(payload, &reply); err != nil {
		return proposal.Reply{}, backoff.Permanent(errors.Join(errs.NewValueIsInvalidError("reply"), err))
	}
	return reply, nil
}
