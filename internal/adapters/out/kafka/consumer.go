package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"orderchain/internal/core/application/peer"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/domain/services"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader builds a consumer-group reader. Every node uses its own group,
// since every node must see every message.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		MaxWait:        time.Second,
	})
}

// Consumer stores distributed transactions through the applier, which
// re-verifies invariants and signatures. Messages the applier refuses are
// logged and skipped; storage failures are retried until ctx ends.
type Consumer struct {
	reader     MessageReader
	applier    ports.TransactionApplier
	identity   ports.IdentityService
	newBackOff func() backoff.BackOff
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewConsumer(
	reader MessageReader,
	applier ports.TransactionApplier,
	identity ports.IdentityService,
	logger *zap.Logger,
) (*Consumer, error) {
	if reader == nil {
		return nil, errs.NewValueIsRequiredError("reader")
	}
	if applier == nil {
		return nil, errs.NewValueIsRequiredError("applier")
	}
	if identity == nil {
		return nil, errs.NewValueIsRequiredError("identity")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:     reader,
		applier:    applier,
		identity:   identity,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(0)) },
		retryDelay: 5 * time.Second,
		logger:     logger,
	}, nil
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			return err
		case err != nil:
			c.logger.Error("fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		// Only cancellation leaves a message unsettled; it is read again
		// after a restart.
		if c.handle(ctx, msg) != nil {
			return nil
		}
		if err = c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// handle returns an error only when ctx ended before the message was settled.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	log := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	recipients, tx, err := decode(msg.Value)
	if err != nil {
		log.Warn("skipping malformed message", zap.Error(err))
		return nil
	}
	if !c.addressedHere(recipients) {
		return nil
	}

	log = log.With(
		zap.String("order_id", tx.Record.OrderID().String()),
		zap.Uint64("version", tx.Record.Version()),
	)

	apply := func() error {
		applyErr := c.applier.Apply(ctx, tx)
		if applyErr != nil && refused(applyErr) {
			return backoff.Permanent(applyErr)
		}
		if applyErr != nil {
			log.Warn("apply failed, retrying", zap.Error(applyErr))
		}
		return applyErr
	}

	err = backoff.Retry(apply, backoff.WithContext(c.newBackOff(), ctx))
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		log.Warn("distributed transaction refused", zap.Error(err))
		return nil
	}
}

func (c *Consumer) addressedHere(recipients []kernel.Principal) bool {
	for _, r := range recipients {
		if c.identity.Hosts(r) {
			return true
		}
	}
	return false
}

// refused reports errors that retrying cannot fix.
func refused(err error) bool {
	for _, target := range []error{
		errs.ErrValueIsInvalid,
		errs.ErrValueIsRequired,
		errs.ErrValueIsOutOfRange,
		order.ErrInvariantViolation,
		services.ErrRuleViolation,
		proposal.ErrNotQuorate,
		proposal.ErrSignatureInvalid,
		proposal.ErrUnexpectedSigner,
		peer.ErrNotHosted,
		peer.ErrStaleProposal,
		peer.ErrForked,
		peer.ErrNotNotarized,
		ports.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
