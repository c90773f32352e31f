package kafka

import (
	"context"
	"fmt"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/segmentio/kafka-go"
)

var _ ports.Distributor = (*Distributor)(nil)

// MessageWriter is the part of *kafka.Writer the distributor needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Distributor publishes finalized transactions keyed by order ID, so every
// version of one order lands on the same partition in commit order.
type Distributor struct {
	writer MessageWriter
}

// NewWriter builds the writer used in production.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewDistributor(writer MessageWriter) (*Distributor, error) {
	if writer == nil {
		return nil, errs.NewValueIsRequiredError("writer")
	}
	return &Distributor{writer: writer}, nil
}

func (d *Distributor) Distribute(ctx context.Context, tx proposal.Transaction, recipients []kernel.Principal) error {
	value, err := encode(tx, recipients)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(tx.Record.OrderID().String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "version_ref", Value: []byte(tx.Record.VersionRef().String())},
			{Key: "command", Value: []byte(tx.Command.Kind().String())},
		},
	}
	if err = d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", tx.Record.VersionRef(), err)
	}
	return nil
}

func (d *Distributor) Close() error {
	return d.writer.Close()
}
