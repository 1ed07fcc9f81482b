package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "policardmed/pkg/platform/audit"
)

// Consumer reads audit records from a group-managed kgo client and hands
// them to a Handler. Offsets are committed after each fully handled poll, so a
// handler failure redelivers the batch on restart.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New wraps client, which must be created with kgo.ConsumerGroup,
// kgo.ConsumeTopics and kgo.DisableAutoCommit.
func New(client *kgo.Client, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, handler: handler, logger: logger}
}

// Run polls until ctx is cancelled or a handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "audit fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handleErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = c.handle(ctx, record)
		})
		if handleErr != nil {
			return handleErr
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("commit audit offsets: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	var event audit.Event
	if err := json.Unmarshal(record.Value, &event); err != nil {
		// malformed records are skipped so they cannot block the partition
		c.logger.ErrorContext(ctx, "failed to decode audit record",
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return nil
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	return c.handler.Handle(ctx, event)
}
