//go:build integration

package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "policardmed/pkg/platform/audit"
	kafkastore "policardmed/pkg/platform/audit/store/kafka"
	"policardmed/pkg/platform/audit/store/memory"
	"policardmed/pkg/testutil/containers"
)

func TestConsumerDrainsTopic(t *testing.T) {
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "policardmed.audit.consumer"
	producer := rp.NewClient(t)
	require.NoError(t, kafkastore.EnsureTopic(ctx, producer, topic, 1, 1))
	sink := kafkastore.New(producer, topic)
	require.NoError(t, sink.Append(ctx, audit.Event{Subject: "m1", Action: string(audit.EventMemberCreated)}))
	require.NoError(t, producer.ProduceSync(ctx, &kgo.Record{Topic: topic, Value: []byte("not json")}).FirstErr())
	require.NoError(t, sink.Append(ctx, audit.Event{Subject: "m2", Action: string(audit.EventMemberUpdated)}))

	store := memory.NewInMemoryStore()
	client := rp.NewClient(t,
		kgo.ConsumerGroup("policardmed-audit-test"),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	c := New(client, Persist(store), slog.New(slog.NewTextHandler(io.Discard, nil)))

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	assert.Eventually(t, func() bool {
		events, _ := store.ListRecent(ctx, 10)
		return len(events) == 2
	}, 20*time.Second, 100*time.Millisecond)

	stop()
	require.NoError(t, <-done)

	events, err := store.ListBySubject(ctx, "m2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}
