package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policardmed/internal/platform/config"
)

func TestNewWithoutBrokers(t *testing.T) {
	client, err := New(context.Background(), config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(context.Background(), config.KafkaConfig{})
	assert.Error(t, err)
}
