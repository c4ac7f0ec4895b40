//go:build integration

package messaging_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRabbitMQContainer manages RabbitMQ container lifecycle for integration tests
type TestRabbitMQContainer struct {
	container testcontainers.Container
	url       string
}

// setupRabbitMQ starts a RabbitMQ container and returns connection URL
func setupRabbitMQ(t *testing.T) (*TestRabbitMQContainer, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.12-management-alpine",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start RabbitMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	// Wait for RabbitMQ to be fully ready
	time.Sleep(2 * time.Second)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return &TestRabbitMQContainer{
		container: container,
		url:       url,
	}, cleanup
}

// TestRabbitMQConnection tests basic connection establishment
func TestRabbitMQConnection(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	t.Run("successful_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(testContainer.url)
		require.NoError(t, err)
		defer rmq.Close()

		assert.False(t, rmq.IsClosed())
	})

	t.Run("invalid_url_fails", func(t *testing.T) {
		_, err := messaging.NewRabbitMQ("amqp://invalid:9999/")
		assert.Error(t, err)
	})

	t.Run("close_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(testContainer.url)
		require.NoError(t, err)

		err = rmq.Close()
		assert.NoError(t, err)
		assert.True(t, rmq.IsClosed())
	})
}

func TestPublishChange_ReachesConsumer(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	rmq, err := messaging.NewRabbitMQ(testContainer.url)
	require.NoError(t, err)
	defer rmq.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.Change, 4)
	consumer := messaging.NewChangeConsumer(rmq, "history.reaction_*")
	require.NoError(t, consumer.Start(ctx, func(c domain.Change) { received <- c }))

	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, rmq.PublishChange(ctx, domain.Change{
		TrackedID:        "t1",
		ChannelID:        "C1",
		Kind:             domain.KindMessagePosted,
		MessageTimestamp: "1705312800.000001",
		At:               at,
	}))
	require.NoError(t, rmq.PublishChange(ctx, domain.Change{
		TrackedID:        "t1",
		ChannelID:        "C1",
		Kind:             domain.KindReactionAdded,
		MessageTimestamp: "1705312800.000001",
		Emoji:            "wave",
		Count:            1,
		At:               at,
	}))

	select {
	case c := <-received:
		assert.Equal(t, domain.KindReactionAdded, c.Kind)
		assert.Equal(t, "wave", c.Emoji)
		assert.Equal(t, 1, c.Count)
		assert.True(t, c.At.Equal(at))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for change")
	}

	select {
	case c := <-received:
		t.Fatalf("unexpected change outside binding: %+v", c)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestPublishChange_AfterClose(t *testing.T) {
	testContainer, cleanup := setupRabbitMQ(t)
	defer cleanup()

	rmq, err := messaging.NewRabbitMQ(testContainer.url)
	require.NoError(t, err)
	require.NoError(t, rmq.Close())

	err = rmq.PublishChange(context.Background(), domain.Change{Kind: domain.KindMessagePosted})
	assert.Error(t, err)
}
