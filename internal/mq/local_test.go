package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghusn/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend_PublishSubscribe(t *testing.T) {
	backend := NewLocalBackend(4)
	defer backend.Close()
	queue := New(backend)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := queue.PublishJSON(ctx, "mail.outbound", map[string]string{"to": "a@x.com"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	received := make(chan Message, 1)
	go func() {
		_ = queue.Subscribe(ctx, "mail.outbound", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.ID)
		assert.JSONEq(t, `{"to":"a@x.com"}`, string(msg.Data))
		assert.Equal(t, "application/json", msg.Attributes[AttrContentType])
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestLocalBackend_RedeliversFailedMessages(t *testing.T) {
	backend := NewLocalBackend(4)
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := backend.Publish(ctx, "ch", []byte("x"), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})
	go func() {
		_ = backend.Subscribe(ctx, "ch", func(_ context.Context, msg Message) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts == defaultLocalMaxAttempts {
				close(done)
			}
			return errors.New("smtp down")
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("message was not redelivered")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, defaultLocalMaxAttempts, attempts)
}

func TestLocalBackend_Close(t *testing.T) {
	backend := NewLocalBackend(1)

	errc := make(chan error, 1)
	go func() {
		errc <- backend.Subscribe(context.Background(), "ch", func(context.Context, Message) error { return nil })
	}()

	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}

	_, err := backend.Publish(context.Background(), "ch", []byte("x"), nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLocalBackend_RequiresChannel(t *testing.T) {
	backend := NewLocalBackend(1)
	defer backend.Close()

	_, err := backend.Publish(context.Background(), " ", nil, nil)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	queue, err := Open(context.Background(), config.Config{MQ: config.MQConfig{Backend: config.MQBackendLocal}})
	require.NoError(t, err)
	defer queue.Close()
	assert.True(t, queue.IsLocal())

	_, err = Open(context.Background(), config.Config{MQ: config.MQConfig{Backend: "kafka"}})
	assert.ErrorContains(t, err, `unknown mq backend "kafka"`)

	_, err = Open(context.Background(), config.Config{MQ: config.MQConfig{Backend: config.MQBackendPubSub}})
	assert.ErrorContains(t, err, "project id")
}
