package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"
)

const (
	attrDeliveryAttempt = "x-delivery-attempt"

	defaultLocalQueueSize   = 128
	defaultLocalMaxAttempts = 3
)

// LocalBackend delivers messages through in-process buffered channels. It
// suits single-process deployments where the mail worker runs inside the API
// server. A message whose handler fails is delivered at most three times.
type LocalBackend struct {
	mu          sync.Mutex
	queues      map[string]chan Message
	size        int
	maxAttempts int
	done        chan struct{}
	closeOnce   sync.Once
}

// NewLocalBackend constructs a LocalBackend whose channels buffer size
// messages each.
func NewLocalBackend(size int) *LocalBackend {
	if size <= 0 {
		size = defaultLocalQueueSize
	}
	return &LocalBackend{
		queues:      make(map[string]chan Message),
		size:        size,
		maxAttempts: defaultLocalMaxAttempts,
		done:        make(chan struct{}),
	}
}

// Publish enqueues a message, blocking while the channel buffer is full.
func (l *LocalBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("local channel is required")
	}

	msg := Message{
		ID:         ksuid.New().String(),
		Data:       data,
		Attributes: copyAttributes(attrs),
	}
	if err := l.enqueue(ctx, channel, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Subscribe consumes messages from the named channel until ctx is done or
// the backend is closed.
func (l *LocalBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("local channel is required")
	}

	queue, err := l.queue(channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrClosed
		case msg := <-queue:
			if err := handler(ctx, msg); err != nil {
				l.redeliver(channel, msg)
			}
		}
	}
}

// Close stops all subscribers. Undelivered messages are discarded.
func (l *LocalBackend) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

func (l *LocalBackend) redeliver(channel string, msg Message) {
	attempt, _ := strconv.Atoi(msg.Attributes[attrDeliveryAttempt])
	attempt++
	if attempt >= l.maxAttempts {
		return
	}
	msg.Attributes = copyAttributes(msg.Attributes)
	msg.Attributes[attrDeliveryAttempt] = strconv.Itoa(attempt)

	queue, err := l.queue(channel)
	if err != nil {
		return
	}
	// The subscriber itself is the only reader; never block on its own queue.
	select {
	case queue <- msg:
	default:
	}
}

func (l *LocalBackend) enqueue(ctx context.Context, channel string, msg Message) error {
	queue, err := l.queue(channel)
	if err != nil {
		return err
	}
	select {
	case queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

func (l *LocalBackend) queue(name string) (chan Message, error) {
	select {
	case <-l.done:
		return nil, ErrClosed
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.queues[name]
	if !ok {
		q = make(chan Message, l.size)
		l.queues[name] = q
	}
	return q, nil
}

func copyAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		out[key] = value
	}
	return out
}
