package mail

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 10 * time.Second
)

// Publisher is the part of the message queue the Dispatcher needs.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) (string, error)
}

// DispatcherOptions tunes the in-process buffer in front of the publisher.
type DispatcherOptions struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

type envelope struct {
	ctx          context.Context
	notification Notification
}

// Dispatcher hands notifications to the message queue from background
// goroutines. Notify never blocks and never reports delivery failures to the
// caller; they are logged here.
type Dispatcher struct {
	publisher Publisher
	channel   string
	timeout   time.Duration
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	wg     sync.WaitGroup
}

// NewDispatcher starts opts.Workers publishing goroutines.
func NewDispatcher(publisher Publisher, channel string, opts DispatcherOptions, logger *zap.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	d := &Dispatcher{
		publisher: publisher,
		channel:   channel,
		timeout:   opts.PublishTimeout,
		logger:    logger.Named("dispatcher"),
		queue:     make(chan envelope, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Notify queues n for publishing. The notification outlives ctx: publishing
// keeps ctx's values but not its deadline or cancellation.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher closed, dropping notification",
			zap.String("template", string(n.Template)))
		return
	}

	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), notification: n}:
	default:
		d.logger.Error("notification queue full, dropping notification",
			zap.String("template", string(n.Template)))
	}
}

// Close stops accepting notifications and waits until the queued ones are
// published.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for env := range d.queue {
		d.publish(env)
	}
}

func (d *Dispatcher) publish(env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, d.timeout)
	defer cancel()

	id, err := d.publisher.PublishJSON(ctx, d.channel, env.notification)
	if err != nil {
		d.logger.Error("publish notification failed",
			zap.String("channel", d.channel),
			zap.String("template", string(env.notification.Template)),
			zap.Error(err))
		return
	}
	d.logger.Debug("notification published",
		zap.String("channel", d.channel),
		zap.String("message_id", id),
		zap.String("template", string(env.notification.Template)))
}
