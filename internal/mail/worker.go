package mail

import (
	"context"
	"encoding/json"

	"github.com/ghusn/apiserver/internal/mq"
	"go.uber.org/zap"
)

// Subscriber is the part of the message queue the Worker needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker consumes queued notifications and sends them.
type Worker struct {
	subscriber Subscriber
	channel    string
	renderer   *Renderer
	sender     Sender
	logger     *zap.Logger
}

func NewWorker(subscriber Subscriber, channel string, renderer *Renderer, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{
		subscriber: subscriber,
		channel:    channel,
		renderer:   renderer,
		sender:     sender,
		logger:     logger.Named("mail_worker"),
	}
}

// Run blocks consuming the channel until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mail worker started", zap.String("channel", w.channel))
	return w.subscriber.Subscribe(ctx, w.channel, w.Handle)
}

// Handle processes one message. Messages that can never be sent are logged
// and acknowledged; only a failed send is returned for redelivery.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	var n Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		w.logger.Error("discarding undecodable notification",
			zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	email, err := w.renderer.Render(n)
	if err != nil {
		w.logger.Error("discarding unrenderable notification",
			zap.String("message_id", msg.ID),
			zap.String("template", string(n.Template)),
			zap.Error(err))
		return nil
	}

	if err := w.sender.Send(ctx, email); err != nil {
		w.logger.Warn("send mail failed",
			zap.String("message_id", msg.ID),
			zap.String("template", string(n.Template)),
			zap.Error(err))
		return err
	}

	w.logger.Info("mail sent",
		zap.String("message_id", msg.ID),
		zap.String("mail_id", email.ID),
		zap.String("template", string(n.Template)))
	return nil
}
