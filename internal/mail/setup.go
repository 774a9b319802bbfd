package mail

import (
	"context"

	"github.com/ghusn/apiserver/config"
	"github.com/ghusn/apiserver/internal/storage"
	"go.uber.org/zap"
)

// NewConfiguredWorker builds the renderer and transport described by cfg
// and returns a worker consuming cfg.Mail.Channel from subscriber.
func NewConfiguredWorker(ctx context.Context, cfg config.Config, subscriber Subscriber, logger *zap.Logger) (*Worker, error) {
	renderer, err := NewRenderer(RendererConfig{
		BaseURL:       cfg.BaseURL,
		Sender:        cfg.Mail.Sender,
		SubjectPrefix: cfg.Mail.SubjectPrefix,
		LinkTTL:       cfg.TokenTTL,
	})
	if err != nil {
		return nil, err
	}

	var archive *storage.Storage
	if cfg.Mail.Transport == config.MailTransportStorage {
		archive, err = storage.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	sender, err := NewSender(cfg, archive, logger)
	if err != nil {
		return nil, err
	}
	return NewWorker(subscriber, cfg.Mail.Channel, renderer, sender, logger), nil
}
