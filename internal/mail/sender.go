package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ghusn/apiserver/config"
	"github.com/ghusn/apiserver/internal/storage"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const contentTypeRFC822 = "message/rfc822"

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// NewSender builds the transport named by cfg.Mail.Transport. The storage
// transport needs store; the others ignore it.
func NewSender(cfg config.Config, store *storage.Storage, logger *zap.Logger) (Sender, error) {
	switch cfg.Mail.Transport {
	case config.MailTransportSMTP:
		return NewSMTPSender(cfg.Mail.SMTP)
	case config.MailTransportLog:
		return NewLogSender(logger), nil
	case config.MailTransportStorage:
		if store == nil {
			return nil, errors.New("mail storage transport requires object storage")
		}
		return NewArchiveSender(store), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	client *gomail.Client
}

// NewSMTPSender configures an SMTP client. Authentication is enabled when a
// username is set; TLS is mandatory when UseTLS is set, opportunistic
// otherwise.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(15 * time.Second),
	}
	if cfg.UseTLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return &SMTPSender{client: client}, nil
}

// Send dials the relay and delivers email.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	msg, err := buildMessage(email)
	if err != nil {
		return err
	}
	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogSender records that a message would have been sent. It logs the
// envelope only; bodies carry live tokens and never reach the log.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("mail")}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info("mail",
		zap.String("id", email.ID),
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("template", string(email.Template)),
	)
	return nil
}

// ArchiveSender stores each message as an .eml object instead of delivering
// it.
type ArchiveSender struct {
	store *storage.Storage
}

func NewArchiveSender(store *storage.Storage) *ArchiveSender {
	return &ArchiveSender{store: store}
}

func (s *ArchiveSender) Send(ctx context.Context, email Email) error {
	key, err := storage.MailKey(email.Date, email.ID)
	if err != nil {
		return err
	}
	msg, err := buildMessage(email)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.store.PutBytes(ctx, key, buf.Bytes(), contentTypeRFC822)
}

func buildMessage(email Email) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", email.From, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	if !email.Date.IsZero() {
		msg.SetDateWithValue(email.Date)
	}
	if email.ID != "" {
		msg.SetMessageIDWithValue(email.ID)
	}
	msg.SetBodyString(gomail.TypeTextPlain, email.Text)
	if email.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, email.HTML)
	}
	return msg, nil
}
