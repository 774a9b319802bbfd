/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ghusn/apiserver/internal/mail"
	"github.com/ghusn/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// mailerCmd represents the mailer command
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Consumes queued notifications and sends mail",
	Long: `Consumes notifications published by the server on MAIL_CHANNEL and
delivers them with MAIL_TRANSPORT. Requires a broker (MQ_BACKEND=rabbitmq or
pubsub); with the local backend the server delivers mail itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer queue.Close()
		if queue.IsLocal() {
			return errors.New("mailer needs a broker; set MQ_BACKEND to rabbitmq or pubsub")
		}

		worker, err := mail.NewConfiguredWorker(ctx, cfg, queue, logger)
		if err != nil {
			return err
		}

		err = worker.Run(ctx)
		if ctx.Err() != nil {
			logger.Info("mailer stopped")
			return nil
		}
		if err != nil {
			logger.Error("mailer failed", zap.Error(err))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
