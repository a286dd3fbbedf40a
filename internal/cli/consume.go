package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tokostore/pkg/rabbitmq"
)

var consumeEventsCmd = &cobra.Command{
	Use:   "consume-events",
	Short: "Log order events from the RabbitMQ queue",
	RunE:  consumeEvents,
}

func init() {
	rootCmd.AddCommand(consumeEventsCmd)
}

func consumeEvents(cmd *cobra.Command, args []string) error {
	if cfg.RabbitMQ.URL == "" {
		return errors.New("rabbitmq.url is not configured")
	}
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue})
	if err != nil {
		return err
	}
	defer mqClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithField("queue", cfg.RabbitMQ.Queue).Info("waiting for order events")
	return mqClient.Consume(ctx, logEvent)
}

func logEvent(event rabbitmq.Event) error {
	logrus.WithFields(logrus.Fields{
		"event":       event.Type,
		"occurred_at": event.OccurredAt,
		"payload":     string(event.Payload),
	}).Info("order event received")
	return nil
}
