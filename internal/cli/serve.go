package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tokostore/internal/database"
	"tokostore/internal/services"
	"tokostore/internal/storage"
	"tokostore/pkg/rabbitmq"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	images, err := storage.NewDiskImageStore(cfg.Storage)
	if err != nil {
		return err
	}

	var publisher services.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue})
		if err != nil {
			return err
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		logrus.Info("rabbitmq.url not set, order events disabled")
	}

	app := NewApp(cfg, db, images, publisher)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logrus.WithField("addr", cfg.Server.Addr).Info("starting server")
		serverErr <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logrus.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		logrus.WithError(err).Error("error during shutdown")
	}
	logrus.Info("server gracefully stopped")
	return nil
}
