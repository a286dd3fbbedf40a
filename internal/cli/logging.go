package cli

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tokostore/internal/config"
)

// setupLogging configures the standard logrus logger.
func setupLogging(c config.LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return errors.Wrap(err, "invalid log.level")
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	switch c.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("unsupported log.format %q", c.Format)
	}
	return nil
}
