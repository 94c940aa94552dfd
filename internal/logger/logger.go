// Package logger configures the global logrus logger from config.
package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"vital-route-api-server/config"
)

// Setup applies level and formatter to the standard logrus logger.
func Setup(cfg config.LogConfig) error {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
