// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Configure applies level and format to the standard logger and directs it to cfg.File, or to
// out when no file is set. The returned Closer releases the log file.
func Configure(cfg config.Logging, out io.Writer) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(out)
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	log.SetOutput(f)
	return f, nil
}

// WithComponent returns an entry of the standard logger tagged with component.
func WithComponent(component string) *log.Entry {
	return log.WithField("component", component)
}
