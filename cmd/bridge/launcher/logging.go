package launcher

import (
	"fmt"
	"io"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

// sentryTimeout bounds how long a log call waits for Sentry.
const sentryTimeout = 2 * time.Second

// newLogger builds the node logger. Errors and worse are also forwarded to
// Sentry when a DSN is configured.
func newLogger(cfg LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	if cfg.Verbosity < int(logrus.PanicLevel) || cfg.Verbosity > int(logrus.TraceLevel) {
		return nil, fmt.Errorf("invalid log verbosity %d", cfg.Verbosity)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(logrus.Level(cfg.Verbosity))

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		hook.Timeout = sentryTimeout
		log.AddHook(hook)
	}
	return log, nil
}
