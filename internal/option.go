package internal

import (
	"io"
	"log/slog"

	"github.com/out-of-cheese-error/gooseberry/internal/remote"
)

// Option is a functional option for configuring the application.
type Option func(*App)

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) {
		a.config = cfg
	}
}

// WithLogger overrides the default JSON logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithService overrides the annotation service client, mainly for
// tests.
func WithService(svc remote.Service) Option {
	return func(a *App) {
		a.svc = svc
	}
}

// WithOutput redirects command output away from stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}
