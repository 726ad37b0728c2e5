// Package sentryx reports errors and panics to Sentry when a DSN is configured.
// Every function is a no-op otherwise.
package sentryx

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	initOnce sync.Once
	mu       sync.RWMutex
	enabled  bool
)

// Init configures the Sentry client once. An empty DSN leaves reporting off.
func Init(service, dsn, environment string) error {
	var initErr error
	initOnce.Do(func() {
		if dsn == "" {
			return
		}
		if environment == "" {
			environment = "unknown"
		}

		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      environment,
			ServerName:       service,
			AttachStacktrace: true,
		}); err != nil {
			initErr = fmt.Errorf("failed to initialize sentry: %w", err)
			return
		}
		mu.Lock()
		enabled = true
		mu.Unlock()
	})
	return initErr
}

// Enabled reports whether events are being sent.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// CaptureError reports err with an optional formatted message tag.
func CaptureError(err error, message string, args ...any) {
	if !Enabled() || err == nil {
		return
	}

	msg := message
	if len(args) > 0 {
		msg = fmt.Sprintf(message, args...)
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if msg != "" {
			scope.SetTag("log_message", msg)
		}
		sentry.CaptureException(err)
	})
}

// CaptureMessage reports a formatted message at level.
func CaptureMessage(level sentry.Level, message string, args ...any) {
	if !Enabled() {
		return
	}
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func Flush(timeout time.Duration) {
	if !Enabled() {
		return
	}
	sentry.Flush(timeout)
}
