package observability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExportGrace bounds the final export when a command exits.
const ExportGrace = 5 * time.Second

// ErrExportTimeout reports that pending telemetry was still being exported
// when the grace period ran out.
var ErrExportTimeout = errors.New("observability: final export did not finish in time")

// Drain exports what provider still holds and stops it, waiting at most
// grace (ExportGrace when zero). Cancellation of ctx is ignored so an
// interrupted command still exports what it recorded. A nil provider has
// nothing to drain.
func Drain(ctx context.Context, provider Provider, grace time.Duration) error {
	if provider == nil {
		return nil
	}
	if grace <= 0 {
		grace = ExportGrace
	}
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()

	err := provider.Shutdown(exportCtx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %w", ErrExportTimeout, grace, err)
	default:
		return fmt.Errorf("drain telemetry: %w", err)
	}
}
