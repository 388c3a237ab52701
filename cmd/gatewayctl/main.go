// Command gatewayctl talks to the observatory automation backend through the
// gateway client: one-off requests and a device status overview.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gaborage/go-observatory/config"
	"github.com/gaborage/go-observatory/httpclient"
	"github.com/gaborage/go-observatory/observability"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitConfig    = 3
	ExitRequest   = 4
	ExitGateway   = 5
	ExitInterrupt = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// errUsage marks invalid command line input.
var errUsage = errors.New("usage")

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, errUsage) {
		return ExitUsage
	}
	if errors.Is(err, errAllFailed) {
		return ExitGateway
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) ||
		errors.Is(err, observability.ErrInvalidProtocol) ||
		errors.Is(err, observability.ErrInvalidEndpointFormat) {
		return ExitConfig
	}
	if apiErr, ok := httpclient.AsAPIError(err); ok {
		switch apiErr.Kind {
		case httpclient.CancelError:
			return ExitInterrupt
		case httpclient.ClientError, httpclient.UnknownError:
			return ExitRequest
		default:
			return ExitGateway
		}
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}
	return ExitGeneral
}
