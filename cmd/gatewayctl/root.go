package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-observatory/config"
	"github.com/gaborage/go-observatory/httpclient"
	"github.com/gaborage/go-observatory/logger"
	"github.com/gaborage/go-observatory/observability"
)

// app holds what the subcommands share once configuration is loaded.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	baseURL    string
	logLevel   string
	metrics    bool
	tracing    bool
	environ    func() []string

	cfg      *config.Config
	log      logger.Logger
	client   httpclient.Client
	provider observability.Provider
	span     trace.Span
}

// execute runs the command line and releases the client and telemetry
// provider whether or not the command succeeded.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, environ func() []string) error {
	a := &app{stdout: stdout, stderr: stderr, environ: environ}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if terr := a.teardown(ctx); err == nil {
		err = terr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gatewayctl",
		Short:   "Query the observatory automation backend",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Long: `Query the observatory automation backend through the gateway client.

Configuration is read from observatory.yaml (or --config), then from
OBSERVATORY_* environment variables, e.g. OBSERVATORY_GATEWAY_BASEURL.`,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			// Every gateway call of the command becomes a child of this span.
			ctx, span := otel.Tracer("gatewayctl").Start(cmd.Context(), "gatewayctl "+cmd.Name())
			a.span = span
			cmd.SetContext(ctx)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file")
	flags.StringVar(&a.baseURL, "base-url", "", "automation backend API root (overrides configuration)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&a.metrics, "metrics", false, "export client metrics (stderr unless export.endpoint is set)")
	flags.BoolVar(&a.tracing, "trace", false, "export request spans (stderr unless export.endpoint is set)")

	cmd.AddCommand(getCmd(a))
	cmd.AddCommand(postCmd(a))
	cmd.AddCommand(statusCmd(a))
	return cmd
}

func (a *app) setup() error {
	opts := []config.LoadOption{config.WithFile(a.configFile)}
	if a.environ != nil {
		opts = append(opts, config.WithEnviron(a.environ))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Gateway.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metrics {
		cfg.Metrics.Enabled = true
	}
	if a.tracing {
		cfg.Trace.Enabled = true
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	// stdout carries response bodies, so logs always go to stderr.
	a.log = logger.NewWithWriter(a.stderr, cfg.Log.Level, nil)

	a.provider, err = observability.NewProvider(&observability.Config{
		Enabled:     cfg.Metrics.Enabled,
		Tracing:     cfg.Trace.Enabled,
		ServiceName: "gatewayctl",
		Endpoint:    cfg.Export.Endpoint,
		Protocol:    cfg.Export.Protocol,
		Insecure:    cfg.Export.Insecure,
		Headers:     cfg.Export.Headers,
		Writer:      a.stderr,
	})
	if err != nil {
		return err
	}

	a.client = httpclient.NewFromConfig(cfg, a.log)
	a.log.Debug().
		Str("base_url", cfg.Gateway.BaseURL).
		Int("retries", cfg.Retry.Max).
		Int("rate_per_second", cfg.Rate.PerSecond).
		Msg("Gateway client ready")
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.span != nil {
		a.span.End()
		a.span = nil
	}
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
	return observability.Drain(ctx, a.provider, observability.ExportGrace)
}
