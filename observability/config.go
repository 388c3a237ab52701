package observability

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

const (
	// DefaultServiceName identifies the gateway tools in exported telemetry.
	DefaultServiceName = "go-observatory"

	// DefaultInterval is how often metrics are exported while running.
	DefaultInterval = 30 * time.Second

	// EndpointStdout writes telemetry to Writer instead of a collector.
	EndpointStdout = "stdout"

	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Config controls metrics and trace export. With the default endpoint both
// signals are written to Writer by the stdout exporters; any other endpoint
// is an OTLP collector address.
type Config struct {
	// Enabled turns on metrics export.
	Enabled bool
	// Tracing turns on span export. It is independent of Enabled.
	Tracing     bool
	ServiceName string
	// Interval between periodic metric exports. A final export always
	// happens on Shutdown.
	Interval time.Duration

	// Endpoint is "stdout" or an OTLP collector "host:port".
	Endpoint string
	// Protocol selects the OTLP transport: "http" or "grpc".
	Protocol string
	// Insecure disables TLS towards the collector.
	Insecure bool
	// Headers are sent with every OTLP export, typically for authentication.
	Headers map[string]string

	// Writer receives stdout exports; nil selects os.Stderr.
	Writer io.Writer
	// Pretty indents the stdout JSON.
	Pretty bool
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Endpoint == "" {
		c.Endpoint = EndpointStdout
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.Writer == nil {
		c.Writer = os.Stderr
	}
}

// Validate checks the exporter settings. Call it after ApplyDefaults.
func (c *Config) Validate() error {
	if c.Endpoint == EndpointStdout {
		return nil
	}
	if c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return fmt.Errorf("%w: got %q", ErrInvalidProtocol, c.Protocol)
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("%w: got %q", ErrInvalidEndpointFormat, c.Endpoint)
	}
	if _, _, err := net.SplitHostPort(c.Endpoint); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpointFormat, err)
	}
	return nil
}

func (c *Config) useStdout() bool {
	return c.Endpoint == EndpointStdout
}
