package config

import "time"

// Config is the gateway client configuration.
type Config struct {
	Gateway GatewayConfig `koanf:"gateway" json:"gateway" yaml:"gateway"`
	Retry   RetryConfig   `koanf:"retry" json:"retry" yaml:"retry"`
	Rate    RateConfig    `koanf:"rate" json:"rate" yaml:"rate"`
	Cache   CacheConfig   `koanf:"cache" json:"cache" yaml:"cache"`
	Auth    AuthConfig    `koanf:"auth" json:"auth" yaml:"auth"`
	Log     LogConfig     `koanf:"log" json:"log" yaml:"log"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Export  ExportConfig  `koanf:"export" json:"export" yaml:"export"`
}

// GatewayConfig locates the automation backend.
type GatewayConfig struct {
	BaseURL        string        `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	Timeout        time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	TimeoutMessage string        `koanf:"timeoutmessage" json:"timeoutmessage" yaml:"timeoutmessage"`
}

// RetryConfig holds the default retry policy.
type RetryConfig struct {
	Max   int           `koanf:"max" json:"max" yaml:"max" validate:"gte=0,lte=10"`
	Delay time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gte=0"`
}

// RateConfig holds the outbound token budget.
type RateConfig struct {
	PerSecond int `koanf:"persecond" json:"persecond" yaml:"persecond" validate:"gt=0"`
}

// CacheConfig holds the response cache settings. MaxEntries 0 is unbounded.
type CacheConfig struct {
	TTL        time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" validate:"gt=0"`
	MaxEntries int           `koanf:"maxentries" json:"maxentries" yaml:"maxentries" validate:"gte=0"`
	Coalesce   bool          `koanf:"coalesce" json:"coalesce" yaml:"coalesce"`
}

// AuthConfig selects the bearer token source. The first non-empty of
// Token, TokenFile and TokenEnv wins; none means anonymous requests.
type AuthConfig struct {
	Token     string `koanf:"token" json:"-" yaml:"token"`
	TokenFile string `koanf:"tokenfile" json:"tokenfile" yaml:"tokenfile"`
	TokenEnv  string `koanf:"tokenenv" json:"tokenenv" yaml:"tokenenv"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// MetricsConfig toggles metrics export in the command line tools.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
}

// TraceConfig toggles span export in the command line tools.
type TraceConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
}

// ExportConfig says where metrics and spans go. Endpoint "stdout" writes
// them to stderr; anything else is an OTLP collector host:port.
type ExportConfig struct {
	Endpoint string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required"`
	Protocol string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"oneof=http grpc"`
	Insecure bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers  map[string]string `koanf:"headers" json:"-" yaml:"headers"`
}
