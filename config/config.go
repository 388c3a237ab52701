// Package config loads the gateway client configuration from defaults, YAML
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. OBSERVATORY_GATEWAY_BASEURL.
	EnvPrefix = "OBSERVATORY_"

	// DefaultFile is read when present and no explicit file was requested.
	DefaultFile = "observatory.yaml"
)

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	file     string
	required bool
	yaml     []byte
	environ  func() []string
}

// WithFile reads path instead of DefaultFile. The file must exist.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
			o.required = true
		}
	}
}

// WithYAML layers inline YAML on top of the file and below the environment.
func WithYAML(data []byte) LoadOption {
	return func(o *loadOptions) {
		o.yaml = data
	}
}

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Inline YAML given by WithYAML
// 3. YAML configuration file
// 4. Default values (lowest priority)
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{file: DefaultFile, environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
		if o.required || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", o.file, err)
		}
	}

	if len(o.yaml) > 0 {
		if err := k.Load(rawbytes.Provider(o.yaml), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse inline YAML: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   o.environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey converts OBSERVATORY_GATEWAY_BASEURL to gateway.baseurl.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func defaults() map[string]any {
	return map[string]any{
		"gateway.baseurl":        "http://localhost:1888/v2/api",
		"gateway.timeout":        "10s",
		"gateway.timeoutmessage": "Request timed out",

		"retry.max":   3,
		"retry.delay": "1s",

		"rate.persecond": 5,

		"cache.ttl":        "60s",
		"cache.maxentries": 0,
		"cache.coalesce":   false,

		"log.level":  "info",
		"log.pretty": false,

		"metrics.enabled": false,
		"trace.enabled":   false,

		"export.endpoint": "stdout",
		"export.protocol": "http",
		"export.insecure": false,
	}
}
