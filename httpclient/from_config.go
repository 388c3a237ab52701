package httpclient

import (
	"github.com/gaborage/go-observatory/config"
	"github.com/gaborage/go-observatory/logger"
)

// NewBuilderFromConfig creates a builder seeded from loaded configuration.
func NewBuilderFromConfig(cfg *config.Config, log logger.Logger) *Builder {
	b := NewBuilder(log)
	if cfg == nil {
		return b
	}
	b.config.BaseURL = cfg.Gateway.BaseURL
	return b.
		WithTimeout(cfg.Gateway.Timeout).
		WithTimeoutMessage(cfg.Gateway.TimeoutMessage).
		WithRetries(cfg.Retry.Max, cfg.Retry.Delay).
		WithRateLimit(cfg.Rate.PerSecond).
		WithCacheTTL(cfg.Cache.TTL).
		WithCacheMaxEntries(cfg.Cache.MaxEntries).
		WithCoalescing(cfg.Cache.Coalesce).
		WithCredentials(credentialsFromConfig(cfg.Auth))
}

// NewFromConfig builds a client from loaded configuration.
func NewFromConfig(cfg *config.Config, log logger.Logger) Client {
	return NewBuilderFromConfig(cfg, log).Build()
}

func credentialsFromConfig(auth config.AuthConfig) CredentialProvider {
	switch {
	case auth.Token != "":
		return StaticToken(auth.Token)
	case auth.TokenFile != "":
		return FileToken(auth.TokenFile)
	case auth.TokenEnv != "":
		return EnvToken(auth.TokenEnv)
	default:
		return nil
	}
}
