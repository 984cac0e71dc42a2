package app

import (
	"strings"
	"time"

	"github.com/charlesng35/estateportal/internal/cache"
)

const defaultTokenCacheTTL = time.Minute

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
		Prefix:   strings.TrimSpace(c.Redis.Prefix),
	}
}

// TokenTTL is how long a verified bearer token is trusted without asking the
// credential store again.
func (c CacheConfig) TokenTTL() time.Duration {
	if c.TokenCacheTTL <= 0 {
		return defaultTokenCacheTTL
	}
	return c.TokenCacheTTL
}
