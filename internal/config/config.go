// Package config loads the server's runtime configuration the way
// ValentinKolb-dKV's cmd/serve/root.go binds cobra flags through viper
// with an env-var fallback, combined with the teacher's
// getenv-with-default/validate shape from cmd/server/main.go's
// loadConfig/validateConfig (spec.md section 2.1 of SPEC_FULL.md).
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/stormkv/stormkv/internal/wire"
)

// EnvPrefix is the prefix viper.AutomaticEnv binds against: STORMKV_ADDR,
// STORMKV_CONN_TIMEOUT_MS, STORMKV_HTTP_ADDR, STORMKV_MAX_CONNS.
const EnvPrefix = "stormkv"

// Config is the fully-resolved set of runtime knobs. Precedence is
// flag > env var > .env file > default, enforced by viper's own
// resolution order once BindPFlags has wired the cobra flags in.
type Config struct {
	Addr          string
	ConnTimeoutMS int64
	HTTPAddr      string
	MaxConns      int
	GOMAXPROCS    int
	GOGC          int
}

// Defaults returns the built-in defaults, used as the cobra flags'
// default values.
func Defaults() Config {
	return Config{
		Addr:          wire.DefaultAddr,
		ConnTimeoutMS: wire.DefaultConnTimeoutMS,
		HTTPAddr:      "",
		MaxConns:      0,
		GOMAXPROCS:    0,
		GOGC:          -1,
	}
}

// FromViper reads a Config out of v, which must already have the
// relevant keys bound (cobra flags via BindPFlags, plus
// v.AutomaticEnv() with SetEnvPrefix(EnvPrefix)).
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Addr:          v.GetString("addr"),
		ConnTimeoutMS: v.GetInt64("conn-timeout-ms"),
		HTTPAddr:      v.GetString("http-addr"),
		MaxConns:      v.GetInt("max-conns"),
		GOMAXPROCS:    v.GetInt("gomaxprocs"),
		GOGC:          v.GetInt("gogc"),
	}
}

// Validate rejects out-of-range values before the server binds a
// socket, matching spec.md section 7's "validate before use."
func Validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("config: addr must not be empty")
	}
	if cfg.ConnTimeoutMS <= 0 {
		return fmt.Errorf("config: conn-timeout-ms must be positive, got %d", cfg.ConnTimeoutMS)
	}
	if cfg.MaxConns < 0 {
		return fmt.Errorf("config: max-conns must be >= 0, got %d", cfg.MaxConns)
	}
	if cfg.GOGC < -1 {
		return fmt.Errorf("config: gogc must be >= -1, got %d", cfg.GOGC)
	}
	return nil
}
