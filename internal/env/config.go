package env

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Region    string `env:"RESP3D_REGION"`
	DebugHTTP bool   `env:"RESP3D_DEBUG_HTTP"`

	LogLevel string `env:"RESP3D_LOG_LEVEL,default=info"`
	// LogFile switches logging from stderr to a rotated file.
	LogFile string `env:"RESP3D_LOG_FILE"`

	// MaxPayload bounds bulk lengths, aggregate counts and line lengths
	// accepted from clients. 0 disables the limit.
	MaxPayload int `env:"RESP3D_MAX_PAYLOAD,default=536870912"`
	MaxDepth   int `env:"RESP3D_MAX_DEPTH,default=128"`

	// RateLimit is in commands per second per client IP. 0 disables it.
	RateLimit float64 `env:"RESP3D_RATE_LIMIT"`
	RateBurst int     `env:"RESP3D_RATE_BURST,default=100"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading .env.local: %w", err)
		}
	}

	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom reads the config from l instead of the process environment.
func LoadConfigFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, l); err != nil {
		return nil, err
	}

	if config.MaxPayload < 0 || config.MaxDepth < 0 || config.RateLimit < 0 || config.RateBurst < 0 {
		return nil, fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}

	return &config, nil
}
