// Package registryd parses registry daemon flags and starts the runtime.
package registryd

import (
	"context"
	"flag"

	entrypoint "github.com/terrachain/registry/internal/platform/cmd"
	"github.com/terrachain/registry/internal/registry/app"
)

// Config holds registry daemon configuration.
type Config struct {
	app.Env
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg.Env); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the SQLite mirror database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the registry daemon.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistry, func(ctx context.Context) error {
		return app.Run(ctx, cfg.Env)
	})
}
