// Package events wires configuration parsing to the events service runtime.
package events

import (
	"context"
	"flag"

	platformcmd "github.com/gigline/gigline/internal/platform/cmd"
	"github.com/gigline/gigline/internal/services/events/app"
)

// Config holds events command configuration.
type Config struct {
	GRPCPort      int    `env:"GIGLINE_EVENTS_GRPC_PORT" envDefault:"8090"`
	HTTPAddr      string `env:"GIGLINE_EVENTS_HTTP_ADDR" envDefault:"localhost:8091"`
	DBPath        string `env:"GIGLINE_EVENTS_DB_PATH"`
	RedisAddr     string `env:"GIGLINE_EVENTS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"GIGLINE_EVENTS_REDIS_PASSWORD"`
	RedisDB       int    `env:"GIGLINE_EVENTS_REDIS_DB" envDefault:"0"`
	Stream        string `env:"GIGLINE_EVENTS_STREAM"`
}

// ParseConfig loads env defaults and parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The events health endpoint port")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The events API address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The events SQLite database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "The fan-out stream broker address")
	fs.StringVar(&cfg.Stream, "stream", cfg.Stream, "The fan-out stream name")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the events server with telemetry configured.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceEvents, func(ctx context.Context) error {
		return app.Run(ctx, app.Options{
			GRPCPort:      cfg.GRPCPort,
			HTTPAddr:      cfg.HTTPAddr,
			DBPath:        cfg.DBPath,
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			Stream:        cfg.Stream,
		})
	})
}
