package assetcache

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chromy/assetcache/internal/config"
	_ "github.com/chromy/assetcache/internal/features"
	"github.com/chromy/assetcache/internal/schemas"
	"github.com/getsentry/sentry-go"
)

func Usage() {
	fmt.Fprintf(os.Stderr, "assetcache <serve|schemas|config> [flags]\n")
}

func Cmd() {
	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	initSentry()
	defer sentry.Flush(2 * time.Second)

	ctx := context.Background()

	// loadConfig registers the shared flags on fs and returns a function that
	// resolves the effective config once fs has been parsed.
	loadConfig := func(fs *flag.FlagSet) func() (config.Config, error) {
		path := fs.String("config", os.Getenv("ASSETCACHE_CONFIG"), "path to a YAML config file")
		port := fs.Uint("port", 0, "port to listen on")
		backend := fs.String("backend", "", "cache backend: memory, redis or memcached")
		memoryLimit := fs.Int64("memory-limit", 0, "cache memory limit in bytes")
		return func() (config.Config, error) {
			cfg, err := config.Load(*path)
			if err != nil {
				return cfg, err
			}
			if err := cfg.ApplyEnv(); err != nil {
				return cfg, err
			}
			if *port != 0 {
				cfg.Port = *port
			}
			if *backend != "" {
				cfg.Backend = *backend
			}
			if *memoryLimit != 0 {
				cfg.MemoryLimit = *memoryLimit
			}
			return cfg, cfg.Validate()
		}
	}

	serve := func(args []string) int {
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		resolve := loadConfig(fs)
		if err := fs.Parse(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
		cfg, err := resolve()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
		initLogging(cfg)
		if err := DoServe(ctx, cfg); err != nil {
			slog.Error("server stopped", "err", err)
			return 1
		}
		return 0
	}

	schemasCmd := func(args []string) int {
		fs := flag.NewFlagSet("schemas", flag.ExitOnError)
		if err := fs.Parse(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
		DoSchemas(ctx)
		return 0
	}

	configCmd := func(args []string) int {
		fs := flag.NewFlagSet("config", flag.ExitOnError)
		resolve := loadConfig(fs)
		if err := fs.Parse(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
		cfg, err := resolve()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
		data, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
		os.Stdout.Write(data)
		return 0
	}

	main := func(args []string) int {
		cmd := args[1]
		subArgs := args[2:]
		switch cmd {
		case "serve":
			return serve(subArgs)
		case "schemas":
			return schemasCmd(subArgs)
		case "config":
			return configCmd(subArgs)
		default:
			fmt.Fprintf(os.Stderr, "Unknown subcommand '%s'\n", cmd)
			Usage()
			return 1
		}
	}

	os.Exit(main(os.Args))
}

func DoSchemas(ctx context.Context) {
	fmt.Printf("%s", schemas.ToZodSchema())
}

func initLogging(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initSentry() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		slog.Info("SENTRY_DSN not set, Sentry disabled")
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      getEnvironment(),
		TracesSampleRate: 1.0,
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
	})
	if err != nil {
		slog.Error("sentry.Init failed", "err", err)
	} else {
		slog.Info("Sentry initialized")
	}
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if env := os.Getenv("GO_ENV"); env != "" {
		return env
	}
	return "development"
}
