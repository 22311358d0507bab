// Command httpserver runs the demo application: a few routes, static files,
// templates, sessions and metrics on top of the minimal HTTP/1.1 server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridge/parallel"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Brownie44l1/minihttp/internal/config"
	"github.com/Brownie44l1/minihttp/internal/server"
)

type options struct {
	configFile string
	overrides  map[string]any
}

func parseFlags(args []string) (options, error) {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "YAML configuration file")
	addr := fs.String("addr", config.DefaultAddr, "address to listen on")
	logLevel := fs.String("log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	logFormat := fs.String("log-format", config.DefaultLogFormat, "log format (json|text)")
	logColor := fs.String("log-color", config.DefaultLogColor, "colored logs (yes|no|auto)")
	staticDir := fs.String("static-dir", "", "directory served at /, replacing the configured static mappings")
	templateDir := fs.String("template-dir", config.DefaultTemplateDir, "directory holding template files")
	rps := fs.Float64("rate-limit", 0, "requests per second allowed per client, 0 disables limiting")
	burst := fs.Int("rate-burst", 10, "burst size for --rate-limit")
	if err := fs.Parse(args[1:]); err != nil {
		return options{}, err
	}

	// Only flags given explicitly override the file and the environment
	overrides := map[string]any{}
	set := func(flag, key string, value any) {
		if fs.Changed(flag) {
			overrides[key] = value
		}
	}
	set("addr", "server.addr", *addr)
	set("log-level", "log.level", *logLevel)
	set("log-format", "log.format", *logFormat)
	set("log-color", "log.color", *logColor)
	set("template-dir", "templates.dir", *templateDir)
	set("rate-limit", "ratelimit.rps", *rps)
	set("rate-burst", "ratelimit.burst", *burst)
	if *staticDir != "" {
		overrides["static"] = []any{map[string]any{"prefix": "/", "dir": *staticDir}}
	}

	return options{configFile: *configFile, overrides: overrides}, nil
}

func loadConfig(opts options) (*config.Config, error) {
	return config.NewLoader(config.WithConfigFile(opts.configFile)).Load(opts.overrides)
}

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, level, err := server.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv := newServer(cfg, logger)
	logRoutes(srv, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("http", parallel.Fail, srv.ListenAndServe)

		if opts.configFile != "" {
			spawn("configWatcher", parallel.Fail, func(ctx context.Context) error {
				return watchLogLevel(ctx, opts, level, logger)
			})
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logRoutes(srv *server.Server, logger *zap.Logger) {
	for _, route := range srv.Routes() {
		logger.Debug("Route registered", zap.String("method", route.Method), zap.String("pattern", route.Pattern))
	}
	for _, m := range srv.StaticMappings() {
		logger.Debug("Static directory mounted", zap.String("prefix", m.Prefix), zap.String("dir", m.Dir))
	}
}

// watchLogLevel applies log.level from the configuration file whenever the
// file changes. Other settings need a restart.
func watchLogLevel(ctx context.Context, opts options, level zap.AtomicLevel, logger *zap.Logger) error {
	w, err := config.NewWatcher(opts.configFile, logger)
	if err != nil {
		return fmt.Errorf("watch %s: %w", opts.configFile, err)
	}
	w.OnChange(func(path string) {
		cfg, err := loadConfig(opts)
		if err != nil {
			logger.Warn("Ignoring invalid configuration", zap.String("file", path), zap.Error(err))
			return
		}
		lvl, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return
		}
		if lvl != level.Level() {
			level.SetLevel(lvl)
			logger.Info("Log level changed", zap.Stringer("level", lvl))
		}
	})

	go func() {
		<-ctx.Done()
		_ = w.Stop()
	}()
	w.Run()
	return ctx.Err()
}
