package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adagent/pkg/builder"
	"github.com/ajitpratap0/adagent/pkg/config"
	"github.com/ajitpratap0/adagent/pkg/logger"
	"github.com/ajitpratap0/adagent/pkg/observability"
)

var version = "0.1.0"

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// app carries what every subcommand needs once flags are resolved.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	builder  *builder.Orchestrator
	shutdown observability.ShutdownFunc
	metrics  *http.Server
}

func main() {
	v := viper.New()
	v.SetEnvPrefix("ADAGENT")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "adagent",
		Short: "adagent - synthesizes extraction drivers for ad-platform APIs",
		Long: `adagent probes an HTTP API, generates an extraction driver for it, test-runs
the driver and repairs it from runtime errors until it works or the attempt
budget runs out. Built drivers can then be used to load campaign data into
the local table store.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to YAML configuration file")
	flags.String("drivers-dir", "", "Directory for generated driver artifacts")
	flags.String("store", "", "Path to the SQLite table store")
	flags.Int("max-attempts", 0, "Build attempts per driver")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "", "Log encoding (console, json)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.Bool("tracing", false, "Export trace spans to stderr")
	for _, name := range []string{
		"config", "drivers-dir", "store", "max-attempts",
		"log-level", "log-encoding", "metrics-addr", "tracing",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		versionCommand(),
		buildCommand(v),
		ensureCommand(v),
		existsCommand(v),
		extractCommand(v),
		sourcesCommand(v),
		inspectCommand(v),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("adagent v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig reads the config file when one is given, then applies flag and
// ADAGENT_* environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if s := v.GetString("drivers-dir"); s != "" {
		cfg.Drivers.Dir = s
	}
	if s := v.GetString("store"); s != "" {
		cfg.Store.Path = s
	}
	if n := v.GetInt("max-attempts"); n > 0 {
		cfg.Drivers.MaxAttempts = n
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.Observability.LogLevel = s
	}
	if s := v.GetString("log-encoding"); s != "" {
		cfg.Observability.LogEncoding = s
	}
	if s := v.GetString("metrics-addr"); s != "" {
		cfg.Observability.MetricsAddr = s
	}
	if v.GetBool("tracing") {
		cfg.Observability.EnableTracing = true
	}
	return cfg, cfg.Validate()
}

func setup(v *viper.Viper) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, err
	}
	log := logger.Get()

	tracing := observability.DefaultTracingConfig()
	tracing.Enabled = cfg.Observability.EnableTracing
	tracing.ServiceVersion = version
	tracing.Writer = os.Stderr
	shutdown, err := observability.InitTracing(tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		builder:  builder.New(cfg, log),
		shutdown: shutdown,
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", addr))
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.builder.Close()
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = a.log.Sync()
}

// run resolves configuration, runs fn and tears everything down.
func run(v *viper.Viper, fn func(a *app) error) error {
	a, err := setup(v)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
