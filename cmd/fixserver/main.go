// Command fixserver runs the FIX 4.4 session core: it accepts
// counterparty connections, drives each through Logon and steady-state
// message exchange, and tears every session down gracefully on
// shutdown.
//
// Grounded on the teacher's cmd/server/main.go wiring (flags → Server →
// listen → signal-driven Shutdown), generalized to fixcore's
// collaborator set (Acceptor, Registry, Heartbeats, a pluggable
// MessageStore and IdentityResolver) using the CLI/config idiom of
// marmos91-dittofs's cmd/dittofs (cobra root command, viper-bound
// flags with FIXSERVER_-prefixed env var overrides), scaled down from
// that teacher's daemon/PID-file/telemetry machinery, none of which
// this single-purpose binary needs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fixcore/heartbeat"
	"fixcore/identity"
	"fixcore/internal/clock"
	"fixcore/internal/fixapp"
	"fixcore/internal/obslog"
	"fixcore/middleware"
	"fixcore/registry"
	"fixcore/store"
	"fixcore/store/badgerstore"
	"fixcore/transport"
)

var cfgFile string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fixserver",
		Short:         "Run the FIX 4.4 session core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	flags := root.Flags()
	flags.String("listen", "0.0.0.0:5001", "address to accept counterparty connections on")
	flags.Int("max-sessions", 0, "maximum concurrent sessions (0 = unbounded)")
	flags.Duration("logon-timeout", 10*time.Second, "time a new connection has to complete Logon")
	flags.Duration("shutdown-timeout", 5*time.Second, "time to wait for graceful logout during shutdown")
	flags.Duration("heartbeat-tick", 1*time.Second, "timer wheel resolution")
	flags.String("store", "memory", "message store backend: memory, badger, or sharded")
	flags.String("badger-path", "./data/fixcore", "badger data directory (store=badger)")
	flags.StringSlice("shard-paths", nil, "comma-separated badger data directories, one per shard (store=sharded)")
	flags.String("identity", "memory", "identity resolver backend: memory or etcd")
	flags.StringSlice("etcd-endpoints", nil, "etcd endpoints (identity=etcd)")
	flags.Float64("rate-limit", 100, "application messages per second, per instance")
	flags.Int("rate-burst", 20, "application message burst size")
	flags.Duration("app-timeout", 2*time.Second, "maximum time a business handler may take per message")
	flags.Int("retry-max", 2, "retries for transient application handler errors")
	flags.Duration("retry-base-delay", 25*time.Millisecond, "base exponential backoff delay between retries")

	viper.BindPFlags(flags)
	viper.SetEnvPrefix("FIXSERVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fixserver: reading config: %w", err)
		}
	}

	logger, err := obslog.New()
	if err != nil {
		return fmt.Errorf("fixserver: building logger: %w", err)
	}
	defer logger.Sync()

	msgStore, err := buildStore()
	if err != nil {
		return fmt.Errorf("fixserver: building store: %w", err)
	}
	defer msgStore.Close()

	resolver, err := buildResolver()
	if err != nil {
		return fmt.Errorf("fixserver: building identity resolver: %w", err)
	}

	reg := registry.New(viper.GetInt("max-sessions"))

	hb := heartbeat.NewScheduler(clock.NewReal(), viper.GetDuration("heartbeat-tick"))
	go hb.Run()
	defer hb.Stop()

	app := fixapp.New(
		middleware.LoggingMiddleware(logger),
		middleware.RateLimitMiddleware(viper.GetFloat64("rate-limit"), viper.GetInt("rate-burst")),
		middleware.TimeOutMiddleware(viper.GetDuration("app-timeout")),
		middleware.RetryMiddleware(viper.GetInt("retry-max"), viper.GetDuration("retry-base-delay")),
	)

	acceptor := &transport.Acceptor{
		Store:        msgStore,
		Resolver:     resolver,
		Registry:     reg,
		Heartbeats:   hb,
		App:          app,
		Clock:        clock.NewReal(),
		Logger:       logger,
		LogonTimeout: viper.GetDuration("logon-timeout"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenAddr := viper.GetString("listen")
	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve(ctx, "tcp", listenAddr) }()
	logger.Info("fixserver listening", "addr", listenAddr, "store", viper.GetString("store"), "identity", viper.GetString("identity"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), viper.GetDuration("shutdown-timeout"))
		defer shutdownCancel()
		if err := reg.ShutdownAll(shutdownCtx, viper.GetDuration("shutdown-timeout"), closeSession); err != nil {
			logger.Warn("graceful shutdown timed out", "error", err.Error())
		}
		return nil
	case err := <-serveErr:
		return err
	}
}

func closeSession(ctx context.Context, e registry.Entry) error {
	return e.Machine.Shutdown(ctx)
}

func buildStore() (store.MessageStore, error) {
	switch viper.GetString("store") {
	case "memory":
		return store.NewMemStore(), nil
	case "badger":
		return badgerstore.Open(viper.GetString("badger-path"))
	case "sharded":
		paths := viper.GetStringSlice("shard-paths")
		if len(paths) == 0 {
			return nil, fmt.Errorf("fixserver: store=sharded requires at least one --shard-paths entry")
		}
		backends := make(map[string]store.MessageStore, len(paths))
		for i, p := range paths {
			shard, err := badgerstore.Open(p)
			if err != nil {
				return nil, fmt.Errorf("fixserver: opening shard %d (%s): %w", i, p, err)
			}
			backends[fmt.Sprintf("shard-%d", i)] = shard
		}
		return store.NewSharded(backends), nil
	default:
		return nil, fmt.Errorf("fixserver: unknown store backend %q", viper.GetString("store"))
	}
}

func buildResolver() (identity.Resolver, error) {
	switch viper.GetString("identity") {
	case "memory":
		return identity.NewMemoryResolver(), nil
	case "etcd":
		endpoints := viper.GetStringSlice("etcd-endpoints")
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("fixserver: identity=etcd requires at least one --etcd-endpoints entry")
		}
		return identity.NewEtcdResolver(endpoints)
	default:
		return nil, fmt.Errorf("fixserver: unknown identity backend %q", viper.GetString("identity"))
	}
}
