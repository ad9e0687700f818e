package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eternalApril/moonwire/internal/config"
	"github.com/eternalApril/moonwire/internal/logger"
	"github.com/eternalApril/moonwire/internal/metrics"
	"github.com/eternalApril/moonwire/internal/server"
	"github.com/eternalApril/moonwire/internal/storage"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configDir string

	cmd := &cobra.Command{
		Use:          "moonwire",
		Short:        "Moonwire is an in-memory key-value server speaking RESP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configDir)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configDir, "config", "c", ".", "Directory holding config.yaml and .env")
	flags.StringP("host", "a", "", "The host to listen on")
	flags.StringP("port", "p", "", "The port to listen client connections on")
	flags.Bool("reuseport", false, "Listen with SO_REUSEPORT")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-address", "", "Address of the metrics endpoint")

	bindings := map[string]string{
		"server.host":      "host",
		"server.port":      "port",
		"server.reuseport": "reuseport",
		"log.level":        "log-level",
		"metrics.enabled":  "metrics",
		"metrics.address":  "metrics-address",
	}
	for key, flag := range bindings {
		// only flags set on the command line override file and env values
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func run(parent context.Context, cfg *config.Config) (err error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	log.Info("Moonwire starting",
		zap.String("port", cfg.Server.Port),
		zap.Uint("shards", cfg.Storage.Shards),
	)

	db, err := storage.NewShardedMapStorage(cfg.Storage.Shards)
	if err != nil {
		log.Error("cant initialize storage", zap.Error(err))
		return err
	}

	var (
		m       *metrics.Metrics
		httpSrv *http.Server
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		httpSrv = metrics.NewServer(cfg.Metrics.Address, reg, log.Named("metrics"))

		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server errored", zap.Error(err))
			}
		}()
		log.Info("metrics on", zap.String("address", cfg.Metrics.Address))
	}

	engine := server.NewEngine(db, log.Named("engine"), m)
	srv := server.New(cfg.Server, cfg.Protocol.Limits(), engine, log.Named("server"), m)

	if err := srv.Listen(); err != nil {
		log.Error("listener error", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GC.Enabled {
		go engine.RunGC(ctx, cfg.GC)
	}

	if err := srv.Serve(ctx); err != nil {
		return err
	}

	// Restore default behavior on the interrupt signal
	stop()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	if httpSrv != nil {
		err = multierr.Append(err, httpSrv.Shutdown(shutdownCtx))
	}

	if err != nil {
		log.Warn("Shutdown finished with errors", zap.Error(err))
		return err
	}

	log.Info("Moonwire stopped")
	return nil
}
