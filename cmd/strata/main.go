package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/strata/cache"
	"github.com/oriys/strata/config"
	"github.com/oriys/strata/driver/postgres"
	"github.com/oriys/strata/future"
	"github.com/oriys/strata/logging"
	"github.com/oriys/strata/metrics"
	"github.com/oriys/strata/observability"
	"github.com/oriys/strata/query"
)

var (
	configPath  string
	dsn         string
	metricsAddr string
	cfg         *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata - typed data access over Postgres",
		Long:  "Ad-hoc query tooling for the strata data-access library",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			logging.InitStructured(cfg.Log.Format, cfg.Log.Level)
			metrics.Init("strata", nil)
			if cfg.Metrics.Addr != "" {
				go func() {
					logging.Op().Info("metrics endpoint started", "addr", cfg.Metrics.Addr)
					if err := http.ListenAndServe(cfg.Metrics.Addr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("metrics endpoint failed", "error", err)
					}
				}()
			}
			return observability.Init(cmd.Context(), observability.Config{
				Enabled:     cfg.Telemetry.Enabled,
				Exporter:    cfg.Telemetry.Exporter,
				Endpoint:    cfg.Telemetry.Endpoint,
				ServiceName: "strata",
				SampleRate:  cfg.Telemetry.SampleRate,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = observability.Shutdown(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus metrics endpoint")

	rootCmd.AddCommand(
		pingCmd(),
		queryCmd(),
		execCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	c := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	config.LoadFromEnv(c)
	if dsn != "" {
		c.Postgres.DSN = dsn
	}
	if metricsAddr != "" {
		c.Metrics.Addr = metricsAddr
	}
	return c, nil
}

// connect resolves the connection future for the configured database,
// wrapping it with the Redis result cache when enabled.
func connect(ctx context.Context) *future.Future[query.Connection] {
	connFut := postgres.Connect(ctx, postgres.Config{
		DSN:             cfg.Postgres.DSN,
		IAMAuth:         cfg.Postgres.IAMAuth,
		Region:          cfg.Postgres.Region,
		AccessKeyID:     cfg.Postgres.AccessKeyID,
		SecretAccessKey: cfg.Postgres.SecretAccessKey,
	})
	if !cfg.Redis.Enabled {
		return connFut
	}
	wrapped := future.New[query.Connection]()
	go func() {
		conn, err := connFut.Await(ctx)
		if err != nil {
			wrapped.Fail(err)
			return
		}
		client, err := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			wrapped.Fail(err)
			return
		}
		wrapped.Resolve(cache.Wrap(conn, client, time.Duration(cfg.Redis.TTLSeconds)*time.Second))
	}()
	return wrapped
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context()).Await(cmd.Context())
			if err != nil {
				return err
			}
			if pinger, ok := conn.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Println("ok")
			return nil
		},
	}
}
