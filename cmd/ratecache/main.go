package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"rate-cache-service/internal/adapter/repository"
	"rate-cache-service/internal/adapter/store"
	"rate-cache-service/internal/config"
	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/internal/metrics"
	"rate-cache-service/internal/service"
	"rate-cache-service/pkg/logger"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ratecache",
	Short:         "Cached currency exchange rates with coalesced remote lookups",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/ratecache.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(convertCmd)
}

// app holds the wired service and the resources that must be released with it.
type app struct {
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	service  *service.ExchangeService
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)

	a := &app{log: log, registry: registry, metrics: appMetrics}

	rateStore, err := a.newStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	source := repository.NewQuoteAPI(cfg.QuoteAPI.Endpoint, cfg.QuoteAPI.Timeout, log)
	a.service = service.NewExchangeService(ctx, source, rateStore, cfg.Settings(), log, appMetrics)
	return a, nil
}

func (a *app) newStore(sc config.StoreConfig) (ports.RateStore, error) {
	switch sc.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		if err := os.MkdirAll(sc.FilePath, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		return store.NewFileStore(sc.FilePath, a.log), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		return store.NewRedisStore(client, sc.RedisPrefix, a.log), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.log.Warn("Failed to release resource", "error", err)
		}
	}
}

// withApp wires the service for one-shot commands and releases it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

var rateCmd = &cobra.Command{
	Use:   "rate FROM TO",
	Short: "Print the exchange rate for a pair, served from cache when fresh",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			result, err := a.service.GetRate(ctx, model.Currency(args[0]), model.Currency(args[1]))
			if err != nil {
				return err
			}

			suffix := ""
			if result.Expired {
				suffix = " (expired)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v%s\n", result.Pair, result.Rate, suffix)
			return nil
		})
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote FROM TO",
	Short: "Fetch a fresh quote for a pair from the remote source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			from, to := model.Currency(args[0]), model.Currency(args[1])
			rate, err := a.service.FetchQuote(ctx, from, to)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", model.NewPairKey(from, to), rate)
			return nil
		})
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert AMOUNT FROM TO",
	Short: "Convert an amount between currencies",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			result, err := a.service.ConvertAmount(ctx, amount, model.Currency(args[1]), model.Currency(args[2]))
			if err != nil {
				return err
			}

			suffix := ""
			if result.Expired {
				suffix = " (expired)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v %s = %v %s at %v%s\n",
				result.Amount, args[1], result.Value, args[2], result.Rate, suffix)
			return nil
		})
	},
}
