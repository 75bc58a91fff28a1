package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"churn-dashboard/internal/config"
	"churn-dashboard/internal/middleware"
	"churn-dashboard/internal/observability"
	"churn-dashboard/internal/server"
	"churn-dashboard/internal/services"
)

const (
	version        = "1.0.0"
	csvLoadTimeout = 30 * time.Second
)

type rootOptions struct {
	configFile string
	csvFile    string
	port       int
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "churn-dashboard",
		Short:         "Bank customer churn dashboard",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, out)
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.csvFile, "csv", "", "path to the customer CSV file (overrides config)")
	root.PersistentFlags().IntVar(&opts.port, "port", 0, "HTTP port (overrides config)")

	root.AddCommand(newServeCmd(opts, out), newSummaryCmd(opts, out))
	return root
}

func newServeCmd(opts *rootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, out)
		},
	}
}

func newSummaryCmd(opts *rootOptions, out io.Writer) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard cards for a CSV file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg.Logger, cmd.ErrOrStderr())

			churn := services.NewChurn(churnOptions(cfg, logger)...)
			ctx, cancel := context.WithTimeout(contextOrBackground(cmd.Context()), csvLoadTimeout)
			defer cancel()
			if err := churn.LoadFromCSV(ctx, cfg.Dataset.CSVFile); err != nil {
				return err
			}
			return printSummary(out, churn, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full summary as JSON")
	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.csvFile != "" {
		cfg.Dataset.CSVFile = opts.csvFile
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	return cfg, nil
}

func churnOptions(cfg *config.Config, logger *slog.Logger) []services.Option {
	opts := []services.Option{
		services.WithSampleSeed(cfg.Dataset.SampleSeed),
		services.WithLogger(logger),
	}
	if cfg.Dataset.EnableCache {
		opts = append(opts, services.WithCache(cfg.Dataset.CacheDir))
	}
	return opts
}

func printSummary(out io.Writer, churn *services.Churn, asJSON bool) error {
	summary := churn.Summary()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, card := range summary.Cards {
		fmt.Fprintf(tw, "%s\t%s\n", card.Title, card.Value)
	}
	fmt.Fprintf(tw, "Records\t%d\n", summary.Records)
	return tw.Flush()
}

// newHandler wires the routes behind the middleware chain. The returned
// limiter must be stopped on shutdown.
func newHandler(cfg *config.Config, churn *services.Churn, logger *slog.Logger) (http.Handler, *middleware.RateLimiter) {
	srv := server.NewServer(churn, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)
	return chain(srv), rateLimiter
}

func runServe(ctx context.Context, opts *rootOptions, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.Logger, out)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"csv_file", cfg.Dataset.CSVFile,
	)

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	churn := services.NewChurn(churnOptions(cfg, logger)...)

	loadCtx, cancel := context.WithTimeout(ctx, csvLoadTimeout)
	start := time.Now()
	err = churn.LoadFromCSV(loadCtx, cfg.Dataset.CSVFile)
	cancel()
	if err != nil {
		logger.Error("failed to load CSV data", "error", err)
		return err
	}
	logger.Info("CSV data loaded successfully", "duration", time.Since(start))

	handler, rateLimiter := newHandler(cfg, churn, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server.ShutdownTimeout)
	gracefulServer.RegisterShutdownHook("rate-limiter", func(ctx context.Context) error {
		rateLimiter.Stop()
		return nil
	})

	if cfg.Dataset.Watch {
		watcher, err := services.NewWatcher(churn, cfg.Dataset.CSVFile, logger)
		if err != nil {
			logger.Error("failed to create dataset watcher", "error", err)
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			logger.Error("failed to start dataset watcher", "error", err)
			return err
		}
		gracefulServer.RegisterShutdownHook("dataset-watcher", func(ctx context.Context) error {
			watcher.Stop()
			return nil
		})
	}

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
