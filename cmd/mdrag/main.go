package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mdrag/internal/app"
	"mdrag/internal/config"
	"mdrag/internal/logger"
)

const exitInterrupted = 130

func main() {
	// Контекст с сигналами завершения
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(exitInterrupted)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	cfg      config.Config
	logLevel string
	logJSON  bool
	store    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mdrag",
		Short:         "Incremental markdown indexing and semantic search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, disabled")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")
	flags.StringVar(&opts.store, "store", "", "Vector store backend: chromem or qdrant")

	cmd.AddCommand(newIndexCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	return cmd
}

// load читает .env и окружение, флаги имеют приоритет
func (o *rootOptions) load(cmd *cobra.Command) error {
	// Загружаем .env (опционально)
	_ = godotenv.Load()

	if err := config.Init(&o.cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		o.cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-json") {
		o.cfg.LogJSON = o.logJSON
	}
	if flags.Changed("store") {
		o.cfg.VectorStore = o.store
	}
	if flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		o.cfg.IndexWorkers = workers
	}
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(strings.ToLower(o.cfg.LogLevel))
	logCfg.JSON = o.cfg.LogJSON
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), logger.NewLogger(logCfg)))
	return nil
}

func (o *rootOptions) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, &o.cfg)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil && runErr == nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return runErr
}

func newIndexCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Index markdown, text and pdf files under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(ctx, func(a *app.App) error {
				_, err := a.Index(ctx, args[0])
				return err
			})
		},
	}
	cmd.Flags().Int("workers", 0, "Documents processed in parallel (default from INDEX_WORKERS)")
	return cmd
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var results int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search indexed chunks by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withApp(ctx, func(a *app.App) error {
				return a.SearchAndPrint(ctx, strings.Join(args, " "), results)
			})
		},
	}
	cmd.Flags().IntVarP(&results, "results", "n", 0, "Number of results (default from DEFAULT_NUM_RESULTS)")
	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number of indexed chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return opts.withApp(ctx, func(a *app.App) error {
				_, err := a.Stats(ctx)
				return err
			})
		},
	}
}
