package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ldarsim/internal/config"
	"github.com/rewired-gh/ldarsim/internal/ingest"
	"github.com/rewired-gh/ldarsim/internal/logger"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/notify"
	"github.com/rewired-gh/ldarsim/internal/report"
	"github.com/rewired-gh/ldarsim/internal/runner"
	"github.com/rewired-gh/ldarsim/internal/storage"
	"github.com/rewired-gh/ldarsim/internal/strategy"
)

// loadConfig merges file, environment and the command's flags, then sets up
// logging before validating so validation failures are logged consistently.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, traced(err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if configPath != "" {
		logger.Debug("Configuration loaded from %s", configPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, traced(fmt.Errorf("invalid configuration: %w", err))
	}
	return cfg, nil
}

func loadPortfolio(cfg *config.Config) (*models.Portfolio, error) {
	if cfg.Input.PortfolioPath == "" {
		return nil, traced(errors.New("a portfolio is required: set input.portfolio_path or pass --portfolio"))
	}
	p, err := ingest.LoadPortfolio(cfg.Input.PortfolioPath)
	return p, traced(err)
}

func addClusterFlags(cmd *cobra.Command) {
	cmd.Flags().String("portfolio", "", "Portfolio CSV (longitude, latitude, emission_rate_kgph)")
	cmd.Flags().Float64("radius-km", 0.8, "Clustering radius in kilometers")
	cmd.Flags().Int("min-samples", 2, "Minimum sites per cluster, including the core site")
}

func addSurveyFlags(cmd *cobra.Command) {
	addClusterFlags(cmd)
	cmd.Flags().String("wind", "", "Wind series CSV (WindSpeed or wind_speed column)")
	cmd.Flags().String("mode", "clusters", "Survey unit: clusters or sites")
	cmd.Flags().Float64("coverage", 0.2, "Fraction of units surveyed per event, in (0, 1]")
	cmd.Flags().Int("iterations", 5, "Number of Monte Carlo events")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().Int("workers", 0, "Parallel workers (0 uses GOMAXPROCS)")
	cmd.Flags().StringP("output", "o", "", "Write the JSON report to this path")
}

func clusterCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group portfolio sites into survey clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return traced(err)
			}
			portfolio, err := loadPortfolio(cfg)
			if err != nil {
				return traced(err)
			}
			r, err := runner.New(cfg)
			if err != nil {
				return traced(err)
			}
			printClustering(cmd.OutOrStdout(), portfolio, r.Cluster(portfolio), verbose)
			return nil
		},
	}
	addClusterFlags(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every cluster")
	return cmd
}

func simulateCmd() *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the Monte Carlo survey simulation without recording it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return traced(err)
			}
			rep, err := execute(cmd, cfg)
			if err != nil {
				return traced(err)
			}
			if err := runner.Publish(cmd.Context(), rep, cfg.Output.ReportPath, nil, nil); err != nil {
				return traced(err)
			}
			printReport(cmd.OutOrStdout(), rep, showEvents)
			return nil
		},
	}
	addSurveyFlags(cmd)
	cmd.Flags().BoolVar(&showEvents, "events", false, "Print every simulated event")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate, compare strategies, record the run and notify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return traced(err)
			}
			rep, err := execute(cmd, cfg)
			if err != nil {
				return traced(err)
			}

			store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
			if err != nil {
				return traced(fmt.Errorf("failed to initialize storage: %w", err))
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error("Failed to close storage: %v", err)
				}
			}()

			var notifier runner.Notifier
			if cfg.Telegram.Enabled {
				client, err := notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
				if err != nil {
					logger.Error("Failed to initialize Telegram client: %v", err)
				} else {
					notifier = client
				}
			} else {
				logger.Debug("Telegram notifications disabled")
			}

			if err := runner.Publish(cmd.Context(), rep, cfg.Output.ReportPath, store, notifier); err != nil {
				return traced(err)
			}
			printReport(cmd.OutOrStdout(), rep, false)
			return nil
		},
	}
	addSurveyFlags(cmd)
	cmd.Flags().String("db", "", "Run history database (default from storage.db_path)")
	return cmd
}

func execute(cmd *cobra.Command, cfg *config.Config) (*models.RunReport, error) {
	portfolio, err := loadPortfolio(cfg)
	if err != nil {
		return nil, traced(err)
	}
	series := ingest.LoadWindSeries(cfg.Wind.SeriesPath)

	r, err := runner.New(cfg)
	if err != nil {
		return nil, traced(err)
	}
	rep, err := r.Run(cmd.Context(), portfolio, series)
	return rep, traced(err)
}

func strategyCmd() *cobra.Command {
	var yield, total float64

	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Compare survey policies from a reference detection yield",
		Long: "Projects every configured policy over its horizon assuming detection scales " +
			"linearly with coverage. Without flags the reference yield and portfolio total " +
			"of the default study are used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return traced(err)
			}
			results, err := cfg.StrategyConstants().Compare(cfg.Policies(), yield, total)
			if err != nil {
				return traced(err)
			}
			printStrategies(cmd.OutOrStdout(), results, yield, total)
			return nil
		},
	}
	cmd.Flags().Float64Var(&yield, "yield", strategy.DefaultYieldPerPercentKgph, "Detected kg/h per 1% of the portfolio surveyed")
	cmd.Flags().Float64Var(&total, "total", strategy.DefaultPortfolioTotalKgph, "Total portfolio emissions in kg/h")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return traced(err)
			}
			store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
			if err != nil {
				return traced(fmt.Errorf("failed to initialize storage: %w", err))
			}
			defer store.Close()

			if len(args) == 1 {
				rep, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return traced(err)
				}
				printReport(cmd.OutOrStdout(), rep, false)
				return nil
			}

			records, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return traced(err)
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().String("db", "", "Run history database (default from storage.db_path)")
	return cmd
}

func showCmd() *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "show <report.json>",
		Short: "Print a report written with --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return traced(err)
			}
			rep, err := report.ReadJSON(args[0])
			if err != nil {
				return traced(err)
			}
			printReport(cmd.OutOrStdout(), rep, showEvents)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showEvents, "events", false, "Print every simulated event")
	return cmd
}
