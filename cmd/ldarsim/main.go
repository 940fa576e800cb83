package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/ldarsim/internal/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "ldarsim",
		Short:         "Aerial methane survey (LDAR) detection simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.AddCommand(clusterCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(strategyCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(showCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		err := traced(err)
		logger.Error("Command failed: %s", xerrors.Sprint(err))
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// traced attaches the caller's stack trace to err unless it already carries
// one, so the logged trace points at the command step that failed.
func traced(err error) error {
	if err == nil || xerrors.StackTrace(err) != nil {
		return err
	}
	return xerrors.WithStackTrace(err, 1)
}
