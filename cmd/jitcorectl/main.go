// Command jitcorectl inspects jitcore archives and the effective tuning
// config: a root command plus one file per subcommand group,
// SilenceUsage/SilenceErrors, and a log/slog logger built from --log-level.
// Command results are printed to stdout with fmt.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/runtimelab/jitcore/internal/telemetry"
)

var (
	logLevel string
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jitcorectl",
	Short: "Inspect jitcore training-data archives and configuration",
	Long: `jitcorectl is a debug and operations CLI for the jitcore training-data
core: it reads archive dump files and their manifest sidecars without
needing a live JVM-equivalent process attached, and reports the
effective recompilation-driver configuration for a given config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl := slog.LevelInfo
		if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	telemetry.InitMeterProvider()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
