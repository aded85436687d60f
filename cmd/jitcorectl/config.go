package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runtimelab/jitcore/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective recompilation-driver configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the resolved config after defaults, file, and env overrides",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		d, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		fmt.Printf("%-34s %t\n", config.KeyEnableRecompilation, d.EnableRecompilation)
		fmt.Printf("%-34s %.3f\n", config.KeyLoadThreshold, d.LoadThreshold)
		fmt.Printf("%-34s %d\n", config.KeyDelaySeconds, d.DelaySeconds)
		fmt.Printf("%-34s %t\n", config.KeyForceRecompilation, d.ForceRecompilation)
		fmt.Printf("%-34s %t\n", config.KeyRecordOnlyTopCompilations, d.RecordOnlyTopCompilations)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
