package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runtimelab/jitcore/internal/archive"
	"github.com/runtimelab/jitcore/internal/key"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect a jitcore archive dump file",
}

var archiveStatCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Print the manifest sidecar for an archive dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := archive.ReadManifest(args[0])
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		fmt.Printf("magic:        %#x\n", m.Magic)
		fmt.Printf("version:      %d\n", m.Version)
		fmt.Printf("klasses:      %d\n", m.Klasses)
		fmt.Printf("methods:      %d\n", m.Methods)
		fmt.Printf("schedule_len: %d\n", m.ScheduleLen)
		fmt.Printf("created_at:   %s\n", m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	},
}

var archiveScheduleCmd = &cobra.Command{
	Use:   "schedule <path>",
	Short: "List the restored recompilation schedule's resolved slots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		restored, err := restoreFile(args[0])
		if err != nil {
			return err
		}
		for i := 0; i < restored.Schedule.Len(); i++ {
			m := restored.Schedule.MethodAt(i)
			if m == nil {
				fmt.Printf("%4d  <symbolic>\n", i)
				continue
			}
			fmt.Printf("%4d  %s  done=%t\n", i, m.Key(), restored.Schedule.StatusAt(i))
		}
		return nil
	},
}

var (
	lookupClass  string
	lookupLoader string
	lookupMethod string
	lookupSig    string
)

var archiveLookupCmd = &cobra.Command{
	Use:   "lookup <path>",
	Short: "Look up one archived key by class/loader (and optionally method/signature)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if lookupClass == "" {
			return fmt.Errorf("--class is required")
		}
		restored, err := restoreFile(args[0])
		if err != nil {
			return err
		}
		k := key.NewClassKey(lookupClass, lookupLoader)
		if lookupMethod != "" {
			k = key.NewMethodKey(k, lookupMethod, lookupSig)
		}
		for _, sym := range k.Symbols() {
			restored.Interner().Intern(sym)
		}
		rec := restored.LookupArchived(k)
		if rec == nil {
			fmt.Println("not found (absent, or present only symbolically)")
			return nil
		}
		fmt.Printf("found: %s\n", rec.Key())
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveStatCmd)
	archiveCmd.AddCommand(archiveScheduleCmd)
	archiveCmd.AddCommand(archiveLookupCmd)

	archiveLookupCmd.Flags().StringVar(&lookupClass, "class", "", "class name")
	archiveLookupCmd.Flags().StringVar(&lookupLoader, "loader", "", "loader name")
	archiveLookupCmd.Flags().StringVar(&lookupMethod, "method", "", "method name (omit for a class lookup)")
	archiveLookupCmd.Flags().StringVar(&lookupSig, "sig", "", "method signature")
}

func restoreFile(path string) (*archive.Restored, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	interner := key.NewInterner()
	restored, err := archive.Restore(f, interner)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", path, err)
	}
	return restored, nil
}
