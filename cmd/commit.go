package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:     "commit [waveform]",
	Aliases: []string{"program"},
	Short:   "Prepare a waveform and program it into the hardware backend",
	Long: `Prepare a waveform and write it to the configured hardware backend: for
every channel the segment table is allocated, each library block is
written and the task table is loaded. Channels whose content is unchanged
since the last commit are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		plan, err := svc.Prepare(args[0])
		if err != nil {
			return fmt.Errorf("prepare failed: %w", err)
		}
		printPlan(plan)

		report, err := svc.Commit(cmd.Context(), plan)
		if report != nil && len(report.Written) > 0 {
			fmt.Printf("\nWritten: %s\n", strings.Join(report.Written, ", "))
		}
		if err != nil {
			return fmt.Errorf("commit failed: %w", err)
		}
		if len(report.Skipped) > 0 {
			fmt.Printf("Skipped (unchanged): %s\n", strings.Join(report.Skipped, ", "))
		}

		printStatus(svc.Status())
		return nil
	},
}
