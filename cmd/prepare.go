package cmd

import (
	"fmt"

	"github.com/audiolibrelab/awgseq/internal/service"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [waveform]",
	Short: "Assemble and compress a waveform without programming the hardware",
	Long: `Resolve the segment timeline of a waveform, assemble every channel buffer,
run the memory and amplitude checks and show the compressed block library
and task table that a commit would write.`,
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
		return nil
	},
}

func printPlan(plan *service.Plan) {
	fmt.Printf("Waveform: %s (profile %s)\n", plan.Waveform, plan.Profile)
	fmt.Printf("Plan: %s\n", plan.ID)
	fmt.Printf("Points: %d\n", plan.Layout.NumPts)

	fmt.Printf("\n[Segments]\n")
	for i, span := range plan.Layout.Spans {
		elastic := ""
		if i == plan.Layout.Elastic {
			elastic = " [elastic]"
		}
		fmt.Printf("  %-16s %8d pts  @%-8d %.6g s%s\n", span.Name, span.Points, span.Offset, span.Duration, elastic)
	}

	fmt.Printf("\n[Channels]\n")
	if plan.Linked {
		fmt.Printf("  (linked: one block partition for all channels)\n")
	}
	for _, cp := range plan.Channels {
		state := "unchanged"
		if cp.Changed {
			state = "changed"
		}
		fmt.Printf("  %-20s %-6s %4d blocks %5d tasks  %s  %s\n",
			cp.Key, cp.Algorithm, len(cp.Library.Blocks), len(cp.Tasks), cp.Digest.String()[:12], state)
	}
}

func printStatus(status []service.ChannelStatus) {
	fmt.Printf("\n[Status]\n")
	for _, st := range status {
		fmt.Printf("  %-20s %-20s %s\n", st.Channel, st.State, st.Waveform)
	}
}
