package cmd

import (
	"fmt"

	"github.com/audiolibrelab/awgseq/internal/hardware"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image-file]",
	Short: "Decode a channel image written by the capture backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := hardware.ReadImage(args[0])
		if err != nil {
			return err
		}

		total := 0
		for _, n := range img.Lengths {
			total += n
		}
		fmt.Printf("Channel: %s\n", img.Channel)
		fmt.Printf("Segments: %d (%d points of memory)\n", len(img.Lengths), total)
		fmt.Printf("Expanded waveform: %d points\n", len(img.Expand()))

		fmt.Printf("\n[Task table]\n")
		for i, task := range img.Tasks {
			trigger := task.Trigger
			if trigger == "" {
				trigger = "-"
			}
			fmt.Printf("  %4d  segment=%-4d loops=%-4d next=%-4d trigger=%s\n", i+1, task.Segment, task.Loops, task.Next, trigger)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
