package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [waveform]",
	Short: "Execute pipeline steps on a waveform",
	Long: `Execute the specified pipeline steps on a waveform. Use -p to specify which steps to run:
a assembles and compresses, c commits changed channels to the hardware backend,
w writes a WAV preview.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p ac)")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		steps := strings.ToLower(pipeline)
		names := make([]string, 0, len(steps))
		for _, step := range steps {
			names = append(names, validSteps[step])
		}
		fmt.Printf("Pipeline: %s on '%s'...\n", strings.Join(names, " -> "), name)

		if err := svc.RunPipeline(cmd.Context(), name, steps); err != nil {
			return err
		}

		printStatus(svc.Status())
		return nil
	},
}
