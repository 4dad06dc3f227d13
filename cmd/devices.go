package cmd

import (
	"fmt"

	"github.com/audiolibrelab/awgseq/internal/hardware"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List configured instruments, channels and hardware backends",
	Long:  `List the instruments defined in the rig file with their memory constraints, the channels of the active profile and the available hardware backends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Instruments (%d)\n", len(cfg.Devices))
		fmt.Printf("═══════════════════════════════════════\n")
		for _, dev := range cfg.Devices {
			model := dev.Model
			if model == "" {
				model = "unknown model"
			}
			fmt.Printf("  %s (%s) @ %g S/s\n", dev.ID, model, dev.SampleRate)
			fmt.Printf("    min_size=%d multiple=%d auto_compression=%t max_tasks=%d\n",
				dev.Memory.MinSize, dev.Memory.Multiple, dev.Memory.AutoCompression, dev.Memory.MaxTasks)
		}

		seen := make(map[string]bool)
		fmt.Printf("\nChannels in profile %s\n", cfg.Profile)
		for _, wf := range cfg.Waveforms {
			for _, ch := range wf.Channels {
				key := ch.Device + "/" + ch.Name
				if seen[key] {
					continue
				}
				seen[key] = true
				fmt.Printf("  %s  amplitude=%g Vpp offset=%g V\n", key, ch.Amplitude, ch.Offset)
			}
		}

		fmt.Printf("\nHardware backends\n")
		for _, backend := range hardware.GetAvailableBackends() {
			marker := "  "
			if string(backend) == cfg.Hardware.Backend {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, backend)
		}
		return nil
	},
}
