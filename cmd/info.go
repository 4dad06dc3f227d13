package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/awgseq/internal/hardware"
	"github.com/audiolibrelab/awgseq/internal/preview"
	"github.com/audiolibrelab/awgseq/internal/waveform"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [waveform]",
	Short: "Show resolved configuration and timeline for a waveform",
	Long:  `Display the resolved waveform configuration with inheritance indicators, its segment timeline and output paths. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		wf, err := cfg.Waveform(name)
		if err != nil {
			return err
		}
		w, err := cfg.BuildWaveform(name)
		if err != nil {
			return err
		}
		inheritance := cfg.Inheritance.Waveforms[name]

		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("preview_wav: %s\n", preview.New(cfg).Path(name))
		writer, err := hardware.NewWriter(cfg.Hardware)
		if err != nil {
			return err
		}
		if capture, ok := writer.(*hardware.Capture); ok {
			for _, ch := range w.Channels {
				fmt.Printf("image %s: %s\n", ch.Key(), capture.ImagePath(ch.Key()))
			}
		}

		fmt.Printf("\n=== RESOLVED CONFIGURATION (profile %s) ===\n", cfg.Profile)

		fmt.Printf("\n[Hardware]\n")
		fmt.Printf("backend: %s %s\n", cfg.Hardware.Backend, getInheritanceIndicator(cfg.Inheritance.Hardware.Backend))
		fmt.Printf("capture_directory: %s %s\n", cfg.Hardware.CaptureDirectory, getInheritanceIndicator(cfg.Inheritance.Hardware.CaptureDirectory))

		fmt.Printf("\n[Waveform] %s\n", getInheritanceIndicator(inheritance.Origin))
		fmt.Printf("sample_rate: %g %s\n", w.SampleRate, getInheritanceIndicator(inheritance.SampleRate))
		fmt.Printf("total_time: %s %s\n", wf.TotalTime, getInheritanceIndicator(inheritance.TotalTime))
		fmt.Printf("compression: %s %s\n", w.Compression, getInheritanceIndicator(inheritance.Compression))
		fmt.Printf("link_channels: %t\n", w.LinkChannels)

		fmt.Printf("\n[Channels] %s\n", getInheritanceIndicator(inheritance.Channels))
		for i, ch := range w.Channels {
			fmt.Printf("%d. %s\n", i, ch.Key())
			fmt.Printf("   amplitude: %g Vpp, offset: %g V, scale: %g\n", ch.Amplitude, ch.Offset, ch.Scale)
			fmt.Printf("   memory: min_size=%d multiple=%d auto_compression=%t max_tasks=%d\n",
				ch.Memory.MinSize, ch.Memory.Multiple, ch.Memory.AutoCompression, ch.Memory.MaxTasks)
			if ch.Trigger != "" {
				fmt.Printf("   trigger: %s\n", ch.Trigger)
			}
			for m, marker := range ch.Markers {
				fmt.Printf("   marker %d: %s\n", m+1, strings.Join(marker.Segments, ", "))
			}
		}

		fmt.Printf("\n[Segments] %s\n", getInheritanceIndicator(inheritance.Segments))
		layout, err := waveform.Resolve(w.Segments, w.SampleRate, w.TotalTime)
		if err != nil {
			return err
		}
		for i, span := range layout.Spans {
			elastic := ""
			if i == layout.Elastic {
				elastic = " [elastic]"
			}
			fmt.Printf("  %-16s %8d pts  @%-8d %.6g s%s\n", span.Name, span.Points, span.Offset, span.Duration, elastic)
		}
		fmt.Printf("total: %d pts\n", layout.NumPts)

		fitted := *w
		fitted.SetValidTotalTime(w.Duration())
		fmt.Printf("\nshortest valid total_time >= %.6g s: %.6g s\n", w.Duration(), fitted.TotalTime)
		for i, length := range w.ValidLengthFromTime(w.Duration()) {
			fmt.Printf("  %s: %.6g s\n", w.Channels[i].Key(), length)
		}

		return nil
	},
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[unknown]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
