package cmd

import (
	"fmt"

	"github.com/audiolibrelab/awgseq/internal/preview"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [waveform]",
	Short: "Write a WAV preview of a waveform",
	Long: `Assemble a waveform and write every channel, plus its marker lines, as
one track of a 16-bit WAV file in the preview directory. One AWG sample
becomes one WAV frame. The hardware is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		path, err := svc.Export(args[0])
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Preview written: %s\n", path)

		if play, _ := cmd.Flags().GetBool("play"); play {
			return preview.Play(path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("play", false, "open the preview in an audio player (vlc, mpv, ffplay or aplay)")
}
