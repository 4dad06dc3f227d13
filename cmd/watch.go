package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/awgseq/internal/watch"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [waveform]",
	Short: "Re-program a waveform whenever the config file changes",
	Long: `Program a waveform, then watch the config file. On every change the
profile is reloaded and the waveform is programmed again. Reloading forgets
what was committed, so every channel is rewritten after a change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		debounce, _ := cmd.Flags().GetDuration("debounce")

		svc, err := newService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := svc.Program(ctx, name); err != nil {
			slog.Error("Initial program failed", "waveform", name, "error", err)
		}

		w := watch.New(cfgFile, debounce, func(ctx context.Context) error {
			if err := svc.LoadProfile(profile); err != nil {
				return err
			}
			report, err := svc.Program(ctx, name)
			if err != nil {
				return err
			}
			slog.Info("Re-programmed waveform", "waveform", name, "written", len(report.Written), "skipped", len(report.Skipped))
			return nil
		})

		fmt.Printf("Watching %s (Ctrl+C to stop)...\n", cfgFile)
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "wait this long after the last change before reloading")
}
