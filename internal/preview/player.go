package preview

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// players are tried in order; every one of them plays 16-bit WAV.
var players = []string{"vlc", "mpv", "ffplay", "aplay"}

// Play opens a preview file in the first audio player found on PATH and
// waits for it to exit.
func Play(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("preview file not found: %s", path)
	}

	player, err := findPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	var cmd *exec.Cmd
	switch player {
	case "vlc":
		cmd = exec.Command("vlc", "--play-and-exit", path)
	case "mpv":
		cmd = exec.Command("mpv", "--no-video", path)
	case "ffplay":
		cmd = exec.Command("ffplay", "-nodisp", "-autoexit", path)
	default:
		cmd = exec.Command(player, path)
	}

	slog.Debug("Playing preview", "player", player, "path", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}
	return nil
}

func findPlayer() (string, error) {
	for _, player := range players {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
