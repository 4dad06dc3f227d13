// Package preview renders assembled channel buffers to WAV files so that a
// waveform can be inspected in any audio editor before it is committed.
package preview

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/audiolibrelab/awgseq/internal/config"
	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// DefaultSampleRate is the nominal WAV rate. One AWG sample becomes one WAV
// frame, so the preview is time-stretched rather than resampled.
const DefaultSampleRate = 48000

const bitDepth = 16

type Exporter struct {
	cfg        *config.Config
	SampleRate int
	Markers    bool // append every marker line as an extra WAV channel
}

func New(cfg *config.Config) *Exporter {
	return &Exporter{cfg: cfg, SampleRate: DefaultSampleRate}
}

// Export writes the channels of one waveform to <preview dir>/<name>.wav
// and returns the path.
func (e *Exporter) Export(name string, raws []waveform.Raw) (string, error) {
	dir := e.cfg.Output.PreviewDirectory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating preview directory %s: %w", dir, err)
	}
	path := e.Path(name)
	if err := WriteWAV(path, raws, e.SampleRate, e.Markers); err != nil {
		return "", err
	}
	return path, nil
}

// Path is where Export writes the preview of the named waveform.
func (e *Exporter) Path(name string) string {
	return filepath.Join(e.cfg.Output.PreviewDirectory, e.cleanFileName(name)+".wav")
}

// WriteWAV writes raws as an interleaved 16-bit WAV file. Samples are
// normalized to the largest magnitude across all channels.
func WriteWAV(path string, raws []waveform.Raw, sampleRate int, markers bool) error {
	if len(raws) == 0 {
		return fmt.Errorf("nothing to preview")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	tracks := make([][]float64, 0, len(raws))
	for _, raw := range raws {
		tracks = append(tracks, raw.Samples)
	}
	fullScale := peak(tracks)
	if markers {
		for _, raw := range raws {
			for _, bits := range raw.Markers {
				if len(bits) == 0 {
					continue
				}
				track := make([]float64, len(bits))
				for i, b := range bits {
					track[i] = float64(b) * fullScale
				}
				tracks = append(tracks, track)
			}
		}
	}

	nframes := len(tracks[0])
	for i, track := range tracks {
		if len(track) != nframes {
			return fmt.Errorf("preview track %d has %d points, expected %d", i, len(track), nframes)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating preview %s: %w", path, err)
	}
	defer f.Close()

	nchannels := len(tracks)
	enc := wav.NewEncoder(f, sampleRate, bitDepth, nchannels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nchannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, nframes*nchannels),
		SourceBitDepth: bitDepth,
	}
	for frame := range nframes {
		for ch, track := range tracks {
			buf.Data[frame*nchannels+ch] = int(math.Round(track[frame] / fullScale * 32767))
		}
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("error writing preview %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("error finalizing preview %s: %w", path, err)
	}
	return nil
}

func peak(tracks [][]float64) float64 {
	m := 0.0
	for _, track := range tracks {
		for _, s := range track {
			m = max(m, math.Abs(s))
		}
	}
	if m == 0 {
		return 1
	}
	return m
}

func (e *Exporter) cleanFileName(name string) string {
	// Allows: letters, numbers, spaces, hyphens, underscores
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}
