package preview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/awgseq/internal/config"
	"github.com/audiolibrelab/awgseq/internal/waveform"
)

func TestExport_WritesNormalizedWAV(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Output: config.OutputConfig{PreviewDirectory: dir}}
	e := New(cfg)
	e.Markers = true

	raws := []waveform.Raw{
		{Samples: []float64{0, 0.5, -0.5, 0.25}, Markers: [][]uint8{{0, 1, 1, 0}, {}}},
		{Samples: []float64{0.1, 0.1, 0.1, 0.1}},
	}

	path, err := e.Export("read out #1", raws)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "read_out_1.wav"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	// two sample channels plus the one used marker line
	require.Equal(t, 3, buf.Format.NumChannels)
	assert.Equal(t, DefaultSampleRate, buf.Format.SampleRate)
	require.Len(t, buf.Data, 12)
	assert.Equal(t, []int{0, 6553, 0}, buf.Data[0:3])
	assert.Equal(t, []int{32767, 6553, 32767}, buf.Data[3:6])
	assert.Equal(t, -32767, buf.Data[6])
}

func TestWriteWAV_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")

	assert.Error(t, WriteWAV(path, nil, 0, false))

	raws := []waveform.Raw{{Samples: []float64{1, 2}}, {Samples: []float64{1}}}
	assert.Error(t, WriteWAV(path, raws, 0, false))
}

func TestPath(t *testing.T) {
	cfg := &config.Config{Output: config.OutputConfig{PreviewDirectory: "/tmp/previews"}}
	assert.Equal(t, filepath.Join("/tmp/previews", "rabi-sweep.wav"), New(cfg).Path("rabi-sweep!"))
}

func TestPlay_Errors(t *testing.T) {
	err := Play(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preview file not found")

	path := filepath.Join(t.TempDir(), "x.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	t.Setenv("PATH", t.TempDir())
	err = Play(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio player found")
}
