package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

func render(t *testing.T, src waveform.Source, ch, n int) []float64 {
	t.Helper()
	out, err := src.Render(waveform.Request{Channel: ch, Points: n, SampleRate: 1})
	require.NoError(t, err)
	return out
}

func TestNew_Constant(t *testing.T) {
	src, err := New(Spec{Type: "constant", Value: 0.25})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25}, render(t, src, 1, 3))

	src, err = New(Spec{Type: "Constant", Values: []float64{0.1, -0.1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.1, -0.1}, render(t, src, 1, 2))

	_, err = src.Render(waveform.Request{Channel: 2, Points: 2})
	assert.ErrorIs(t, err, waveform.ErrConfiguration)
}

func TestNew_Zero(t *testing.T) {
	src, err := New(Spec{Type: "zero"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, render(t, src, 0, 2))
	assert.Empty(t, render(t, src, 0, 0))
}

func TestNew_Samples(t *testing.T) {
	src, err := New(Spec{Type: "samples", Samples: []float64{0, 0.5, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, render(t, src, 0, 3))

	_, err = src.Render(waveform.Request{Points: 4})
	assert.ErrorIs(t, err, waveform.ErrConfiguration)

	_, err = New(Spec{Type: "samples"})
	assert.ErrorIs(t, err, waveform.ErrConfiguration)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(Spec{Type: "gaussian"})
	assert.ErrorIs(t, err, waveform.ErrLookup)
	assert.Equal(t, []string{"constant", "samples", "zero"}, Kinds())
}
