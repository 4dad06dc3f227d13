package waveform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64) Source {
	return SourceFunc(func(req Request) ([]float64, error) {
		out := make([]float64, req.Points)
		for i := range out {
			out[i] = v
		}
		return out, nil
	})
}

// ramp returns the absolute sample index, which exposes the running offset.
func ramp() Source {
	return SourceFunc(func(req Request) ([]float64, error) {
		out := make([]float64, req.Points)
		for i := range out {
			out[i] = float64(req.Offset + i)
		}
		return out, nil
	})
}

func TestResolve_ElasticFillsRemainingPoints(t *testing.T) {
	fs := 1e9
	segs := []Segment{
		{Name: "A", Duration: 100e-9, Source: constant(0)},
		{Name: "wait", Duration: Elastic, Source: constant(0)},
		{Name: "B", Duration: 100e-9, Source: constant(0)},
	}

	layout, err := Resolve(segs, fs, 500e-9)
	require.NoError(t, err)

	span, ok := layout.ElasticSpan()
	require.True(t, ok)
	assert.Equal(t, "wait", span.Name)
	assert.Equal(t, 300, span.Points)
	assert.Equal(t, 100, span.Offset)
	assert.Equal(t, 500, layout.NumPts)
	assert.Equal(t, 400, layout.Spans[2].Offset)

	// the caller's segment list is untouched
	assert.Equal(t, Elastic, segs[1].Duration)
}

func TestResolve_RoundingErrorConfinedToElastic(t *testing.T) {
	// 2.4 + 2.4 rounds to 2 + 2, so the elastic segment absorbs the difference.
	fs := 1.0
	cases := []struct {
		name     string
		fixed    []float64
		total    float64
		expected int
	}{
		{"rounds down", []float64{2.4, 2.4}, 9, 5},
		{"rounds up", []float64{2.6, 2.6}, 9, 3},
		{"exact", []float64{2, 3}, 9, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segs := []Segment{{Name: "elastic", Duration: Elastic}}
			fixedSum := 0
			for i, d := range tc.fixed {
				seg := Segment{Name: string(rune('a' + i)), Duration: d}
				fixedSum += seg.NumPts(fs)
				segs = append(segs, seg)
			}

			layout, err := Resolve(segs, fs, tc.total)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, layout.Spans[0].Points)
			assert.Equal(t, 9, layout.NumPts)
			assert.Equal(t, 9-fixedSum, layout.Spans[0].Points)
		})
	}
}

func TestResolve_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name  string
		segs  []Segment
		total float64
	}{
		{
			name:  "two elastic segments",
			segs:  []Segment{{Name: "a", Duration: Elastic}, {Name: "b", Duration: Elastic}},
			total: 1e-6,
		},
		{
			name:  "elastic with unbound total",
			segs:  []Segment{{Name: "a", Duration: 1e-7}, {Name: "b", Duration: Elastic}},
			total: 0,
		},
		{
			name:  "fixed durations do not add up",
			segs:  []Segment{{Name: "a", Duration: 1e-7}, {Name: "b", Duration: 2e-7}},
			total: 4e-7,
		},
		{
			name:  "fixed segments overflow total",
			segs:  []Segment{{Name: "a", Duration: 5e-7}, {Name: "b", Duration: Elastic}},
			total: 4e-7,
		},
		{
			name:  "duplicate names",
			segs:  []Segment{{Name: "a", Duration: 1e-7}, {Name: "a", Duration: 1e-7}},
			total: 2e-7,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.segs, 1e9, tc.total)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "expected configuration error, got %v", err)
		})
	}
}

func TestResolve_UnboundWithoutElastic(t *testing.T) {
	segs := []Segment{{Name: "a", Duration: 1e-7}, {Name: "b", Duration: 2e-7}}

	layout, err := Resolve(segs, 1e9, 0)
	require.NoError(t, err)
	assert.Equal(t, 300, layout.NumPts)
	assert.Equal(t, -1, layout.Elastic)
}

func TestAssemble_ConcatenatesAndScales(t *testing.T) {
	w := &Waveform{
		Name:         "drive",
		SampleRate:   1e9,
		TotalTime:    500e-9,
		GlobalFactor: 0.5,
		Segments: []Segment{
			{Name: "A", Duration: 100e-9, Source: constant(1)},
			{Name: "wait", Duration: Elastic, Source: constant(0)},
			{Name: "B", Duration: 100e-9, Source: constant(-1)},
		},
		Channels: []Channel{{Name: "CH1"}, {Name: "CH2", Scale: 2}},
	}

	raws, _, err := Assemble(w)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	for ch, raw := range raws {
		require.Equal(t, 500, raw.Len(), "channel %d", ch)
		assert.Nil(t, raw.Markers)
	}
	assert.Equal(t, 0.5, raws[0].Samples[0])
	assert.Equal(t, 0.0, raws[0].Samples[250])
	assert.Equal(t, -0.5, raws[0].Samples[499])
	assert.Equal(t, 1.0, raws[1].Samples[0])
	assert.Equal(t, -1.0, raws[1].Samples[499])
}

func TestAssemble_RunningOffsetSkipsEmptySegments(t *testing.T) {
	w := &Waveform{
		Name:       "phase",
		SampleRate: 1,
		TotalTime:  6,
		Segments: []Segment{
			{Name: "a", Duration: 2, Source: ramp()},
			{Name: "empty", Duration: 0, Source: SourceFunc(func(Request) ([]float64, error) {
				return nil, errors.New("must not be rendered")
			})},
			{Name: "b", Duration: Elastic, Source: ramp()},
		},
		Channels: []Channel{{Name: "CH1"}},
	}

	raws, _, err := Assemble(w)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, raws[0].Samples)
}

func TestAssemble_MisbehavingSourceIsAssemblyError(t *testing.T) {
	short := SourceFunc(func(req Request) ([]float64, error) {
		return make([]float64, req.Points-1), nil
	})
	w := &Waveform{
		Name:       "bad",
		SampleRate: 1,
		TotalTime:  4,
		Segments:   []Segment{{Name: "a", Duration: 4, Source: short}},
		Channels:   []Channel{{Name: "CH1"}},
	}

	_, _, err := Assemble(w)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssembly)
}

func TestAssemble_Markers(t *testing.T) {
	w := &Waveform{
		Name:       "gated",
		SampleRate: 1,
		TotalTime:  6,
		Segments: []Segment{
			{Name: "lead", Duration: 2, Source: constant(0)},
			{Name: "pulse", Duration: 2, Source: constant(0.3)},
			{Name: "tail", Duration: Elastic, Source: constant(0)},
		},
		Channels: []Channel{{
			Name:    "CH1",
			Markers: []Marker{{Segments: []string{"pulse"}}, {Segments: []string{"lead", "tail"}}, {}},
		}},
	}

	raws, _, err := Assemble(w)
	require.NoError(t, err)
	require.Len(t, raws[0].Markers, 3)
	assert.Equal(t, []uint8{0, 0, 1, 1, 0, 0}, raws[0].Markers[0])
	assert.Equal(t, []uint8{1, 1, 0, 0, 1, 1}, raws[0].Markers[1])
	assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0}, raws[0].Markers[2])
}

func TestAssemble_MarkerUnknownSegmentIsLookupError(t *testing.T) {
	w := &Waveform{
		Name:       "gated",
		SampleRate: 1,
		TotalTime:  2,
		Segments:   []Segment{{Name: "lead", Duration: 2, Source: constant(0)}},
		Channels:   []Channel{{Name: "CH1", Markers: []Marker{{Segments: []string{"missing"}}}}},
	}

	_, _, err := Assemble(w)
	assert.ErrorIs(t, err, ErrLookup)
}

func TestWaveformSegmentLookup(t *testing.T) {
	w := &Waveform{Name: "w", Segments: []Segment{{Name: "a", Duration: 1}}}

	seg, err := w.Segment("a")
	require.NoError(t, err)
	assert.Equal(t, "a", seg.Name)

	_, err = w.Segment("b")
	assert.ErrorIs(t, err, ErrLookup)
}

func TestCheckAmplitude(t *testing.T) {
	ch := Channel{Name: "CH1", Amplitude: 1.2, Offset: 0.1}

	assert.NoError(t, CheckAmplitude(ch, []float64{0.1, 0.65, -0.45}))
	assert.ErrorIs(t, CheckAmplitude(ch, []float64{0.1, 0.71}), ErrAmplitude)
	assert.NoError(t, CheckAmplitude(Channel{Name: "free"}, []float64{100}))
}

func TestCheckMemory(t *testing.T) {
	ch := Channel{Name: "CH1", Memory: Memory{MinSize: 1024, Multiple: 32}}

	assert.NoError(t, CheckMemory(ch, 2048))
	assert.ErrorIs(t, CheckMemory(ch, 512), ErrConfiguration)
	assert.ErrorIs(t, CheckMemory(ch, 2050), ErrConfiguration)
}

func TestValidLengths(t *testing.T) {
	w := &Waveform{
		SampleRate: 1e9,
		Channels: []Channel{
			{Name: "a", Memory: Memory{MinSize: 1024, Multiple: 32}},
			{Name: "b", Memory: Memory{MinSize: 384, Multiple: 48}},
		},
	}

	lengths := w.ValidLengthFromPoints(1030)
	assert.InDelta(t, 1056e-9, lengths[0], 1e-18)
	assert.InDelta(t, 1056e-9, lengths[1], 1e-18)

	lengths = w.ValidLengthFromTime(100e-9)
	assert.InDelta(t, 1024e-9, lengths[0], 1e-18)
	assert.InDelta(t, 384e-9, lengths[1], 1e-18)

	// lcm(32, 48) = 96; 1030 rounds up to 1056
	w.SetValidTotalTime(1030e-9)
	assert.Equal(t, 1056, w.NumPts())
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("Basic")
	require.NoError(t, err)
	assert.Equal(t, CompressionBasic, c)

	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	_, err = ParseCompression("lz")
	assert.ErrorIs(t, err, ErrConfiguration)
}
