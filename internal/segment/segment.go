// Package segment maps the segment kinds that can appear in a rig file to
// sample sources the assembler can render.
package segment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// Spec is the kind-specific part of a configured segment.
type Spec struct {
	Type    string    `mapstructure:"type" yaml:"type" json:"type"`
	Value   float64   `mapstructure:"value" yaml:"value,omitempty" json:"value,omitempty"`
	Values  []float64 `mapstructure:"values" yaml:"values,omitempty" json:"values,omitempty"`
	Samples []float64 `mapstructure:"samples" yaml:"samples,omitempty" json:"samples,omitempty"`
}

// Constructor builds a source from a spec.
type Constructor func(spec Spec) (waveform.Source, error)

var kinds = map[string]Constructor{
	"zero":     newZero,
	"constant": newConstant,
	"samples":  newSamples,
}

// New returns the source for spec.Type. Type names are case-insensitive.
func New(spec Spec) (waveform.Source, error) {
	ctor, ok := kinds[strings.ToLower(spec.Type)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown segment type %q (known: %s)", waveform.ErrLookup, spec.Type, strings.Join(Kinds(), ", "))
	}
	return ctor(spec)
}

// Kinds lists the registered segment types.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func newZero(Spec) (waveform.Source, error) {
	return level(func(int) (float64, error) { return 0, nil }), nil
}

// newConstant holds Value on every channel, or Values[i] on channel i when
// per-channel values are given.
func newConstant(spec Spec) (waveform.Source, error) {
	if len(spec.Values) == 0 {
		v := spec.Value
		return level(func(int) (float64, error) { return v, nil }), nil
	}
	values := slices.Clone(spec.Values)
	return level(func(ch int) (float64, error) {
		if ch < 0 || ch >= len(values) {
			return 0, fmt.Errorf("%w: constant segment has %d values, no value for channel %d", waveform.ErrConfiguration, len(values), ch)
		}
		return values[ch], nil
	}), nil
}

func newSamples(spec Spec) (waveform.Source, error) {
	if len(spec.Samples) == 0 {
		return nil, fmt.Errorf("%w: samples segment needs at least one sample", waveform.ErrConfiguration)
	}
	samples := slices.Clone(spec.Samples)
	return waveform.SourceFunc(func(req waveform.Request) ([]float64, error) {
		if req.Points != len(samples) {
			return nil, fmt.Errorf("%w: samples segment holds %d points but spans %d", waveform.ErrConfiguration, len(samples), req.Points)
		}
		return slices.Clone(samples), nil
	}), nil
}

func level(value func(ch int) (float64, error)) waveform.Source {
	return waveform.SourceFunc(func(req waveform.Request) ([]float64, error) {
		v, err := value(req.Channel)
		if err != nil {
			return nil, err
		}
		out := make([]float64, req.Points)
		for i := range out {
			out[i] = v
		}
		return out, nil
	})
}
