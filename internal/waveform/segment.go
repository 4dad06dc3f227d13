package waveform

import "math"

// Elastic marks a segment whose duration is computed from the waveform's
// total time. At most one segment per waveform may be elastic.
const Elastic = -1.0

// Request describes the slice of samples a Source must render.
type Request struct {
	Channel    int     // index of the channel within the waveform
	Offset     int     // running point offset of the segment in the channel buffer
	SampleRate float64 // samples per second
	Duration   float64 // resolved duration in seconds
	Points     int     // number of samples expected back
}

// Source renders the samples of one segment. Implementations live outside
// the engine; the assembler only asks for point counts and sample slices.
type Source interface {
	Render(req Request) ([]float64, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(req Request) ([]float64, error)

// Render calls f(req).
func (f SourceFunc) Render(req Request) ([]float64, error) {
	return f(req)
}

// Segment is one named piece of a waveform.
type Segment struct {
	Name     string
	Duration float64 // seconds, or Elastic
	Source   Source
}

// IsElastic reports whether the segment's duration is computed automatically.
func (s Segment) IsElastic() bool {
	return s.Duration == Elastic
}

// NumPts returns the number of samples the segment spans at the given rate.
func (s Segment) NumPts(sampleRate float64) int {
	return numPts(s.Duration, sampleRate)
}

func numPts(duration, sampleRate float64) int {
	return int(math.Round(duration * sampleRate))
}
