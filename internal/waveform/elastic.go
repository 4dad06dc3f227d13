package waveform

import (
	"fmt"
	"math"
)

// durationTolerance bounds the float noise allowed between the sum of fixed
// segment durations and the total time when no segment is elastic.
const durationTolerance = 5e-15

// Span is a segment with its duration resolved and its position in the
// channel buffer fixed.
type Span struct {
	Name     string
	Duration float64
	Points   int
	Offset   int
}

// Layout is the resolved timeline of a segment list.
type Layout struct {
	Spans   []Span
	Elastic int // index of the elastic segment, -1 if none
	NumPts  int
}

// ElasticSpan returns the resolved elastic segment, if there is one.
func (l Layout) ElasticSpan() (Span, bool) {
	if l.Elastic < 0 {
		return Span{}, false
	}
	return l.Spans[l.Elastic], true
}

// Span returns the resolved span for the named segment.
func (l Layout) Span(name string) (Span, bool) {
	for _, sp := range l.Spans {
		if sp.Name == name {
			return sp, true
		}
	}
	return Span{}, false
}

// Resolve computes the duration and point count of every segment. A
// totalTime of zero means the waveform length is unbound.
//
// Fixed segments are rounded to points one by one and the elastic segment
// receives whatever is left of round(totalTime*sampleRate), so rounding error
// never accumulates anywhere but in the elastic segment. The segments passed
// in are not modified.
func Resolve(segments []Segment, sampleRate, totalTime float64) (Layout, error) {
	if sampleRate <= 0 {
		return Layout{}, fmt.Errorf("%w: sample rate must be > 0, got %g", ErrConfiguration, sampleRate)
	}

	elastic := -1
	seen := make(map[string]bool, len(segments))
	for i, seg := range segments {
		if seen[seg.Name] {
			return Layout{}, fmt.Errorf("%w: duplicate waveform segment name %q", ErrConfiguration, seg.Name)
		}
		seen[seg.Name] = true

		if seg.IsElastic() {
			if elastic != -1 {
				return Layout{}, fmt.Errorf("%w: there are too many elastic waveform segments (cannot be above 1)", ErrConfiguration)
			}
			elastic = i
			continue
		}
		if seg.Duration < 0 {
			return Layout{}, fmt.Errorf("%w: segment %q has negative duration %g", ErrConfiguration, seg.Name, seg.Duration)
		}
	}

	bound := totalTime > 0
	if !bound && elastic != -1 {
		return Layout{}, fmt.Errorf("%w: the total waveform length is unbound, so no segment may be elastic", ErrConfiguration)
	}

	if bound && elastic == -1 {
		sum := 0.0
		for _, seg := range segments {
			sum += seg.Duration
		}
		if math.Abs(sum-totalTime) >= durationTolerance {
			return Layout{}, fmt.Errorf("%w: segment durations sum to %g s but the total waveform time is %g s; consider making one segment elastic",
				ErrConfiguration, sum, totalTime)
		}
	}

	layout := Layout{Spans: make([]Span, len(segments)), Elastic: elastic}
	fixedPts := 0
	for i, seg := range segments {
		if i == elastic {
			continue
		}
		pts := seg.NumPts(sampleRate)
		layout.Spans[i] = Span{Name: seg.Name, Duration: seg.Duration, Points: pts}
		fixedPts += pts
	}

	if elastic != -1 {
		// Point arithmetic, not duration arithmetic: 2.4+2.4+4.2 adds up to 9
		// but rounds to 2+2+4.
		remaining := totalTime*sampleRate - float64(fixedPts)
		duration := remaining / sampleRate
		pts := numPts(duration, sampleRate)
		if pts < 0 {
			return Layout{}, fmt.Errorf("%w: fixed segments need %d points but the total waveform only has %d; elastic segment %q would be negative",
				ErrConfiguration, fixedPts, numPts(totalTime, sampleRate), segments[elastic].Name)
		}
		layout.Spans[elastic] = Span{Name: segments[elastic].Name, Duration: duration, Points: pts}
	}

	offset := 0
	for i := range layout.Spans {
		layout.Spans[i].Offset = offset
		offset += layout.Spans[i].Points
	}
	layout.NumPts = offset

	return layout, nil
}
