package waveform

import (
	"fmt"
	"log/slog"
)

// Raw is the dense sample buffer of one channel plus its marker bit streams.
// A marker stream is either empty (line unused) or as long as Samples, with
// every element 0 or 1.
type Raw struct {
	Samples []float64
	Markers [][]uint8
}

// Len returns the number of sample points.
func (r Raw) Len() int {
	return len(r.Samples)
}

// Assemble renders every channel of the waveform into a raw buffer.
//
// Segments are concatenated in order, each rendered at the running point
// offset of the channel buffer, and the result is multiplied by the global
// and per-channel scale factors. Every buffer comes out exactly
// round(Duration*SampleRate) points long; anything else is an ErrAssembly.
func Assemble(w *Waveform) ([]Raw, Layout, error) {
	layout, err := Resolve(w.Segments, w.SampleRate, w.TotalTime)
	if err != nil {
		return nil, Layout{}, fmt.Errorf("waveform %q: %w", w.Name, err)
	}

	expected := w.NumPts()
	if layout.NumPts != expected {
		return nil, Layout{}, fmt.Errorf("%w: waveform %q segments span %d points but the waveform has %d; ensure the elastic segment has room to compensate",
			ErrAssembly, w.Name, layout.NumPts, expected)
	}

	raws := make([]Raw, len(w.Channels))
	for ch := range w.Channels {
		samples, err := assembleSamples(w, layout, ch)
		if err != nil {
			return nil, Layout{}, err
		}
		markers, err := assembleMarkers(w, layout, ch)
		if err != nil {
			return nil, Layout{}, err
		}
		raws[ch] = Raw{Samples: samples, Markers: markers}
	}

	slog.Debug("Assembled waveform", "waveform", w.Name, "channels", len(raws), "points", expected)
	return raws, layout, nil
}

func assembleSamples(w *Waveform, layout Layout, ch int) ([]float64, error) {
	buf := make([]float64, 0, layout.NumPts)
	for i, seg := range w.Segments {
		span := layout.Spans[i]
		if span.Points == 0 {
			continue
		}
		if seg.Source == nil {
			return nil, fmt.Errorf("%w: segment %q of waveform %q has no sample source", ErrConfiguration, seg.Name, w.Name)
		}

		chunk, err := seg.Source.Render(Request{
			Channel:    ch,
			Offset:     len(buf),
			SampleRate: w.SampleRate,
			Duration:   span.Duration,
			Points:     span.Points,
		})
		if err != nil {
			return nil, fmt.Errorf("segment %q on channel %d: %w", seg.Name, ch, err)
		}
		if len(chunk) != span.Points {
			return nil, fmt.Errorf("%w: segment %q rendered %d points on channel %d, expected %d",
				ErrAssembly, seg.Name, len(chunk), ch, span.Points)
		}
		buf = append(buf, chunk...)
	}

	factor := unity(w.GlobalFactor) * unity(w.Channels[ch].Scale)
	if factor != 1 {
		for i := range buf {
			buf[i] *= factor
		}
	}

	if len(buf) != layout.NumPts {
		return nil, fmt.Errorf("%w: channel %d of waveform %q assembled %d points, expected %d",
			ErrAssembly, ch, w.Name, len(buf), layout.NumPts)
	}
	return buf, nil
}

func assembleMarkers(w *Waveform, layout Layout, ch int) ([][]uint8, error) {
	channel := w.Channels[ch]
	if len(channel.Markers) == 0 {
		return nil, nil
	}

	markers := make([][]uint8, len(channel.Markers))
	for m, marker := range channel.Markers {
		bits := make([]uint8, layout.NumPts)
		for _, name := range marker.Segments {
			span, ok := layout.Span(name)
			if !ok {
				return nil, fmt.Errorf("%w: marker %d of channel %q references segment %q which is not in waveform %q",
					ErrLookup, m, channel.Name, name, w.Name)
			}
			for i := span.Offset; i < span.Offset+span.Points; i++ {
				bits[i] = 1
			}
		}
		markers[m] = bits
	}
	return markers, nil
}
