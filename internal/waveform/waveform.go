package waveform

import (
	"fmt"
	"math"
	"strings"
)

// Compression names a block deduplication algorithm.
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionBasic Compression = "basic"
)

// ParseCompression accepts the algorithm names used in rig files ("none", "basic").
// An empty name means no compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "basic":
		return CompressionBasic, nil
	default:
		return "", fmt.Errorf("%w: unknown auto-compression algorithm %q (valid: none, basic)", ErrConfiguration, name)
	}
}

// Memory describes the sample memory constraints of an AWG channel.
type Memory struct {
	MinSize         int  // smallest schedulable segment, in points
	Multiple        int  // segment lengths must be a multiple of this
	AutoCompression bool // the instrument can play a sequenced block library
	MaxTasks        int  // task table capacity, 0 for unlimited
}

// Marker is one digital output line of a channel. It is high during the
// listed segments and low elsewhere.
type Marker struct {
	Segments []string
}

// Channel is a physical output line playing a waveform.
type Channel struct {
	Name      string
	Device    string
	Memory    Memory
	Amplitude float64 // peak-to-peak range in volts, 0 disables the range check
	Offset    float64
	Scale     float64 // per-channel factor, 0 means unity
	Trigger   string  // trigger source placed on the first task, "" or "NONE" for free-running
	Markers   []Marker
}

// Key identifies the channel on its instrument.
func (c Channel) Key() string {
	if c.Device == "" {
		return c.Name
	}
	return c.Device + "/" + c.Name
}

// Waveform is a segment list played simultaneously on one or more channels.
type Waveform struct {
	Name         string
	SampleRate   float64
	TotalTime    float64 // seconds, 0 when unbound
	GlobalFactor float64 // 0 means unity
	Segments     []Segment
	Channels     []Channel
	Compression  Compression
	LinkChannels bool // one block partition shared by every channel
}

// Bound reports whether a total duration was specified.
func (w *Waveform) Bound() bool {
	return w.TotalTime > 0
}

// Duration returns the total duration: the specified total time, or the sum
// of the fixed segment durations for an unbound waveform.
func (w *Waveform) Duration() float64 {
	if w.Bound() {
		return w.TotalTime
	}
	total := 0.0
	for _, seg := range w.Segments {
		if !seg.IsElastic() {
			total += seg.Duration
		}
	}
	return total
}

// NumPts returns the number of samples in every channel buffer.
func (w *Waveform) NumPts() int {
	return numPts(w.Duration(), w.SampleRate)
}

// Segment returns the segment with the given name.
func (w *Waveform) Segment(name string) (Segment, error) {
	for _, seg := range w.Segments {
		if seg.Name == name {
			return seg, nil
		}
	}
	return Segment{}, fmt.Errorf("%w: waveform segment %q is not present in waveform %q", ErrLookup, name, w.Name)
}

// ValidLengthFromPoints rounds numPts up to each channel's memory
// constraints and returns the resulting duration per channel.
func (w *Waveform) ValidLengthFromPoints(numPts int) []float64 {
	lengths := make([]float64, len(w.Channels))
	for i, ch := range w.Channels {
		lengths[i] = float64(ch.Memory.validPoints(numPts)) / w.SampleRate
	}
	return lengths
}

// ValidLengthFromTime is ValidLengthFromPoints for a duration in seconds.
func (w *Waveform) ValidLengthFromTime(seconds float64) []float64 {
	return w.ValidLengthFromPoints(ceilPts(seconds, w.SampleRate))
}

// SetValidTotalTime sets the total time to the shortest duration of at least
// minTime that satisfies the memory constraints of every channel at once.
func (w *Waveform) SetValidTotalTime(minTime float64) {
	n := ceilPts(minTime, w.SampleRate)
	multiple, minSize := 1, 0
	for _, ch := range w.Channels {
		if ch.Memory.Multiple > 0 {
			multiple = lcm(multiple, ch.Memory.Multiple)
		}
		minSize = max(minSize, ch.Memory.MinSize)
	}
	n = Memory{MinSize: minSize, Multiple: multiple}.validPoints(n)
	w.TotalTime = float64(n) / w.SampleRate
}

func (m Memory) validPoints(n int) int {
	if m.Multiple > 0 {
		if resid := n % m.Multiple; resid > 0 {
			n += m.Multiple - resid
		}
	}
	if n < m.MinSize {
		n = m.MinSize
	}
	return n
}

// ceilPts converts a duration to points, rounding up except for float noise.
func ceilPts(seconds, sampleRate float64) int {
	return int(math.Ceil(seconds*sampleRate - 1e-9))
}

func lcm(a, b int) int {
	x, y := a, b
	for y != 0 {
		x, y = y, x%y
	}
	return a / x * b
}

func unity(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}
