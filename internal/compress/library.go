// Package compress deduplicates fixed-size sample blocks of assembled AWG
// buffers into a library of unique blocks plus the sequence of references
// that plays them back.
package compress

import (
	"math"
	"slices"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// Block is one unique chunk of sample memory with the matching marker slices.
type Block struct {
	Samples []float64
	Markers [][]uint8
}

// Len returns the number of sample points in the block.
func (b Block) Len() int {
	return len(b.Samples)
}

// matches reports whether the block is bit-exact equal to the given window.
func (b Block) matches(samples []float64, markers [][]uint8) bool {
	if !samplesEqual(b.Samples, samples) {
		return false
	}
	if len(b.Markers) != len(markers) {
		return false
	}
	for m := range markers {
		if !slices.Equal(b.Markers[m], markers[m]) {
			return false
		}
	}
	return true
}

// Library is a set of unique blocks and the order in which to play them.
// Concatenating Blocks[SeqIDs[i]] for every i reproduces the raw buffer.
type Library struct {
	Blocks []Block
	SeqIDs []int
}

// Uncompressed wraps a whole buffer as a single-block library.
func Uncompressed(raw waveform.Raw) *Library {
	return &Library{
		Blocks: []Block{newBlock(raw, 0, raw.Len())},
		SeqIDs: []int{0},
	}
}

// Lengths returns the point count of every block, in library order.
func (l *Library) Lengths() []int {
	lengths := make([]int, len(l.Blocks))
	for i, b := range l.Blocks {
		lengths[i] = b.Len()
	}
	return lengths
}

// NumPts returns the length of the expanded buffer.
func (l *Library) NumPts() int {
	n := 0
	for _, id := range l.SeqIDs {
		n += l.Blocks[id].Len()
	}
	return n
}

// Expand reconstructs the raw buffer by concatenating blocks in sequence order.
func (l *Library) Expand() waveform.Raw {
	raw := waveform.Raw{Samples: make([]float64, 0, l.NumPts())}
	if len(l.Blocks) == 0 {
		return raw
	}

	for _, id := range l.SeqIDs {
		raw.Samples = append(raw.Samples, l.Blocks[id].Samples...)
	}

	numMarkers := len(l.Blocks[0].Markers)
	if numMarkers == 0 {
		return raw
	}
	raw.Markers = make([][]uint8, numMarkers)
	for m := range numMarkers {
		var bits []uint8
		for _, id := range l.SeqIDs {
			bits = append(bits, l.Blocks[id].Markers[m]...)
		}
		if bits == nil {
			bits = []uint8{}
		}
		raw.Markers[m] = bits
	}
	return raw
}

// Equal reports whether two libraries hold the same blocks in the same
// order and play them in the same sequence.
func (l *Library) Equal(other *Library) bool {
	if l == nil || other == nil {
		return l == other
	}
	if !slices.Equal(l.SeqIDs, other.SeqIDs) || len(l.Blocks) != len(other.Blocks) {
		return false
	}
	for i, b := range l.Blocks {
		if !b.matches(other.Blocks[i].Samples, other.Blocks[i].Markers) {
			return false
		}
	}
	return true
}

func newBlock(raw waveform.Raw, start, end int) Block {
	return Block{
		Samples: slices.Clone(raw.Samples[start:end]),
		Markers: sliceMarkers(raw.Markers, start, end),
	}
}

// sliceMarkers cuts [start, end) out of every marker stream. Unused (empty)
// marker streams stay empty.
func sliceMarkers(markers [][]uint8, start, end int) [][]uint8 {
	if markers == nil {
		return nil
	}
	out := make([][]uint8, len(markers))
	for m, bits := range markers {
		if len(bits) == 0 {
			out[m] = []uint8{}
			continue
		}
		out[m] = slices.Clone(bits[start:end])
	}
	return out
}

// samplesEqual compares bit patterns so that the comparison is exact.
func samplesEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
