package compress

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// Choose decides whether a buffer of numPts points is compressed. Compression
// is skipped when disabled, when the channel cannot play sequences, or when
// the buffer is shorter than two minimum-size blocks.
func Choose(algorithm waveform.Compression, mem waveform.Memory, numPts int) waveform.Compression {
	if algorithm == waveform.CompressionNone || algorithm == "" {
		return waveform.CompressionNone
	}
	if !mem.AutoCompression || numPts < 2*mem.MinSize {
		return waveform.CompressionNone
	}
	return algorithm
}

// BlockSize returns the block size used to compress a channel: its minimum
// segment size. The minimum size must itself be a valid segment length, so
// that every full block and every merged trailing block is one.
func BlockSize(mem waveform.Memory) (int, error) {
	if mem.MinSize <= 0 {
		return 0, fmt.Errorf("%w: auto-compression needs a positive minimum segment size, got %d", waveform.ErrConfiguration, mem.MinSize)
	}
	if mem.Multiple > 0 && mem.MinSize%mem.Multiple != 0 {
		return 0, fmt.Errorf("%w: minimum segment size %d is not a multiple of %d", waveform.ErrConfiguration, mem.MinSize, mem.Multiple)
	}
	return mem.MinSize, nil
}

// Basic compresses a single channel buffer with block size dS.
//
// The buffer is cut into consecutive dS-point windows. Each window is looked
// up in the library (samples and every marker stream, bit-exact); a match
// appends the existing index to the sequence, a miss appends a new block.
// A partial final window is never emitted on its own: it is joined to the
// last full window. If that window had matched an earlier block the joined
// window becomes a new trailing block, otherwise it replaces the block the
// last window just created.
func Basic(raw waveform.Raw, dS int) (*Library, error) {
	libs, err := partition([]waveform.Raw{raw}, dS)
	if err != nil {
		return nil, err
	}
	return libs[0], nil
}

// partition runs the block search over one or more channels at once. A window
// matches a library entry only if it matches on every channel, so all the
// returned libraries share one block partition and one sequence.
func partition(raws []waveform.Raw, dS int) ([]*Library, error) {
	if dS <= 0 {
		return nil, fmt.Errorf("%w: block size must be > 0, got %d", waveform.ErrConfiguration, dS)
	}
	numPts := raws[0].Len()
	for ch, raw := range raws {
		if raw.Len() != numPts {
			return nil, fmt.Errorf("%w: channel %d has %d points but channel 0 has %d", waveform.ErrAssembly, ch, raw.Len(), numPts)
		}
	}

	libs := make([]*Library, len(raws))
	numFull := numPts / dS
	if numFull == 0 {
		for ch, raw := range raws {
			libs[ch] = Uncompressed(raw)
		}
		return libs, nil
	}

	for ch := range libs {
		libs[ch] = &Library{}
	}
	var seqIDs []int
	numBlocks := 0
	matched := false

	for m := range numFull {
		start, end := m*dS, (m+1)*dS
		found := -1
		for idx := range numBlocks {
			if windowMatches(libs, raws, idx, start, end) {
				found = idx
				break
			}
		}

		if found >= 0 {
			seqIDs = append(seqIDs, found)
			matched = true
			continue
		}
		for ch, raw := range raws {
			libs[ch].Blocks = append(libs[ch].Blocks, newBlock(raw, start, end))
		}
		seqIDs = append(seqIDs, numBlocks)
		numBlocks++
		matched = false
	}

	if numFull*dS < numPts {
		start := (numFull - 1) * dS
		last := len(seqIDs) - 1
		if matched {
			seqIDs[last] = numBlocks
			for ch, raw := range raws {
				libs[ch].Blocks = append(libs[ch].Blocks, newBlock(raw, start, numPts))
			}
			numBlocks++
		} else {
			for ch, raw := range raws {
				libs[ch].Blocks[numBlocks-1] = newBlock(raw, start, numPts)
			}
		}
	}

	for ch := range libs {
		libs[ch].SeqIDs = slices.Clone(seqIDs)
	}
	slog.Debug("Compressed waveform", "channels", len(raws), "points", numPts, "block_size", dS,
		"windows", len(seqIDs), "unique_blocks", numBlocks)
	return libs, nil
}

func windowMatches(libs []*Library, raws []waveform.Raw, idx, start, end int) bool {
	for ch, raw := range raws {
		window := raw.Samples[start:end]
		block := libs[ch].Blocks[idx]
		if len(block.Samples) != len(window) {
			return false
		}
		if !block.matches(window, markerWindow(raw.Markers, start, end)) {
			return false
		}
	}
	return true
}

// markerWindow is sliceMarkers without the copy, for comparisons only.
func markerWindow(markers [][]uint8, start, end int) [][]uint8 {
	if markers == nil {
		return nil
	}
	out := make([][]uint8, len(markers))
	for m, bits := range markers {
		if len(bits) == 0 {
			out[m] = bits
			continue
		}
		out[m] = bits[start:end]
	}
	return out
}
