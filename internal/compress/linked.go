package compress

import (
	"fmt"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// Linked compresses several channels that must share one sequence table,
// such as channel pairs drawing on the same memory bank. Every channel must
// report the same memory constraints; the block size is their common
// minimum segment size. The returned libraries have identical SeqIDs and
// block lengths.
func Linked(raws []waveform.Raw, mems []waveform.Memory) ([]*Library, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: linked compression needs at least one channel", waveform.ErrConfiguration)
	}
	if len(mems) != len(raws) {
		return nil, fmt.Errorf("%w: got %d memory descriptors for %d channels", waveform.ErrConfiguration, len(mems), len(raws))
	}
	if err := SameMemory(mems); err != nil {
		return nil, err
	}

	dS, err := BlockSize(mems[0])
	if err != nil {
		return nil, err
	}
	return partition(raws, dS)
}

// SameMemory checks that linked channels agree on their memory constraints.
func SameMemory(mems []waveform.Memory) error {
	for i, mem := range mems[1:] {
		ref := mems[0]
		switch {
		case mem.MinSize != ref.MinSize:
			return fmt.Errorf("%w: linked-channel auto-compression requires all channels to have the same MinSize (channel %d has %d, channel 0 has %d)",
				waveform.ErrConfiguration, i+1, mem.MinSize, ref.MinSize)
		case mem.Multiple != ref.Multiple:
			return fmt.Errorf("%w: linked-channel auto-compression requires all channels to have the same Multiple (channel %d has %d, channel 0 has %d)",
				waveform.ErrConfiguration, i+1, mem.Multiple, ref.Multiple)
		case mem.AutoCompression != ref.AutoCompression:
			return fmt.Errorf("%w: linked-channel auto-compression requires all channels to agree on auto-compression support",
				waveform.ErrConfiguration)
		}
	}
	return nil
}
