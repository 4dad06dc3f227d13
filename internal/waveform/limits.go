package waveform

import (
	"fmt"
	"math"
)

// CheckMemory verifies that a whole-buffer length fits the channel memory.
func CheckMemory(ch Channel, numPts int) error {
	if numPts < ch.Memory.MinSize {
		return fmt.Errorf("%w: waveform too short on channel %q; needs at least %d points, has %d",
			ErrConfiguration, ch.Key(), ch.Memory.MinSize, numPts)
	}
	if ch.Memory.Multiple > 0 && numPts%ch.Memory.Multiple != 0 {
		return fmt.Errorf("%w: number of points on channel %q must be a multiple of %d, has %d",
			ErrConfiguration, ch.Key(), ch.Memory.Multiple, numPts)
	}
	return nil
}

// CheckAmplitude verifies that every sample stays inside the output window
// Offset ± Amplitude/2. A zero Amplitude disables the check.
func CheckAmplitude(ch Channel, samples []float64) error {
	if ch.Amplitude == 0 {
		return nil
	}
	half := math.Abs(ch.Amplitude) / 2
	for i, s := range samples {
		if math.Abs(s-ch.Offset) > half {
			return fmt.Errorf("%w: sample %d on channel %q is %g V, outside %g ± %g V; output would saturate",
				ErrAmplitude, i, ch.Key(), s, ch.Offset, half)
		}
	}
	return nil
}
