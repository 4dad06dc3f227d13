package waveform

import "errors"

// Error kinds raised while preparing a waveform. Every failure returned by
// the engine wraps exactly one of these so callers can use errors.Is.
var (
	// ErrConfiguration reports an inconsistent waveform or hardware setup:
	// elastic segment misuse, durations that do not add up, mismatched
	// memory descriptors, conflicting trigger sources, task table overflow.
	ErrConfiguration = errors.New("configuration error")

	// ErrAmplitude reports a sample outside a channel's amplitude/offset window.
	ErrAmplitude = errors.New("amplitude error")

	// ErrAssembly reports an internal length mismatch while assembling
	// a channel buffer. It points at a defect, not at user input.
	ErrAssembly = errors.New("assembly error")

	// ErrLookup reports a reference to a segment (or segment kind) that does not exist.
	ErrLookup = errors.New("lookup error")
)
