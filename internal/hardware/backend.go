package hardware

import (
	"context"
	"fmt"
	"strings"

	"github.com/audiolibrelab/awgseq/internal/compress"
	"github.com/audiolibrelab/awgseq/internal/config"
	"github.com/audiolibrelab/awgseq/internal/sequence"
)

// BackendType represents the type of hardware backend
type BackendType string

const (
	BackendTypeDryRun  BackendType = "dryrun"
	BackendTypeCapture BackendType = "capture"
	BackendTypeAuto    BackendType = "auto"
)

// Writer programs channel memory. For one channel a commit is always
// AllocateSegments, then WriteBlock for every block, then WriteTaskTable.
// Channels are addressed by their "device/name" key.
type Writer interface {
	// Define the memory segments of a channel, one per library block
	AllocateSegments(ctx context.Context, channel string, lengths []int) error

	// Write the samples and markers of one block; index is 0-based
	WriteBlock(ctx context.Context, channel string, index int, block compress.Block) error

	// Write the task table and arm the channel
	WriteTaskTable(ctx context.Context, channel string, tasks []sequence.Task) error

	// Get the backend type
	GetType() BackendType
}

// NewWriter creates a writer using the appropriate backend based on configuration
func NewWriter(cfg config.HardwareConfig) (Writer, error) {
	switch determineBackend(cfg) {
	case BackendTypeCapture:
		return NewCapture(cfg.CaptureDirectory)
	default:
		return NewRecorder(), nil
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg config.HardwareConfig) BackendType {
	switch strings.ToLower(cfg.Backend) {
	case "capture":
		return BackendTypeCapture
	case "dryrun", "auto", "":
		return BackendTypeDryRun
	}
	return BackendTypeDryRun
}

// GetAvailableBackends returns list of available backends
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeDryRun, BackendTypeCapture}
}

// checkBlock verifies a block against the segment lengths allocated for it.
func checkBlock(lengths []int, channel string, index int, block compress.Block) error {
	if lengths == nil {
		return fmt.Errorf("channel %s: write before allocation", channel)
	}
	if index < 0 || index >= len(lengths) {
		return fmt.Errorf("channel %s: block %d outside %d allocated segments", channel, index, len(lengths))
	}
	if block.Len() != lengths[index] {
		return fmt.Errorf("channel %s: block %d has %d points, segment holds %d", channel, index, block.Len(), lengths[index])
	}
	return nil
}
