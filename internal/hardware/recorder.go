package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/audiolibrelab/awgseq/internal/compress"
	"github.com/audiolibrelab/awgseq/internal/sequence"
)

// Op names one kind of writer call.
type Op string

const (
	OpAllocate  Op = "allocate"
	OpWrite     Op = "write"
	OpTaskTable Op = "task_table"
)

// Call is one recorded writer call.
type Call struct {
	Op      Op
	Channel string
	Index   int
}

// Memory is the recorded content of one channel.
type Memory struct {
	Lengths []int
	Blocks  []compress.Block
	Tasks   []sequence.Task
}

// Recorder is a dry-run writer that keeps channel memory in process and
// records every call. FailOn, when set, is consulted before each call and
// its error is returned without touching memory.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	channels map[string]*Memory

	FailOn func(call Call) error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{channels: make(map[string]*Memory)}
}

func (r *Recorder) GetType() BackendType {
	return BackendTypeDryRun
}

func (r *Recorder) AllocateSegments(ctx context.Context, channel string, lengths []int) error {
	if err := r.begin(ctx, Call{Op: OpAllocate, Channel: channel, Index: -1}); err != nil {
		return err
	}
	defer r.mu.Unlock()

	r.channels[channel] = &Memory{
		Lengths: slices.Clone(lengths),
		Blocks:  make([]compress.Block, len(lengths)),
	}
	slog.Debug("Allocated segments", "channel", channel, "segments", len(lengths))
	return nil
}

func (r *Recorder) WriteBlock(ctx context.Context, channel string, index int, block compress.Block) error {
	if err := r.begin(ctx, Call{Op: OpWrite, Channel: channel, Index: index}); err != nil {
		return err
	}
	defer r.mu.Unlock()

	mem := r.channels[channel]
	var lengths []int
	if mem != nil {
		lengths = mem.Lengths
	}
	if err := checkBlock(lengths, channel, index, block); err != nil {
		return err
	}
	mem.Blocks[index] = block
	return nil
}

func (r *Recorder) WriteTaskTable(ctx context.Context, channel string, tasks []sequence.Task) error {
	if err := r.begin(ctx, Call{Op: OpTaskTable, Channel: channel, Index: -1}); err != nil {
		return err
	}
	defer r.mu.Unlock()

	mem := r.channels[channel]
	if mem == nil {
		return fmt.Errorf("channel %s: task table written before allocation", channel)
	}
	mem.Tasks = slices.Clone(tasks)
	slog.Debug("Wrote task table", "channel", channel, "tasks", len(tasks))
	return nil
}

// begin records the call and returns with the lock held, unless the call
// is refused.
func (r *Recorder) begin(ctx context.Context, call Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	if r.FailOn != nil {
		if err := r.FailOn(call); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	return nil
}

// Calls returns every call recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Count returns how many calls of the given kind reached the recorder.
func (r *Recorder) Count(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Memory returns a copy of what was written to a channel.
func (r *Recorder) Memory(channel string) (Memory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mem, ok := r.channels[channel]
	if !ok {
		return Memory{}, false
	}
	return Memory{
		Lengths: slices.Clone(mem.Lengths),
		Blocks:  slices.Clone(mem.Blocks),
		Tasks:   slices.Clone(mem.Tasks),
	}, true
}

// ResetCalls clears the call log but keeps channel memory.
func (r *Recorder) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
