// Package sequence turns a block sequence into the circular task table an
// AWG walks through when playing a compressed waveform.
package sequence

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// NoTrigger is the trigger source name meaning "start immediately".
const NoTrigger = "NONE"

// Task is one row of the task table. Segment is the 1-indexed block number
// in device memory and Next is the 1-indexed task that follows.
type Task struct {
	Segment int    `json:"segment" cbor:"1,keyasint"`
	Loops   int    `json:"loops" cbor:"2,keyasint"`
	Next    int    `json:"next" cbor:"3,keyasint"`
	Trigger string `json:"trigger,omitempty" cbor:"4,keyasint,omitempty"`
}

// Options controls how the task table is built.
type Options struct {
	// Trigger is the source that starts the first task. Empty or NONE
	// starts playback without waiting.
	Trigger string
	// Loops optionally overrides the repeat count per task. Missing entries
	// default to 1.
	Loops []int
	// MaxTasks is the size of the device task table; 0 means unlimited.
	MaxTasks int
}

// Build returns one task per sequence entry. Task i plays block
// seqIDs[i]+1 and hands over to task i+2, the last task wraps around to the
// first. Only the first task waits for the trigger.
func Build(seqIDs []int, opts Options) ([]Task, error) {
	if len(seqIDs) == 0 {
		return nil, fmt.Errorf("%w: cannot build a task table from an empty sequence", waveform.ErrConfiguration)
	}

	tasks := make([]Task, len(seqIDs))
	for i, id := range seqIDs {
		if id < 0 {
			return nil, fmt.Errorf("%w: sequence entry %d references block %d", waveform.ErrConfiguration, i, id)
		}
		loops := 1
		if i < len(opts.Loops) {
			loops = opts.Loops[i]
		}
		tasks[i] = Task{
			Segment: id + 1,
			Loops:   loops,
			Next:    (i+1)%len(seqIDs) + 1,
		}
	}
	if !isNone(opts.Trigger) {
		tasks[0].Trigger = opts.Trigger
	}

	if err := Validate(tasks, opts.MaxTasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Validate checks a task table before it is written: every task must loop
// at least once and point at an existing task, all tasks must share at
// most one trigger source, and the table must fit the device.
func Validate(tasks []Task, maxTasks int) error {
	if maxTasks > 0 && len(tasks) > maxTasks {
		return fmt.Errorf("%w: %d tasks exceed the task table size %d", waveform.ErrConfiguration, len(tasks), maxTasks)
	}

	trigger := ""
	for i, task := range tasks {
		if task.Loops < 1 {
			return fmt.Errorf("%w: task %d has %d loops", waveform.ErrConfiguration, i+1, task.Loops)
		}
		if task.Segment < 1 {
			return fmt.Errorf("%w: task %d references segment %d", waveform.ErrConfiguration, i+1, task.Segment)
		}
		if task.Next < 1 || task.Next > len(tasks) {
			return fmt.Errorf("%w: task %d jumps to task %d of %d", waveform.ErrConfiguration, i+1, task.Next, len(tasks))
		}
		if isNone(task.Trigger) {
			continue
		}
		if trigger != "" && !strings.EqualFold(trigger, task.Trigger) {
			return fmt.Errorf("%w: only one trigger source is allowed per task table, got %q and %q",
				waveform.ErrConfiguration, trigger, task.Trigger)
		}
		trigger = task.Trigger
	}
	return nil
}

func isNone(trigger string) bool {
	return trigger == "" || strings.EqualFold(trigger, NoTrigger)
}
