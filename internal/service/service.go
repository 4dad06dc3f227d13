package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/awgseq/internal/changes"
	"github.com/audiolibrelab/awgseq/internal/compress"
	"github.com/audiolibrelab/awgseq/internal/config"
	"github.com/audiolibrelab/awgseq/internal/hardware"
	"github.com/audiolibrelab/awgseq/internal/metrics"
	"github.com/audiolibrelab/awgseq/internal/preview"
	"github.com/audiolibrelab/awgseq/internal/sequence"
	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// ErrStalePlan is returned when a plan is committed after the profile it
// was prepared from has been replaced.
var ErrStalePlan = errors.New("plan prepared from a previous configuration")

// maxPlans bounds the number of prepared plans kept for lookup by ID.
const maxPlans = 32

// Service represents the core awgseq service interface
type Service interface {
	// Programming operations
	Prepare(name string) (*Plan, error)
	Commit(ctx context.Context, plan *Plan) (*CommitReport, error)
	Program(ctx context.Context, name string) (*CommitReport, error)
	Plan(id string) (*Plan, error)

	// Pipeline operations
	RunPipeline(ctx context.Context, name string, steps string) error

	// Preview operations
	Export(name string) (string, error)

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config
	Waveforms() []string

	// Information operations
	Status() []ChannelStatus
	GetLastError() string
	Reset()
}

// ChannelState is the position of a channel in the prepare/commit pipeline.
type ChannelState string

const (
	StateUnassembled        ChannelState = "UNASSEMBLED"
	StateAssembled          ChannelState = "ASSEMBLED"
	StateCompressionDecided ChannelState = "COMPRESSION_DECIDED"
	StateCommitted          ChannelState = "COMMITTED"
)

// ChannelStatus reports the pipeline state of one channel
type ChannelStatus struct {
	Channel   string       `json:"channel"`
	State     ChannelState `json:"state"`
	Waveform  string       `json:"waveform,omitempty"`
	Digest    string       `json:"digest,omitempty"`
	Blocks    int          `json:"blocks,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Plan is the in-memory result of preparing one waveform: assembled
// buffers, compressed libraries and task tables for every channel, plus
// whether each channel differs from what is currently committed.
type Plan struct {
	ID        string
	Waveform  string
	Profile   string
	CreatedAt time.Time
	Layout    waveform.Layout
	Linked    bool
	Channels  []ChannelPlan

	generation uint64
}

// ChannelPlan is what Commit would write to one channel.
type ChannelPlan struct {
	Key       string
	Raw       waveform.Raw
	Library   *compress.Library
	Tasks     []sequence.Task
	Algorithm waveform.Compression
	Digest    changes.Digest
	Changed   bool
}

// CommitReport lists what a commit did per channel.
type CommitReport struct {
	PlanID  string   `json:"plan_id"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

// AWGService is the main service implementation
type AWGService struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configFile string
	writer     hardware.Writer
	ownWriter  bool
	generation uint64

	store    *changes.Store
	statuses map[string]ChannelStatus
	plans    map[string]*Plan
	order    []string

	// Commits are serialized so that writer call sequences never interleave
	commitMu sync.Mutex

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new service instance. A nil writer selects the backend from
// the hardware section of cfg.
func New(cfg *config.Config, configFile string, writer hardware.Writer) (Service, error) {
	s := &AWGService{
		cfg:        cfg,
		configFile: configFile,
		writer:     writer,
		store:      changes.NewStore(),
		statuses:   make(map[string]ChannelStatus),
		plans:      make(map[string]*Plan),
	}
	if writer == nil {
		w, err := hardware.NewWriter(cfg.Hardware)
		if err != nil {
			return nil, fmt.Errorf("error creating hardware writer: %w", err)
		}
		s.writer = w
		s.ownWriter = true
	}
	slog.Debug("Service created", "profile", cfg.Profile, "backend", s.writer.GetType())
	return s, nil
}

// Prepare assembles, checks and compresses a waveform without touching the
// hardware. The returned plan can be committed later.
func (s *AWGService) Prepare(name string) (plan *Plan, err error) {
	start := time.Now()
	defer func() {
		metrics.ObservePrepare(name, start, err)
		if err != nil {
			s.setLastError(fmt.Sprintf("Failed to prepare %s: %v", name, err))
		}
	}()

	s.mu.RLock()
	cfg, generation := s.cfg, s.generation
	s.mu.RUnlock()

	w, err := cfg.BuildWaveform(name)
	if err != nil {
		return nil, err
	}

	raws, layout, err := waveform.Assemble(w)
	if err != nil {
		return nil, fmt.Errorf("waveform '%s': %w", name, err)
	}
	for i, ch := range w.Channels {
		if err := waveform.CheckMemory(ch, raws[i].Len()); err != nil {
			return nil, fmt.Errorf("waveform '%s': %w", name, err)
		}
		if err := waveform.CheckAmplitude(ch, raws[i].Samples); err != nil {
			return nil, fmt.Errorf("waveform '%s': %w", name, err)
		}
	}
	s.setStates(w, raws, StateAssembled)

	plan = &Plan{
		ID:         uuid.NewString(),
		Waveform:   w.Name,
		Profile:    cfg.Profile,
		CreatedAt:  time.Now(),
		Layout:     layout,
		generation: generation,
	}

	libs, algs, linked, err := compressChannels(w, raws)
	if err != nil {
		return nil, fmt.Errorf("waveform '%s': %w", name, err)
	}
	plan.Linked = linked

	for i, ch := range w.Channels {
		tasks, err := sequence.Build(libs[i].SeqIDs, sequence.Options{
			Trigger:  ch.Trigger,
			MaxTasks: ch.Memory.MaxTasks,
		})
		if err != nil {
			return nil, fmt.Errorf("waveform '%s': channel %s: %w", name, ch.Key(), err)
		}
		cp := ChannelPlan{
			Key:       ch.Key(),
			Raw:       raws[i],
			Library:   libs[i],
			Tasks:     tasks,
			Algorithm: algs[i],
			Digest:    changes.Fingerprint(raws[i]),
		}
		cp.Changed = s.needsWrite(cp, linked)
		metrics.ObserveLibrary(len(libs[i].Blocks))
		plan.Channels = append(plan.Channels, cp)
	}

	s.mu.Lock()
	for _, cp := range plan.Channels {
		s.statuses[cp.Key] = ChannelStatus{
			Channel:   cp.Key,
			State:     StateCompressionDecided,
			Waveform:  plan.Waveform,
			Digest:    cp.Digest.String(),
			Blocks:    len(cp.Library.Blocks),
			UpdatedAt: time.Now(),
		}
	}
	s.remember(plan)
	s.mu.Unlock()

	slog.Info("Prepared waveform", "waveform", name, "plan", plan.ID, "points", layout.NumPts,
		"channels", len(plan.Channels), "changed", plan.ChangedCount(), "linked", linked)
	s.clearLastError()
	return plan, nil
}

// compressChannels decides and runs compression for every channel. Linked
// waveforms share one partition across all of their channels.
func compressChannels(w *waveform.Waveform, raws []waveform.Raw) ([]*compress.Library, []waveform.Compression, bool, error) {
	libs := make([]*compress.Library, len(raws))
	algs := make([]waveform.Compression, len(raws))

	if w.LinkChannels && len(w.Channels) > 1 {
		mems := make([]waveform.Memory, len(w.Channels))
		for i, ch := range w.Channels {
			mems[i] = ch.Memory
		}
		if w.Compression != waveform.CompressionNone && w.Compression != "" {
			if err := compress.SameMemory(mems); err != nil {
				return nil, nil, false, err
			}
		}
		alg := compress.Choose(w.Compression, mems[0], raws[0].Len())
		if alg == waveform.CompressionNone {
			for i, raw := range raws {
				libs[i], algs[i] = compress.Uncompressed(raw), alg
			}
			return libs, algs, false, nil
		}
		linked, err := compress.Linked(raws, mems)
		if err != nil {
			return nil, nil, false, err
		}
		for i := range algs {
			algs[i] = alg
		}
		return linked, algs, true, nil
	}

	for i, ch := range w.Channels {
		alg := compress.Choose(w.Compression, ch.Memory, raws[i].Len())
		algs[i] = alg
		if alg == waveform.CompressionNone {
			libs[i] = compress.Uncompressed(raws[i])
			continue
		}
		dS, err := compress.BlockSize(ch.Memory)
		if err != nil {
			return nil, nil, false, fmt.Errorf("channel %s: %w", ch.Key(), err)
		}
		lib, err := compress.Basic(raws[i], dS)
		if err != nil {
			return nil, nil, false, fmt.Errorf("channel %s: %w", ch.Key(), err)
		}
		libs[i] = lib
	}
	return libs, algs, false, nil
}

// needsWrite compares a channel plan against the committed snapshot. A
// linked channel is only skipped if its block partition is also unchanged,
// because its sequence is shared with the other linked channels.
func (s *AWGService) needsWrite(cp ChannelPlan, linked bool) bool {
	prev := s.store.Load(cp.Key)
	if !changes.Unchanged(prev, cp.Raw) {
		return true
	}
	if linked && !prev.Library.Equal(cp.Library) {
		return true
	}
	return false
}

// Commit writes every changed channel of plan. Each channel is allocated,
// filled and given its task table; only then is its committed snapshot
// replaced. The first writer error stops the commit, leaving that channel's
// snapshot untouched.
func (s *AWGService) Commit(ctx context.Context, plan *Plan) (*CommitReport, error) {
	if plan == nil {
		return nil, fmt.Errorf("%w: no plan to commit", waveform.ErrConfiguration)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.RLock()
	generation, writer := s.generation, s.writer
	s.mu.RUnlock()
	if plan.generation != generation {
		err := fmt.Errorf("%w: plan %s for '%s'", ErrStalePlan, plan.ID, plan.Waveform)
		s.setLastError(err.Error())
		return nil, err
	}

	report := &CommitReport{PlanID: plan.ID}
	for _, cp := range plan.Channels {
		// Re-check against the store: another commit may have landed since Prepare
		if !s.needsWrite(cp, plan.Linked) {
			slog.Debug("Channel unchanged, skipping", "channel", cp.Key)
			report.Skipped = append(report.Skipped, cp.Key)
			metrics.ObserveCommit(cp.Key, metrics.OutcomeSkipped, 0)
			s.setCommitted(cp, plan.Waveform)
			continue
		}

		if err := writeChannel(ctx, writer, cp); err != nil {
			metrics.ObserveCommit(cp.Key, metrics.OutcomeFailed, 0)
			s.setLastError(fmt.Sprintf("Failed to commit %s: %v", cp.Key, err))
			return report, fmt.Errorf("commit %s: channel %s: %w", plan.Waveform, cp.Key, err)
		}

		s.store.Commit(cp.Key, &changes.Snapshot{Library: cp.Library, Tasks: cp.Tasks, Digest: cp.Digest})
		s.setCommitted(cp, plan.Waveform)
		report.Written = append(report.Written, cp.Key)
		metrics.ObserveCommit(cp.Key, metrics.OutcomeWritten, cp.Raw.Len())
	}

	slog.Info("Committed waveform", "waveform", plan.Waveform, "plan", plan.ID,
		"written", len(report.Written), "skipped", len(report.Skipped))
	s.clearLastError()
	return report, nil
}

func writeChannel(ctx context.Context, w hardware.Writer, cp ChannelPlan) error {
	if err := w.AllocateSegments(ctx, cp.Key, cp.Library.Lengths()); err != nil {
		return fmt.Errorf("allocate segments: %w", err)
	}
	for i, block := range cp.Library.Blocks {
		slog.Debug("Writing block", "channel", cp.Key, "block", i, "points", block.Len())
		if err := w.WriteBlock(ctx, cp.Key, i, block); err != nil {
			return fmt.Errorf("write block %d: %w", i, err)
		}
	}
	if err := w.WriteTaskTable(ctx, cp.Key, cp.Tasks); err != nil {
		return fmt.Errorf("write task table: %w", err)
	}
	return nil
}

// Program prepares and commits a waveform in one step.
func (s *AWGService) Program(ctx context.Context, name string) (*CommitReport, error) {
	plan, err := s.Prepare(name)
	if err != nil {
		return nil, err
	}
	return s.Commit(ctx, plan)
}

// Plan returns a recently prepared plan by ID.
func (s *AWGService) Plan(id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: plan %s not found", waveform.ErrLookup, id)
	}
	return plan, nil
}

// RunPipeline executes a sequence of operations (a=assemble, c=commit, w=write preview)
func (s *AWGService) RunPipeline(ctx context.Context, name string, steps string) error {
	var plan *Plan
	for _, step := range steps {
		switch step {
		case 'a':
			p, err := s.Prepare(name)
			if err != nil {
				return fmt.Errorf("pipeline assemble failed: %w", err)
			}
			plan = p
		case 'c':
			if plan == nil {
				p, err := s.Prepare(name)
				if err != nil {
					return fmt.Errorf("pipeline assemble failed: %w", err)
				}
				plan = p
			}
			if _, err := s.Commit(ctx, plan); err != nil {
				return fmt.Errorf("pipeline commit failed: %w", err)
			}
		case 'w':
			path, err := s.Export(name)
			if err != nil {
				return fmt.Errorf("pipeline preview failed: %w", err)
			}
			slog.Info("Wrote preview", "waveform", name, "path", path)
		default:
			return fmt.Errorf("unknown pipeline step: '%c' (valid: a=assemble, c=commit, w=write preview)", step)
		}
	}
	return nil
}

// Export assembles a waveform and writes it as a WAV preview. It does not
// change channel state.
func (s *AWGService) Export(name string) (string, error) {
	cfg := s.GetConfig()
	w, err := cfg.BuildWaveform(name)
	if err != nil {
		return "", err
	}
	raws, _, err := waveform.Assemble(w)
	if err != nil {
		return "", fmt.Errorf("waveform '%s': %w", name, err)
	}
	exporter := preview.New(cfg)
	exporter.Markers = true
	return exporter.Export(name, raws)
}

// LoadProfile loads a new configuration profile. Everything committed so far
// is forgotten, so the next commit rewrites every channel.
func (s *AWGService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ownWriter {
		w, err := hardware.NewWriter(newCfg.Hardware)
		if err != nil {
			return fmt.Errorf("failed to load profile '%s': %w", profile, err)
		}
		s.writer = w
	}
	s.cfg = newCfg
	s.generation++
	s.store.Reset()
	clear(s.statuses)
	clear(s.plans)
	s.order = nil

	slog.Info("Loaded profile", "profile", newCfg.Profile, "waveforms", len(newCfg.Waveforms))
	return nil
}

// GetConfig returns the current configuration
func (s *AWGService) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Waveforms returns the waveform names of the current profile
func (s *AWGService) Waveforms() []string {
	return s.GetConfig().WaveformNames()
}

// Status returns the pipeline state of every channel of the current profile,
// sorted by key. Channels no waveform has been prepared for are UNASSEMBLED.
func (s *AWGService) Status() []ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChannelStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	seen := make(map[string]bool, len(s.statuses))
	for _, wf := range s.cfg.Waveforms {
		for _, ch := range wf.Channels {
			key := waveform.Channel{Name: ch.Name, Device: ch.Device}.Key()
			if _, ok := s.statuses[key]; ok || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ChannelStatus{Channel: key, State: StateUnassembled})
		}
	}
	slices.SortFunc(out, func(a, b ChannelStatus) int {
		return strings.Compare(a.Channel, b.Channel)
	})
	return out
}

// Reset forgets all committed state; every channel is rewritten on the next commit.
func (s *AWGService) Reset() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.store.Reset()
	s.mu.Lock()
	clear(s.statuses)
	s.mu.Unlock()
	slog.Info("Committed state reset")
}

// ChangedCount returns how many channels a commit of the plan would write.
func (p *Plan) ChangedCount() int {
	n := 0
	for _, cp := range p.Channels {
		if cp.Changed {
			n++
		}
	}
	return n
}

func (s *AWGService) setStates(w *waveform.Waveform, raws []waveform.Raw, state ChannelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range w.Channels {
		// A committed channel keeps its state until a new plan is decided.
		if s.statuses[ch.Key()].State == StateCommitted {
			continue
		}
		s.statuses[ch.Key()] = ChannelStatus{
			Channel:   ch.Key(),
			State:     state,
			Waveform:  w.Name,
			Digest:    changes.Fingerprint(raws[i]).String(),
			UpdatedAt: time.Now(),
		}
	}
}

func (s *AWGService) setCommitted(cp ChannelPlan, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[cp.Key] = ChannelStatus{
		Channel:   cp.Key,
		State:     StateCommitted,
		Waveform:  name,
		Digest:    cp.Digest.String(),
		Blocks:    len(cp.Library.Blocks),
		UpdatedAt: time.Now(),
	}
}

// remember stores plan for lookup by ID, dropping the oldest beyond maxPlans.
// Callers hold s.mu.
func (s *AWGService) remember(plan *Plan) {
	s.plans[plan.ID] = plan
	s.order = append(s.order, plan.ID)
	if len(s.order) > maxPlans {
		delete(s.plans, s.order[0])
		s.order = s.order[1:]
	}
}

// GetLastError returns the last error message (thread-safe)
func (s *AWGService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *AWGService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *AWGService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
