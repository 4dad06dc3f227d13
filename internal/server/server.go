package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/awgseq/internal/config"
	"github.com/audiolibrelab/awgseq/internal/service"
	"github.com/audiolibrelab/awgseq/internal/waveform"
)

// Server represents the HTTP control API for awgseq
type Server struct {
	service    service.Service
	configFile string
	port       string

	// Profile locking mechanism
	profileLock   sync.RWMutex
	lockedProfile string
	lockTimestamp time.Time
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Profile       string                  `json:"profile"`
	Backend       string                  `json:"backend"`
	Channels      []service.ChannelStatus `json:"channels"`
	LastError     string                  `json:"last_error,omitempty"`
	LockedProfile string                  `json:"locked_profile,omitempty"`
}

// WaveformInfo describes one configured waveform
type WaveformInfo struct {
	Name         string   `json:"name"`
	TotalTime    string   `json:"total_time,omitempty"`
	Compression  string   `json:"compression,omitempty"`
	LinkChannels bool     `json:"link_channels,omitempty"`
	Channels     []string `json:"channels"`
	Segments     []string `json:"segments"`
	Inheritance  string   `json:"inheritance"` // "inherited" or "profile-specific"
}

// PlanSummary is the JSON view of a prepared plan
type PlanSummary struct {
	ID        string           `json:"id"`
	Waveform  string           `json:"waveform"`
	Profile   string           `json:"profile"`
	CreatedAt time.Time        `json:"created_at"`
	Points    int              `json:"points"`
	Linked    bool             `json:"linked"`
	Spans     []SpanInfo       `json:"spans"`
	Channels  []ChannelSummary `json:"channels"`
}

// SpanInfo is one resolved segment of a plan's timeline
type SpanInfo struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
	Points   int     `json:"points"`
	Offset   int     `json:"offset"`
	Elastic  bool    `json:"elastic,omitempty"`
}

// ChannelSummary is what a commit of the plan would do to one channel
type ChannelSummary struct {
	Channel   string `json:"channel"`
	Algorithm string `json:"algorithm"`
	Blocks    int    `json:"blocks"`
	Tasks     int    `json:"tasks"`
	Digest    string `json:"digest"`
	Changed   bool   `json:"changed"`
}

// New creates a new server instance backed by a service for the active profile
func New(configFile string, port string) (*Server, error) {
	cfg, err := config.LoadWithProfile(configFile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	svc, err := service.New(cfg, configFile, nil)
	if err != nil {
		return nil, err
	}
	return NewWithService(svc, configFile, port), nil
}

// NewWithService creates a server around an existing service
func NewWithService(svc service.Service, configFile string, port string) *Server {
	return &Server{
		service:    svc,
		configFile: configFile,
		port:       port,
	}
}

// Handler returns the routes served by the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/waveforms", s.handleWaveforms)
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/profiles/select", s.handleSelectProfile)
	mux.HandleFunc("/api/profiles/lock", s.handleLockProfile)
	mux.HandleFunc("/api/profiles/unlock", s.handleUnlockProfile)
	mux.HandleFunc("/api/prepare", s.handlePrepare)
	mux.HandleFunc("/api/commit", s.handleCommit)
	mux.HandleFunc("/api/program", s.handleProgram)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting awgseq API server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.service.GetConfig()
	_, locked := s.isProfileLocked()
	s.sendJSON(w, StatusResponse{
		Profile:       cfg.Profile,
		Backend:       cfg.Hardware.Backend,
		Channels:      s.service.Status(),
		LastError:     s.service.GetLastError(),
		LockedProfile: locked,
	})
}

// handleWaveforms lists the waveforms of the active profile with inheritance indicators
func (s *Server) handleWaveforms(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.service.GetConfig()
	infos := make([]WaveformInfo, 0, len(cfg.Waveforms))
	for _, wf := range cfg.Waveforms {
		info := WaveformInfo{
			Name:         wf.Name,
			TotalTime:    wf.TotalTime,
			Compression:  wf.Compression,
			LinkChannels: wf.LinkChannels,
			Inheritance:  "profile-specific",
		}
		if cfg.Inheritance != nil {
			if wi, ok := cfg.Inheritance.Waveforms[wf.Name]; ok && wi.Origin != "" {
				info.Inheritance = wi.Origin
			}
		}
		for _, ch := range wf.Channels {
			info.Channels = append(info.Channels, waveform.Channel{Name: ch.Name, Device: ch.Device}.Key())
		}
		for _, seg := range wf.Segments {
			info.Segments = append(info.Segments, seg.Name)
		}
		infos = append(infos, info)
	}

	s.sendJSON(w, map[string]interface{}{
		"profile":   cfg.Profile,
		"waveforms": infos,
	})
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	profiles, _, err := config.ProfileNames(s.configFile)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read profiles: %v", err), "operation", "list_profiles")
		return
	}

	s.sendJSON(w, map[string]interface{}{
		"profiles": profiles,
		"active":   s.service.GetConfig().Profile,
	})
}

// handleSelectProfile switches the active profile. Committed state is
// forgotten, so the next commit rewrites every channel.
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	profile := r.FormValue("profile")
	slog.Debug("Profile selection request", "profile", profile)
	if profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required")
		return
	}

	if isLocked, lockedProfile := s.isProfileLocked(); isLocked {
		s.sendErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Profile '%s' is locked by a running measurement", lockedProfile),
			"profile", lockedProfile, "operation", "profile_selection")
		return
	}

	if err := s.service.LoadProfile(profile); err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "profile", profile)
		return
	}
	if err := config.UpdateActiveConfig(s.configFile, profile); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to save profile selection to config file: %v", err))
		return
	}

	slog.Info("Profile changed", "profile", profile)

	s.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Profile changed to %s", profile),
		"profile": profile,
	})
}

// handleLockProfile pins the active profile while a measurement runs
func (s *Server) handleLockProfile(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	s.profileLock.Lock()
	defer s.profileLock.Unlock()

	if s.lockedProfile != "" {
		s.sendErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Profile '%s' is already locked", s.lockedProfile),
			"current_locked_profile", s.lockedProfile, "operation", "lock_profile")
		return
	}

	s.lockedProfile = s.service.GetConfig().Profile
	s.lockTimestamp = time.Now()

	s.sendJSON(w, map[string]interface{}{
		"success":        true,
		"locked_profile": s.lockedProfile,
		"message":        fmt.Sprintf("Profile '%s' locked successfully", s.lockedProfile),
	})
	slog.Debug("Profile locked", "profile", s.lockedProfile)
}

func (s *Server) handleUnlockProfile(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	s.profileLock.Lock()
	defer s.profileLock.Unlock()

	if s.lockedProfile == "" {
		s.sendErrorResponse(w, http.StatusConflict, "No profile is locked", "operation", "unlock_profile")
		return
	}

	unlocked := s.lockedProfile
	slog.Debug("Profile unlocked", "profile", unlocked, "held_for", time.Since(s.lockTimestamp))
	s.lockedProfile = ""
	s.lockTimestamp = time.Time{}

	s.sendJSON(w, map[string]interface{}{
		"success":          true,
		"unlocked_profile": unlocked,
	})
}

func (s *Server) isProfileLocked() (bool, string) {
	s.profileLock.RLock()
	defer s.profileLock.RUnlock()
	return s.lockedProfile != "", s.lockedProfile
}

// handlePrepare assembles and compresses a waveform without touching the hardware
func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	name := r.URL.Query().Get("waveform")
	if name == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Waveform name is required")
		return
	}

	plan, err := s.service.Prepare(name)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "waveform", name, "operation", "prepare")
		return
	}
	s.sendJSON(w, summarize(plan))
}

// handleCommit writes a previously prepared plan to the hardware
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	id := r.URL.Query().Get("plan")
	if id == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Plan ID is required")
		return
	}

	plan, err := s.service.Plan(id)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "plan", id)
		return
	}

	report, err := s.service.Commit(r.Context(), plan)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "plan", id, "operation", "commit")
		return
	}
	s.sendJSON(w, report)
}

// handleProgram prepares and commits a waveform in one request
func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	name := r.URL.Query().Get("waveform")
	if name == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Waveform name is required")
		return
	}

	report, err := s.service.Program(r.Context(), name)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "waveform", name, "operation", "program")
		return
	}
	s.sendJSON(w, report)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	s.service.Reset()
	s.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Committed state reset",
	})
}

// handleConfig returns the resolved active profile as YAML
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}

	data, err := yaml.Marshal(s.service.GetConfig())
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to encode config: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

func summarize(plan *service.Plan) PlanSummary {
	summary := PlanSummary{
		ID:        plan.ID,
		Waveform:  plan.Waveform,
		Profile:   plan.Profile,
		CreatedAt: plan.CreatedAt,
		Points:    plan.Layout.NumPts,
		Linked:    plan.Linked,
	}
	for i, span := range plan.Layout.Spans {
		summary.Spans = append(summary.Spans, SpanInfo{
			Name:     span.Name,
			Duration: span.Duration,
			Points:   span.Points,
			Offset:   span.Offset,
			Elastic:  i == plan.Layout.Elastic,
		})
	}
	for _, cp := range plan.Channels {
		summary.Channels = append(summary.Channels, ChannelSummary{
			Channel:   cp.Key,
			Algorithm: string(cp.Algorithm),
			Blocks:    len(cp.Library.Blocks),
			Tasks:     len(cp.Tasks),
			Digest:    cp.Digest.String(),
			Changed:   cp.Changed,
		})
	}
	return summary
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, waveform.ErrLookup):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStalePlan):
		return http.StatusConflict
	case errors.Is(err, waveform.ErrConfiguration), errors.Is(err, waveform.ErrAmplitude), errors.Is(err, waveform.ErrAssembly):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "path", r.URL.Path, "method", r.Method)
	return false
}

func (s *Server) sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error body
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
