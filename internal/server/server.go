package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crestdev/CREST/internal/config"
	"github.com/crestdev/CREST/internal/metrics"
	"github.com/crestdev/CREST/internal/optimize"
	"github.com/crestdev/CREST/internal/optimize/hillclimb"
	"github.com/crestdev/CREST/internal/store"
)

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// runState tracks one optimization run. All fields are protected by the
// server's runsMu; independent runs share nothing beyond this registry.
type runState struct {
	ID         string
	Source     string
	Status     string
	StartTime  time.Time
	EndTime    *time.Time
	CancelFunc context.CancelFunc

	Config     hillclimb.Config
	Snapshots  []hillclimb.Snapshot
	Best       optimize.Candidate
	BestResult *optimize.EvaluationResult
	Iterations int
	Streak     int
	Err        string
}

// Server implements the HTTP API of the content refinement service. It
// manages optimization runs and provides endpoints to start, monitor, and
// cancel them, plus settings and input history.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *store.Store
	generator optimize.Generator
	evaluator optimize.Evaluator
	metrics   *metrics.Metrics

	runs   map[string]*runState
	runsMu sync.RWMutex
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, logger *zap.Logger, st *store.Store, generator optimize.Generator, evaluator optimize.Evaluator, m *metrics.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		generator: generator,
		evaluator: evaluator,
		metrics:   m,
		runs:      make(map[string]*runState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleCancelRun)
		r.Get("/history", s.handleHistory)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
	})
}

type optimizeRequest struct {
	Source        string   `json:"source"`
	Dimensions    []string `json:"dimensions,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
	Patience      int      `json:"patience,omitempty"`
}

// handleOptimize starts a new optimization run. Parameters omitted from the
// request fall back to stored settings, then to service defaults.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Source == "" {
		s.respondError(w, http.StatusBadRequest, "source is required")
		return
	}

	runConfig, err := s.resolveRunConfig(r.Context(), req)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "loading settings: "+err.Error())
		return
	}

	optimizer, err := hillclimb.New(s.generator, s.evaluator, runConfig)
	if err != nil {
		// Fail fast: nothing has been generated or persisted yet.
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.AddInput(r.Context(), req.Source); err != nil {
		s.logger.Warn("recording input history failed", zap.Error(err))
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	state := &runState{
		ID:         id,
		Source:     req.Source,
		Status:     StatusPending,
		StartTime:  time.Now(),
		CancelFunc: cancel,
		Config:     runConfig,
		Best:       optimize.Candidate(req.Source),
	}

	s.runsMu.Lock()
	s.runs[id] = state
	s.runsMu.Unlock()

	s.persistRun(state)
	s.metrics.RunsStarted.Inc()

	go s.runOptimization(ctx, optimizer, state)

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": StatusPending,
	})
}

// resolveRunConfig layers request overrides on stored settings on service
// defaults.
func (s *Server) resolveRunConfig(ctx context.Context, req optimizeRequest) (hillclimb.Config, error) {
	runConfig := hillclimb.Config{
		Dimensions:    s.cfg.DefaultedDimensions(),
		MaxIterations: s.cfg.Optimization.MaxIterations,
		Patience:      s.cfg.Optimization.Patience,
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return hillclimb.Config{}, err
	}
	if settings != nil {
		if len(settings.Dimensions) > 0 {
			runConfig.Dimensions = settings.Dimensions
		}
		if settings.MaxIterations > 0 {
			runConfig.MaxIterations = settings.MaxIterations
		}
		if settings.Patience > 0 {
			runConfig.Patience = settings.Patience
		}
	}

	if len(req.Dimensions) > 0 {
		runConfig.Dimensions = req.Dimensions
	}
	if req.MaxIterations > 0 {
		runConfig.MaxIterations = req.MaxIterations
	}
	if req.Patience > 0 {
		runConfig.Patience = req.Patience
	}
	return runConfig, nil
}

// runOptimization drains one run in a goroutine, recording each snapshot as
// it is produced.
func (s *Server) runOptimization(ctx context.Context, optimizer *hillclimb.Optimizer, state *runState) {
	logger := s.logger.With(zap.String("run_id", state.ID))

	s.runsMu.Lock()
	state.Status = StatusRunning
	s.runsMu.Unlock()
	s.persistRun(state)

	logger.Info("optimization started",
		zap.Int("max_iterations", state.Config.MaxIterations),
		zap.Int("patience", state.Config.Patience),
		zap.Int("dimensions", len(state.Config.Dimensions)),
	)

	run := optimizer.Start(ctx, state.Source)
	for run.Next() {
		snap := run.Snapshot()

		s.runsMu.Lock()
		state.Snapshots = append(state.Snapshots, snap)
		state.Best = snap.Best
		state.BestResult = snap.Result
		state.Iterations = snap.Iteration
		state.Streak = snap.Streak
		s.runsMu.Unlock()

		s.metrics.Iterations.Inc()
		if snap.Improved {
			s.metrics.Improvements.Inc()
		}
		logger.Debug("iteration completed",
			zap.Int("iteration", snap.Iteration),
			zap.Bool("improved", snap.Improved),
			zap.Int("best_total", snap.Result.Total()),
			zap.Int("streak", snap.Streak),
		)
	}

	status := StatusCompleted
	runErr := run.Err()
	switch {
	case errors.Is(runErr, context.Canceled):
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}

	now := time.Now()
	s.runsMu.Lock()
	state.Status = status
	state.EndTime = &now
	if runErr != nil {
		state.Err = runErr.Error()
	}
	s.runsMu.Unlock()

	s.persistRun(state)
	s.metrics.RunsCompleted.WithLabelValues(status).Inc()
	s.metrics.RunDuration.Observe(now.Sub(state.StartTime).Seconds())

	if runErr != nil && status == StatusFailed {
		logger.Error("optimization failed",
			zap.Error(runErr),
			zap.Int("iterations", run.Iterations()),
		)
		return
	}
	logger.Info("optimization finished",
		zap.String("status", status),
		zap.Int("iterations", run.Iterations()),
		zap.Int("streak", run.Streak()),
	)
}

// persistRun snapshots a run's current state into the store.
func (s *Server) persistRun(state *runState) {
	s.runsMu.RLock()
	rec := store.RunRecord{
		ID:         state.ID,
		Source:     state.Source,
		Status:     state.Status,
		Best:       state.Best.String(),
		Iterations: state.Iterations,
		Streak:     state.Streak,
		Error:      state.Err,
		StartedAt:  state.StartTime,
		FinishedAt: state.EndTime,
	}
	if state.BestResult != nil {
		rec.BestTotal = state.BestResult.Total()
		rec.BestAverage = state.BestResult.Average()
	}
	s.runsMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SaveRun(ctx, rec); err != nil {
		s.logger.Warn("persisting run failed", zap.String("run_id", rec.ID), zap.Error(err))
	}
}

type runResponse struct {
	ID         string                       `json:"id"`
	Status     string                       `json:"status"`
	Source     string                       `json:"source"`
	Best       string                       `json:"best"`
	BestResult *optimize.EvaluationResult   `json:"best_result,omitempty"`
	BestTotal  int                          `json:"best_total,omitempty"`
	Iterations int                          `json:"iterations"`
	Streak     int                          `json:"streak"`
	Error      string                       `json:"error,omitempty"`
	StartTime  time.Time                    `json:"start_time"`
	EndTime    *time.Time                   `json:"end_time,omitempty"`
	Snapshots  []hillclimb.Snapshot         `json:"snapshots,omitempty"`
	Summary    *hillclimb.TrajectorySummary `json:"summary,omitempty"`
}

// handleGetRun returns a run's status, snapshots so far, and trajectory
// summary. Runs from before a restart are served from the store without
// snapshots.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.RLock()
	state, ok := s.runs[id]
	var resp runResponse
	if ok {
		resp = runResponse{
			ID:         state.ID,
			Status:     state.Status,
			Source:     state.Source,
			Best:       state.Best.String(),
			BestResult: state.BestResult,
			Iterations: state.Iterations,
			Streak:     state.Streak,
			Error:      state.Err,
			StartTime:  state.StartTime,
			EndTime:    state.EndTime,
			Snapshots:  append([]hillclimb.Snapshot(nil), state.Snapshots...),
		}
		if state.BestResult != nil {
			resp.BestTotal = state.BestResult.Total()
		}
	}
	s.runsMu.RUnlock()

	if !ok {
		rec, err := s.store.GetRun(r.Context(), id)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			s.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		resp = runResponse{
			ID:         rec.ID,
			Status:     rec.Status,
			Source:     rec.Source,
			Best:       rec.Best,
			BestTotal:  rec.BestTotal,
			Iterations: rec.Iterations,
			Streak:     rec.Streak,
			Error:      rec.Error,
			StartTime:  rec.StartedAt,
			EndTime:    rec.FinishedAt,
		}
	}

	if len(resp.Snapshots) > 0 {
		summary := hillclimb.Summarize(resp.Snapshots)
		resp.Summary = &summary
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleCancelRun requests cooperative cancellation of a running
// optimization. The run ends at its next iteration boundary with the best
// state so far retained.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.Lock()
	state, ok := s.runs[id]
	if !ok {
		s.runsMu.Unlock()
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		status := state.Status
		s.runsMu.Unlock()
		s.respondError(w, http.StatusConflict, "cannot cancel run with status: "+status)
		return
	}
	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	s.runsMu.Unlock()

	s.logger.Info("run cancellation requested", zap.String("run_id", id))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	inputs, err := s.store.RecentInputs(r.Context(), store.MaxHistoryItems)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if inputs == nil {
		inputs = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"inputs": inputs})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if settings == nil {
		settings = &store.Settings{
			Dimensions:    s.cfg.DefaultedDimensions(),
			MaxIterations: s.cfg.Optimization.MaxIterations,
			Patience:      s.cfg.Optimization.Patience,
			Model:         s.cfg.LLM.Model,
		}
	}
	s.respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings store.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validateSettings(settings); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

// validateSettings applies the same constraints the loop enforces, so bad
// settings are rejected when saved rather than at run time.
func validateSettings(settings store.Settings) error {
	if len(settings.Dimensions) == 0 {
		return optimize.NewConfigurationError("at least one dimension is required")
	}
	seen := make(map[string]struct{}, len(settings.Dimensions))
	for _, d := range settings.Dimensions {
		if d == "" {
			return optimize.NewConfigurationError("dimension names must not be empty")
		}
		if _, dup := seen[d]; dup {
			return optimize.NewConfigurationErrorf("duplicate dimension %q", d)
		}
		seen[d] = struct{}{}
	}
	if settings.MaxIterations < 1 {
		return optimize.NewConfigurationErrorf("max iterations must be >= 1, got %d", settings.MaxIterations)
	}
	if settings.Patience < 1 {
		return optimize.NewConfigurationErrorf("patience must be >= 1, got %d", settings.Patience)
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Error("request error",
		zap.Int("status", status),
		zap.String("message", message),
	)
	s.respondJSON(w, status, map[string]string{"error": message})
}

// Close cancels all running optimizations.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	for _, state := range s.runs {
		if state.CancelFunc != nil {
			state.CancelFunc()
		}
	}
	return nil
}
