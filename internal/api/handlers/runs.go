package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// RunStore persists and reads simulation runs
type RunStore interface {
	SaveRun(ctx context.Context, run *audit.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]audit.RunRecord, error)
	GetRun(ctx context.Context, id uuid.UUID) (*audit.RunRecord, error)
}

// Runner executes a simulation. *backtest.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, req backtest.RunRequest) (*backtest.Result, error)
}

// RunHandler serves persisted backtest runs and starts new ones
// ⭐ SSOT: 백테스트 결과 API 핸들러는 이 구조체에서만
type RunHandler struct {
	store  RunStore
	runner Runner // nil: POST 비활성
	logger *logger.Logger
}

// NewRunHandler creates a new run handler. runner may be nil for a read-only API.
func NewRunHandler(store RunStore, runner Runner, log *logger.Logger) *RunHandler {
	return &RunHandler{
		store:  store,
		runner: runner,
		logger: log,
	}
}

// RunSummary is one entry of the run list (no curve, no trades)
type RunSummary struct {
	RunID       uuid.UUID `json:"run_id"`
	StrategyID  string    `json:"strategy_id"`
	ConfigHash  string    `json:"config_hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Capital     float64   `json:"capital"`
	State       string    `json:"state"`
	Truncated   bool      `json:"truncated"`
	TotalReturn float64   `json:"total_return"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Trades      int       `json:"trades"`
	CreatedAt   time.Time `json:"created_at"`
}

func summarize(run audit.RunRecord) RunSummary {
	s := RunSummary{
		RunID:      run.RunID,
		StrategyID: run.StrategyID,
		ConfigHash: run.ConfigHash,
		From:       run.From.Format(contracts.DateLayout),
		To:         run.To.Format(contracts.DateLayout),
		Capital:    run.Capital,
		State:      string(run.State),
		Truncated:  run.Truncated,
		CreatedAt:  run.CreatedAt,
	}
	if run.Report != nil {
		s.TotalReturn = run.Report.TotalReturn
		s.MaxDrawdown = run.Report.MaxDrawdown
		s.Trades = run.Report.Trades
	}
	return s
}

// ListRuns returns the most recent runs
// GET /api/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, summarize(run))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  out,
		"count": len(out),
	})
}

// GetRun returns one run with its report, equity curve and trades
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, audit.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", id.String()).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// CreateRunRequest starts a simulation
type CreateRunRequest struct {
	From      string  `json:"from"` // YYYY-MM-DD
	To        string  `json:"to"`   // YYYY-MM-DD
	Capital   float64 `json:"capital"`
	Benchmark string  `json:"benchmark,omitempty"`
}

// CreateRun runs a backtest synchronously and persists the result. A run
// aborted by a fatal error is not persisted; the state dump is returned.
// POST /api/runs
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "backtest runner is not configured")
		return
	}

	var body CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	from, err := time.Parse(contracts.DateLayout, body.From)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid 'from' date format (expected YYYY-MM-DD)")
		return
	}
	to, err := time.Parse(contracts.DateLayout, body.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid 'to' date format (expected YYYY-MM-DD)")
		return
	}

	res, err := h.runner.Run(r.Context(), backtest.RunRequest{
		From:      from,
		To:        to,
		Capital:   body.Capital,
		Benchmark: body.Benchmark,
	})

	var abort *backtest.RunAbort
	switch {
	case errors.Is(err, backtest.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &abort):
		h.logger.WithError(err).Warn("Backtest aborted")
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": abort.Error(),
			"state": abort.State,
		})
		return
	case err != nil && res == nil:
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "backtest failed")
		return
	}
	// err != nil && res != nil: 취소로 잘린 결과도 저장.
	// 요청 컨텍스트가 이미 취소됐을 수 있으므로 취소와 분리해서 저장한다.

	record := res.RunRecord()
	if err := h.store.SaveRun(context.WithoutCancel(r.Context()), record); err != nil {
		h.logger.WithError(err).Error("Failed to save run")
		respondError(w, http.StatusInternalServerError, "failed to save run")
		return
	}

	respondJSON(w, http.StatusCreated, summarize(*record))
}
