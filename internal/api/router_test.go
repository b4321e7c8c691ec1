package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/api/handlers"
	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/metrics"
	"github.com/wonny/fvgsim/pkg/logger"
)

type memoryStore struct {
	runs  map[uuid.UUID]*audit.RunRecord
	order []uuid.UUID
	err   error

	saveCtxErr error // ctx.Err() seen by the last SaveRun
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: make(map[uuid.UUID]*audit.RunRecord)}
}

func (s *memoryStore) SaveRun(ctx context.Context, run *audit.RunRecord) error {
	s.saveCtxErr = ctx.Err()
	if s.err != nil {
		return s.err
	}
	run.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.runs[run.RunID] = run
	s.order = append(s.order, run.RunID)
	return nil
}

func (s *memoryStore) ListRuns(_ context.Context, limit int) ([]audit.RunRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []audit.RunRecord
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.runs[s.order[i]])
	}
	return out, nil
}

func (s *memoryStore) GetRun(_ context.Context, id uuid.UUID) (*audit.RunRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	run, ok := s.runs[id]
	if !ok {
		return nil, audit.ErrRunNotFound
	}
	return run, nil
}

type runnerFunc func(ctx context.Context, req backtest.RunRequest) (*backtest.Result, error)

func (f runnerFunc) Run(ctx context.Context, req backtest.RunRequest) (*backtest.Result, error) {
	return f(ctx, req)
}

func completedRun(_ context.Context, req backtest.RunRequest) (*backtest.Result, error) {
	return &backtest.Result{
		RunID:      uuid.New(),
		StrategyID: "fvg_midcap",
		ConfigHash: "abc",
		From:       req.From,
		To:         req.To,
		Capital:    req.Capital,
		State:      contracts.RunTerminated,
		Report:     &audit.PerformanceReport{TotalReturn: 0.12, MaxDrawdown: 0.05, Trades: 3},
	}, nil
}

func newTestRouter(store handlers.RunStore, runner handlers.Runner) http.Handler {
	log := logger.NewNop()
	return NewRouter(handlers.NewRunHandler(store, runner, log), metrics.NewRecorder().Handler(), log)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(newMemoryStore(), nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestRouter(newMemoryStore(), nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateThenGetRun(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store, runnerFunc(completedRun))

	rec := do(t, router, http.MethodPost, "/api/runs",
		`{"from":"2024-01-01","to":"2024-03-29","capital":1000000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created handlers.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "2024-01-01", created.From)
	assert.Equal(t, 3, created.Trades)
	assert.Equal(t, string(contracts.RunTerminated), created.State)

	rec = do(t, router, http.MethodGet, "/api/runs/"+created.RunID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got audit.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.RunID, got.RunID)
	assert.Equal(t, 1_000_000.0, got.Capital)

	rec = do(t, router, http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs  []handlers.RunSummary `json:"runs"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

func TestCreateRun_BadInput(t *testing.T) {
	invalid := runnerFunc(func(context.Context, backtest.RunRequest) (*backtest.Result, error) {
		return nil, backtest.ErrInvalidRequest
	})

	tests := []struct {
		name   string
		runner handlers.Runner
		body   string
		want   int
	}{
		{"malformed json", runnerFunc(completedRun), `{`, http.StatusBadRequest},
		{"bad date", runnerFunc(completedRun), `{"from":"01/02/2024","to":"2024-03-29","capital":1}`, http.StatusBadRequest},
		{"rejected request", invalid, `{"from":"2024-03-29","to":"2024-01-01","capital":1}`, http.StatusBadRequest},
		{"no runner", nil, `{"from":"2024-01-01","to":"2024-03-29","capital":1}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(newMemoryStore(), tt.runner), http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCreateRun_AbortReturnsStateDump(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	aborting := runnerFunc(func(ctx context.Context, req backtest.RunRequest) (*backtest.Result, error) {
		res, _ := completedRun(ctx, req)
		return res, &backtest.RunAbort{
			Date:  day,
			Err:   contracts.ErrPointInTimeViolation,
			State: backtest.StateDump{Date: day, Cash: 500, Equity: 1000},
		}
	})
	store := newMemoryStore()

	rec := do(t, newTestRouter(store, aborting), http.MethodPost, "/api/runs",
		`{"from":"2024-01-01","to":"2024-03-29","capital":1000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state"`)
	assert.Empty(t, store.runs, "aborted runs are not persisted")
}

func TestCreateRun_TruncatedRunIsSavedAfterDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	truncated := runnerFunc(func(_ context.Context, req backtest.RunRequest) (*backtest.Result, error) {
		res, _ := completedRun(ctx, req)
		res.State = contracts.RunRunning
		res.Truncated = true
		cancel() // 클라이언트 연결 종료
		return res, context.Canceled
	})
	store := newMemoryStore()

	req := httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"from":"2024-01-01","to":"2024-03-29","capital":1000}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	newTestRouter(store, truncated).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.runs, 1)
	assert.NoError(t, store.saveCtxErr)
	for _, run := range store.runs {
		assert.True(t, run.Truncated)
	}
}

func TestGetRun_Errors(t *testing.T) {
	router := newTestRouter(newMemoryStore(), nil)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/runs/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/runs/"+uuid.NewString(), "").Code)

	broken := newMemoryStore()
	broken.err = errors.New("connection refused")
	assert.Equal(t, http.StatusInternalServerError,
		do(t, newTestRouter(broken, nil), http.MethodGet, "/api/runs", "").Code)
}

func TestListRuns_BadLimit(t *testing.T) {
	rec := do(t, newTestRouter(newMemoryStore(), nil), http.MethodGet, "/api/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
