package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/contracts"
)

func TestRecorder_OnDay(t *testing.T) {
	r := NewRecorder()
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	r.OnDay(contracts.EquityPoint{Date: d, Equity: 990, Cash: 400, Drawdown: 0.01, State: contracts.RunRunning})
	r.OnDay(contracts.EquityPoint{Date: d.AddDate(0, 0, 1), Equity: 970, Cash: 400, Drawdown: 0.03, State: contracts.RunHalted})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.days))
	assert.Equal(t, 970.0, testutil.ToFloat64(r.equity))
	assert.Equal(t, 0.03, testutil.ToFloat64(r.drawdown))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.halted))
	assert.Equal(t, float64(d.AddDate(0, 0, 1).Unix()), testutil.ToFloat64(r.simDate))
}

func TestRecorder_CountsByReason(t *testing.T) {
	r := NewRecorder()

	r.OnTrade(contracts.TradeRecord{CloseReason: contracts.ReasonStopLoss, Sector: contracts.SectorHealthcare, Return: -0.17})
	r.OnTrade(contracts.TradeRecord{CloseReason: contracts.ReasonProfitTarget, Sector: contracts.SectorTechnology, Return: 0.1})
	r.OnTrade(contracts.TradeRecord{CloseReason: contracts.ReasonStopLoss, Sector: contracts.SectorTechnology, Return: -0.15})
	r.OnRejection(contracts.Rejection{Reason: contracts.RejectHalted})
	r.OnExclusion(contracts.Exclusion{Reason: "insufficient_data"})
	r.OnExclusion(contracts.Exclusion{Reason: "insufficient_data"})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.trades.WithLabelValues(string(contracts.ReasonStopLoss))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trades.WithLabelValues(string(contracts.ReasonProfitTarget))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues(contracts.RejectHalted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.exclusions.WithLabelValues("insufficient_data")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(OutcomeCompleted, 1500*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `fvgsim_runs_total{outcome="completed"} 1`))
	assert.Contains(t, body, "fvgsim_run_duration_seconds_count 1")
}
