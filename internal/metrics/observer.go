package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/fvgsim/internal/contracts"
)

const namespace = "fvgsim"

// Recorder exports backtest progress as Prometheus metrics. It satisfies
// backtest.Observer, so a running simulation updates it day by day.
// ⭐ SSOT: 시뮬레이션 메트릭 정의는 여기서만
type Recorder struct {
	registry *prometheus.Registry

	days       prometheus.Counter
	equity     prometheus.Gauge
	cash       prometheus.Gauge
	drawdown   prometheus.Gauge
	halted     prometheus.Gauge
	simDate    prometheus.Gauge
	trades     *prometheus.CounterVec
	tradePnL   *prometheus.HistogramVec
	rejections *prometheus.CounterVec
	exclusions *prometheus.CounterVec
	runs       *prometheus.CounterVec
	runTime    prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		days: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_days_total",
			Help:      "Trading days stepped by the simulator",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_equity",
			Help:      "Portfolio equity at the last simulated close",
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_cash",
			Help:      "Uninvested cash at the last simulated close",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_drawdown_ratio",
			Help:      "Drawdown from the running equity peak (0.0 to 1.0)",
		}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_halted",
			Help:      "1 while new entries are halted by the drawdown limit",
		}),
		simDate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_date_seconds",
			Help:      "Unix time of the last simulated trading day",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Closed round trips by close reason",
		}, []string{"reason"}),
		tradePnL: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_return_ratio",
			Help:      "Net return of closed round trips",
			Buckets:   []float64{-0.3, -0.15, -0.1, -0.05, 0, 0.05, 0.1, 0.2, 0.4},
		}, []string{"sector"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Signals that could not be executed, by reason",
		}, []string{"reason"}),
		exclusions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exclusions_total",
			Help:      "Instruments excluded from scoring, by reason",
		}, []string{"reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished backtest runs by outcome",
		}, []string{"outcome"}),
		runTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of backtest runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	r.registry.MustRegister(
		r.days, r.equity, r.cash, r.drawdown, r.halted, r.simDate,
		r.trades, r.tradePnL, r.rejections, r.exclusions,
		r.runs, r.runTime,
	)
	return r
}

// OnDay records the end-of-day portfolio
func (r *Recorder) OnDay(p contracts.EquityPoint) {
	r.days.Inc()
	r.equity.Set(p.Equity)
	r.cash.Set(p.Cash)
	r.drawdown.Set(p.Drawdown)
	r.simDate.Set(float64(p.Date.Unix()))
	if p.State == contracts.RunHalted {
		r.halted.Set(1)
	} else {
		r.halted.Set(0)
	}
}

// OnTrade records a closed round trip
func (r *Recorder) OnTrade(t contracts.TradeRecord) {
	r.trades.WithLabelValues(string(t.CloseReason)).Inc()
	r.tradePnL.WithLabelValues(string(t.Sector)).Observe(t.Return)
}

// OnRejection counts an unexecuted signal
func (r *Recorder) OnRejection(rej contracts.Rejection) {
	r.rejections.WithLabelValues(rej.Reason).Inc()
}

// OnExclusion counts an excluded instrument
func (r *Recorder) OnExclusion(ex contracts.Exclusion) {
	r.exclusions.WithLabelValues(ex.Reason).Inc()
}

// Run outcomes for ObserveRun
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
)

// ObserveRun records a finished run
func (r *Recorder) ObserveRun(outcome string, elapsed time.Duration) {
	r.runs.WithLabelValues(outcome).Inc()
	r.runTime.Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry (tests, extra collectors)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
