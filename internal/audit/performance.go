package audit

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/risk"
	"github.com/wonny/fvgsim/pkg/logger"
)

const (
	tradingDaysPerYear = 252

	// DefaultRiskFreeRate 연 무위험 수익률
	DefaultRiskFreeRate = 0.03
)

// Analyzer computes summary statistics of a finished run. It is pure: the
// same curve, trades and benchmark always give the same report.
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	risk         *risk.Engine
	riskFreeRate float64
	bootstrap    *risk.BootstrapConfig
	logger       *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(engine *risk.Engine, log *logger.Logger) *Analyzer {
	return &Analyzer{
		risk:         engine,
		riskFreeRate: DefaultRiskFreeRate,
		logger:       log,
	}
}

// WithRiskFreeRate overrides the annual risk-free rate used by Sharpe/Sortino
func (a *Analyzer) WithRiskFreeRate(rate float64) *Analyzer {
	a.riskFreeRate = rate
	return a
}

// WithBootstrap enables the resampled holding-period distribution
func (a *Analyzer) WithBootstrap(cfg risk.BootstrapConfig) *Analyzer {
	a.bootstrap = &cfg
	return a
}

// PerformanceReport represents performance analysis report
type PerformanceReport struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Days        int       `json:"days"`
	StartEquity float64   `json:"start_equity"`
	EndEquity   float64   `json:"end_equity"`

	// 수익률
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`

	// 리스크 지표
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	Calmar      float64 `json:"calmar"`
	MaxDrawdown float64 `json:"max_drawdown"` // 양수 (0.2 = 20%)
	VaR95       float64 `json:"var_95"`
	CVaR95      float64 `json:"cvar_95"`

	// 트레이딩 지표
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	ProfitFactor   float64 `json:"profit_factor"`
	AvgHoldingDays float64 `json:"avg_holding_days"`

	// 비교
	Benchmark *BenchmarkComparison `json:"benchmark,omitempty"`

	Bootstrap *risk.BootstrapResult `json:"bootstrap,omitempty"`

	// 표본이 없어 지표가 0으로 채워진 경우
	Degenerate bool `json:"degenerate"`
}

// BenchmarkComparison compares the run against a benchmark close series
type BenchmarkComparison struct {
	Ticker string  `json:"ticker"`
	Return float64 `json:"return"`
	Excess float64 `json:"excess"` // TotalReturn - Return
	Beta   float64 `json:"beta"`
}

// Analyze builds the report. benchmark may be nil. An empty curve or trade
// log yields zero metrics, never an error.
func (a *Analyzer) Analyze(curve []contracts.EquityPoint, trades []contracts.TradeRecord, benchmark []contracts.PriceBar) *PerformanceReport {
	report := &PerformanceReport{Trades: len(trades)}

	// 트레이딩 지표
	report.WinRate = a.calculateWinRate(trades)
	report.AvgWin, report.AvgLoss = a.calculateAvgWinLoss(trades)
	report.ProfitFactor = a.calculateProfitFactor(trades)
	report.AvgHoldingDays = a.calculateAvgHoldingDays(trades)

	if len(curve) == 0 {
		report.Degenerate = true
		return report
	}

	first, last := curve[0], curve[len(curve)-1]
	report.StartDate = first.Date
	report.EndDate = last.Date
	report.Days = len(curve)
	report.StartEquity = first.Equity
	report.EndEquity = last.Equity

	returns := DailyReturns(curve)
	report.Degenerate = len(returns) == 0

	// 수익률
	if first.Equity > 0 {
		report.TotalReturn = last.Equity/first.Equity - 1
	}
	report.CAGR = a.annualize(report.TotalReturn, len(returns))

	// 리스크 지표
	report.Volatility = a.calculateVolatility(returns)
	report.Sharpe = a.calculateSharpe(report.CAGR, report.Volatility)
	report.Sortino = a.calculateSortino(returns, report.CAGR)
	report.MaxDrawdown = a.calculateMaxDrawdown(curve)
	if report.MaxDrawdown > 0 {
		report.Calmar = report.CAGR / report.MaxDrawdown
	}

	v := a.risk.VaR(returns, 0.95)
	report.VaR95, report.CVaR95 = v.VaR, v.CVaR

	if len(benchmark) > 0 {
		report.Benchmark = a.compareWithBenchmark(curve, returns, benchmark, report.TotalReturn)
	}

	if a.bootstrap != nil {
		res, err := a.risk.Bootstrap(returns, *a.bootstrap)
		if err != nil {
			a.logger.WithError(err).Warn("bootstrap skipped")
		} else {
			report.Bootstrap = res
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"total_return": report.TotalReturn,
		"cagr":         report.CAGR,
		"sharpe":       report.Sharpe,
		"max_drawdown": report.MaxDrawdown,
		"trades":       report.Trades,
		"win_rate":     report.WinRate,
	}).Info("Performance analysis completed")

	return report
}

// DailyReturns converts equity points into simple day-over-day returns
func DailyReturns(curve []contracts.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, curve[i].Equity/prev-1)
	}
	return out
}

// annualize converts return to annualized return
func (a *Analyzer) annualize(totalReturn float64, days int) float64 {
	if days == 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1.0+totalReturn, float64(tradingDaysPerYear)/float64(days)) - 1.0
}

// calculateVolatility calculates annualized volatility
func (a *Analyzer) calculateVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
}

// calculateSharpe calculates Sharpe ratio
func (a *Analyzer) calculateSharpe(annualReturn, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualReturn - a.riskFreeRate) / volatility
}

// calculateSortino uses the downside deviation of daily returns: squared
// negative returns averaged over all N days, positive days counting as zero
func (a *Analyzer) calculateSortino(returns []float64, annualReturn float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sumSq float64
	var count int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}

	downsideVol := math.Sqrt(sumSq/float64(len(returns))) * math.Sqrt(tradingDaysPerYear)
	if downsideVol == 0 {
		return 0
	}
	return (annualReturn - a.riskFreeRate) / downsideVol
}

// calculateMaxDrawdown returns the largest peak-to-trough decline as a
// positive fraction
func (a *Analyzer) calculateMaxDrawdown(curve []contracts.EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// calculateWinRate calculates win rate from trades
func (a *Analyzer) calculateWinRate(trades []contracts.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}

	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// calculateAvgWinLoss calculates average win and loss
func (a *Analyzer) calculateAvgWinLoss(trades []contracts.TradeRecord) (float64, float64) {
	var sumWin, sumLoss float64
	var countWin, countLoss int

	for _, t := range trades {
		if t.PnL > 0 {
			sumWin += t.PnL
			countWin++
		} else if t.PnL < 0 {
			sumLoss += t.PnL
			countLoss++
		}
	}

	avgWin := 0.0
	if countWin > 0 {
		avgWin = sumWin / float64(countWin)
	}
	avgLoss := 0.0
	if countLoss > 0 {
		avgLoss = sumLoss / float64(countLoss)
	}
	return avgWin, avgLoss
}

// calculateProfitFactor is gross profit over gross loss; 0 without losses
func (a *Analyzer) calculateProfitFactor(trades []contracts.TradeRecord) float64 {
	var totalWin, totalLoss float64

	for _, t := range trades {
		if t.PnL > 0 {
			totalWin += t.PnL
		} else if t.PnL < 0 {
			totalLoss += math.Abs(t.PnL)
		}
	}

	if totalLoss == 0 {
		return 0
	}
	return totalWin / totalLoss
}

func (a *Analyzer) calculateAvgHoldingDays(trades []contracts.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	total := 0
	for _, t := range trades {
		total += t.HoldingDays
	}
	return float64(total) / float64(len(trades))
}

// compareWithBenchmark aligns benchmark closes to curve dates. Days where
// either side is missing are skipped.
func (a *Analyzer) compareWithBenchmark(curve []contracts.EquityPoint, returns []float64, benchmark []contracts.PriceBar, totalReturn float64) *BenchmarkComparison {
	closes := make(map[time.Time]float64, len(benchmark))
	for _, b := range benchmark {
		closes[contracts.Day(b.Date)] = b.Close
	}

	cmp := &BenchmarkComparison{Ticker: benchmark[0].Ticker}

	var firstClose, lastClose float64
	var portfolio, market []float64
	prevClose := 0.0
	for i, p := range curve {
		c, ok := closes[contracts.Day(p.Date)]
		if !ok || c <= 0 {
			prevClose = 0
			continue
		}
		if firstClose == 0 {
			firstClose = c
		}
		lastClose = c
		if i > 0 && prevClose > 0 {
			portfolio = append(portfolio, returns[i-1])
			market = append(market, c/prevClose-1)
		}
		prevClose = c
	}

	if firstClose > 0 {
		cmp.Return = lastClose/firstClose - 1
	}
	cmp.Excess = totalReturn - cmp.Return
	cmp.Beta = calculateBeta(portfolio, market)
	return cmp
}

// calculateBeta is Cov(p, m) / Var(m)
func calculateBeta(portfolio, market []float64) float64 {
	if len(market) < 2 {
		return 0
	}
	variance := stat.Variance(market, nil)
	if variance == 0 {
		return 0
	}
	return stat.Covariance(portfolio, market, nil) / variance
}
