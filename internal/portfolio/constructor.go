package portfolio

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

const tradingDaysPerYear = 252

// Order is a sized fill ready to be applied to the portfolio
type Order struct {
	Ticker     string
	Sector     contracts.Sector
	Date       time.Time
	Fraction   float64 // 자기자본 대비 비중
	Price      float64 // 슬리피지 반영 체결가
	Shares     float64
	Notional   float64
	Commission float64
}

// Constructor sizes entries by conviction tier within the caps and prices
// next-open fills with costs
// ⭐ SSOT: 포지션 사이징/체결가 계산은 여기서만
type Constructor struct {
	config      strategyconfig.Portfolio
	costs       strategyconfig.Costs
	stopLoss    float64
	constraints Constraints
	logger      *logger.Logger
}

// NewConstructor creates a new portfolio constructor
func NewConstructor(cfg strategyconfig.Config, log *logger.Logger) *Constructor {
	return &Constructor{
		config:      cfg.Portfolio,
		costs:       cfg.Costs,
		stopLoss:    cfg.Signals.StopLossFraction,
		constraints: NewConstraints(cfg.Portfolio),
		logger:      log,
	}
}

// Constraints returns the caps the constructor sizes against
func (c *Constructor) Constraints() Constraints {
	return c.constraints
}

// TargetFraction picks the conviction tier for gap and momentum, scales it
// down toward the volatility target when one is set, and clamps to the
// position cap. bars are the trailing bars up to the signal date.
func (c *Constructor) TargetFraction(gap, momentum float64, bars []contracts.PriceBar) float64 {
	w := c.config.TierFor(gap, momentum).Fraction

	if c.config.VolatilityTarget > 0 {
		if vol := RealizedVolatility(bars, c.config.VolatilityWindow); vol > 0 {
			w *= math.Min(1, c.config.VolatilityTarget/vol)
		}
	}
	return c.constraints.ClampWeight(w)
}

// SizeEntry sizes an ENTER signal against the current state and the fill
// open. It returns the rejection reason when the entry cannot be placed.
func (c *Constructor) SizeEntry(state *contracts.PortfolioState, sector contracts.Sector, sig *contracts.Signal, date time.Time, open float64, bars []contracts.PriceBar) (Order, string) {
	if _, ok := state.Positions[sig.Ticker]; ok {
		return Order{}, contracts.RejectAlreadyOpen
	}

	w := c.TargetFraction(sig.Gap, sig.Momentum, bars)
	if w <= 0 {
		return Order{}, contracts.RejectZeroSize
	}
	if !c.constraints.SectorRoom(state, sector, w) {
		return Order{}, contracts.RejectSectorCap
	}

	// 시가 기준 평가금액 (당일 청산 반영 후)
	equity := state.Cash + state.HoldingsValue()
	price := c.BuyPrice(open)
	notional := w * equity
	commission := notional * c.costs.CommissionRate
	if notional+commission > state.Cash+capEpsilon {
		return Order{}, contracts.RejectInsufficientCash
	}

	return Order{
		Ticker:     sig.Ticker,
		Sector:     sector,
		Date:       contracts.Day(date),
		Fraction:   w,
		Price:      price,
		Shares:     notional / price,
		Notional:   notional,
		Commission: commission,
	}, ""
}

// Open applies a sized order. The stop is fixed at entry.
func (c *Constructor) Open(state *contracts.PortfolioState, o Order, targetGap float64) (*contracts.Position, error) {
	if _, ok := state.Positions[o.Ticker]; ok {
		return nil, invariantf("%s already has an open position", o.Ticker)
	}
	state.Cash -= o.Notional + o.Commission

	p := &contracts.Position{
		Ticker:     o.Ticker,
		Sector:     o.Sector,
		EntryDate:  o.Date,
		EntryPrice: o.Price,
		Shares:     o.Shares,
		Size:       o.Fraction,
		StopPrice:  o.Price * (1 - c.stopLoss),
		TargetGap:  targetGap,
		Status:     contracts.PositionOpen,
		LastClose:  o.Price,
	}
	state.Positions[o.Ticker] = p

	c.logger.WithFields(map[string]interface{}{
		"ticker": o.Ticker,
		"date":   o.Date.Format(contracts.DateLayout),
		"price":  o.Price,
		"shares": o.Shares,
		"size":   o.Fraction,
	}).Info("Position opened")

	return p, nil
}

// Close sells the whole position at the open and returns the proceeds net
// of commission
func (c *Constructor) Close(state *contracts.PortfolioState, ticker string, date time.Time, open float64, reason contracts.Reason) (*contracts.Position, float64, error) {
	p, ok := state.Positions[ticker]
	if !ok {
		return nil, 0, invariantf("%s has no open position to close", ticker)
	}

	price := c.SellPrice(open)
	if err := p.Close(contracts.Day(date), price, reason); err != nil {
		return nil, 0, err
	}

	gross := p.Shares * price
	commission := gross * c.costs.CommissionRate
	state.Cash += gross - commission
	delete(state.Positions, ticker)

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"date":   p.ExitDate.Format(contracts.DateLayout),
		"price":  price,
		"reason": reason,
	}).Info("Position closed")

	return p, commission, nil
}

// BuyPrice applies slippage against the buyer
func (c *Constructor) BuyPrice(open float64) float64 {
	return open * (1 + c.costs.SlippageRate)
}

// SellPrice applies slippage against the seller
func (c *Constructor) SellPrice(open float64) float64 {
	return open * (1 - c.costs.SlippageRate)
}

// RealizedVolatility is the annualized standard deviation of daily log
// returns over the last window bars. It is 0 when fewer than two returns exist.
func RealizedVolatility(bars []contracts.PriceBar, window int) float64 {
	if window > 0 && len(bars) > window+1 {
		bars = bars[len(bars)-window-1:]
	}
	if len(bars) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close <= 0 || bars[i].Close <= 0 {
			continue
		}
		returns = append(returns, math.Log(bars[i].Close/bars[i-1].Close))
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
}

func invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{contracts.ErrInvariantViolation}, args...)...)
}
