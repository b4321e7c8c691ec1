package backtest

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/portfolio"
	"github.com/wonny/fvgsim/internal/risk"
	"github.com/wonny/fvgsim/internal/s0_data"
	"github.com/wonny/fvgsim/internal/s1_universe"
	"github.com/wonny/fvgsim/internal/s2_signals"
	"github.com/wonny/fvgsim/internal/scheduler"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

// identityTolerance is relative to equity
const identityTolerance = 1e-6

// entryMeta keeps what the trade log needs but the position does not carry
type entryMeta struct {
	signalDate time.Time
	commission float64
}

// Simulator is the clock-driven portfolio state machine. Step must be called
// with strictly increasing trading days; it is not safe for concurrent use.
// ⭐ SSOT: 일별 시뮬레이션 순서는 여기서만
type Simulator struct {
	cfg         strategyconfig.Config
	store       *s0_data.Store
	calendar    *scheduler.Calendar
	universe    *s1_universe.Builder
	scores      *s2_signals.Builder
	generator   contracts.SignalGenerator
	constructor *portfolio.Constructor
	guard       risk.DrawdownGuard
	observer    Observer
	logger      *logger.Logger

	state     *contracts.PortfolioState
	runState  contracts.RunState
	pending   map[string]contracts.Signal // 다음 시가에 체결될 시그널
	estimates map[string]contracts.FairValueEstimate
	momentum  map[string]contracts.MomentumScore
	entries   map[string]entryMeta

	ledger     Ledger
	curve      []contracts.EquityPoint
	trades     []contracts.TradeRecord
	commission float64
}

// NewSimulator wires one run's components around store
func NewSimulator(
	cfg strategyconfig.Config,
	store *s0_data.Store,
	calendar *scheduler.Calendar,
	fairValue contracts.FairValueEngine,
	momentum contracts.MomentumEngine,
	capital float64,
	observer Observer,
	log *logger.Logger,
) *Simulator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Simulator{
		cfg:         cfg,
		store:       store,
		calendar:    calendar,
		universe:    s1_universe.NewBuilder(cfg.Universe),
		scores:      s2_signals.NewBuilder(fairValue, momentum, store, cfg, log),
		generator:   s2_signals.NewGenerator(cfg.Signals),
		constructor: portfolio.NewConstructor(cfg, log),
		guard:       risk.NewDrawdownGuard(cfg.Risk.MaxPortfolioDrawdown, cfg.Risk.DrawdownRecoveryThreshold),
		observer:    observer,
		logger:      log,
		state:       contracts.NewPortfolioState(capital),
		runState:    contracts.RunRunning,
		pending:     make(map[string]contracts.Signal),
		estimates:   make(map[string]contracts.FairValueEstimate),
		momentum:    make(map[string]contracts.MomentumScore),
		entries:     make(map[string]entryMeta),
	}
}

// Step advances the simulation by one trading day:
//  1. admit fundamentals published on date
//  2. fill queued exits, then queued entries, at date's open
//  3. mark to market and check the portfolio invariants
//  4. update the drawdown state
//  5. rebuild the universe and recompute scores that are due
//  6. generate signals on date's close, queued for the next open
//
// Any returned error is fatal for the run.
func (s *Simulator) Step(ctx context.Context, date time.Time) error {
	date = contracts.Day(date)

	changed, err := s.store.Advance(date)
	if err != nil {
		return err
	}
	s.state.Date = date

	if err := s.executeExits(date); err != nil {
		return err
	}
	if err := s.executeEntries(date); err != nil {
		return err
	}
	if err := s.markToMarket(date); err != nil {
		return err
	}
	s.updateRunState(date)

	point := contracts.EquityPoint{
		Date:     date,
		Equity:   s.state.Equity,
		Cash:     s.state.Cash,
		Holdings: s.state.Equity - s.state.Cash,
		Drawdown: s.state.Drawdown,
		State:    s.runState,
	}
	s.curve = append(s.curve, point)
	s.observer.OnDay(point)

	u := s.universe.Build(date, s.store.Instruments(), s.store)
	review := s.calendar.IsReview(date)
	s.recordUniverseExclusions(u, review)

	candidates := s.candidates(u)
	if err := s.recompute(ctx, date, candidates, changed, review); err != nil {
		return err
	}
	s.generateSignals(date, u, candidates, review)
	return nil
}

// executeExits fills queued exits in ascending ticker order. An exit whose
// instrument has no valid bar stays queued for the next day.
func (s *Simulator) executeExits(date time.Time) error {
	for _, t := range sortedKeys(s.pending) {
		sig := s.pending[t]
		if sig.Kind != contracts.SignalExit {
			continue
		}

		bar, ok := s.store.BarOn(t, date)
		if !ok {
			s.logger.WithFields(map[string]interface{}{
				"ticker": t,
				"date":   date.Format(contracts.DateLayout),
				"reason": sig.Reason,
			}).Info("Exit carried over: no valid bar")
			continue
		}

		pos, commission, err := s.constructor.Close(s.state, t, date, bar.Open, sig.Reason)
		if err != nil {
			return err
		}
		delete(s.pending, t)
		s.recordTrade(pos, commission)
	}
	return nil
}

// executeEntries fills queued entries in ascending ticker order. Entries
// are never carried: a rejected entry is logged and dropped.
func (s *Simulator) executeEntries(date time.Time) error {
	for _, t := range sortedKeys(s.pending) {
		sig := s.pending[t]
		if sig.Kind != contracts.SignalEnter {
			continue
		}
		delete(s.pending, t)

		reason, err := s.enter(date, sig)
		if err != nil {
			return err
		}
		if reason != "" {
			s.reject(t, date, reason)
		}
	}
	return nil
}

func (s *Simulator) enter(date time.Time, sig contracts.Signal) (string, error) {
	if s.runState == contracts.RunHalted {
		return contracts.RejectHalted, nil
	}

	bar, ok := s.store.BarOn(sig.Ticker, date)
	if !ok {
		return contracts.RejectNoBar, nil
	}

	inst, ok := s.store.Instrument(sig.Ticker)
	if !ok {
		return "", invariantf("entry for unknown instrument %s", sig.Ticker)
	}

	// 변동성은 시그널 발생일까지의 데이터로만 계산
	history, err := s.store.Bars(sig.Ticker, sig.Date, s.cfg.Portfolio.VolatilityWindow+1)
	if err != nil {
		return "", err
	}

	order, reason := s.constructor.SizeEntry(s.state, inst.Sector, &sig, date, bar.Open, history)
	if reason != "" {
		return reason, nil
	}
	if _, err := s.constructor.Open(s.state, order, s.cfg.Signals.ExitGapThreshold); err != nil {
		return "", err
	}

	s.entries[sig.Ticker] = entryMeta{signalDate: sig.Date, commission: order.Commission}
	s.commission += order.Commission
	return "", nil
}

func (s *Simulator) reject(ticker string, date time.Time, reason string) {
	r := contracts.Rejection{Ticker: ticker, Date: date, Reason: reason}
	s.ledger.Rejections = append(s.ledger.Rejections, r)
	s.observer.OnRejection(r)

	s.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"date":   date.Format(contracts.DateLayout),
		"reason": reason,
	}).Info("Entry rejected")
}

func (s *Simulator) recordTrade(pos *contracts.Position, exitCommission float64) {
	meta := s.entries[pos.Ticker]
	delete(s.entries, pos.Ticker)
	s.commission += exitCommission

	pnl := (pos.ExitPrice-pos.EntryPrice)*pos.Shares - meta.commission - exitCommission
	trade := contracts.TradeRecord{
		Ticker:      pos.Ticker,
		Sector:      pos.Sector,
		SignalDate:  meta.signalDate,
		EntryDate:   pos.EntryDate,
		ExitDate:    pos.ExitDate,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   pos.ExitPrice,
		Size:        pos.Size,
		Shares:      pos.Shares,
		PnL:         pnl,
		HoldingDays: pos.HoldingDays,
		CloseReason: pos.CloseReason,
	}
	if cost := pos.EntryPrice * pos.Shares; cost > 0 {
		trade.Return = pnl / cost
	}

	s.trades = append(s.trades, trade)
	s.observer.OnTrade(trade)
}

// markToMarket values open positions at date's close. A position without a
// valid bar keeps its last close.
func (s *Simulator) markToMarket(date time.Time) error {
	for _, t := range s.state.Tickers() {
		p := s.state.Positions[t]
		if bar, ok := s.store.BarOn(t, date); ok {
			p.LastClose = bar.Close
		}
		if p.EntryDate.Before(date) {
			p.HoldingDays++
		}
	}
	s.state.Revalue()

	eps := identityTolerance * math.Max(1, s.state.Equity)
	if err := s.state.CheckIdentity(eps); err != nil {
		return err
	}
	return s.constructor.Constraints().Check(s.state)
}

func (s *Simulator) updateRunState(date time.Time) {
	next := s.guard.Next(s.runState, s.state.Drawdown)
	if next == s.runState {
		return
	}

	log := s.logger.WithFields(map[string]interface{}{
		"date":     date.Format(contracts.DateLayout),
		"drawdown": s.state.Drawdown,
		"from":     s.runState,
		"to":       next,
	})
	if next == contracts.RunHalted {
		log.Warn("Drawdown limit reached, new entries halted")
	} else {
		log.Info("Drawdown recovered, new entries resumed")
	}
	s.runState = next
}

// recordUniverseExclusions logs rejected-bar exclusions every day and the
// remaining reasons only on review dates
func (s *Simulator) recordUniverseExclusions(u *contracts.Universe, review bool) {
	for _, t := range sortedKeys(u.Excluded) {
		reason := u.Excluded[t]
		if reason == s1_universe.ExcludeBenchmark {
			continue
		}
		if reason != s1_universe.ExcludeDataIntegrity && !review {
			continue
		}

		ex := contracts.Exclusion{Ticker: t, Date: u.Date, Reason: reason}
		if issue, ok := s.store.Rejection(t, u.Date); ok {
			ex.Detail = issue.Error()
		}
		s.addExclusion(ex)
	}
}

func (s *Simulator) addExclusion(ex contracts.Exclusion) {
	s.ledger.Exclusions = append(s.ledger.Exclusions, ex)
	s.observer.OnExclusion(ex)

	s.logger.WithFields(map[string]interface{}{
		"ticker": ex.Ticker,
		"date":   ex.Date.Format(contracts.DateLayout),
		"reason": ex.Reason,
	}).Debug("Instrument excluded")
}

// candidates is the universe plus every open position, ascending
func (s *Simulator) candidates(u *contracts.Universe) []string {
	set := make(map[string]bool, len(u.Tickers)+len(s.state.Positions))
	for _, t := range u.Tickers {
		set[t] = true
	}
	for t := range s.state.Positions {
		set[t] = true
	}
	return sortedKeys(set)
}

// recompute refreshes the scores due on date. A review date recomputes fair
// value and momentum for every candidate; newly published fundamentals
// recompute both for the affected tickers; a momentum-update date refreshes
// momentum only. Everything else keeps the last stamped scores.
func (s *Simulator) recompute(ctx context.Context, date time.Time, candidates, changed []string, review bool) error {
	want := make(map[string]*s2_signals.Request)
	request := func(t string) *s2_signals.Request {
		r, ok := want[t]
		if !ok {
			r = &s2_signals.Request{Ticker: t}
			want[t] = r
		}
		return r
	}

	if review {
		keep := make(map[string]bool, len(candidates))
		for _, t := range candidates {
			keep[t] = true
			r := request(t)
			r.FairValue, r.Momentum = true, true
		}
		// 후보에서 빠진 종목의 과거 추정치는 폐기
		for t := range s.estimates {
			if !keep[t] {
				delete(s.estimates, t)
			}
		}
		for t := range s.momentum {
			if !keep[t] {
				delete(s.momentum, t)
			}
		}
	} else {
		inScope := make(map[string]bool, len(candidates))
		for _, t := range candidates {
			inScope[t] = true
		}
		for _, t := range changed {
			if _, ok := s.estimates[t]; ok || inScope[t] {
				r := request(t)
				r.FairValue, r.Momentum = true, true
			}
		}
		if s.calendar.IsMomentumUpdate(date) {
			for _, t := range candidates {
				request(t).Momentum = true
			}
		}
	}

	if len(want) == 0 {
		return nil
	}

	reqs := make([]s2_signals.Request, 0, len(want))
	for _, t := range sortedKeys(want) {
		reqs = append(reqs, *want[t])
	}

	results, err := s.scores.Build(ctx, date, reqs)
	if err != nil {
		return err
	}

	for i, res := range results {
		req := reqs[i]
		if req.FairValue {
			switch {
			case res.FairValue != nil:
				s.estimates[res.Ticker] = *res.FairValue
				s.ledger.Estimates = append(s.ledger.Estimates, *res.FairValue)
			case res.FairValueErr != nil:
				delete(s.estimates, res.Ticker)
				s.addExclusion(exclusionFor(res.Ticker, date, res.FairValueErr))
			}
		}
		if req.Momentum {
			switch {
			case res.Momentum != nil:
				s.momentum[res.Ticker] = *res.Momentum
				s.ledger.Momentum = append(s.ledger.Momentum, *res.Momentum)
			case res.MomentumErr != nil:
				delete(s.momentum, res.Ticker)
				s.addExclusion(exclusionFor(res.Ticker, date, res.MomentumErr))
			}
		}
	}
	return nil
}

func exclusionFor(ticker string, date time.Time, err error) contracts.Exclusion {
	return contracts.Exclusion{
		Ticker: ticker,
		Date:   date,
		Reason: contracts.ExclusionReason(err),
		Detail: err.Error(),
	}
}

// generateSignals evaluates the rules on date's close for every candidate
// with a valid bar. A carried exit keeps priority over a new signal.
func (s *Simulator) generateSignals(date time.Time, u *contracts.Universe, candidates []string, review bool) {
	for _, t := range candidates {
		bar, ok := s.store.BarOn(t, date)
		if !ok {
			continue
		}

		in := contracts.SignalInput{
			Ticker:     t,
			Date:       date,
			Close:      bar.Close,
			InUniverse: u.Contains(t),
			Review:     review,
		}
		if est, ok := s.estimates[t]; ok {
			in.FairValue = &est
		}
		if ms, ok := s.momentum[t]; ok {
			in.Momentum = &ms
		}
		if pos, ok := s.state.Positions[t]; ok {
			p := *pos
			in.Position = &p
		} else {
			in.Liquid = s.universe.IsLiquid(s.store, t, date)
		}

		sig := s.generator.Generate(in)
		if sig == nil {
			continue
		}
		s.ledger.Signals = append(s.ledger.Signals, *sig)

		if prev, ok := s.pending[t]; ok && prev.Kind == contracts.SignalExit {
			continue
		}
		s.pending[t] = *sig

		s.logger.WithFields(map[string]interface{}{
			"ticker": t,
			"date":   date.Format(contracts.DateLayout),
			"kind":   sig.Kind,
			"reason": sig.Reason,
			"gap":    sig.Gap,
		}).Debug("Signal queued")
	}
}

// Terminate ends the run. Open positions stay open and are reported.
func (s *Simulator) Terminate() {
	s.runState = contracts.RunTerminated
}

// RunState returns the current RUNNING/HALTED/TERMINATED state
func (s *Simulator) RunState() contracts.RunState {
	return s.runState
}

// OpenPositions returns copies of the open positions, ascending by ticker
func (s *Simulator) OpenPositions() []contracts.Position {
	out := make([]contracts.Position, 0, len(s.state.Positions))
	for _, t := range s.state.Tickers() {
		out = append(out, *s.state.Positions[t])
	}
	return out
}

// Dump captures the state for an abort report
func (s *Simulator) Dump() StateDump {
	pending := make([]contracts.Signal, 0, len(s.pending))
	for _, t := range sortedKeys(s.pending) {
		pending = append(pending, s.pending[t])
	}
	return StateDump{
		Date:      s.state.Date,
		Cash:      s.state.Cash,
		Equity:    s.state.Equity,
		Peak:      s.state.Peak,
		Drawdown:  s.state.Drawdown,
		RunState:  s.runState,
		Positions: s.OpenPositions(),
		Pending:   pending,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
