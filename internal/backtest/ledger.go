package backtest

import (
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
)

// Ledger retains every stamped estimate, score, signal and non-event of a
// run, in the order they were produced
type Ledger struct {
	Estimates  []contracts.FairValueEstimate `json:"estimates"`
	Momentum   []contracts.MomentumScore     `json:"momentum"`
	Signals    []contracts.Signal            `json:"signals"`
	Exclusions []contracts.Exclusion         `json:"exclusions"`
	Rejections []contracts.Rejection         `json:"rejections"`
}

// EstimatesAsOf returns the estimates stamped on date, in ticker order
func (l *Ledger) EstimatesAsOf(date time.Time) []contracts.FairValueEstimate {
	var out []contracts.FairValueEstimate
	for _, e := range l.Estimates {
		if e.AsOf.Equal(date) {
			out = append(out, e)
		}
	}
	return out
}

// SignalsFor returns every signal generated for ticker
func (l *Ledger) SignalsFor(ticker string) []contracts.Signal {
	var out []contracts.Signal
	for _, s := range l.Signals {
		if s.Ticker == ticker {
			out = append(out, s)
		}
	}
	return out
}

// ExclusionsFor returns every exclusion recorded for ticker
func (l *Ledger) ExclusionsFor(ticker string) []contracts.Exclusion {
	var out []contracts.Exclusion
	for _, e := range l.Exclusions {
		if e.Ticker == ticker {
			out = append(out, e)
		}
	}
	return out
}
