package backtest

import "github.com/wonny/fvgsim/internal/contracts"

// Observer receives run events as they happen. Implementations must not
// block; they are called on the simulation clock's goroutine.
type Observer interface {
	OnDay(point contracts.EquityPoint)
	OnTrade(trade contracts.TradeRecord)
	OnRejection(r contracts.Rejection)
	OnExclusion(e contracts.Exclusion)
}

type nopObserver struct{}

func (nopObserver) OnDay(contracts.EquityPoint)     {}
func (nopObserver) OnTrade(contracts.TradeRecord)   {}
func (nopObserver) OnRejection(contracts.Rejection) {}
func (nopObserver) OnExclusion(contracts.Exclusion) {}
