package contracts

import (
	"sort"
	"time"
)

// Universe is the eligible set for one date
// ⭐ SSOT: S1 → S2 투자 가능 종목 전달
type Universe struct {
	Date     time.Time         `json:"date"`
	Tickers  []string          `json:"tickers"`  // ascending
	Excluded map[string]string `json:"excluded"` // ticker: reason
}

// Contains checks membership
func (u *Universe) Contains(ticker string) bool {
	i := sort.SearchStrings(u.Tickers, ticker)
	return i < len(u.Tickers) && u.Tickers[i] == ticker
}

// Count returns the number of eligible tickers
func (u *Universe) Count() int {
	return len(u.Tickers)
}

// Exclusion is one audit-ledger entry explaining why a ticker was skipped on a date
type Exclusion struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
	Detail string    `json:"detail,omitempty"`
}

// Rejection is a CapacityExceeded outcome: a signal that was not executed
type Rejection struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"` // halted, sector_cap, zero_size, insufficient_cash, no_bar, already_open
}

const (
	RejectHalted           = "halted"
	RejectSectorCap        = "sector_cap"
	RejectZeroSize         = "zero_size"
	RejectInsufficientCash = "insufficient_cash"
	RejectNoBar            = "no_bar"
	RejectAlreadyOpen      = "already_open"
)
