package contracts

import "time"

// Confidence grades a fair-value estimate
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// FairValueEstimate is stamped with its as-of date and never modified afterwards.
// Engines return it by value; the simulator only ever replaces it.
type FairValueEstimate struct {
	Ticker     string     `json:"ticker"`
	AsOf       time.Time  `json:"as_of"`
	FairValue  float64    `json:"fair_value"` // 주당 적정가치
	Close      float64    `json:"close"`      // 산출 시점 종가
	Gap        float64    `json:"gap"`        // (FairValue - Close) / Close
	Confidence Confidence `json:"confidence"`

	// 구성요소 (감사용)
	DCFValue       float64 `json:"dcf_value"`
	MultipleValue  float64 `json:"multiple_value"`
	ConsensusValue float64 `json:"consensus_value,omitempty"`
	Model          string  `json:"model"`
}

// GapAt re-marks the estimate against another close without mutating it
func (e FairValueEstimate) GapAt(close float64) float64 {
	if close <= 0 {
		return 0
	}
	return (e.FairValue - close) / close
}

// MomentumScore components are on [0,100]
type MomentumScore struct {
	Ticker      string    `json:"ticker"`
	AsOf        time.Time `json:"as_of"`
	Fundamental float64   `json:"fundamental"`
	Price       float64   `json:"price"`
	External    *float64  `json:"external,omitempty"`
	Composite   float64   `json:"composite"`

	// 가격 모멘텀 세부 (감사용)
	MAScore       float64 `json:"ma_score"`
	RelStrength   float64 `json:"rel_strength"`
	VolumeConfirm float64 `json:"volume_confirm"`
}

// SignalKind is ENTER or EXIT
type SignalKind string

const (
	SignalEnter SignalKind = "ENTER"
	SignalExit  SignalKind = "EXIT"
)

// Reason codes. Exit reasons are listed in precedence order.
type Reason string

const (
	ReasonProfitTarget          Reason = "PROFIT_TARGET"
	ReasonStopLoss              Reason = "STOP_LOSS"
	ReasonTimeExit              Reason = "TIME_EXIT"
	ReasonMomentumDeterioration Reason = "MOMENTUM_DETERIORATION"
	ReasonRebalanceDrop         Reason = "REBALANCE_DROP"
	ReasonEntryThresholds       Reason = "ENTRY_THRESHOLDS"
)

// IsExitReason reports whether r may close a position
func (r Reason) IsExitReason() bool {
	switch r {
	case ReasonProfitTarget, ReasonStopLoss, ReasonTimeExit,
		ReasonMomentumDeterioration, ReasonRebalanceDrop:
		return true
	}
	return false
}

// Signal is a decision taken from data as of Date's close.
// It executes at the next trading day's open.
type Signal struct {
	Ticker    string     `json:"ticker"`
	Date      time.Time  `json:"date"`
	Kind      SignalKind `json:"kind"`
	Reason    Reason     `json:"reason"`
	Close     float64    `json:"close"`
	Gap       float64    `json:"gap"`
	Momentum  float64    `json:"momentum"`
	HasScores bool       `json:"has_scores"` // false: 추정치 없이 가격 규칙만으로 발생
}
