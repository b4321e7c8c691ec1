package contracts

import "time"

// DateLayout is the canonical date format used in logs, cache keys and the trade log
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date.
// ⭐ SSOT: 모든 날짜 비교는 Day()로 정규화한 값끼리만
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Sector is the sector classification used to pick a valuation model
type Sector string

const (
	SectorTechnology Sector = "Technology"
	SectorHealthcare Sector = "Healthcare"
)

// CapBand is the market-cap bucket of an instrument
type CapBand string

const (
	CapSmall CapBand = "small"
	CapMid   CapBand = "mid"
	CapLarge CapBand = "large"
)

// Instrument is immutable reference data
type Instrument struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name,omitempty"`
	Sector    Sector  `json:"sector"`
	CapBand   CapBand `json:"cap_band"`
	Benchmark bool    `json:"benchmark,omitempty"` // 섹터 벤치마크 (매매 대상 아님)
}

// PriceBar is one daily OHLCV bar
type PriceBar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Metric names a fundamental data series
type Metric string

const (
	MetricRevenue           Metric = "revenue"
	MetricFreeCashFlow      Metric = "free_cash_flow"
	MetricOperatingCashFlow Metric = "operating_cash_flow"
	MetricSharesOutstanding Metric = "shares_outstanding"
	MetricNetIncome         Metric = "net_income"
	MetricOperatingIncome   Metric = "operating_income"
	MetricGrossProfit       Metric = "gross_profit"
	MetricNetDebt           Metric = "net_debt"
	MetricConsensusTarget   Metric = "consensus_target_price" // 외부 컨센서스 목표가 (주당)
)

// FundamentalRecord is one published value for a reporting period.
// PublishedAt alone decides visibility.
type FundamentalRecord struct {
	Ticker      string    `json:"ticker"`
	PeriodEnd   time.Time `json:"period_end"`
	PublishedAt time.Time `json:"published_at"`
	Metric      Metric    `json:"metric"`
	Value       float64   `json:"value"`
}

// VisibleAt reports whether the record is knowable on asOf
func (r FundamentalRecord) VisibleAt(asOf time.Time) bool {
	return !Day(r.PublishedAt).After(Day(asOf))
}
