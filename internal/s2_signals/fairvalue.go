package s2_signals

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

// agreementBand is the max relative spread between DCF and multiple for HIGH confidence
const agreementBand = 0.25

// FairValueEngine blends a sector valuation model with visible consensus
// ⭐ SSOT: 적정가치(FVG) 계산은 여기서만
type FairValueEngine struct {
	cfg    strategyconfig.Valuation
	models map[contracts.Sector]ValuationModel
	logger *logger.Logger
}

// NewFairValueEngine creates an engine with the Technology and Healthcare models registered
func NewFairValueEngine(cfg strategyconfig.Valuation, log *logger.Logger) *FairValueEngine {
	e := &FairValueEngine{
		cfg:    cfg,
		models: make(map[contracts.Sector]ValuationModel),
		logger: log,
	}
	e.Register(contracts.SectorTechnology, NewSectorModel("tech_dcf_evsales", cfg.Technology))
	e.Register(contracts.SectorHealthcare, NewSectorModel("health_dcf_evsales_pe", cfg.Healthcare))
	return e
}

// Register swaps the model used for a sector. Call before the run starts.
func (e *FairValueEngine) Register(sector contracts.Sector, m ValuationModel) {
	e.models[sector] = m
}

// Estimate computes the fair value of inst as of asOf. records must all be
// visible at asOf; anything else is a point-in-time violation.
func (e *FairValueEngine) Estimate(inst contracts.Instrument, asOf time.Time, close float64, records []contracts.FundamentalRecord) (contracts.FairValueEstimate, error) {
	asOf = contracts.Day(asOf)
	if close <= 0 || math.IsNaN(close) {
		return contracts.FairValueEstimate{}, &contracts.DataIntegrityError{
			Ticker: inst.Ticker, Date: asOf, Field: "close", Reason: fmt.Sprintf("non-positive close %v", close),
		}
	}

	model, ok := e.models[inst.Sector]
	if !ok {
		return contracts.FairValueEstimate{}, fmt.Errorf("%w: no valuation model for sector %q", contracts.ErrInsufficientData, inst.Sector)
	}

	f, err := NewFundamentals(inst.Ticker, asOf, records)
	if err != nil {
		return contracts.FairValueEstimate{}, err
	}

	in, err := valuationInputs(f)
	if err != nil {
		return contracts.FairValueEstimate{}, err
	}

	dcf, hasDCF := model.DCF(in)
	mult, hasMult := model.Multiple(in)

	var intrinsic float64
	switch {
	case hasDCF && hasMult:
		w := e.cfg.DCFWeight + e.cfg.MultipleWeight
		intrinsic = (e.cfg.DCFWeight*dcf + e.cfg.MultipleWeight*mult) / w
	case hasDCF:
		intrinsic = dcf
	case hasMult:
		intrinsic = mult
	default:
		return contracts.FairValueEstimate{}, fmt.Errorf("%w: %s neither DCF nor multiple is positive", contracts.ErrInsufficientData, inst.Ticker)
	}

	fair := intrinsic
	consensus, hasConsensus := f.LatestPublished(contracts.MetricConsensusTarget)
	if hasConsensus && consensus > 0 {
		wc := e.cfg.ConsensusWeight
		fair = (1-wc)*intrinsic + wc*consensus
	} else {
		consensus = 0
	}
	if fair <= 0 {
		return contracts.FairValueEstimate{}, fmt.Errorf("%w: %s fair value %.4f", contracts.ErrInsufficientData, inst.Ticker, fair)
	}

	est := contracts.FairValueEstimate{
		Ticker:         inst.Ticker,
		AsOf:           asOf,
		FairValue:      fair,
		Close:          close,
		Gap:            (fair - close) / close,
		Confidence:     confidence(dcf, hasDCF, mult, hasMult, in),
		DCFValue:       dcf,
		MultipleValue:  mult,
		ConsensusValue: consensus,
		Model:          model.Name(),
	}

	e.logger.WithFields(map[string]interface{}{
		"ticker":     inst.Ticker,
		"as_of":      asOf.Format(contracts.DateLayout),
		"fair_value": est.FairValue,
		"gap":        est.Gap,
		"confidence": est.Confidence,
	}).Debug("Estimated fair value")

	return est, nil
}

// valuationInputs extracts the required metrics. Revenue, a cash-flow proxy
// and shares outstanding are mandatory.
func valuationInputs(f *Fundamentals) (ValuationInputs, error) {
	revenue, annualized, ok := f.TTM(contracts.MetricRevenue)
	if !ok {
		return ValuationInputs{}, fmt.Errorf("%w: %s has no revenue", contracts.ErrInsufficientData, f.Ticker)
	}

	cash, cashAnnualized, ok := f.TTM(contracts.MetricFreeCashFlow)
	if !ok {
		cash, cashAnnualized, ok = f.TTM(contracts.MetricOperatingCashFlow)
	}
	if !ok {
		return ValuationInputs{}, fmt.Errorf("%w: %s has no cash flow", contracts.ErrInsufficientData, f.Ticker)
	}

	shares, ok := f.Latest(contracts.MetricSharesOutstanding)
	if !ok || shares <= 0 {
		return ValuationInputs{}, fmt.Errorf("%w: %s has no shares outstanding", contracts.ErrInsufficientData, f.Ticker)
	}

	in := ValuationInputs{
		Revenue:    revenue,
		CashFlow:   cash,
		Shares:     shares,
		Growth:     revenueGrowth(f.Values(contracts.MetricRevenue)),
		Quarters:   f.Quarters(contracts.MetricRevenue),
		Annualized: annualized || cashAnnualized,
	}
	in.NetDebt, _ = f.Latest(contracts.MetricNetDebt)
	in.NetIncome, _, in.HasNetIncome = f.TTM(contracts.MetricNetIncome)
	return in, nil
}

// confidence grades agreement between the two legs and data depth
func confidence(dcf float64, hasDCF bool, mult float64, hasMult bool, in ValuationInputs) contracts.Confidence {
	if !hasDCF || in.Quarters < 4 || in.Annualized {
		return contracts.ConfidenceLow
	}
	if hasMult && math.Abs(dcf-mult)/math.Max(dcf, mult) <= agreementBand {
		return contracts.ConfidenceHigh
	}
	return contracts.ConfidenceMedium
}
