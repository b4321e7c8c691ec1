package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))

	assert.Equal(t, 0.15, cfg.Signals.EntryGapThreshold)
	assert.Equal(t, 60.0, cfg.Signals.EntryMomentumThreshold)
	assert.Equal(t, 0.05, cfg.Signals.ExitGapThreshold)
	assert.Equal(t, 0.15, cfg.Signals.StopLossFraction)
	assert.Equal(t, 252, cfg.Signals.MaxHoldDays)
	assert.Equal(t, 40.0, cfg.Signals.MomentumDeteriorationThreshold)
	assert.Equal(t, 0.06, cfg.Portfolio.MaxPositionFraction)
	assert.Equal(t, 0.60, cfg.Portfolio.SectorCapFraction)
	assert.Equal(t, 0.20, cfg.Risk.MaxPortfolioDrawdown)
}

func TestLoad_RepoConfig(t *testing.T) {
	path := "../../configs/fvg_midcap.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fvg_midcap", cfg.Meta.StrategyID)
	assert.Equal(t, "TECHIDX", cfg.Universe.Benchmarks["Technology"])
	assert.NotEmpty(t, yamlData)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2, "hash not deterministic")
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte("signals:\n  entry_gap_threshold: 0.25\n"))
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.Signals.EntryGapThreshold)
	// untouched keys keep their defaults
	assert.Equal(t, 0.05, cfg.Signals.ExitGapThreshold)
	assert.Len(t, cfg.Portfolio.ConvictionTiers, 3)
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	def := Default()
	h1, _ := Hash(cfg)
	h2, _ := Hash(&def)
	assert.Equal(t, h2, h1)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte("signals:\n  entry_gap_treshold: 0.25\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"exit gap above entry", func(c *Config) { c.Signals.ExitGapThreshold = 0.2 }, "signals.exit_gap_threshold"},
		{"deterioration above entry momentum", func(c *Config) { c.Signals.MomentumDeteriorationThreshold = 70 }, "signals.momentum_deterioration_threshold"},
		{"stop loss out of range", func(c *Config) { c.Signals.StopLossFraction = 1.2 }, "signals.stop_loss_fraction"},
		{"valuation weights do not sum", func(c *Config) { c.Valuation.MultipleWeight = 0.5 }, "valuation"},
		{"consensus weight above one", func(c *Config) { c.Valuation.ConsensusWeight = 1.5 }, "valuation.consensus_weight"},
		{"tier above position cap", func(c *Config) { c.Portfolio.ConvictionTiers[0].Fraction = 0.08 }, "portfolio.conviction_tiers[0]"},
		{"tiers out of order", func(c *Config) {
			c.Portfolio.ConvictionTiers[2].Fraction = 0.05
		}, "portfolio.conviction_tiers[2]"},
		{"sector cap below position cap", func(c *Config) { c.Portfolio.SectorCapFraction = 0.05 }, "portfolio.sector_cap_fraction"},
		{"recovery above max drawdown", func(c *Config) { c.Risk.DrawdownRecoveryThreshold = 0.25 }, "risk.drawdown_recovery_threshold"},
		{"bad cron", func(c *Config) { c.Calendar.ReviewCron = "every monday" }, "calendar.review_cron"},
		{"bad review date", func(c *Config) { c.Calendar.ReviewDates = []string{"2024/01/31"} }, "calendar.review_dates[0]"},
		{"lookback too short", func(c *Config) { c.Momentum.MinLookbackDays = 30 }, "momentum.min_lookback_days"},
		{"unknown sector", func(c *Config) { c.Universe.Sectors = []string{"Energy"} }, "universe.sectors[0]"},
		{"terminal growth above discount", func(c *Config) { c.Valuation.Healthcare.TerminalGrowth = 0.1 }, "valuation.healthcare.terminal_growth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			// tiers are a slice; copy before mutating so cases stay independent
			cfg.Portfolio.ConvictionTiers = append([]ConvictionTier(nil), cfg.Portfolio.ConvictionTiers...)
			tt.mutate(&cfg)

			err := Validate(&cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestPortfolio_TierFor(t *testing.T) {
	p := Default().Portfolio

	tests := []struct {
		name     string
		gap, mom float64
		want     float64
	}{
		{"top tier", 0.35, 80, 0.06},
		{"high gap weak momentum", 0.35, 66, 0.045},
		{"middle tier", 0.22, 70, 0.045},
		{"base tier", 0.16, 61, 0.03},
		{"below every tier falls back to smallest", 0.10, 50, 0.03},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.TierFor(tt.gap, tt.mom).Fraction)
		})
	}
}

func TestNewDecisionSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meta:\n  strategy_id: test_run\n"), 0o644))

	cfg, data, err := Load(path)
	require.NoError(t, err)

	snap, err := NewDecisionSnapshot(cfg, data)
	require.NoError(t, err)
	assert.Equal(t, "test_run", snap.StrategyID)
	assert.Len(t, snap.ConfigHash, 64)
	assert.Contains(t, snap.ConfigYAML, "test_run")
}
