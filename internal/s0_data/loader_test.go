package s0_data

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/pkg/logger"
)

type fakeSource struct {
	ds *Dataset
}

func (f fakeSource) LoadInstruments(context.Context) ([]contracts.Instrument, error) {
	return f.ds.Instruments, nil
}

func (f fakeSource) LoadBars(_ context.Context, ticker string, _, _ time.Time) ([]contracts.PriceBar, error) {
	var out []contracts.PriceBar
	for _, b := range f.ds.Bars {
		if b.Ticker == ticker {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f fakeSource) LoadFundamentals(_ context.Context, ticker string, _ time.Time) ([]contracts.FundamentalRecord, error) {
	var out []contracts.FundamentalRecord
	for _, r := range f.ds.Fundamentals {
		if r.Ticker == ticker {
			out = append(out, r)
		}
	}
	return out, nil
}

// brokenCache fails every read and counts writes
type brokenCache struct {
	sets int
}

func (c *brokenCache) Get(context.Context, string, interface{}) (bool, error) {
	return false, errors.New("connection refused")
}

func (c *brokenCache) Set(context.Context, string, interface{}, time.Duration) error {
	c.sets++
	return nil
}

func TestCachedLoader_ReadFailuresFallBackToRepository(t *testing.T) {
	var buf bytes.Buffer
	cache := &brokenCache{}
	l := NewCachedLoader(fakeSource{ds: testDataset()}, cache, time.Hour, logger.NewWithWriter(&buf, "debug"))

	ds, err := l.Load(context.Background(), LoadRequest{From: day("2024-01-02"), To: day("2024-01-04")})
	require.NoError(t, err)

	want := testDataset()
	assert.Len(t, ds.Instruments, len(want.Instruments))
	assert.Len(t, ds.Bars, len(want.Bars))
	assert.Len(t, ds.Fundamentals, len(want.Fundamentals))

	// 종목 키 1 + 종목별 봉 3 + 비벤치마크 재무 2
	assert.Equal(t, 6, cache.sets)

	out := buf.String()
	assert.Equal(t, 6, bytes.Count(buf.Bytes(), []byte("cache read failed")))
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "bars:AAA:")
}
