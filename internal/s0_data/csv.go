package s0_data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
)

// CSV file names expected by ReadCSVDir
const (
	InstrumentsFile  = "instruments.csv"  // ticker,name,sector,cap_band,benchmark
	BarsFile         = "bars.csv"         // ticker,date,open,high,low,close,volume
	FundamentalsFile = "fundamentals.csv" // ticker,period_end,published_at,metric,value
)

// ReadCSVDir reads the three dataset files from dir. Every file has a header row.
func ReadCSVDir(dir string) (*Dataset, error) {
	ds := &Dataset{}

	if err := readCSV(filepath.Join(dir, InstrumentsFile), 5, func(rec []string) error {
		benchmark, err := strconv.ParseBool(strings.TrimSpace(rec[4]))
		if err != nil {
			return fmt.Errorf("benchmark: %w", err)
		}
		ds.Instruments = append(ds.Instruments, contracts.Instrument{
			Ticker:    rec[0],
			Name:      rec[1],
			Sector:    contracts.Sector(rec[2]),
			CapBand:   contracts.CapBand(rec[3]),
			Benchmark: benchmark,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV(filepath.Join(dir, BarsFile), 7, func(rec []string) error {
		date, err := time.Parse(contracts.DateLayout, rec[1])
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		vals, err := parseFloats(rec[2:6])
		if err != nil {
			return err
		}
		vol, err := strconv.ParseInt(rec[6], 10, 64)
		if err != nil {
			return fmt.Errorf("volume: %w", err)
		}
		ds.Bars = append(ds.Bars, contracts.PriceBar{
			Ticker: rec[0], Date: date,
			Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3],
			Volume: vol,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV(filepath.Join(dir, FundamentalsFile), 5, func(rec []string) error {
		period, err := time.Parse(contracts.DateLayout, rec[1])
		if err != nil {
			return fmt.Errorf("period_end: %w", err)
		}
		pub, err := time.Parse(contracts.DateLayout, rec[2])
		if err != nil {
			return fmt.Errorf("published_at: %w", err)
		}
		v, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		ds.Fundamentals = append(ds.Fundamentals, contracts.FundamentalRecord{
			Ticker: rec[0], PeriodEnd: period, PublishedAt: pub,
			Metric: contracts.Metric(rec[3]), Value: v,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	return ds, nil
}

func readCSV(path string, fields int, row func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return fmt.Errorf("%s header: %w", filepath.Base(path), err)
	}

	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := row(rec); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
}

func parseFloats(in []string) ([]float64, error) {
	out := make([]float64, len(in))
	for i, s := range in {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
