package market

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
)

// BarRecord is the Parquet schema for a bar.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Avg       float64 `parquet:"avg"`
	Volume    float64 `parquet:"volume"`
}

// LoadParquet reads a series written by SaveParquet.
func LoadParquet(path string) (Series, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	s := make(Series, 0, len(rows))
	for _, r := range rows {
		s = append(s, Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Avg:    r.Avg,
			Volume: r.Volume,
		})
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return s, nil
}

// SaveParquet writes the series to path, creating parent directories.
func SaveParquet(path string, s Series) error {
	records := make([]BarRecord, len(s))
	for i, b := range s {
		records[i] = BarRecord{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Avg:       b.Avg,
			Volume:    b.Volume,
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
