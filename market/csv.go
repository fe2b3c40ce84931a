package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column names accepted for each field, matched case-insensitively.
var csvColumns = map[string][]string{
	"time":   {"dt", "date", "time", "timestamp", "datetime"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c", "adj_close"},
	"avg":    {"avg", "average", "vwap"},
	"volume": {"volume", "vol", "v"},
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// LoadCSV reads a bar file from disk. See ReadCSV.
func LoadCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return s, nil
}

// ReadCSV parses bars from a CSV stream with a header row. The time, open,
// high, low and close columns are required; avg and volume are optional and
// any other column (symbol etc) is ignored. Rows are sorted by time and the
// result is validated.
func ReadCSV(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, err
	}

	idx, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var s Series
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		b, err := parseBarRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s = append(s, b)
	}

	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteCSV writes the series with the canonical header
// dt,open,high,low,close,avg,volume.
func WriteCSV(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dt", "open", "high", "low", "close", "avg", "volume"}); err != nil {
		return err
	}
	for _, b := range s {
		err := cw.Write([]string{
			formatTime(b.Time),
			f(b.Open),
			f(b.High),
			f(b.Low),
			f(b.Close),
			f(b.Avg),
			f(b.Volume),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func mapColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for field, aliases := range csvColumns {
			if _, ok := idx[field]; ok {
				continue
			}
			for _, a := range aliases {
				if name == a {
					idx[field] = i
				}
			}
		}
	}
	for _, field := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := idx[field]; !ok {
			return nil, fmt.Errorf("missing %q column in header %v", field, header)
		}
	}
	return idx, nil
}

func parseBarRow(row []string, idx map[string]int) (Bar, error) {
	get := func(field string) (string, bool) {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	ts, _ := get("time")
	t, err := ParseTime(ts)
	if err != nil {
		return Bar{}, err
	}

	b := Bar{Time: t}
	for _, p := range []struct {
		field string
		dst   *float64
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
		{"avg", &b.Avg},
		{"volume", &b.Volume},
	} {
		v, ok := get(p.field)
		if !ok || v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad %s %q: %w", p.field, v, err)
		}
		*p.dst = x
	}
	return b, nil
}

// ParseTime accepts a plain date, a date with a clock time, or RFC3339.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func formatTime(t time.Time) string {
	h, m, sec := t.Clock()
	if h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
