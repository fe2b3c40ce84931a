package strategies

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Params are named numeric strategy parameters.
type Params map[string]float64

// Get returns the value for key, or def when it is not set.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the value for key rounded to the nearest integer.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(math.Round(v))
	}
	return def
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new map with over applied on top of p.
func (p Params) Merge(over Params) Params {
	out := p.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names sorted.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the params as k=v pairs in key order.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+"="+strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ParseParam parses a single "key=value" flag.
func ParseParam(s string) (string, float64, error) {
	key, vals, err := ParseGrid(s)
	if err != nil {
		return "", 0, err
	}
	if len(vals) != 1 {
		return "", 0, fmt.Errorf("param %q: want a single value", s)
	}
	return key, vals[0], nil
}

// ParseGrid parses "key=v1,v2,..." into a grid axis.
func ParseGrid(s string) (string, []float64, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("param %q: want key=value", s)
	}

	var vals []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return "", nil, fmt.Errorf("param %q: %w", s, err)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return "", nil, fmt.Errorf("param %q: no values", s)
	}
	return key, vals, nil
}

// Expand returns the cartesian product of grid applied over base. Keys vary
// in sorted order with the last key changing fastest, so the output order is
// deterministic. An empty grid yields base alone.
func Expand(base Params, grid map[string][]float64) []Params {
	keys := make([]string, 0, len(grid))
	for k, vals := range grid {
		if len(vals) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := []Params{base.Clone()}
	for _, k := range keys {
		next := make([]Params, 0, len(out)*len(grid[k]))
		for _, p := range out {
			for _, v := range grid[k] {
				q := p.Clone()
				q[k] = v
				next = append(next, q)
			}
		}
		out = next
	}
	return out
}
