package strategies

import (
	"fmt"
	"math"
)

// Flat never takes a position.
type Flat struct{}

func (Flat) Target(Request) (float64, error) {
	return 0, nil
}

// Hold keeps a constant weight from the first decision on.
type Hold struct {
	Weight float64
}

func NewHold(p Params) (SignalSource, error) {
	w := p.Get("weight", 1)
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return nil, fmt.Errorf("weight must be finite")
	}
	return Hold{Weight: w}, nil
}

func (h Hold) Target(Request) (float64, error) {
	return h.Weight, nil
}
