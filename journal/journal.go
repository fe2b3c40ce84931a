// Package journal persists backtest runs, their trades and equity curves.
package journal

import "time"

// TradeRecord is one closed trade of a run.
type TradeRecord struct {
	RunID      string
	TradeID    string
	Instrument string
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is one point of a run's equity trajectory.
type EquitySnapshot struct {
	RunID    string
	Time     time.Time
	Equity   float64
	Position float64
	Cost     float64
	Close    float64
}

// MonthlyRecord is one calendar month return of a run.
type MonthlyRecord struct {
	Year   int
	Month  int
	Return float64
}

// RunRecord summarizes one backtest run.
type RunRecord struct {
	RunID      string
	Created    time.Time
	Strategy   string
	Params     []byte // JSON object of strategy params
	Dataset    string
	Instrument string

	Start time.Time
	End   time.Time
	Bars  int

	// Simulation inputs
	InitialCapital float64
	CostRate       float64
	PeriodsPerYear int
	RiskFreeRate   float64

	// Results
	FinalEquity      float64
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
	WinRate          float64
	Trades           int
	Wins             int
	Losses           int
	ProfitFactor     float64
	BestMonth        float64
	WorstMonth       float64
	AvgMonth         float64
	MonthlyStd       float64
	TotalCost        float64
	Ruined           bool

	Monthly []MonthlyRecord

	OrgPath string
	Notes   []string
}

// NetPL is the change in equity over the run.
func (r RunRecord) NetPL() float64 {
	return r.FinalEquity - r.InitialCapital
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Batch is a complete run ready to be written.
type Batch struct {
	Run    RunRecord
	Trades []TradeRecord
	Equity []EquitySnapshot
}

// Batcher is implemented by journals that can write a run atomically.
type Batcher interface {
	RecordBatch(Batch) error
}

// Write records a whole run, in one step when j supports it.
func Write(j Journal, b Batch) error {
	if bj, ok := j.(Batcher); ok {
		return bj.RecordBatch(b)
	}
	if err := j.RecordRun(b.Run); err != nil {
		return err
	}
	for _, t := range b.Trades {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	for _, e := range b.Equity {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}

// Discard is a Journal that drops everything.
type Discard struct{}

func (Discard) RecordRun(RunRecord) error         { return nil }
func (Discard) RecordTrade(TradeRecord) error     { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) Close() error                      { return nil }
