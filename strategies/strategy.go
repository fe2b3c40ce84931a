package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Request is everything a strategy may look at when deciding the position
// for the next bar. History ends at the bar before the one being decided.
type Request struct {
	History market.Series

	// Position currently held (before this decision).
	Position float64

	// EntryIndex is the History index of the bar whose close opened the
	// current trade, or -1 when flat.
	EntryIndex int

	// EntrySize is the position size the current trade opened with.
	EntrySize float64

	Params Params
}

// SignalSource decides a target position from past data only. Negative is
// short, 0 flat and above 1 leveraged. Implementations must be
// deterministic for identical requests.
type SignalSource interface {
	Target(req Request) (float64, error)
}

// PositionSignal is the target a source chose for the bar at Time.
type PositionSignal struct {
	Time   time.Time
	Target float64
}

// SignalFunc adapts a plain function to SignalSource.
type SignalFunc func(req Request) (float64, error)

func (f SignalFunc) Target(req Request) (float64, error) {
	return f(req)
}

// Factory builds a configured source from fully merged parameters.
type Factory func(p Params) (SignalSource, error)

// Entry describes a registered strategy.
type Entry struct {
	Name        string
	Description string
	Defaults    Params
	New         Factory
}

// Registry maps strategy names to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds an entry. Names are case-insensitive and must be unique.
func (r *Registry) Register(e Entry) error {
	name := normalize(e.Name)
	if name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if e.New == nil {
		return fmt.Errorf("strategy %q: factory is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("strategy %q already registered", name)
	}
	e.Name = name
	r.entries[name] = e
	return nil
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[normalize(name)]
	return e, ok
}

// Build merges params over the entry defaults and constructs the source.
// The merged params are returned so callers can record what actually ran.
func (r *Registry) Build(name string, p Params) (SignalSource, Params, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(r.Names(), ", "))
	}
	for k := range p {
		if _, known := e.Defaults[k]; !known {
			return nil, nil, fmt.Errorf("strategy %q: unknown param %q", e.Name, k)
		}
	}

	merged := e.Defaults.Merge(p)
	src, err := e.New(merged)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy %q: %w", e.Name, err)
	}
	return src, merged, nil
}

// List returns the entries sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Names() []string {
	var names []string
	for _, e := range r.List() {
		names = append(names, e.Name)
	}
	return names
}

var registry = Builtins()

// Register adds a strategy to the package registry.
func Register(e Entry) error {
	return registry.Register(e)
}

// Lookup finds a strategy in the package registry.
func Lookup(name string) (Entry, bool) {
	return registry.Lookup(name)
}

// Build constructs a strategy from the package registry.
func Build(name string, p Params) (SignalSource, Params, error) {
	return registry.Build(name, p)
}

// List returns the package registry entries.
func List() []Entry {
	return registry.List()
}

// Builtins returns a registry holding the strategies shipped with this module.
func Builtins() *Registry {
	r := NewRegistry()
	for _, e := range []Entry{
		{
			Name:        "flat",
			Description: "never holds a position (cash baseline)",
			Defaults:    Params{},
			New:         func(Params) (SignalSource, error) { return Flat{}, nil },
		},
		{
			Name:        "hold",
			Description: "holds a constant weight for the whole series",
			Defaults:    Params{"weight": 1},
			New:         NewHold,
		},
		{
			Name:        "ma-threshold",
			Description: "average price versus fast/slow moving averages with entry and exit thresholds",
			Defaults:    maThresholdDefaults.Clone(),
			New:         NewMAThreshold,
		},
		{
			Name:        "ma-cross",
			Description: "fast/slow crossover with trend or momentum confirmation, volatility sizing and stops",
			Defaults:    maCrossDefaults.Clone(),
			New:         NewMACross,
		},
		{
			Name:        "score",
			Description: "six-condition entry score, RSI/volatility exits, ATR and trailing stops, partial take-profit",
			Defaults:    scoreDefaults.Clone(),
			New:         NewScore,
		},
	} {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}
