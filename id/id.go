// Package id generates ULIDs for runs and trades.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs from a clock and an entropy source.
// It is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	mono io.Reader
}

// NewGenerator returns a generator using clock and a monotonic reader over
// entropy. A nil clock means time.Now.
func NewGenerator(clock func() time.Time, entropy io.Reader) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{now: clock, mono: ulid.Monotonic(entropy, 0)}
}

// New returns the next ULID string.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.mono)
	if err != nil {
		// Only happens when the clock moves backwards past the
		// monotonic window or entropy fails.
		panic(err)
	}
	return id.String()
}

var std = NewGenerator(nil, rand.New(rand.NewSource(seed())))

func seed() int64 {
	var s int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &s)
	if s == 0 {
		s = time.Now().UnixNano()
	}
	return s
}

// New returns a ULID string from the package generator. ULIDs sort by
// creation time, which keeps journal tables and indexes in run order.
func New() string {
	return std.New()
}

// Time extracts the timestamp encoded in a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
