package feed

import (
	"context"
	"math"
	"time"
)

// Observation is one timestamped close price for a symbol.
// Close is nil when the provider reported no value for that bar.
type Observation struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Close  *float64  `json:"close"`
}

// Valid reports whether the close price is present and finite.
func (o Observation) Valid() bool {
	if o.Close == nil {
		return false
	}
	v := *o.Close
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Table holds the observations returned for a download, keyed by symbol.
// Rows for a symbol are not guaranteed to be ordered.
type Table map[string][]Observation

// Rows returns the total number of observations across all symbols.
func (t Table) Rows() int {
	n := 0
	for _, obs := range t {
		n += len(obs)
	}
	return n
}

// Empty reports whether the table carries no observations at all.
func (t Table) Empty() bool { return t.Rows() == 0 }

// Feed is the market data source. Download returns price observations for
// symbols over the lookback period, sampled at interval (e.g. "1d", "1m").
// Implementations may return partially populated or empty tables.
type Feed interface {
	Name() string
	Download(ctx context.Context, symbols []string, period, interval string) (Table, error)
}
