package rates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bullionrates/internal/feed"
)

var (
	// ErrNoData means the feed failed or returned no rows at all.
	ErrNoData = errors.New("No data received from price feed")
	// ErrMissingData means at least one required symbol had no valid observation.
	ErrMissingData = errors.New("missing or NaN data")
	// ErrInvalidPrice means a required observation was zero or negative.
	ErrInvalidPrice = errors.New("non-positive price")
)

// Symbols names the feed tickers for each required quote.
type Symbols struct {
	Gold   string
	Silver string
	USDINR string
}

// DefaultSymbols are the gold future, silver future and USD/INR tickers.
var DefaultSymbols = Symbols{Gold: "GC=F", Silver: "SI=F", USDINR: "USDINR=X"}

// List returns the symbols in request order.
func (s Symbols) List() []string { return []string{s.Gold, s.Silver, s.USDINR} }

// Gate resolves the latest valid observation of every required symbol.
// It is all-or-nothing: if any symbol is unavailable the whole table is
// rejected and every missing symbol is named in the error. The returned time
// is the newest of the three observation timestamps.
func Gate(t feed.Table, s Symbols) (Inputs, time.Time, error) {
	if t.Empty() {
		return Inputs{}, time.Time{}, ErrNoData
	}

	found, missing := feed.LatestAll(t, s.List())
	if len(missing) > 0 {
		return Inputs{}, time.Time{}, fmt.Errorf("%w for: %s", ErrMissingData, strings.Join(missing, ", "))
	}

	var ts time.Time
	for _, sym := range s.List() {
		o := found[sym]
		if *o.Close <= 0 {
			return Inputs{}, time.Time{}, fmt.Errorf("%w for %s: %v", ErrInvalidPrice, sym, *o.Close)
		}
		if o.Time.After(ts) {
			ts = o.Time
		}
	}

	return Inputs{
		GoldUSDPerOz:   *found[s.Gold].Close,
		SilverUSDPerOz: *found[s.Silver].Close,
		USDINR:         *found[s.USDINR].Close,
	}, ts, nil
}
