package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Observation is one (ticker, timestamp, price) sample produced by a poll cycle.
type Observation struct {
	Ticker string    // Symbol as configured (e.g., "msft")
	Time   time.Time // When the price was observed
	Price  float64   // Current price
}

// TickerSet is the ordered list of symbols polled every cycle.
// Order determines polling order and nothing else.
type TickerSet []string

// ErrEmptyTickerSet is returned when a ticker list contains no symbols.
var ErrEmptyTickerSet = errors.New("ticker set is empty")

// ParseTickerSet splits a comma-separated ticker list, trimming whitespace
// around each symbol and preserving order.
func ParseTickerSet(s string) (TickerSet, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyTickerSet
	}

	parts := strings.Split(s, ",")
	set := make(TickerSet, 0, len(parts))
	for i, p := range parts {
		sym := strings.TrimSpace(p)
		if sym == "" {
			return nil, fmt.Errorf("ticker %d in %q is empty", i+1, s)
		}
		set = append(set, sym)
	}

	return set, nil
}

// String returns the comma-separated form of the set.
func (t TickerSet) String() string {
	return strings.Join(t, ",")
}
