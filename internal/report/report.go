// Package report renders observations for humans.
package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/ticker-feed/internal/model"
)

// Timestamp layouts used in report lines. The fractional part is dropped
// when the observation falls on a whole second.
const (
	TimeLayout        = "2006-01-02 15:04:05.000000"
	WholeSecondLayout = "2006-01-02 15:04:05"
)

// Console writes one line per observation.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Report writes "<timestamp>: Ticker <symbol> is currently: <price>".
func (c *Console) Report(obs model.Observation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, Line(obs)+"\n")
	return err
}

// HandleObservation implements poller.Handler.
func (c *Console) HandleObservation(_ context.Context, obs model.Observation) error {
	return c.Report(obs)
}

// Line formats obs without a trailing newline.
func Line(obs model.Observation) string {
	return fmt.Sprintf("%s: Ticker %s is currently: %s",
		FormatTime(obs.Time),
		obs.Ticker,
		FormatPrice(obs.Price),
	)
}

// FormatTime renders t to microsecond precision.
func FormatTime(t time.Time) string {
	t = t.Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(WholeSecondLayout)
	}
	return t.Format(TimeLayout)
}

// FormatPrice renders p with the fewest digits that round-trip. Whole
// numbers keep a ".0"; magnitudes below 1e-4 or from 1e16 up switch to
// exponent form (1e+16, 1.5e-05).
func FormatPrice(p float64) string {
	switch {
	case math.IsNaN(p):
		return "nan"
	case math.IsInf(p, 1):
		return "inf"
	case math.IsInf(p, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(p, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
