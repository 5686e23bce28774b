package poller

import (
	"context"

	"github.com/rickgao/ticker-feed/internal/model"
)

// Handler receives each observation produced by a poll cycle.
type Handler interface {
	HandleObservation(ctx context.Context, obs model.Observation) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(context.Context, model.Observation) error

func (f HandlerFunc) HandleObservation(ctx context.Context, obs model.Observation) error {
	return f(ctx, obs)
}

// Handlers fans an observation out to several handlers in order, stopping at
// the first error.
func Handlers(hs ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, obs model.Observation) error {
		for _, h := range hs {
			if h == nil {
				continue
			}
			if err := h.HandleObservation(ctx, obs); err != nil {
				return err
			}
		}
		return nil
	})
}
