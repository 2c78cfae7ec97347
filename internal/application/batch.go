package application

import (
	"context"
	"sync"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"golang.org/x/sync/errgroup"
)

type Result struct {
	QuoteSet domain.QuoteSet
	Err      error
}

// GetMany queries several exchanges concurrently. Exchanges are independent:
// one failing does not affect the others.
func (c *Controller) GetMany(ctx context.Context, reqs map[string]domain.Params) map[string]Result {
	out := make(map[string]Result, len(reqs))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for id, params := range reqs {
		id, params := id, params
		g.Go(func() error {
			qs, err := c.GetQuotes(ctx, id, params)
			mu.Lock()
			out[id] = Result{QuoteSet: qs, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// GetAll queries every registered exchange with its configured params.
func (c *Controller) GetAll(ctx context.Context) map[string]Result {
	return c.GetExchanges(ctx, c.Exchanges()...)
}

// GetExchanges queries the named exchanges with their configured params.
// Unknown ids come back with an *domain.UnknownExchangeError.
func (c *Controller) GetExchanges(ctx context.Context, ids ...string) map[string]Result {
	reqs := make(map[string]domain.Params, len(ids))
	for _, id := range ids {
		reqs[id] = c.exchanges[id].Params
	}
	return c.GetMany(ctx, reqs)
}
