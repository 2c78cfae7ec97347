package domain

import (
	"context"
	"time"
)

// Fetcher performs the network calls for one exchange and returns its
// normalized quotes. A single failed sub-request fails the whole call.
type Fetcher interface {
	Fetch(ctx context.Context, params Params) (Quotes, error)
}

type FetcherFunc func(ctx context.Context, params Params) (Quotes, error)

func (f FetcherFunc) Fetch(ctx context.Context, params Params) (Quotes, error) {
	return f(ctx, params)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Publisher receives every successfully obtained QuoteSet.
type Publisher interface {
	Publish(ctx context.Context, qs QuoteSet) error
}
