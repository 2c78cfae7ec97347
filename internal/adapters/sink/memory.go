package sink

import (
	"context"
	"sort"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/patrickmn/go-cache"
)

// Memory keeps the latest snapshot per exchange in process. Entries expire
// after ttl so a dead exchange drops out of the snapshot.
type Memory struct {
	cache *cache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{cache: cache.New(ttl, ttl*2)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Publish(_ context.Context, qs domain.QuoteSet) error {
	if qs.FetchedAt.IsZero() {
		qs.FetchedAt = time.Now().UTC()
	}
	m.cache.Set(qs.Exchange, qs, cache.DefaultExpiration)
	return nil
}

func (m *Memory) Get(exchange string) (domain.QuoteSet, bool) {
	v, ok := m.cache.Get(exchange)
	if !ok {
		return domain.QuoteSet{}, false
	}
	return v.(domain.QuoteSet), true
}

// All returns the unexpired snapshots ordered by exchange id.
func (m *Memory) All() []domain.QuoteSet {
	items := m.cache.Items()
	out := make([]domain.QuoteSet, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(domain.QuoteSet))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}
