package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/adapters/log"
	"github.com/FrancoRivero2025/quote-average/internal/adapters/metrics"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"golang.org/x/sync/singleflight"
)

const DefaultIgnoreTimeout = 10 * time.Minute

var errNoQuotes = errors.New("exchange returned no quotes")

// Policy holds the static timing configuration of one exchange.
type Policy struct {
	// QueryFrequency is the minimum interval between two network fetches.
	// Zero means every call fetches.
	QueryFrequency time.Duration
	// IgnoreTimeout is how long cached data may stand in for failed fetches.
	// Zero falls back to the controller default.
	IgnoreTimeout time.Duration
}

type Exchange struct {
	Fetcher domain.Fetcher
	Policy  Policy
	Params  domain.Params
}

type Option func(*Controller)

func WithClock(clock domain.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithDefaultIgnoreTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.defaultGrace = d
		}
	}
}

// WithConcurrency bounds how many exchanges GetMany queries at once.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

type slot struct {
	mu          sync.Mutex
	lastSuccess int64
	fetchedAt   time.Time
	result      domain.Quotes
	failures    int
}

func (s *slot) snapshot(exchange string, src domain.Source) domain.QuoteSet {
	return domain.QuoteSet{
		Exchange:  exchange,
		Quotes:    s.result,
		Source:    src,
		FetchedAt: s.fetchedAt,
	}
}

// Controller decides per request whether to fetch from an exchange, reuse the
// cached quotes or report the exchange as unavailable. It keeps one slot per
// exchange for the lifetime of the process.
type Controller struct {
	exchanges    map[string]Exchange
	defaultGrace time.Duration
	clock        domain.Clock
	startedAt    int64
	concurrency  int

	mu    sync.Mutex
	slots map[string]*slot
	sf    singleflight.Group
}

func NewController(exchanges map[string]Exchange, opts ...Option) *Controller {
	c := &Controller{
		exchanges:    make(map[string]Exchange, len(exchanges)),
		defaultGrace: DefaultIgnoreTimeout,
		clock:        domain.SystemClock{},
		concurrency:  8,
		slots:        make(map[string]*slot),
	}
	for id, ex := range exchanges {
		c.exchanges[id] = ex
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.clock.Now().Unix()
	return c
}

func (c *Controller) slot(exchangeID string) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[exchangeID]
	if !ok {
		s = &slot{}
		c.slots[exchangeID] = s
	}
	return s
}

func (c *Controller) graceFor(p Policy) time.Duration {
	if p.IgnoreTimeout > 0 {
		return p.IgnoreTimeout
	}
	return c.defaultGrace
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// GetQuotes returns the quotes of one exchange. Callers only ever see a quote
// set (live or cached, tagged accordingly), a *domain.ExchangeUnavailable, or
// a configuration error wrapping domain.ErrMisconfigured.
func (c *Controller) GetQuotes(ctx context.Context, exchangeID string, params domain.Params) (domain.QuoteSet, error) {
	ex, ok := c.exchanges[exchangeID]
	if !ok {
		return domain.QuoteSet{}, &domain.UnknownExchangeError{Exchange: exchangeID}
	}

	s := c.slot(exchangeID)
	if qs, ok := c.cached(exchangeID, ex.Policy, s); ok {
		return qs, nil
	}

	// One fetch per exchange at a time; callers arriving meanwhile share it.
	v, err, _ := c.sf.Do(exchangeID, func() (interface{}, error) {
		// A flight that finished just before this one may have refreshed the slot.
		if qs, ok := c.cached(exchangeID, ex.Policy, s); ok {
			return qs, nil
		}
		return c.refresh(context.WithoutCancel(ctx), exchangeID, ex, params, s)
	})
	if err != nil {
		return domain.QuoteSet{}, err
	}
	return v.(domain.QuoteSet), nil
}

// cached serves the slot without I/O while the last success is younger than
// the exchange's query frequency.
func (c *Controller) cached(exchangeID string, p Policy, s *slot) (domain.QuoteSet, bool) {
	now := c.clock.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSuccess == 0 || s.lastSuccess+seconds(p.QueryFrequency) <= now {
		return domain.QuoteSet{}, false
	}
	if s.result == nil {
		panic(fmt.Sprintf("quote cache for %s is fresh but holds no data", exchangeID))
	}
	metrics.IncCachePath(exchangeID, metrics.PathFresh)
	return s.snapshot(exchangeID, domain.SourceCache), true
}

// Get queries an exchange with the params it was registered with.
func (c *Controller) Get(ctx context.Context, exchangeID string) (domain.QuoteSet, error) {
	return c.GetQuotes(ctx, exchangeID, c.exchanges[exchangeID].Params)
}

func (c *Controller) fetch(ctx context.Context, exchangeID string, f domain.Fetcher, params domain.Params) (q domain.Quotes, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.GetInstance().Debug("PANIC in fetcher for exchange %s: %v", exchangeID, r)
			q, err = nil, domain.NewFetchError(exchangeID, fmt.Errorf("fetcher panic: %v", r))
		}
	}()

	q, err = f.Fetch(ctx, params)
	if err == nil && len(q) == 0 {
		err = domain.NewFetchError(exchangeID, errNoQuotes)
	}
	return q, err
}

func (c *Controller) refresh(ctx context.Context, exchangeID string, ex Exchange, params domain.Params, s *slot) (domain.QuoteSet, error) {
	now := c.clock.Now()
	started := time.Now()
	quotes, err := c.fetch(ctx, exchangeID, ex.Fetcher, params)
	metrics.ObserveFetch(exchangeID, time.Since(started).Seconds(), err != nil)

	if errors.Is(err, domain.ErrMisconfigured) {
		log.GetInstance().Error("%s is misconfigured: %v", exchangeID, err)
		return domain.QuoteSet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.result = quotes
		s.lastSuccess = now.Unix()
		s.fetchedAt = now
		s.failures = 0
		metrics.SetConsecutiveFailures(exchangeID, 0)
		metrics.IncCachePath(exchangeID, metrics.PathLive)
		return s.snapshot(exchangeID, domain.SourceAPI), nil
	}

	s.failures++
	metrics.SetConsecutiveFailures(exchangeID, s.failures)
	log.GetInstance().Debug("%s fetch error: %v", exchangeID, err)

	nowUnix := now.Unix()
	grace := seconds(c.graceFor(ex.Policy))

	if s.lastSuccess > 0 && s.lastSuccess+grace > nowUnix {
		log.GetInstance().Warn("%s call failed, %d fails in a row, using cache, cache age %ds",
			exchangeID, s.failures, nowUnix-s.lastSuccess)
		metrics.IncCachePath(exchangeID, metrics.PathFallback)
		return s.snapshot(exchangeID, domain.SourceFallback), nil
	}

	unavailable := &domain.ExchangeUnavailable{
		Exchange: exchangeID,
		Failures: s.failures,
		Err:      err,
	}
	lastCall := "never"
	if s.lastSuccess > 0 {
		unavailable.LastSuccess = time.Unix(s.lastSuccess, 0).In(now.Location())
		lastCall = unavailable.LastSuccess.Format(time.RFC1123Z)
	}
	unavailable.LastSuccessText = domain.FormatLastSuccess(unavailable.LastSuccess, now)

	// Never-succeeded exchanges get the grace window counted from startup.
	if s.lastSuccess == 0 && c.startedAt+grace > nowUnix {
		log.GetInstance().Warn("%s call failed, %d fails in a row, no data yet, warming up",
			exchangeID, s.failures)
		metrics.IncCachePath(exchangeID, metrics.PathWarming)
		return domain.QuoteSet{}, unavailable
	}

	log.GetInstance().Error("%s call failed, %d fails in a row, last successful call at %s, cache timeout, exchange ignored",
		exchangeID, s.failures, lastCall)
	metrics.IncCachePath(exchangeID, metrics.PathUnavailable)
	return domain.QuoteSet{}, unavailable
}

// Exchanges lists the registered exchange ids in order.
func (c *Controller) Exchanges() []string {
	ids := make([]string, 0, len(c.exchanges))
	for id := range c.exchanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Controller) Status() []domain.ExchangeStatus {
	ids := c.Exchanges()
	out := make([]domain.ExchangeStatus, 0, len(ids))
	for _, id := range ids {
		st := domain.ExchangeStatus{Exchange: id}

		c.mu.Lock()
		s, ok := c.slots[id]
		c.mu.Unlock()

		if ok {
			s.mu.Lock()
			if s.lastSuccess > 0 {
				st.LastSuccess = time.Unix(s.lastSuccess, 0).UTC()
			}
			st.Failures = s.failures
			st.HasData = s.result != nil
			s.mu.Unlock()
		}
		out = append(out, st)
	}
	return out
}
