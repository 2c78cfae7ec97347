package refresher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/adapters/log"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/panjf2000/ants/v2"
)

const DefaultWorkers = 8

// QuoteSource is the part of the controller the refresher drives.
type QuoteSource interface {
	Exchanges() []string
	Get(ctx context.Context, exchangeID string) (domain.QuoteSet, error)
}

// Round summarizes one refresh pass.
type Round struct {
	Published   int
	Unavailable int
	Failed      int
}

// Refresher polls every configured exchange on a fixed interval so the
// controller's cache stays warm between client requests.
type Refresher struct {
	source    QuoteSource
	publisher domain.Publisher
	interval  time.Duration
	pool      *ants.Pool

	mu      sync.Mutex
	started bool
	stopped bool
	quit    chan struct{}
	done    chan struct{}
	stop    sync.Once
}

func NewRefresher(source QuoteSource, publisher domain.Publisher, interval time.Duration, workers int) (*Refresher, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Refresher{
		source:    source,
		publisher: publisher,
		interval:  interval,
		pool:      pool,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// RunOnce queries every exchange once through the worker pool and waits for
// all of them.
func (r *Refresher) RunOnce(ctx context.Context) Round {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		round Round
	)
	record := func(fn func(*Round)) {
		mu.Lock()
		fn(&round)
		mu.Unlock()
	}

	for _, id := range r.source.Exchanges() {
		id := id
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			qs, err := r.source.Get(ctx, id)
			switch {
			case errors.Is(err, domain.ErrUnavailable):
				record(func(rd *Round) { rd.Unavailable++ })
				return
			case err != nil:
				record(func(rd *Round) { rd.Failed++ })
				return
			}
			if r.publisher == nil {
				return
			}
			if err := r.publisher.Publish(ctx, qs); err != nil {
				log.GetInstance().Warn("publish %s snapshot failed: %v", id, err)
				record(func(rd *Round) { rd.Failed++ })
				return
			}
			record(func(rd *Round) { rd.Published++ })
		})
		if err != nil {
			wg.Done()
			log.GetInstance().Error("refresh %s not scheduled: %v", id, err)
			record(func(rd *Round) { rd.Failed++ })
		}
	}
	wg.Wait()

	log.GetInstance().Debug("refresh round: %d published, %d unavailable, %d failed",
		round.Published, round.Unavailable, round.Failed)
	return round
}

// Start runs a refresh round every interval until Stop. Calling it more than
// once has no effect.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped || r.interval <= 0 {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(r.done)
		defer cancel()
		t := time.NewTicker(r.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				r.RunOnce(ctx)
			case <-r.quit:
				return
			}
		}
	}()
}

// Stop ends the polling loop, waits for the round in progress and releases
// the pool. It is safe to call more than once.
func (r *Refresher) Stop() {
	r.stop.Do(func() {
		r.mu.Lock()
		r.stopped = true
		started := r.started
		r.mu.Unlock()
		close(r.quit)
		if started {
			<-r.done
		}
		r.pool.Release()
	})
}
