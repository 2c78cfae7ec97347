package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/adapters/log"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/FrancoRivero2025/quote-average/internal/domain/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) SetLevel(level int)                     {}
func (m *MockLogger) SetOutput(w io.Writer)                  {}
func (m *MockLogger) SetOutputToFile(filename string) error  { return nil }
func (m *MockLogger) GetLevel() int                          { return 0 }
func (m *MockLogger) Debug(message string, v ...interface{}) {}
func (m *MockLogger) Info(message string, v ...interface{})  {}
func (m *MockLogger) Warn(message string, v ...interface{}) {
	m.Called(fmt.Sprintf(message, v...))
}
func (m *MockLogger) Error(message string, v ...interface{}) {
	m.Called(fmt.Sprintf(message, v...))
}
func (m *MockLogger) Fatal(message string, v ...interface{}) {}

var start = time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)

func createQuotes(currency, last string) domain.Quotes {
	d := decimal.RequireFromString(last)
	return domain.Quotes{
		currency: {
			Ask:    decimal.NewNullDecimal(d.Add(decimal.NewFromInt(1))),
			Bid:    decimal.NewNullDecimal(d.Sub(decimal.NewFromInt(1))),
			Last:   decimal.NewNullDecimal(d),
			Volume: decimal.NewNullDecimal(decimal.NewFromInt(12)),
		},
	}
}

func sameMap(a, b domain.Quotes) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func setupLogger(t *testing.T) *MockLogger {
	t.Helper()
	mockLogger := new(MockLogger)
	original := log.GetInstance()
	log.SetInstance(mockLogger)
	t.Cleanup(func() { log.SetInstance(original) })
	return mockLogger
}

func newTestController(t *testing.T, f domain.Fetcher, p Policy) (*Controller, *mocks.FakeClock) {
	t.Helper()
	clock := mocks.NewFakeClock(start)
	c := NewController(map[string]Exchange{
		"bitstamp": {Fetcher: f, Policy: p, Params: domain.Params{"api_url": "http://bitstamp.test"}},
	}, WithClock(clock))
	return c, clock
}

func failuresOf(c *Controller, exchange string) int {
	for _, st := range c.Status() {
		if st.Exchange == exchange {
			return st.Failures
		}
	}
	return -1
}

func TestController_FirstCallAlwaysFetches(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, _ := newTestController(t, fetcher, Policy{QueryFrequency: 300 * time.Second})

	qs, err := c.GetQuotes(context.Background(), "bitstamp", domain.Params{"api_url": "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.GetCallCount())
	assert.Equal(t, domain.SourceAPI, qs.Source)
	assert.Equal(t, "bitstamp", qs.Exchange)
	assert.Equal(t, start, qs.FetchedAt)
	assert.Equal(t, domain.Params{"api_url": "x"}, fetcher.LastParams())
}

func TestController_FreshCacheWithinQueryFrequency(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{QueryFrequency: 300 * time.Second})
	ctx := context.Background()

	first, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	clock.Advance(100 * time.Second)
	second, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)
	third, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.GetCallCount())
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.Equal(t, domain.SourceCache, third.Source)
	assert.True(t, sameMap(first.Quotes, second.Quotes))
	assert.True(t, sameMap(second.Quotes, third.Quotes))
	assert.Equal(t, first.FetchedAt, third.FetchedAt)
}

func TestController_RefetchOnceQueryFrequencyElapsed(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{QueryFrequency: 300 * time.Second})
	ctx := context.Background()

	_, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	fetcher.SetResponse(createQuotes("USD", "51000.00"))
	qs, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.GetCallCount())
	assert.Equal(t, domain.SourceAPI, qs.Source)
	assert.Equal(t, "51000", qs.Quotes["USD"].Last.Decimal.String())
}

func TestController_ZeroQueryFrequencyAlwaysFetches(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, _ := newTestController(t, fetcher, Policy{})

	for i := 0; i < 3; i++ {
		qs, err := c.Get(context.Background(), "bitstamp")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceAPI, qs.Source)
	}
	assert.Equal(t, 3, fetcher.GetCallCount())
}

func TestController_GraceWindowServesCacheOnFailure(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", "bitstamp call failed, 1 fails in a row, using cache, cache age 60s").Return().Once()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: 600 * time.Second})
	ctx := context.Background()

	live, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	clock.Advance(60 * time.Second)
	fetcher.SetError(domain.NewFetchError("bitstamp", errors.New("connection refused")))

	qs, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFallback, qs.Source)
	assert.True(t, qs.Source.IsCached())
	assert.True(t, sameMap(live.Quotes, qs.Quotes))
	assert.Equal(t, live.FetchedAt, qs.FetchedAt)
	assert.Equal(t, 1, failuresOf(c, "bitstamp"))
	mockLogger.AssertExpectations(t)
}

func TestController_HardFailureAfterGraceWindow(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Error", "bitstamp call failed, 1 fails in a row, last successful call at Tue, 12 Mar 2024 09:00:00 +0000, cache timeout, exchange ignored").Return().Once()
	mockLogger.On("Error", "bitstamp call failed, 2 fails in a row, last successful call at Tue, 12 Mar 2024 09:00:00 +0000, cache timeout, exchange ignored").Return().Once()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: 600 * time.Second})
	ctx := context.Background()

	_, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	clock.Advance(601 * time.Second)
	cause := domain.NewFetchError("bitstamp", errors.New("timeout"))
	fetcher.SetError(cause)

	_, err = c.Get(ctx, "bitstamp")
	var unavailable *domain.ExchangeUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, "bitstamp", unavailable.Exchange)
	assert.Equal(t, 1, unavailable.Failures)
	assert.Equal(t, "09:00", unavailable.LastSuccessText)
	assert.Equal(t, start, unavailable.LastSuccess)

	_, err = c.Get(ctx, "bitstamp")
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 2, unavailable.Failures)
	assert.Equal(t, 2, failuresOf(c, "bitstamp"))
	mockLogger.AssertExpectations(t)
}

func TestController_GraceBoundaryIsExclusive(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Error", mock.Anything).Return()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: 600 * time.Second})

	_, err := c.Get(context.Background(), "bitstamp")
	require.NoError(t, err)

	clock.Advance(600 * time.Second)
	fetcher.SetError(errors.New("boom"))
	_, err = c.Get(context.Background(), "bitstamp")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestController_NeverSucceededAfterStartupWindow(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Error", "bitstamp call failed, 1 fails in a row, last successful call at never, cache timeout, exchange ignored").Return().Once()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetError(errors.New("no route to host"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: 600 * time.Second})

	clock.Advance(601 * time.Second)
	_, err := c.Get(context.Background(), "bitstamp")

	var unavailable *domain.ExchangeUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.True(t, unavailable.LastSuccess.IsZero())
	assert.Equal(t, "09:10", unavailable.LastSuccessText)
	mockLogger.AssertExpectations(t)
}

func TestController_NeverSucceededDuringStartupWindow(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", "bitstamp call failed, 1 fails in a row, no data yet, warming up").Return().Once()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetError(errors.New("no route to host"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: 600 * time.Second})

	clock.Advance(30 * time.Second)
	qs, err := c.Get(context.Background(), "bitstamp")

	assert.True(t, qs.IsEmpty())
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	mockLogger.AssertExpectations(t)
	mockLogger.AssertNotCalled(t, "Error", mock.Anything)
}

func TestController_SuccessResetsFailureStreak(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", mock.Anything).Return()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: time.Hour})
	ctx := context.Background()

	_, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	fetcher.SetError(errors.New("bad gateway"))
	for i := 1; i <= 5; i++ {
		clock.Advance(10 * time.Second)
		qs, err := c.Get(ctx, "bitstamp")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceFallback, qs.Source)
		assert.Equal(t, i, failuresOf(c, "bitstamp"))
	}

	fetcher.SetResponse(createQuotes("USD", "52000.00"))
	qs, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAPI, qs.Source)
	assert.Equal(t, 0, failuresOf(c, "bitstamp"))
}

func TestController_FailureNeverOverwritesCache(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", mock.Anything).Return()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, clock := newTestController(t, fetcher, Policy{IgnoreTimeout: time.Hour})
	ctx := context.Background()

	live, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	fetcher.SetResponse(domain.Quotes{})
	clock.Advance(time.Second)
	qs, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFallback, qs.Source)
	assert.True(t, sameMap(live.Quotes, qs.Quotes))
	assert.Equal(t, "50000", qs.Quotes["USD"].Last.Decimal.String())
}

func TestController_PreviousDayRendering(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Error", mock.Anything).Return()

	clock := mocks.NewFakeClock(time.Date(2024, 3, 11, 23, 50, 0, 0, time.UTC))
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("EUR", "45000.00"))
	c := NewController(map[string]Exchange{
		"kraken": {Fetcher: fetcher, Policy: Policy{IgnoreTimeout: time.Hour}},
	}, WithClock(clock))

	_, err := c.Get(context.Background(), "kraken")
	require.NoError(t, err)

	clock.Set(time.Date(2024, 3, 12, 9, 20, 0, 0, time.UTC))
	fetcher.SetError(errors.New("down"))

	_, err = c.Get(context.Background(), "kraken")
	var unavailable *domain.ExchangeUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "11 Mar, 23:50", unavailable.LastSuccessText)
	assert.Contains(t, unavailable.Error(), "11 Mar, 23:50")
}

func TestController_DefaultIgnoreTimeout(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", mock.Anything).Return()
	mockLogger.On("Error", mock.Anything).Return()

	clock := mocks.NewFakeClock(start)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "1.00"))
	c := NewController(map[string]Exchange{"bitstamp": {Fetcher: fetcher}},
		WithClock(clock), WithDefaultIgnoreTimeout(2*time.Minute))

	_, err := c.Get(context.Background(), "bitstamp")
	require.NoError(t, err)
	fetcher.SetError(errors.New("down"))

	clock.Advance(119 * time.Second)
	qs, err := c.Get(context.Background(), "bitstamp")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, qs.Source)

	clock.Advance(time.Second)
	_, err = c.Get(context.Background(), "bitstamp")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestController_UnknownExchange(t *testing.T) {
	setupLogger(t)
	c, _ := newTestController(t, mocks.NewMockFetcher(), Policy{})

	_, err := c.GetQuotes(context.Background(), "mtgox", nil)

	var unknown *domain.UnknownExchangeError
	require.ErrorAs(t, err, &unknown)
	assert.ErrorIs(t, err, domain.ErrMisconfigured)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)
	for _, st := range c.Status() {
		assert.NotEqual(t, "mtgox", st.Exchange)
	}
}

func TestController_ParamErrorIsNotCounted(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Error", "bitstamp is misconfigured: bitstamp: missing parameter \"api_url\"").Return().Once()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetError(&domain.ParamError{Exchange: "bitstamp", Param: "api_url"})
	c, _ := newTestController(t, fetcher, Policy{})

	_, err := c.GetQuotes(context.Background(), "bitstamp", domain.Params{})

	var pe *domain.ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, failuresOf(c, "bitstamp"))
	mockLogger.AssertExpectations(t)
}

func TestController_FetcherPanicIsAFailure(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", mock.Anything).Return()

	fetcher := mocks.NewMockFetcher()
	fetcher.SetPanic(true)
	c, _ := newTestController(t, fetcher, Policy{})

	_, err := c.Get(context.Background(), "bitstamp")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, 1, failuresOf(c, "bitstamp"))
}

func TestController_ConcurrentCallersShareOneFetch(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	fetcher.SetDelay(100 * time.Millisecond)
	c, _ := newTestController(t, fetcher, Policy{QueryFrequency: 300 * time.Second})

	const callers = 10
	results := make([]domain.QuoteSet, callers)
	var wg sync.WaitGroup
	ready := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			qs, err := c.Get(context.Background(), "bitstamp")
			assert.NoError(t, err)
			results[i] = qs
		}(i)
	}
	close(ready)
	wg.Wait()

	assert.Equal(t, 1, fetcher.GetCallCount())
	for _, qs := range results {
		assert.True(t, sameMap(results[0].Quotes, qs.Quotes))
	}
}

func TestController_CanceledCallerDoesNotCancelFetch(t *testing.T) {
	setupLogger(t)
	var sawCanceled bool
	fetcher := domain.FetcherFunc(func(ctx context.Context, params domain.Params) (domain.Quotes, error) {
		sawCanceled = ctx.Err() != nil
		return createQuotes("USD", "1.00"), nil
	})
	c, _ := newTestController(t, fetcher, Policy{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "bitstamp")
	require.NoError(t, err)
	assert.False(t, sawCanceled)
}

func TestController_ExchangesAreIndependent(t *testing.T) {
	mockLogger := setupLogger(t)
	mockLogger.On("Warn", mock.Anything).Return()

	good := mocks.NewMockFetcher()
	good.SetResponse(createQuotes("USD", "50000.00"))
	bad := mocks.NewMockFetcher()
	bad.SetError(errors.New("down"))

	clock := mocks.NewFakeClock(start)
	c := NewController(map[string]Exchange{
		"bitstamp": {Fetcher: good},
		"btce":     {Fetcher: bad},
	}, WithClock(clock))

	results := c.GetAll(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["bitstamp"].Err)
	assert.Equal(t, domain.SourceAPI, results["bitstamp"].QuoteSet.Source)
	assert.ErrorIs(t, results["btce"].Err, domain.ErrUnavailable)

	status := c.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "bitstamp", status[0].Exchange)
	assert.True(t, status[0].HasData)
	assert.Equal(t, start, status[0].LastSuccess)
	assert.Equal(t, 0, status[0].Failures)
	assert.Equal(t, "btce", status[1].Exchange)
	assert.False(t, status[1].HasData)
	assert.Equal(t, 1, status[1].Failures)
}

func TestController_GetManyReportsUnknown(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, _ := newTestController(t, fetcher, Policy{})

	results := c.GetMany(context.Background(), map[string]domain.Params{
		"bitstamp": {"api_url": "x"},
		"nope":     nil,
	})
	assert.NoError(t, results["bitstamp"].Err)
	assert.ErrorIs(t, results["nope"].Err, domain.ErrMisconfigured)
}

func TestController_Exchanges(t *testing.T) {
	c := NewController(map[string]Exchange{
		"kraken":   {Fetcher: mocks.NewMockFetcher()},
		"bitstamp": {Fetcher: mocks.NewMockFetcher()},
	})
	assert.Equal(t, []string{"bitstamp", "kraken"}, c.Exchanges())
}

func TestController_GetExchangesUsesConfiguredParams(t *testing.T) {
	setupLogger(t)
	fetcher := mocks.NewMockFetcher()
	fetcher.SetResponse(createQuotes("USD", "50000.00"))
	c, _ := newTestController(t, fetcher, Policy{})

	results := c.GetExchanges(context.Background(), "bitstamp", "mtgox")

	require.Len(t, results, 2)
	assert.NoError(t, results["bitstamp"].Err)
	assert.Equal(t, "http://bitstamp.test", fetcher.LastParams()["api_url"])
	var unknown *domain.UnknownExchangeError
	assert.ErrorAs(t, results["mtgox"].Err, &unknown)
}
