package exchange

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDecimalPlaces = 2
	DefaultTimeout       = 15 * time.Second
	maxBodyBytes         = 8 << 20
)

// Client performs the outbound GETs shared by all exchange fetchers. It sets
// the configured request headers and rounds every decimal it extracts.
type Client struct {
	http    *http.Client
	headers map[string]string
	places  int32
	now     func() time.Time
}

type Option func(*Client)

func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		c.headers = make(map[string]string, len(h))
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

func WithDecimalPlaces(places int32) Option {
	return func(c *Client) { c.places = places }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock sets the time source used for trade windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		headers: map[string]string{},
		places:  DefaultDecimalPlaces,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches url and returns the parsed document. Every failure comes
// back as a *domain.FetchError.
func (c *Client) GetJSON(ctx context.Context, exchange, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, domain.NewFetchError(exchange, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, domain.NewFetchError(exchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, domain.NewFetchError(exchange, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, domain.NewFetchError(exchange, fmt.Errorf("GET %s: http %d", url, resp.StatusCode))
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, domain.NewFetchError(exchange, fmt.Errorf("GET %s: malformed JSON", url))
	}
	return gjson.ParseBytes(body), nil
}

// GetAllJSON fetches several documents concurrently, keyed like urls. The
// first failure cancels the remaining requests and fails the whole call.
func (c *Client) GetAllJSON(ctx context.Context, exchange string, urls map[string]string) (map[string]gjson.Result, error) {
	docs := make(map[string]gjson.Result, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for key, url := range urls {
		key, url := key, url
		g.Go(func() error {
			doc, err := c.GetJSON(gctx, exchange, url)
			if err != nil {
				return err
			}
			mu.Lock()
			docs[key] = doc
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// urlParams resolves the named params to URLs, keyed by param name.
func urlParams(exchange string, params domain.Params, names ...string) (map[string]string, error) {
	urls := make(map[string]string, len(names))
	for _, name := range names {
		u, err := requireParam(exchange, params, name)
		if err != nil {
			return nil, err
		}
		urls[name] = u
	}
	return urls, nil
}
