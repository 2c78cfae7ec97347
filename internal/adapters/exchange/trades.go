package exchange

import (
	"context"
	"fmt"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const tradeWindowSeconds = 24 * 60 * 60

// tradeSummary holds the volume traded in the last 24 hours and the price of
// the newest trade in that window.
type tradeSummary struct {
	volume decimal.Decimal
	last   decimal.Decimal
}

func (c *Client) summarizeTrades(exchange string, trades gjson.Result) (tradeSummary, error) {
	if !trades.IsArray() {
		return tradeSummary{}, domain.NewFetchError(exchange, fmt.Errorf("expected a trade array"))
	}
	cutoff := c.now().Unix() - tradeWindowSeconds

	var s tradeSummary
	for _, trade := range trades.Array() {
		if trade.Get("date").Int() <= cutoff {
			continue
		}
		amount, err := parseDecimal(trade.Get("amount"))
		if err != nil {
			return tradeSummary{}, domain.NewFetchError(exchange, fmt.Errorf("trade amount: %w", err))
		}
		s.volume = s.volume.Add(amount)
		if price := trade.Get("price"); !isNull(price) {
			if p, err := parseDecimal(price); err == nil {
				s.last = p
			}
		}
	}
	return s, nil
}

// Bitcurex has no volume in its ticker; it is summed from the trade list.
type Bitcurex struct {
	client *Client
}

func NewBitcurex(client *Client) *Bitcurex {
	return &Bitcurex{client: client}
}

func (b *Bitcurex) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	const name = "bitcurex"
	urls, err := urlParams(name, params, "eur_ticker_url", "eur_trades_url", "pln_ticker_url", "pln_trades_url")
	if err != nil {
		return nil, err
	}
	docs, err := b.client.GetAllJSON(ctx, name, urls)
	if err != nil {
		return nil, err
	}

	out := make(domain.Quotes, 2)
	for code, prefix := range map[string]string{"EUR": "eur", "PLN": "pln"} {
		ticker := docs[prefix+"_ticker_url"]
		var q domain.Quote
		if q.Ask, err = b.client.value(name, ticker, Required("sell")); err != nil {
			return nil, err
		}
		if q.Bid, err = b.client.value(name, ticker, Required("buy")); err != nil {
			return nil, err
		}
		if q.Last, err = b.client.value(name, ticker, Required("last")); err != nil {
			return nil, err
		}
		trades, err := b.client.summarizeTrades(name, docs[prefix+"_trades_url"])
		if err != nil {
			return nil, err
		}
		q.Volume = b.client.round(trades.volume)
		out[code] = q
	}
	return out, nil
}

// Bit2c takes ask and bid from the top of the order book.
type Bit2c struct {
	client *Client
}

func NewBit2c(client *Client) *Bit2c {
	return &Bit2c{client: client}
}

func (b *Bit2c) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	const name = "bit2c"
	urls, err := urlParams(name, params, "ticker_url", "orders_url", "trades_url")
	if err != nil {
		return nil, err
	}
	docs, err := b.client.GetAllJSON(ctx, name, urls)
	if err != nil {
		return nil, err
	}

	var q domain.Quote
	if q.Ask, err = b.client.value(name, docs["orders_url"], Required("asks.0.0")); err != nil {
		return nil, err
	}
	if q.Bid, err = b.client.value(name, docs["orders_url"], Required("bids.0.0")); err != nil {
		return nil, err
	}
	if q.Last, err = b.client.value(name, docs["ticker_url"], Required("ll")); err != nil {
		return nil, err
	}
	trades, err := b.client.summarizeTrades(name, docs["trades_url"])
	if err != nil {
		return nil, err
	}
	q.Volume = b.client.round(trades.volume)
	return domain.Quotes{"ILS": q}, nil
}

// RockTrading derives last price and volume from the trade list.
type RockTrading struct {
	client *Client
}

func NewRockTrading(client *Client) *RockTrading {
	return &RockTrading{client: client}
}

func (r *RockTrading) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	const name = "rocktrading"
	urls, err := urlParams(name, params, "eur_ticker_url", "eur_trades_url")
	if err != nil {
		return nil, err
	}
	docs, err := r.client.GetAllJSON(ctx, name, urls)
	if err != nil {
		return nil, err
	}

	var q domain.Quote
	ticker := docs["eur_ticker_url"]
	if !ticker.Get("result.0").Exists() {
		return nil, domain.NewFetchError(name, fmt.Errorf("missing field %q", "result.0"))
	}
	if q.Ask, err = r.client.value(name, ticker, Optional("result.0.ask")); err != nil {
		return nil, err
	}
	if q.Bid, err = r.client.value(name, ticker, Optional("result.0.bid")); err != nil {
		return nil, err
	}
	trades, err := r.client.summarizeTrades(name, docs["eur_trades_url"])
	if err != nil {
		return nil, err
	}
	q.Last = r.client.round(trades.last)
	q.Volume = r.client.round(trades.volume)
	return domain.Quotes{"EUR": q}, nil
}
