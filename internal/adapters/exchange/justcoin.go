package exchange

import (
	"context"
	"fmt"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

var justcoinMarkets = map[string]string{
	"BTCEUR": "EUR",
	"BTCNOK": "NOK",
}

var justcoinMapping = Mapping{
	Ask:    Nullable("ask"),
	Bid:    Nullable("bid"),
	Last:   Nullable("last"),
	Volume: Field{Path: "volume", Nullable: true, ZeroIfNull: true},
}

// Justcoin returns every market in one array; markets are picked by id.
type Justcoin struct {
	client *Client
}

func NewJustcoin(client *Client) *Justcoin {
	return &Justcoin{client: client}
}

func (j *Justcoin) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	const name = "justcoin"
	url, err := requireParam(name, params, "ticker_url")
	if err != nil {
		return nil, err
	}
	doc, err := j.client.GetJSON(ctx, name, url)
	if err != nil {
		return nil, err
	}
	if !doc.IsArray() {
		return nil, domain.NewFetchError(name, fmt.Errorf("expected a market array"))
	}

	out := make(domain.Quotes)
	for _, market := range doc.Array() {
		code, ok := justcoinMarkets[market.Get("id").String()]
		if !ok {
			continue
		}
		q, err := j.client.quote(name, market, justcoinMapping)
		if err != nil {
			return nil, err
		}
		out[code] = q
	}
	return out, nil
}
