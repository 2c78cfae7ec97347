package exchange

import (
	"context"
	"fmt"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

// Currency binds a currency code to the param holding its ticker URL. Several
// currencies may share one URL; Prefix then selects the currency's object
// inside the shared document.
type Currency struct {
	Code   string
	Param  string
	Prefix string
}

// Ticker is a fetcher for exchanges that publish one JSON ticker per
// currency (or one document for all of them) with fixed field paths.
type Ticker struct {
	name       string
	client     *Client
	mapping    Mapping
	currencies []Currency
}

func NewTicker(name string, client *Client, mapping Mapping, currencies ...Currency) *Ticker {
	return &Ticker{name: name, client: client, mapping: mapping, currencies: currencies}
}

func (t *Ticker) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	names := make([]string, 0, len(t.currencies))
	seen := make(map[string]bool, len(t.currencies))
	for _, cur := range t.currencies {
		if !seen[cur.Param] {
			seen[cur.Param] = true
			names = append(names, cur.Param)
		}
	}
	urls, err := urlParams(t.name, params, names...)
	if err != nil {
		return nil, err
	}

	docs, err := t.client.GetAllJSON(ctx, t.name, urls)
	if err != nil {
		return nil, err
	}

	out := make(domain.Quotes, len(t.currencies))
	for _, cur := range t.currencies {
		doc := docs[cur.Param]
		if cur.Prefix != "" && !doc.Get(cur.Prefix).Exists() {
			return nil, domain.NewFetchError(t.name, fmt.Errorf("missing field %q", cur.Prefix))
		}
		q, err := t.client.quote(t.name, doc, t.mapping.prefixed(cur.Prefix))
		if err != nil {
			return nil, err
		}
		out[cur.Code] = q
	}
	return out, nil
}
