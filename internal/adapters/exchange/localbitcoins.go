package exchange

import (
	"context"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var localbitcoinsCurrencies = []string{"USD", "EUR", "GBP", "CAD", "NOK", "NZD", "ZAR", "SEK", "AUD"}

// LocalBitcoins publishes OTC averages. The 3h average is preferred over the
// 12h one; with neither the rate and volume are unknown. Currencies missing
// from the document are skipped.
type LocalBitcoins struct {
	client *Client
}

func NewLocalBitcoins(client *Client) *LocalBitcoins {
	return &LocalBitcoins{client: client}
}

func (l *LocalBitcoins) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	const name = "localbitcoins"
	url, err := requireParam(name, params, "api_url")
	if err != nil {
		return nil, err
	}
	doc, err := l.client.GetJSON(ctx, name, url)
	if err != nil {
		return nil, err
	}

	out := make(domain.Quotes)
	for _, code := range localbitcoinsCurrencies {
		q, ok, err := l.currency(name, doc.Get(code))
		if err != nil {
			return nil, err
		}
		if ok {
			out[code] = q
		}
	}
	return out, nil
}

func (l *LocalBitcoins) currency(name string, obj gjson.Result) (domain.Quote, bool, error) {
	vol, avg3, avg12 := obj.Get("volume_btc"), obj.Get("avg_3h"), obj.Get("avg_12h")
	if !obj.Exists() || !vol.Exists() || !avg3.Exists() {
		return domain.Quote{}, false, nil
	}

	rateField := avg3
	if isNull(avg3) {
		if !avg12.Exists() {
			return domain.Quote{}, false, nil
		}
		rateField = avg12
	}

	var q domain.Quote
	if isNull(rateField) {
		return q, true, nil
	}

	rate, err := l.client.parse(name, "avg", rateField)
	if err != nil {
		return q, false, err
	}
	volume, err := l.client.parse(name, "volume_btc", vol)
	if err != nil {
		return q, false, err
	}
	q.Ask, q.Last, q.Volume = rate, rate, volume
	q.Bid = decimal.NullDecimal{}
	return q, true, nil
}
