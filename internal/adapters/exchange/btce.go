package exchange

import (
	"context"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

// BTCe reports buy and sell swapped on some pairs; the lower of the two is
// always taken as the bid.
type BTCe struct {
	client *Client
}

var btceCurrencies = []Currency{
	{Code: "USD", Param: "usd_api_url"},
	{Code: "EUR", Param: "eur_api_url"},
	{Code: "RUB", Param: "rur_api_url"},
}

var btceMapping = Mapping{
	Ask:    Required("ticker.sell"),
	Bid:    Required("ticker.buy"),
	Last:   Required("ticker.last"),
	Volume: Required("ticker.vol_cur"),
}

func NewBTCe(client *Client) *BTCe {
	return &BTCe{client: client}
}

func (b *BTCe) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	quotes, err := NewTicker("btce", b.client, btceMapping, btceCurrencies...).Fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	for code, q := range quotes {
		if q.Ask.Decimal.LessThan(q.Bid.Decimal) {
			q.Ask, q.Bid = q.Bid, q.Ask
			quotes[code] = q
		}
	}
	return quotes, nil
}
