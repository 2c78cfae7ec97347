package exchange

import (
	"context"
	"fmt"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/shopspring/decimal"
)

// BitBargain is an OTC market: the 24h average is both ask and last, there
// are no bids, and volume is reported in GBP.
type BitBargain struct {
	client *Client
}

func NewBitBargain(client *Client) *BitBargain {
	return &BitBargain{client: client}
}

func (b *BitBargain) Fetch(ctx context.Context, params domain.Params) (domain.Quotes, error) {
	const name = "bitbargain"
	url, err := requireParam(name, params, "gbp_api_url")
	if err != nil {
		return nil, err
	}
	doc, err := b.client.GetJSON(ctx, name, url)
	if err != nil {
		return nil, err
	}

	avgField, volField := doc.Get("response.avg_24h"), doc.Get("response.vol_24h")
	average, volume := decimal.Zero, decimal.Zero
	if !isNull(avgField) && !isNull(volField) {
		if average, err = parseDecimal(avgField); err != nil {
			return nil, domain.NewFetchError(name, fmt.Errorf("avg_24h: %w", err))
		}
		gbp, err := parseDecimal(volField)
		if err != nil {
			return nil, domain.NewFetchError(name, fmt.Errorf("vol_24h: %w", err))
		}
		if average.IsZero() {
			return nil, domain.NewFetchError(name, fmt.Errorf("avg_24h is zero"))
		}
		volume = gbp.Div(average)
	}

	return domain.Quotes{"GBP": {
		Ask:    b.client.round(average),
		Last:   b.client.round(average),
		Volume: b.client.round(volume),
	}}, nil
}
