package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where a QuoteSet came from so consumers can discount stale data.
type Source string

const (
	SourceAPI      Source = "api"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

func (s Source) IsCached() bool {
	return s == SourceCache || s == SourceFallback
}

// Quote is the normalized market data for one currency. Fields the exchange
// does not report are left invalid and marshal as null.
type Quote struct {
	Ask    decimal.NullDecimal `json:"ask"`
	Bid    decimal.NullDecimal `json:"bid"`
	Last   decimal.NullDecimal `json:"last"`
	Volume decimal.NullDecimal `json:"volume"`
}

// Quotes maps a currency code to its quote.
type Quotes map[string]Quote

type QuoteSet struct {
	Exchange  string    `json:"exchange"`
	Quotes    Quotes    `json:"quotes"`
	Source    Source    `json:"data_source"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (q QuoteSet) IsEmpty() bool {
	return len(q.Quotes) == 0
}

// Params carries exchange specific connection parameters (URLs, keys).
type Params map[string]string

// ExchangeStatus is a read-only view of one exchange's cache slot.
type ExchangeStatus struct {
	Exchange    string    `json:"exchange"`
	LastSuccess time.Time `json:"last_success"`
	Failures    int       `json:"consecutive_failures"`
	HasData     bool      `json:"has_data"`
}
