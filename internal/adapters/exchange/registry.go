package exchange

import (
	"sort"
	"strings"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
)

var (
	// {"data": {"sell": {"value": ...}, ...}}
	valueObjectMapping = Mapping{
		Ask:    Required("data.sell.value"),
		Bid:    Required("data.buy.value"),
		Last:   Required("data.last.value"),
		Volume: Required("data.vol.value"),
	}
	// {"ticker": {"sell": ..., "buy": ..., "last": ..., "vol": ...}}
	nestedTickerMapping = Mapping{
		Ask:    Required("ticker.sell"),
		Bid:    Required("ticker.buy"),
		Last:   Required("ticker.last"),
		Volume: Required("ticker.vol"),
	}
	flatTickerMapping = Mapping{
		Ask:    Required("sell"),
		Bid:    Required("buy"),
		Last:   Required("last"),
		Volume: Required("vol"),
	}
)

var mtgoxCurrencies = []string{
	"USD", "EUR", "GBP", "CAD", "PLN", "RUB", "AUD", "CHF",
	"CNY", "DKK", "HKD", "JPY", "NZD", "SGD", "SEK",
}

func perCurrencyURLs(codes ...string) []Currency {
	out := make([]Currency, 0, len(codes))
	for _, code := range codes {
		out = append(out, Currency{Code: code, Param: strings.ToLower(code) + "_api_url"})
	}
	return out
}

func single(code, param string) Currency {
	return Currency{Code: code, Param: param}
}

// NewRegistry returns a fetcher for every supported exchange kind.
func NewRegistry(c *Client) map[string]domain.Fetcher {
	return map[string]domain.Fetcher{
		"bitstamp": NewTicker("bitstamp", c, Mapping{
			Ask:    Required("ask"),
			Bid:    Required("bid"),
			Last:   Required("last"),
			Volume: Required("volume"),
		}, single("USD", "api_url")),
		"mtgox":   NewTicker("mtgox", c, valueObjectMapping, perCurrencyURLs(mtgoxCurrencies...)...),
		"bitcash": NewTicker("bitcash", c, valueObjectMapping, single("CZK", "czk_api_url")),
		"rmbtb":   NewTicker("rmbtb", c, valueObjectMapping, single("CNY", "ticker_url")),

		"btcchina": NewTicker("btcchina", c, nestedTickerMapping, single("CNY", "ticker_url")),
		"okcoin":   NewTicker("okcoin", c, nestedTickerMapping, single("CNY", "ticker_url")),
		"mercado":  NewTicker("mercado", c, nestedTickerMapping, single("BRL", "ticker_url")),
		"fxbtc": NewTicker("fxbtc", c, Mapping{
			Ask:    Required("ticker.ask"),
			Bid:    Required("ticker.bid"),
			Last:   Required("ticker.last_rate"),
			Volume: Required("ticker.vol"),
		}, single("CNY", "ticker_url")),

		"goxbtc":   NewTicker("goxbtc", c, flatTickerMapping, single("CNY", "ticker_url")),
		"btctrade": NewTicker("btctrade", c, flatTickerMapping, single("CNY", "ticker_url")),
		"bter": NewTicker("bter", c, Mapping{
			Ask:    Required("sell"),
			Bid:    Required("buy"),
			Last:   Required("last"),
			Volume: Required("vol_btc"),
		}, single("CNY", "ticker_url")),

		"bitx": NewTicker("bitx", c, Mapping{
			Ask:    Required("ask"),
			Bid:    Required("bid"),
			Last:   Required("last_trade"),
			Volume: Required("rolling_24_hour_volume"),
		}, single("ZAR", "ticker_url")),
		"kapiton": NewTicker("kapiton", c, Mapping{
			Ask:    Required("ask"),
			Bid:    Required("bid"),
			Last:   Required("price"),
			Volume: Required("vol"),
		}, single("SEK", "ticker_url")),
		"vircurex": NewTicker("vircurex", c, Mapping{
			Ask:    Required("lowest_ask"),
			Bid:    Required("highest_bid"),
			Last:   Required("last_trade"),
			Volume: Required("volume"),
		}, perCurrencyURLs("USD", "EUR")...),
		"cryptotrade": NewTicker("cryptotrade", c, Mapping{
			Ask:    Required("data.min_ask"),
			Bid:    Required("data.max_bid"),
			Last:   Required("data.last"),
			Volume: Required("data.vol_btc"),
		}, single("USD", "usd_api_url")),
		// Intersango keys its markets by numeric id; 2 is EUR.
		"intersango": NewTicker("intersango", c, Mapping{
			Ask:    Nullable("sell"),
			Bid:    Nullable("buy"),
			Last:   Nullable("last"),
			Volume: Field{Path: "vol", Nullable: true, ZeroIfNull: true},
		}, Currency{Code: "EUR", Param: "ticker_url", Prefix: "2"}),
		"kraken": NewTicker("kraken", c, Mapping{
			Ask:    Required("a.0"),
			Bid:    Required("b.0"),
			Last:   Required("c.0"),
			Volume: Required("v.0"),
		}, Currency{Code: "EUR", Param: "ticker_url", Prefix: "result.XXBTZEUR"}),

		"btce":          NewBTCe(c),
		"localbitcoins": NewLocalBitcoins(c),
		"justcoin":      NewJustcoin(c),
		"bitcurex":      NewBitcurex(c),
		"bit2c":         NewBit2c(c),
		"rocktrading":   NewRockTrading(c),
		"bitbargain":    NewBitBargain(c),
	}
}

// Kinds lists the supported exchange kinds.
func Kinds(registry map[string]domain.Fetcher) []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
