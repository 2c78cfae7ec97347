package exchange

import (
	"fmt"

	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Field locates one value inside an exchange document.
type Field struct {
	Path string
	// Optional fields may be absent or null; they become an invalid decimal
	// unless ZeroIfNull is set.
	Optional bool
	// Nullable fields must be present but may hold null.
	Nullable   bool
	ZeroIfNull bool
}

func Required(path string) Field { return Field{Path: path} }
func Optional(path string) Field { return Field{Path: path, Optional: true} }
func Nullable(path string) Field { return Field{Path: path, Nullable: true} }

func isNull(v gjson.Result) bool {
	return !v.Exists() || v.Type == gjson.Null
}

func parseDecimal(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		return decimal.NewFromString(v.Str)
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected JSON type %s", v.Type)
	}
}

func (c *Client) round(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d.RoundBank(c.places))
}

func (c *Client) zero() decimal.NullDecimal {
	return c.round(decimal.Zero)
}

// value extracts f relative to doc.
func (c *Client) value(exchange string, doc gjson.Result, f Field) (decimal.NullDecimal, error) {
	v := doc.Get(f.Path)
	if !v.Exists() && !f.Optional {
		return decimal.NullDecimal{}, domain.NewFetchError(exchange, fmt.Errorf("missing field %q", f.Path))
	}
	if isNull(v) {
		switch {
		case f.ZeroIfNull:
			return c.zero(), nil
		case f.Optional, f.Nullable:
			return decimal.NullDecimal{}, nil
		default:
			return decimal.NullDecimal{}, domain.NewFetchError(exchange, fmt.Errorf("field %q is null", f.Path))
		}
	}
	return c.parse(exchange, f.Path, v)
}

func (c *Client) parse(exchange, label string, v gjson.Result) (decimal.NullDecimal, error) {
	d, err := parseDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}, domain.NewFetchError(exchange, fmt.Errorf("field %q: %w", label, err))
	}
	return c.round(d), nil
}

// Mapping tells where the four quote fields live in a ticker document.
type Mapping struct {
	Ask, Bid, Last, Volume Field
}

func (m Mapping) prefixed(prefix string) Mapping {
	if prefix == "" {
		return m
	}
	p := func(f Field) Field {
		f.Path = prefix + "." + f.Path
		return f
	}
	return Mapping{Ask: p(m.Ask), Bid: p(m.Bid), Last: p(m.Last), Volume: p(m.Volume)}
}

func (c *Client) quote(exchange string, doc gjson.Result, m Mapping) (domain.Quote, error) {
	var q domain.Quote
	var err error
	if q.Ask, err = c.value(exchange, doc, m.Ask); err != nil {
		return q, err
	}
	if q.Bid, err = c.value(exchange, doc, m.Bid); err != nil {
		return q, err
	}
	if q.Last, err = c.value(exchange, doc, m.Last); err != nil {
		return q, err
	}
	if q.Volume, err = c.value(exchange, doc, m.Volume); err != nil {
		return q, err
	}
	return q, nil
}

func requireParam(exchange string, params domain.Params, name string) (string, error) {
	v := params[name]
	if v == "" {
		return "", &domain.ParamError{Exchange: exchange, Param: name}
	}
	return v, nil
}
