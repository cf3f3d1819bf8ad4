package money

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fkhayef/tablepay/pkg/apperr"
)

//go:embed currencies.yaml
var catalogYAML []byte

// ErrUnknownCurrency is returned for codes missing from the catalog
var ErrUnknownCurrency = apperr.NotFound("unknown currency")

// Currency describes how amounts in one currency are shown and charged
type Currency struct {
	Code        string `yaml:"code"`
	Symbol      string `yaml:"symbol"`
	Exponent    int32  `yaml:"exponent"`
	Decimal     string `yaml:"decimal"`
	Group       string `yaml:"group"`
	SymbolAfter bool   `yaml:"symbol_after"`
}

// Catalog is a set of currencies keyed by ISO code
type Catalog struct {
	byCode map[string]Currency
}

var defaultCatalog = mustLoad(catalogYAML)

// LoadCatalog parses a YAML currency list
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Currencies []Currency `yaml:"currencies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse currency catalog: %w", err)
	}
	c := &Catalog{byCode: make(map[string]Currency, len(doc.Currencies))}
	for _, cur := range doc.Currencies {
		if cur.Code == "" {
			return nil, fmt.Errorf("currency without code in catalog")
		}
		if cur.Decimal == "" {
			cur.Decimal = "."
		}
		c.byCode[strings.ToUpper(cur.Code)] = cur
	}
	return c, nil
}

func mustLoad(data []byte) *Catalog {
	c, err := LoadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the embedded catalog
func Default() *Catalog { return defaultCatalog }

// Lookup finds a currency by code, case-insensitively
func (c *Catalog) Lookup(code string) (Currency, error) {
	cur, ok := c.byCode[strings.ToUpper(code)]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return cur, nil
}

// Format renders amount in the given currency, e.g. "$1,234.50" or "12,50 €"
func (c *Catalog) Format(amount decimal.Decimal, code string) (string, error) {
	cur, err := c.Lookup(code)
	if err != nil {
		return "", err
	}
	return cur.Format(amount), nil
}

// ToMinor converts amount to integer minor units (cents) for the gateway
func (c *Catalog) ToMinor(amount decimal.Decimal, code string) (int64, error) {
	cur, err := c.Lookup(code)
	if err != nil {
		return 0, err
	}
	return amount.Shift(cur.Exponent).Round(0).IntPart(), nil
}

// FromMinor converts integer minor units back to an amount
func (c *Catalog) FromMinor(minor int64, code string) (decimal.Decimal, error) {
	cur, err := c.Lookup(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, -cur.Exponent), nil
}

// Format renders amount with this currency's separators and symbol
func (cur Currency) Format(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(cur.Exponent)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(cur.Group)
		}
		b.WriteRune(r)
	}
	number := b.String()
	if cur.Exponent > 0 {
		number += cur.Decimal + frac
	}

	if cur.SymbolAfter {
		return sign + number + " " + cur.Symbol
	}
	return sign + cur.Symbol + number
}

// Format renders amount using the embedded catalog
func Format(amount decimal.Decimal, code string) (string, error) {
	return defaultCatalog.Format(amount, code)
}

// MustFormat is Format for messages where the currency was already validated;
// unknown codes fall back to "<amount> <code>"
func MustFormat(amount decimal.Decimal, code string) string {
	s, err := defaultCatalog.Format(amount, code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}
	return s
}

// Round rounds to cents, half away from zero
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns pct percent of amount, rounded to cents
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}
