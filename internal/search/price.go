package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var pricePattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice reads the first amount out of a display price such as
// "$1,299.50" or "USD 12.99 used". The currency is ignored.
func ParsePrice(s string) (decimal.Decimal, error) {
	m := pricePattern.FindString(s)
	if m == "" {
		return decimal.Zero, fmt.Errorf("no amount in price %q", s)
	}
	return decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
}

// FilterMaxPrice keeps listings whose price parses and does not exceed limit.
func FilterMaxPrice(listings []Listing, limit decimal.Decimal) []Listing {
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		p, err := ParsePrice(l.Price)
		if err != nil {
			continue
		}
		if p.LessThanOrEqual(limit) {
			out = append(out, l)
		}
	}
	return out
}
