// Package search fetches shopping listings from hosted web-search APIs.
//
// Upstream payloads are loosely typed; listings are read field by field from
// generic maps so missing or oddly typed fields never fail a search.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingAPIKey is returned by client constructors when no key is configured.
var ErrMissingAPIKey = errors.New("missing search API key")

// Listing is one normalized search result.
type Listing struct {
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	Price     string  `json:"price,omitempty"`
	Source    string  `json:"source,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Reviews   int     `json:"reviews,omitempty"`
	Delivery  string  `json:"delivery,omitempty"`
	ProductID string  `json:"productId,omitempty"`
	Position  int     `json:"position,omitempty"`
}

type Query struct {
	Q       string
	Country string
	Num     int
}

type Searcher interface {
	Search(ctx context.Context, q Query) ([]Listing, error)
}

// HTTPError is a non-2xx answer from a search API.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// listingFields names the keys a listing field may be read from, first match wins.
type listingFields struct {
	title, link, price, source, thumbnail, snippet, rating, reviews, delivery, productID, position []string
}

// normalize converts raw result objects into listings, dropping entries
// without a title or link and keeping at most limit (0 means no limit).
func normalize(items []map[string]any, f listingFields, limit int) []Listing {
	out := make([]Listing, 0, len(items))
	for _, item := range items {
		l := Listing{
			Title:     str(item, f.title...),
			Link:      str(item, f.link...),
			Price:     str(item, f.price...),
			Source:    str(item, f.source...),
			Thumbnail: str(item, f.thumbnail...),
			Snippet:   str(item, f.snippet...),
			Rating:    num(item, f.rating...),
			Reviews:   int(num(item, f.reviews...)),
			Delivery:  str(item, f.delivery...),
			ProductID: str(item, f.productID...),
			Position:  int(num(item, f.position...)),
		}
		if l.Title == "" || l.Link == "" {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func str(item map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := item[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func num(item map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := item[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
