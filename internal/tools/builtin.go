package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vbonduro/glowly/internal/product"
	"github.com/vbonduro/glowly/internal/search"
)

const (
	SerperToolName      = "serper"
	ProductPageToolName = "product_page"
)

type PageReader interface {
	Read(ctx context.Context, url string) (*product.Page, error)
}

// NewSerperTool exposes searcher as the shopping search tool. country is
// sent with every query.
func NewSerperTool(searcher search.Searcher, country string) Spec {
	return Spec{
		Name:        SerperToolName,
		Description: "Fetch shopping search results for skincare recommendations.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"q": map[string]any{
					"type":        "string",
					"description": "Focused product search query.",
				},
				"max_price": map[string]any{
					"type":        "string",
					"description": "Optional upper price bound, e.g. \"30\".",
				},
			},
			"required":             []string{"q"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args any) (string, error) {
			q := StringArg(args, "q")
			if q == "" {
				return "", fmt.Errorf("missing search query")
			}

			listings, err := searcher.Search(ctx, search.Query{Q: q, Country: country})
			if err != nil {
				return "", err
			}

			// A bare string payload is the query alone.
			if maxPrice := objectArg(args, "max_price"); maxPrice != "" {
				limit, err := search.ParsePrice(maxPrice)
				if err != nil {
					return "", fmt.Errorf("invalid max_price: %w", err)
				}
				listings = search.FilterMaxPrice(listings, limit)
			}

			out, err := json.Marshal(map[string]any{"shopping": listings})
			if err != nil {
				return "", fmt.Errorf("failed to encode results: %w", err)
			}
			return string(out), nil
		},
	}
}

func objectArg(args any, key string) string {
	if _, ok := args.(map[string]any); !ok {
		return ""
	}
	return StringArg(args, key)
}

// NewProductPageTool lets the model read a product page it found in search.
func NewProductPageTool(reader PageReader) Spec {
	return Spec{
		Name:        ProductPageToolName,
		Description: "Read a product page and return its title, price, image and a text excerpt.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute http(s) URL of the product page.",
				},
			},
			"required":             []string{"url"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args any) (string, error) {
			u := StringArg(args, "url")
			if u == "" {
				return "", fmt.Errorf("missing url")
			}
			page, err := reader.Read(ctx, u)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(page)
			if err != nil {
				return "", fmt.Errorf("failed to encode page: %w", err)
			}
			return string(out), nil
		},
	}
}
