package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const serpAPIBaseURL = "https://serpapi.com"

const (
	maxShoppingResults = 8
	maxOrganicResults  = 6
)

var serpAPIShopping = listingFields{
	title:     []string{"title", "name"},
	link:      []string{"product_link", "link"},
	price:     []string{"price"},
	source:    []string{"source", "store"},
	thumbnail: []string{"thumbnail"},
	snippet:   []string{"snippet"},
	rating:    []string{"rating"},
	reviews:   []string{"reviews"},
	delivery:  []string{"delivery", "shipping"},
	productID: []string{"product_id"},
	position:  []string{"position"},
}

var serpAPIOrganic = listingFields{
	title:     []string{"title"},
	link:      []string{"link"},
	source:    []string{"source", "displayed_link"},
	thumbnail: []string{"thumbnail"},
	snippet:   []string{"snippet"},
	position:  []string{"position"},
}

// SerpAPIClient queries SerpAPI's google_shopping engine.
type SerpAPIClient struct {
	client *resty.Client
	apiKey string
}

func NewSerpAPIClient(apiKey string) (*SerpAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serpapi: %w", ErrMissingAPIKey)
	}

	client := resty.New()
	client.SetBaseURL(serpAPIBaseURL)
	client.SetTimeout(30 * time.Second)

	return &SerpAPIClient{client: client, apiKey: apiKey}, nil
}

// SetBaseURL points the client at another host, e.g. a test server.
func (c *SerpAPIClient) SetBaseURL(u string) {
	c.client.SetBaseURL(strings.TrimRight(u, "/"))
}

func (c *SerpAPIClient) Search(ctx context.Context, q Query) ([]Listing, error) {
	if strings.TrimSpace(q.Q) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	country := strings.ToLower(q.Country)
	if country == "" {
		country = "us"
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google_shopping",
			"q":       q.Q,
			"gl":      country,
			"hl":      "en",
			"api_key": c.apiKey,
		}).
		Get("/search.json")
	if err != nil {
		return nil, fmt.Errorf("failed to call serpapi: %w", err)
	}
	if resp.IsError() {
		return nil, &HTTPError{Service: "serpapi", StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	var payload struct {
		Error           string           `json:"error"`
		ShoppingResults []map[string]any `json:"shopping_results"`
		OrganicResults  []map[string]any `json:"organic_results"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse serpapi response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("serpapi error: %s", payload.Error)
	}

	shoppingLimit, organicLimit := maxShoppingResults, maxOrganicResults
	if q.Num > 0 {
		shoppingLimit, organicLimit = min(q.Num, shoppingLimit), min(q.Num, organicLimit)
	}
	if listings := normalize(payload.ShoppingResults, serpAPIShopping, shoppingLimit); len(listings) > 0 {
		return listings, nil
	}
	return normalize(payload.OrganicResults, serpAPIOrganic, organicLimit), nil
}
