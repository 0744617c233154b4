package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const serperBaseURL = "https://google.serper.dev"

// serperDefaultNum is how many shopping results Serper is asked for.
const serperDefaultNum = 20

var serperShopping = listingFields{
	title:     []string{"title"},
	link:      []string{"link"},
	price:     []string{"price"},
	source:    []string{"source"},
	thumbnail: []string{"imageUrl", "thumbnail"},
	snippet:   []string{"snippet"},
	rating:    []string{"rating"},
	reviews:   []string{"ratingCount", "reviews"},
	delivery:  []string{"delivery"},
	productID: []string{"productId"},
	position:  []string{"position"},
}

var serperOrganic = listingFields{
	title:     []string{"title"},
	link:      []string{"link"},
	price:     []string{"price"},
	source:    []string{"source"},
	thumbnail: []string{"imageUrl", "thumbnail"},
	snippet:   []string{"snippet"},
	rating:    []string{"rating"},
	reviews:   []string{"ratingCount"},
	position:  []string{"position"},
}

// SerperClient queries the Serper Google Shopping endpoint.
type SerperClient struct {
	client *resty.Client
	apiKey string
}

func NewSerperClient(apiKey string) (*SerperClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serper: %w", ErrMissingAPIKey)
	}

	client := resty.New()
	client.SetBaseURL(serperBaseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &SerperClient{client: client, apiKey: apiKey}, nil
}

// SetBaseURL points the client at another host, e.g. a test server.
func (c *SerperClient) SetBaseURL(u string) {
	c.client.SetBaseURL(strings.TrimRight(u, "/"))
}

func (c *SerperClient) Search(ctx context.Context, q Query) ([]Listing, error) {
	if strings.TrimSpace(q.Q) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	num := q.Num
	if num <= 0 {
		num = serperDefaultNum
	}

	body := map[string]any{"q": q.Q, "num": num}
	if q.Country != "" {
		body["gl"] = strings.ToLower(q.Country)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", c.apiKey).
		SetBody(body).
		Post("/shopping")
	if err != nil {
		return nil, fmt.Errorf("failed to call serper: %w", err)
	}
	if resp.IsError() {
		return nil, &HTTPError{Service: "serper", StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	var payload struct {
		Shopping []map[string]any `json:"shopping"`
		Organic  []map[string]any `json:"organic"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse serper response: %w", err)
	}

	if listings := normalize(payload.Shopping, serperShopping, 0); len(listings) > 0 {
		return listings, nil
	}
	return normalize(payload.Organic, serperOrganic, 0), nil
}
