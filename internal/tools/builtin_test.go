package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/glowly/internal/product"
	"github.com/vbonduro/glowly/internal/search"
)

type stubSearcher struct {
	got      search.Query
	listings []search.Listing
	err      error
}

func (s *stubSearcher) Search(_ context.Context, q search.Query) ([]search.Listing, error) {
	s.got = q
	return s.listings, s.err
}

type stubReader struct {
	page *product.Page
	err  error
}

func (s *stubReader) Read(_ context.Context, _ string) (*product.Page, error) {
	return s.page, s.err
}

func TestSerperTool(t *testing.T) {
	searcher := &stubSearcher{listings: []search.Listing{
		{Title: "Gel cleanser", Link: "https://shop/1", Price: "$12.00"},
		{Title: "Luxury cream", Link: "https://shop/2", Price: "$95.00"},
	}}
	r := NewRegistry(NewSerperTool(searcher, "ca"))

	out := r.Invoke(context.Background(), SerperToolName, `{"q":"gel cleanser oily skin"}`)

	var payload struct {
		Shopping []search.Listing `json:"shopping"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Len(t, payload.Shopping, 2)
	assert.Equal(t, search.Query{Q: "gel cleanser oily skin", Country: "ca"}, searcher.got)
}

func TestSerperToolMaxPrice(t *testing.T) {
	searcher := &stubSearcher{listings: []search.Listing{
		{Title: "Gel cleanser", Link: "https://shop/1", Price: "$12.00"},
		{Title: "Luxury cream", Link: "https://shop/2", Price: "$95.00"},
	}}
	r := NewRegistry(NewSerperTool(searcher, "us"))

	out := r.Invoke(context.Background(), SerperToolName, `{"q":"cleanser","max_price":"$30"}`)

	var payload struct {
		Shopping []search.Listing `json:"shopping"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload.Shopping, 1)
	assert.Equal(t, "Gel cleanser", payload.Shopping[0].Title)
}

func TestSerperToolErrorsBecomeText(t *testing.T) {
	r := NewRegistry(NewSerperTool(&stubSearcher{err: errors.New("serper returned status 403")}, "us"))

	assert.Equal(t, `Tool "serper" failed: serper returned status 403`, r.Invoke(context.Background(), SerperToolName, `{"q":"spf"}`))
	assert.Equal(t, `Tool "serper" failed: missing search query`, r.Invoke(context.Background(), SerperToolName, `{}`))
}

func TestSerperToolSchema(t *testing.T) {
	spec := NewSerperTool(&stubSearcher{}, "us")
	assert.Equal(t, "Fetch shopping search results for skincare recommendations.", spec.Description)
	assert.Equal(t, []string{"q"}, spec.Parameters["required"])
	assert.Equal(t, false, spec.Parameters["additionalProperties"])
}

func TestProductPageTool(t *testing.T) {
	reader := &stubReader{page: &product.Page{URL: "https://shop/1", Title: "Serum", Price: "24.00"}}
	r := NewRegistry(NewProductPageTool(reader))

	out := r.Invoke(context.Background(), ProductPageToolName, `{"url":"https://shop/1"}`)
	assert.JSONEq(t, `{"url":"https://shop/1","title":"Serum","price":"24.00"}`, out)

	out = r.Invoke(context.Background(), ProductPageToolName, `{}`)
	assert.Equal(t, `Tool "product_page" failed: missing url`, out)
}

func TestSerperToolBareStringQuery(t *testing.T) {
	searcher := &stubSearcher{listings: []search.Listing{
		{Title: "Gel cleanser", Link: "https://shop/1", Price: "$12.00"},
	}}
	r := NewRegistry(NewSerperTool(searcher, "us"))

	out := r.Invoke(context.Background(), SerperToolName, "gentle gel cleanser")

	var payload struct {
		Shopping []search.Listing `json:"shopping"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload), out)
	assert.Len(t, payload.Shopping, 1)
	assert.Equal(t, "gentle gel cleanser", searcher.got.Q)
}
