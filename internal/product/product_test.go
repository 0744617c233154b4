package product

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productHTML = `<!doctype html>
<html><head>
<title>Hydrating Serum | Glow Shop</title>
<meta property="og:title" content="Hyaluronic Hydrating Serum">
<meta name="description" content="Plumping serum with 2% hyaluronic acid.">
<meta property="og:image" content="https://cdn.glow/serum.jpg">
<meta property="og:site_name" content="Glow Shop">
<meta property="product:price:amount" content="24.00">
<meta property="product:price:currency" content="USD">
</head><body>
<nav>Home | Shop | Cart</nav>
<article>
<h1>Hyaluronic Hydrating Serum</h1>
<p>This lightweight serum draws moisture into the skin and helps keep the barrier supple throughout the day.
Apply two drops to damp skin morning and night, then follow with a moisturizer to seal in hydration.</p>
<p>Suitable for dry, combination and sensitive skin. Fragrance free, vegan and cruelty free.
Dermatologist tested on sensitive skin types and non-comedogenic.</p>
</article>
</body></html>`

func TestReadExtractsMeta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "glowly")
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, productHTML)
	}))
	defer server.Close()

	page, err := NewReader().Read(context.Background(), server.URL+"/serum")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/serum", page.URL)
	assert.Equal(t, "Hyaluronic Hydrating Serum", page.Title)
	assert.Equal(t, "Plumping serum with 2% hyaluronic acid.", page.Description)
	assert.Equal(t, "https://cdn.glow/serum.jpg", page.Image)
	assert.Equal(t, "24.00", page.Price)
	assert.Equal(t, "USD", page.Currency)
	assert.Equal(t, "Glow Shop", page.SiteName)
	assert.Contains(t, page.Excerpt, "draws moisture")
	assert.NotContains(t, page.Excerpt, "\n")
}

func TestReadFallsBackToTitleTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><head><title> Plain Page </title></head><body><p>hi</p></body></html>`)
	}))
	defer server.Close()

	page, err := NewReader().Read(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Plain Page", page.Title)
	assert.Empty(t, page.Price)
}

func TestReadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewReader().Read(context.Background(), server.URL)
	assert.ErrorContains(t, err, "404")
}

func TestReadRejectsBadURLs(t *testing.T) {
	for _, u := range []string{"ftp://example.com/a", "file:///etc/passwd", "https://", "::::"} {
		_, err := NewReader().Read(context.Background(), u)
		assert.Error(t, err, u)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "é", truncate("éé", 1))
	assert.Len(t, []rune(truncate(strings.Repeat("x", 3000), maxExcerptLen)), maxExcerptLen)
}
