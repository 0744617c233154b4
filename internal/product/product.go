// Package product reads merchant product pages into a compact summary the
// chat model can quote from.
package product

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/go-shiori/go-readability"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; glowly/1.0)"
	maxExcerptLen  = 2000
	maxRedirects   = 5
	requestTimeout = 20 * time.Second
)

// Page is what Read extracts from one product page.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Price       string `json:"price,omitempty"`
	Currency    string `json:"currency,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

type Reader struct {
	client *resty.Client
}

func NewReader() *Reader {
	client := resty.New()
	client.SetTimeout(requestTimeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	return &Reader{client: client}
}

// Read fetches rawURL and extracts its meta tags and a readable text excerpt.
func (r *Reader) Read(ctx context.Context, rawURL string) (*Page, error) {
	u, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.R().SetContext(ctx).Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.Host, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error %d when fetching %s", resp.StatusCode(), u.Host)
	}

	body := resp.Body()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	page := &Page{
		URL:         u.String(),
		Title:       firstNonEmpty(meta(doc, "og:title"), strings.TrimSpace(doc.Find("title").First().Text())),
		Description: firstNonEmpty(meta(doc, "og:description"), meta(doc, "description")),
		Image:       meta(doc, "og:image"),
		Price:       firstNonEmpty(meta(doc, "product:price:amount"), meta(doc, "og:price:amount")),
		Currency:    firstNonEmpty(meta(doc, "product:price:currency"), meta(doc, "og:price:currency")),
		SiteName:    meta(doc, "og:site_name"),
	}

	if article, err := readability.FromReader(bytes.NewReader(body), u); err == nil {
		page.Excerpt = truncate(collapseSpace(article.TextContent), maxExcerptLen)
		if page.Title == "" {
			page.Title = article.Title
		}
		if page.SiteName == "" {
			page.SiteName = article.SiteName
		}
	}
	return page, nil
}

// validateURL checks that rawURL is http(s) with a host.
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing domain in URL")
	}
	return u, nil
}

// meta returns the content of the first <meta> whose property or name is key.
func meta(doc *goquery.Document, key string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		name, _ := s.Attr("name")
		if !strings.EqualFold(prop, key) && !strings.EqualFold(name, key) {
			return true
		}
		content, _ = s.Attr("content")
		content = strings.TrimSpace(content)
		return content == ""
	})
	return content
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
