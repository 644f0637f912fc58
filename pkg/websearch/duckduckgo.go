package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const duckDuckGoHTML = "https://html.duckduckgo.com"

// DuckDuckGo scrapes the HTML endpoint. It needs no API key and serves as
// the fallback when Tavily is not configured.
type DuckDuckGo struct {
	client     *resty.Client
	maxResults int
}

func NewDuckDuckGo(baseURL string, maxResults int) *DuckDuckGo {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = duckDuckGoHTML
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	return &DuckDuckGo{client: client, maxResults: maxResults}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get("/html/")
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("duckduckgo search: status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo parse: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Content: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return len(results) < d.maxResults
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
