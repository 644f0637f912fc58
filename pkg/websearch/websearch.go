package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyQuery = errors.New("search query is empty")

type Result struct {
	Title   string
	URL     string
	Content string
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

const snippetLimit = 300

// Format renders results for the market agent.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No search results found."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Result %d]\nTitle: %s\nURL: %s\nContent: %s...\n", i+1, r.Title, r.URL, truncate(r.Content, snippetLimit))
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
