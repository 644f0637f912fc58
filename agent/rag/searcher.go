package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Document types stored in the retrieval index.
const (
	DocTypeFAQ            = "faq_rag"
	DocTypeMarketAnalysis = "market_analysis"
)

// DefaultTopK is the number of snippets the agent tools ask for.
const DefaultTopK = 3

const noResults = "No relevant information found."

var ErrEmptyQuery = errors.New("query is empty")

// Document is one retrievable chunk.
type Document struct {
	DocName string `json:"doc_name"`
	DocType string `json:"doc_type"`
	Content string `json:"content"`
}

// Hit is a ranked search result. Higher Score is better.
type Hit struct {
	DocName string
	DocType string
	Text    string
	Score   float64
}

type Searcher interface {
	Search(ctx context.Context, query string, docType string, k int) ([]Hit, error)
}

// FormatContext renders hits as the tool output the agents read.
func FormatContext(hits []Hit) string {
	if len(hits) == 0 {
		return noResults
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("[%s]\n%s\n", h.DocName, strings.TrimSpace(h.Text)))
	}
	return strings.Join(parts, "\n")
}

// Retrieve searches and formats in one call.
func Retrieve(ctx context.Context, s Searcher, query string, docType string, k int) (string, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	hits, err := s.Search(ctx, query, docType, k)
	if err != nil {
		return "", err
	}
	return FormatContext(hits), nil
}
