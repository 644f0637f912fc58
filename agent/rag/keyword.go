package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "what": {}, "when": {}, "where": {}, "which": {}, "with": {},
	"you": {}, "your": {},
}

type indexedDoc struct {
	doc   Document
	terms map[string]int
}

// KeywordSearcher ranks documents by query term overlap. It holds the
// whole corpus in memory and is safe for concurrent reads.
type KeywordSearcher struct {
	docs []indexedDoc
}

func NewKeywordSearcher(docs []Document) *KeywordSearcher {
	s := &KeywordSearcher{docs: make([]indexedDoc, 0, len(docs))}
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		terms := map[string]int{}
		for _, t := range tokenize(d.DocName + " " + d.Content) {
			terms[t]++
		}
		s.docs = append(s.docs, indexedDoc{doc: d, terms: terms})
	}
	return s
}

// LoadCorpus reads a JSON array of documents.
func LoadCorpus(path string) ([]Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var docs []Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return docs, nil
}

func (s *KeywordSearcher) Len() int {
	return len(s.docs)
}

func (s *KeywordSearcher) Search(_ context.Context, query string, docType string, k int) ([]Hit, error) {
	queryTerms := uniqueTerms(tokenize(query))
	if len(queryTerms) == 0 {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, d := range s.docs {
		if docType != "" && d.doc.DocType != docType {
			continue
		}
		matched, freq := 0, 0
		for _, t := range queryTerms {
			if n := d.terms[t]; n > 0 {
				matched++
				freq += n
			}
		}
		if matched == 0 {
			continue
		}
		// Coverage dominates; frequency breaks ties between equally covering docs.
		score := float64(matched)/float64(len(queryTerms)) + float64(freq)/1000
		ranked = append(ranked, scored{idx: i, score: score})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		d := s.docs[r.idx].doc
		hits = append(hits, Hit{DocName: d.DocName, DocType: d.DocType, Text: d.Content, Score: r.score})
	}
	return hits, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
