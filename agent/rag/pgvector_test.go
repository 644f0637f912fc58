package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	dims int
}

// Embed maps each text onto a one-hot vector keyed by its first byte so
// identical leading letters land close together.
func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dims)
		if text != "" {
			vec[int(text[0])%f.dims] = 1
		}
		out[i] = vec
	}
	return out, nil
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.5]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	t.Cleanup(srv.Close)

	client := openaisdk.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	e, err := NewOpenAIEmbedder(&client, "text-embedding-3-small", 2)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0.5, 0.5}, vecs[1])
}

func TestNewPgvectorSearcherValidates(t *testing.T) {
	t.Parallel()

	_, err := NewPgvectorSearcher(nil, fakeEmbedder{dims: 4}, 4)
	assert.Error(t, err)
}

func TestPgvectorSearcherRoundTrip(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}

	ctx := context.Background()
	db := OpenPostgres(dsn)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewPgvectorSearcher(db, fakeEmbedder{dims: 8}, 8)
	require.NoError(t, err)
	_, _ = db.ExecContext(ctx, `DROP TABLE IF EXISTS rag_documents`)
	require.NoError(t, s.Migrate(ctx))

	n, err := s.Index(ctx, testCorpus()[:4], 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	hits, err := s.Search(ctx, "q3 results", DocTypeMarketAnalysis, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "q3_tech_outlook.pdf", hits[0].DocName)
}
