package rag

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls the embeddings endpoint of any OpenAI-compatible API.
type OpenAIEmbedder struct {
	client     *openaisdk.Client
	model      string
	dimensions int
}

func NewOpenAIEmbedder(client *openaisdk.Client, model string, dimensions int) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	return &OpenAIEmbedder{client: client, model: strings.TrimSpace(model), dimensions: dimensions}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openaisdk.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
