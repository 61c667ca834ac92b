package retrieval

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns query text into a vector in the index's embedding space.
type Embedder interface {
	Embed(ctx context.Context, apiKey, text string) ([]float32, error)
}

// OpenAIEmbedder embeds with text-embedding-3-small, the model the ingestion
// pipeline writes the index with. Clients are cheap; one is built per call
// from the tenant's credential.
type OpenAIEmbedder struct{}

func NewOpenAIEmbedder() *OpenAIEmbedder { return &OpenAIEmbedder{} }

func (e *OpenAIEmbedder) Embed(ctx context.Context, apiKey, text string) ([]float32, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding credential required")
	}
	client := openai.NewClient(apiKey)
	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}
	return resp.Data[0].Embedding, nil
}
