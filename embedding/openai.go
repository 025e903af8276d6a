package embedding

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/philippgille/chromem-go"
)

const (
	DefaultOpenAIModel     = string(chromem.EmbeddingModelOpenAI3Small)
	DefaultOpenAIDimension = 1536
)

// NewOpenAIEmbedder embeds text through the OpenAI embeddings API using
// chromem-go's embedding func. The API key comes from OPENAI_API_KEY.
func NewOpenAIEmbedder(cfg Config) (Embedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultOpenAIDimension
	}

	fn := chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model))

	return &openaiEmbedder{fn: fn, dim: dim}, nil
}

type openaiEmbedder struct {
	fn  chromem.EmbeddingFunc
	dim int
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	return e.fn(ctx, text)
}

func (e *openaiEmbedder) Dimension() int {
	return e.dim
}
