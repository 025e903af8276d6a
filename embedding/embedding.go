package embedding

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyText           = errors.New("cannot embed empty text")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderHash   Provider = "hash"
)

type Config struct {
	Provider  Provider `yaml:"provider"`
	Model     string   `yaml:"model"`
	Dimension int      `yaml:"dimension"`
}

// Embedder turns text into a fixed-length vector. Implementations are pure:
// the same text always produces the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIEmbedder(cfg)

	case ProviderHash:
		return NewHashEmbedder(cfg.Dimension), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
