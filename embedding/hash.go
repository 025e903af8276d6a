package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashDimension = 256

// NewHashEmbedder builds a deterministic local embedder: lowercased word
// tokens plus intra-word character trigrams are feature-hashed into a
// fixed-dimension vector, which is then L2-normalized. The trigrams let
// morphological variants ("withdraw", "withdrawal") share features. No
// network access, suitable for tests and offline operation.
func NewHashEmbedder(dim int) Embedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}

	return &hashEmbedder{dim: dim}
}

type hashEmbedder struct {
	dim int
}

func (e *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Punctuation-only input yields no tokens; a zero vector would sit at a
	// constant distance from every stored passage and rank all of them.
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float32, e.dim)

	for _, token := range tokens {
		vec[e.bucket(token)]++

		for i := 0; i+3 <= len(token); i++ {
			vec[e.bucket(token[i:i+3])]++
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}

	return vec, nil
}

func (e *hashEmbedder) Dimension() int {
	return e.dim
}

func (e *hashEmbedder) bucket(feature string) int {
	h := fnv.New64a()
	h.Write([]byte(feature))

	return int(h.Sum64() % uint64(e.dim))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
