package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/finvoke/finvoke/embedding"
	"github.com/finvoke/finvoke/vector"
)

var (
	// ErrEmbedding means the query (or a passage) could not be turned into a
	// vector. Callers treat it as "no answer available", not a fatal failure.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIngest means the ingest call failed as a whole; the resident index
	// is left untouched.
	ErrIngest = errors.New("ingest failed")
)

type PassageInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Passage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type SearchResult struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// Store wraps an embedder and a vector index into the knowledge base. The
// index is resident for the process lifetime; Search never touches disk.
type Store struct {
	embedder embedding.Embedder
	index    vector.Index
}

func NewStore(embedder embedding.Embedder, index vector.Index) *Store {
	return &Store{
		embedder: embedder,
		index:    index,
	}
}

// Ingest embeds the given passages and appends them to the index.
// All-or-nothing: if any passage fails to embed, nothing is committed.
// Duplicate content is not deduplicated; re-ingesting yields new entries.
func (s *Store) Ingest(ctx context.Context, passages []PassageInput) error {
	if len(passages) == 0 {
		return nil
	}

	docs := make([]vector.Document, len(passages))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range passages {
		g.Go(func() error {
			text := p.Title + "\n" + p.Content

			emb, err := s.embedder.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("passage %q: %w", p.Title, err)
			}

			docs[i] = vector.Document{
				ID:        uuid.NewString(),
				Metadata:  map[string]string{"title": p.Title},
				Content:   p.Content,
				Embedding: emb,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrIngest, err)
	}

	if err := s.index.Add(ctx, docs...); err != nil {
		return fmt.Errorf("%w: %v", ErrIngest, err)
	}

	return nil
}

// Search returns up to k passages ranked by descending similarity. An empty
// index yields an empty result, never an error; a query that cannot be
// embedded yields ErrEmbedding.
func (s *Store) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmbedding)
	}

	if s.index.Count() == 0 {
		return []SearchResult{}, nil
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	matches, err := s.index.Query(ctx, emb, k)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(matches))
	for i, match := range matches {
		results[i] = SearchResult{
			Passage: Passage{
				ID:      match.Document.ID,
				Title:   match.Document.Metadata["title"],
				Content: match.Document.Content,
			},
			Score: match.Score,
		}
	}

	return results, nil
}

func (s *Store) Count() int {
	return s.index.Count()
}

func (s *Store) Dimension() int {
	return s.embedder.Dimension()
}
