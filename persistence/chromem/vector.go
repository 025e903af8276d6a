package chromem

import (
	"context"

	"github.com/philippgille/chromem-go"

	"github.com/finvoke/finvoke/vector"
)

// NewIndex opens a chromem-go backed vector index. Documents are stored with
// precomputed embeddings, so no embedding function is attached to the
// collection; all queries go through QueryEmbedding.
func NewIndex(cfg vector.Config) (vector.Index, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	c, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, err
	}

	return &index{c}, nil
}

type index struct {
	collection *chromem.Collection
}

func (idx *index) Add(ctx context.Context, docs ...vector.Document) error {
	for _, doc := range docs {
		document := chromem.Document{
			ID:        doc.ID,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
			Content:   doc.Content,
		}

		if err := idx.collection.AddDocument(ctx, document); err != nil {
			return err
		}
	}

	return nil
}

func (idx *index) Query(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	count := idx.collection.Count()
	if count == 0 {
		return []vector.Match{}, nil
	}

	if k > count {
		k = count
	}

	results, err := idx.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, err
	}

	matches := make([]vector.Match, len(results))
	for i, result := range results {
		matches[i] = vector.Match{
			Document: vector.Document{
				ID:        result.ID,
				Metadata:  result.Metadata,
				Embedding: result.Embedding,
				Content:   result.Content,
			},
			Score: float64(result.Similarity),
		}
	}

	return matches, nil
}

func (idx *index) Count() int {
	return idx.collection.Count()
}
