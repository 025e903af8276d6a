package flat

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/finvoke/finvoke/vector"
)

// Index is a flat nearest-neighbour index over normalized embeddings.
// Queries read an immutable snapshot through an atomic pointer; Add builds
// and persists a new snapshot before swapping it in, so a concurrent Query
// sees either the fully-old or fully-new state.
type Index struct {
	path       string
	collection string

	current atomic.Pointer[snapshot]
	mu      sync.Mutex // serializes Add
}

type snapshot struct {
	dim  int
	docs []vector.Document
}

type passageRecord struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Content  string            `json:"content"`
}

type vectorsFile struct {
	Dimension int
	Vectors   [][]float32
}

// Open loads the persisted snapshot for the collection, or starts empty when
// no snapshot exists. An empty path keeps the index memory-only.
func Open(path, collection string) (*Index, error) {
	idx := &Index{
		path:       path,
		collection: collection,
	}

	idx.current.Store(&snapshot{})

	if path == "" {
		return idx, nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	snap, err := idx.load()
	if err != nil {
		return nil, err
	}

	if snap != nil {
		idx.current.Store(snap)
	}

	return idx, nil
}

func (idx *Index) vectorsPath() string {
	return filepath.Join(idx.path, idx.collection+".vectors.gob")
}

func (idx *Index) passagesPath() string {
	return filepath.Join(idx.path, idx.collection+".passages.json")
}

func (idx *Index) load() (*snapshot, error) {
	vf, err := os.Open(idx.vectorsPath())
	if os.IsNotExist(err) {
		// A metadata file without its vectors is a broken snapshot.
		if _, err := os.Stat(idx.passagesPath()); err == nil {
			return nil, vector.ErrSnapshotMismatch
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer vf.Close()

	var vectors vectorsFile
	if err := gob.NewDecoder(vf).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}

	pf, err := os.Open(idx.passagesPath())
	if os.IsNotExist(err) {
		return nil, vector.ErrSnapshotMismatch
	}
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	var passages []passageRecord
	if err := json.NewDecoder(pf).Decode(&passages); err != nil {
		return nil, fmt.Errorf("decode passages: %w", err)
	}

	if len(passages) != len(vectors.Vectors) {
		return nil, fmt.Errorf("%w: %d passages, %d vectors",
			vector.ErrSnapshotMismatch, len(passages), len(vectors.Vectors))
	}

	docs := make([]vector.Document, len(passages))
	for i, p := range passages {
		docs[i] = vector.Document{
			ID:        p.ID,
			Metadata:  p.Metadata,
			Content:   p.Content,
			Embedding: vectors.Vectors[i],
		}
	}

	return &snapshot{dim: vectors.Dimension, docs: docs}, nil
}

func (idx *Index) Add(ctx context.Context, docs ...vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := idx.current.Load()

	next := &snapshot{
		dim:  old.dim,
		docs: make([]vector.Document, 0, len(old.docs)+len(docs)),
	}
	next.docs = append(next.docs, old.docs...)

	for _, doc := range docs {
		if next.dim == 0 {
			next.dim = len(doc.Embedding)
		}

		if len(doc.Embedding) != next.dim {
			return fmt.Errorf("%w: got %d, index has %d",
				vector.ErrDimensionMismatch, len(doc.Embedding), next.dim)
		}

		doc.Embedding = normalize(doc.Embedding)
		next.docs = append(next.docs, doc)
	}

	if err := idx.persist(next); err != nil {
		return err
	}

	idx.current.Store(next)
	return nil
}

func (idx *Index) persist(snap *snapshot) error {
	if idx.path == "" {
		return nil
	}

	vectors := vectorsFile{
		Dimension: snap.dim,
		Vectors:   make([][]float32, len(snap.docs)),
	}

	passages := make([]passageRecord, len(snap.docs))
	for i, doc := range snap.docs {
		vectors.Vectors[i] = doc.Embedding
		passages[i] = passageRecord{
			ID:       doc.ID,
			Metadata: doc.Metadata,
			Content:  doc.Content,
		}
	}

	if err := writeAtomic(idx.vectorsPath(), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(&vectors)
	}); err != nil {
		return err
	}

	return writeAtomic(idx.passagesPath(), func(f *os.File) error {
		return json.NewEncoder(f).Encode(&passages)
	})
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func (idx *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	snap := idx.current.Load()
	if len(snap.docs) == 0 {
		return []vector.Match{}, nil
	}

	if len(embedding) != snap.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d",
			vector.ErrDimensionMismatch, len(embedding), snap.dim)
	}

	query := normalize(embedding)

	type candidate struct {
		pos  int
		dist float64
	}

	candidates := make([]candidate, len(snap.docs))
	for i, doc := range snap.docs {
		candidates[i] = candidate{pos: i, dist: squaredL2(query, doc.Embedding)}
	}

	// Stable sort keeps ingestion order on equal distances.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	matches := make([]vector.Match, k)
	for i := 0; i < k; i++ {
		c := candidates[i]
		matches[i] = vector.Match{
			Document: snap.docs[c.pos],
			// For unit vectors, ||a-b||^2 = 2 - 2*cos(a,b).
			Score: 1 - c.dist/2,
		}
	}

	return matches, nil
}

func (idx *Index) Count() int {
	return len(idx.current.Load().docs)
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}

	if norm == 0 {
		return v
	}

	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}

	return out
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return sum
}
