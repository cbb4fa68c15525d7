package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// MemoryIndex is a small in-memory vector index scored by cosine similarity.
// It is safe for concurrent use.
type MemoryIndex struct {
	docEmbedder   embedding.Embedder
	queryEmbedder embedding.Embedder
	topK          int

	mu   sync.RWMutex
	docs []*schema.Document
}

// NewMemoryIndex creates an empty index. queryEmbedder may be nil, in which
// case docEmbedder embeds queries too.
func NewMemoryIndex(docEmbedder, queryEmbedder embedding.Embedder, topK int) *MemoryIndex {
	if queryEmbedder == nil {
		queryEmbedder = docEmbedder
	}
	if topK <= 0 {
		topK = 3
	}
	return &MemoryIndex{docEmbedder: docEmbedder, queryEmbedder: queryEmbedder, topK: topK}
}

// Store embeds and adds documents. Documents keep their IDs.
func (m *MemoryIndex) Store(ctx context.Context, docs []*schema.Document, _ ...indexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := m.docEmbedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	stored := make([]*schema.Document, len(docs))
	for i, d := range docs {
		stored[i] = cloneDocument(d).WithDenseVector(vectors[i])
		ids[i] = d.ID
	}

	m.mu.Lock()
	m.docs = append(m.docs, stored...)
	m.mu.Unlock()
	return ids, nil
}

// Retrieve returns the top-K documents most similar to query, best first.
// Each result carries its similarity in Score().
func (m *MemoryIndex) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := m.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	vectors, err := m.queryEmbedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedder returned no query vector")
	}
	q := vectors[0]

	m.mu.RLock()
	scored := make([]*schema.Document, 0, len(m.docs))
	for _, d := range m.docs {
		score := cosine(q, d.DenseVector())
		if options.ScoreThreshold != nil && score < *options.ScoreThreshold {
			continue
		}
		scored = append(scored, cloneDocument(d).WithScore(score))
	}
	m.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score() > scored[j].Score() })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Len returns the number of stored documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// cloneDocument copies d including its metadata map, which eino uses to hold
// vectors and scores.
func cloneDocument(d *schema.Document) *schema.Document {
	cp := *d
	cp.MetaData = make(map[string]any, len(d.MetaData)+1)
	for k, v := range d.MetaData {
		cp.MetaData[k] = v
	}
	return &cp
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ indexer.Indexer     = (*MemoryIndex)(nil)
	_ retriever.Retriever = (*MemoryIndex)(nil)
)
