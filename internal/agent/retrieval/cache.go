package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	logx "github.com/agentdesk/server/pkg/logger"
)

// ErrDocumentNotFound is returned when the document path does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// IndexCacheConfig wires the pipeline used to build a document index.
type IndexCacheConfig struct {
	Loader        document.Loader
	Transformer   document.Transformer
	DocEmbedder   embedding.Embedder
	QueryEmbedder embedding.Embedder
	TopK          int
	TTL           time.Duration
}

type cachedIndex struct {
	index   *MemoryIndex
	modTime time.Time
	size    int64
}

// IndexCache builds at most one index per absolute path and reuses it until
// the entry expires or the file's modification time or size changes.
// Concurrent requests for the same path share one build, which keeps running
// when the caller that started it is cancelled.
type IndexCache struct {
	cfg   IndexCacheConfig
	cache *gocache.Cache
	group singleflight.Group
}

func NewIndexCache(cfg IndexCacheConfig) *IndexCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := 10 * time.Minute
	if cfg.TTL > 0 && cfg.TTL < cleanup {
		cleanup = cfg.TTL
	}
	return &IndexCache{cfg: cfg, cache: gocache.New(ttl, cleanup)}
}

// Get returns the index for path, building it when needed.
func (c *IndexCache) Get(ctx context.Context, path string) (*MemoryIndex, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, abs)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedDocument, abs)
	}

	if v, ok := c.cache.Get(abs); ok {
		entry := v.(*cachedIndex)
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.index, nil
		}
		logx.Debug().Str("path", abs).Msg("document changed, rebuilding index")
		c.cache.Delete(abs)
	}

	// The build outlives the caller that started it; cancelled callers only
	// stop waiting.
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(abs, func() (any, error) {
		// a concurrent caller may have finished the build already
		if v, ok := c.cache.Get(abs); ok {
			entry := v.(*cachedIndex)
			if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
				return entry.index, nil
			}
		}
		idx, err := c.build(buildCtx, abs)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(abs, &cachedIndex{index: idx, modTime: info.ModTime(), size: info.Size()})
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logx.Debug().Str("path", abs).Msg("shared in-flight index build")
		}
		return res.Val.(*MemoryIndex), nil
	}
}

// Retriever adapts Get to the eino retriever interface.
func (c *IndexCache) Retriever(ctx context.Context, path string) (retriever.Retriever, error) {
	return c.Get(ctx, path)
}

// Invalidate drops the cached index for path.
func (c *IndexCache) Invalidate(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		c.cache.Delete(abs)
	}
}

// Len returns the number of cached indexes.
func (c *IndexCache) Len() int {
	return c.cache.ItemCount()
}

func (c *IndexCache) build(ctx context.Context, abs string) (*MemoryIndex, error) {
	start := time.Now()
	docs, err := c.cfg.Loader.Load(ctx, document.Source{URI: abs})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", abs, err)
	}
	chunks, err := c.cfg.Transformer.Transform(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", abs, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no text", abs)
	}

	idx := NewMemoryIndex(c.cfg.DocEmbedder, c.cfg.QueryEmbedder, c.cfg.TopK)
	if _, err := idx.Store(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index %s: %w", abs, err)
	}

	logx.Info().
		Str("path", abs).
		Int("chunks", len(chunks)).
		Dur("took", time.Since(start)).
		Msg("document indexed")
	return idx, nil
}
