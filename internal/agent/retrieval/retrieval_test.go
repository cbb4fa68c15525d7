package retrieval

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterEmbedder maps text to letter frequencies, enough for similarity tests.
type letterEmbedder struct{ calls atomic.Int32 }

func (e *letterEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.calls.Add(1)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, 26)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				vec[r-'a']++
			}
		}
		out[i] = vec
	}
	return out, nil
}

type countingLoader struct {
	inner document.Loader
	loads atomic.Int32
	delay time.Duration
}

func (l *countingLoader) Load(ctx context.Context, src document.Source, opts ...document.LoaderOption) ([]*schema.Document, error) {
	l.loads.Add(1)
	time.Sleep(l.delay)
	return l.inner.Load(ctx, src, opts...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newLoader(t *testing.T, maxBytes int64) *FileLoader {
	t.Helper()
	l, err := NewFileLoader(context.Background(), maxBytes)
	require.NoError(t, err)
	return l
}

func newTransformer(t *testing.T, size, overlap int) *ChunkTransformer {
	t.Helper()
	tr, err := NewChunkTransformer(context.Background(), size, overlap)
	require.NoError(t, err)
	return tr
}

func TestFileLoaderText(t *testing.T) {
	p := writeFile(t, t.TempDir(), "notes.md", "# Notes\nhello")

	docs, err := newLoader(t, 0).Load(context.Background(), document.Source{URI: p})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, p, docs[0].ID)
	assert.Equal(t, "# Notes\nhello", docs[0].Content)
	assert.Equal(t, p, docs[0].MetaData[MetaSource])
}

func TestFileLoaderRejectsUnsupported(t *testing.T) {
	p := writeFile(t, t.TempDir(), "sheet.xlsx", "PK")

	_, err := newLoader(t, 0).Load(context.Background(), document.Source{URI: p})
	assert.ErrorIs(t, err, ErrUnsupportedDocument)
}

func TestFileLoaderRoutesPDFToPDFParser(t *testing.T) {
	assert.True(t, SupportedExtension(".pdf"))
	assert.True(t, SupportedExtension(".PDF"))

	dir := t.TempDir()
	for _, name := range []string{"scan.pdf", "SCAN.PDF"} {
		p := writeFile(t, dir, name, "plain text, not a pdf")
		_, err := newLoader(t, 0).Load(context.Background(), document.Source{URI: p})
		require.Error(t, err, name)
		assert.NotErrorIs(t, err, ErrUnsupportedDocument, name)
	}
}

func TestFileLoaderEnforcesSizeLimit(t *testing.T) {
	p := writeFile(t, t.TempDir(), "big.txt", strings.Repeat("x", 64))

	_, err := newLoader(t, 10).Load(context.Background(), document.Source{URI: p})
	assert.Error(t, err)
}

func TestFileLoaderDocx(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.docx")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Quarterly revenue</w:t></w:r><w:r><w:tab/><w:t>grew 12%</w:t></w:r></w:p>
<w:p><w:r><w:t>Costs were flat</w:t></w:r></w:p>
</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	docs, err := newLoader(t, 0).Load(context.Background(), document.Source{URI: p})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Quarterly revenue\tgrew 12%\nCosts were flat", docs[0].Content)
	assert.Equal(t, p, docs[0].MetaData[MetaSource])
}

func TestChunkTransformerAssignsLocators(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta"
	chunks, err := newTransformer(t, 12, 0).Transform(context.Background(), []*schema.Document{{
		ID:       "/d/a.txt",
		Content:  text,
		MetaData: map[string]any{MetaSource: "/d/a.txt"},
	}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var joined []string
	for i, c := range chunks {
		assert.Equal(t, Locator("/d/a.txt", i), c.ID)
		assert.Equal(t, i, c.MetaData[MetaChunk])
		assert.Equal(t, "/d/a.txt", c.MetaData[MetaSource])
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 12)
		joined = append(joined, strings.Fields(c.Content)...)
	}
	assert.Equal(t, strings.Fields(text), joined)
}

func TestChunkTransformerCountsRunes(t *testing.T) {
	text := strings.Repeat("收入增长了百分之十二。", 6)
	chunks, err := newTransformer(t, 25, 0).Transform(context.Background(), []*schema.Document{{ID: "/d/zh.txt", Content: text}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content))
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 25)
	}
	assert.Equal(t, "/d/zh.txt#chunk-0", chunks[0].ID)
}

func TestChunkTransformerSkipsBlankDocuments(t *testing.T) {
	chunks, err := newTransformer(t, 10, 2).Transform(context.Background(), []*schema.Document{{ID: "/d/e.txt", Content: " \n "}})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMemoryIndexRetrieveRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&letterEmbedder{}, nil, 2)

	_, err := idx.Store(ctx, []*schema.Document{
		{ID: "zzz", Content: "zzz zzz"},
		{ID: "abc", Content: "abc abc"},
		{ID: "abz", Content: "ab z"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	docs, err := idx.Retrieve(ctx, "aabbcc")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "abc", docs[0].ID)
	assert.Equal(t, "abz", docs[1].ID)
	assert.InDelta(t, 1.0, docs[0].Score(), 1e-9)

	one, err := idx.Retrieve(ctx, "zz", retriever.WithTopK(1))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "zzz", one[0].ID)
}

func TestMemoryIndexScoresDoNotLeakBetweenQueries(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(&letterEmbedder{}, nil, 1)
	_, err := idx.Store(ctx, []*schema.Document{{ID: "a", Content: "aaa b"}})
	require.NoError(t, err)

	first, err := idx.Retrieve(ctx, "aaa")
	require.NoError(t, err)
	second, err := idx.Retrieve(ctx, "bbb")
	require.NoError(t, err)
	assert.Greater(t, first[0].Score(), second[0].Score())
}

func newTestCache(t *testing.T, loader document.Loader) *IndexCache {
	return NewIndexCache(IndexCacheConfig{
		Loader:      loader,
		Transformer: newTransformer(t, 50, 5),
		DocEmbedder: &letterEmbedder{},
		TopK:        3,
		TTL:         time.Hour,
	})
}

func TestIndexCacheBuildsOncePerPath(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.txt", "the quick brown fox jumps over the lazy dog")
	loader := &countingLoader{inner: newLoader(t, 0), delay: 20 * time.Millisecond}
	c := newTestCache(t, loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), p)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := c.Retriever(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int32(1), loader.loads.Load())
	assert.Equal(t, 1, c.Len())
}

func TestIndexCacheKeysByAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.txt", "hello world")
	loader := &countingLoader{inner: newLoader(t, 0)}
	c := newTestCache(t, loader)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = c.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.loads.Load())
}

func TestIndexCacheRebuildsWhenFileChanges(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.txt", "version one")
	loader := &countingLoader{inner: newLoader(t, 0)}
	c := newTestCache(t, loader)
	ctx := context.Background()

	_, err := c.Get(ctx, p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("version two, longer"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(p, later, later))

	_, err = c.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.loads.Load())

	c.Invalidate(p)
	assert.Equal(t, 0, c.Len())
}

func TestIndexCacheMissingFile(t *testing.T) {
	c := newTestCache(t, newLoader(t, 0))
	_, err := c.Get(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestIndexCacheEmptyDocumentFails(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.txt", "   ")
	c := newTestCache(t, newLoader(t, 0))
	_, err := c.Get(context.Background(), p)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

type gatedLoader struct {
	inner   document.Loader
	started chan struct{}
	release chan struct{}
	loads   atomic.Int32
}

func (l *gatedLoader) Load(ctx context.Context, src document.Source, opts ...document.LoaderOption) ([]*schema.Document, error) {
	if l.loads.Add(1) == 1 {
		close(l.started)
	}
	<-l.release
	return l.inner.Load(ctx, src, opts...)
}

func TestIndexCacheBuildSurvivesCancelledCaller(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.txt", "the quick brown fox")
	loader := &gatedLoader{inner: newLoader(t, 0), started: make(chan struct{}), release: make(chan struct{})}
	c := newTestCache(t, loader)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, p)
		firstErr <- err
	}()
	<-loader.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), p)
		secondErr <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(loader.release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), loader.loads.Load())
	assert.Equal(t, 1, c.Len())
}
