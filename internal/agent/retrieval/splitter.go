package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// chunkSeparators are tried in order, coarsest first. The empty separator
// cuts between runes when nothing else fits.
var chunkSeparators = []string{"\n\n", "\n", "。", "！", "？", ". ", "! ", "? ", "；", "; ", "，", ", ", " ", ""}

// ChunkTransformer splits documents into overlapping chunks measured in runes.
// Each chunk gets the ID "<source>#chunk-<n>", which doubles as its source
// locator.
type ChunkTransformer struct {
	splitter document.Transformer
}

// NewChunkTransformer builds a transformer producing chunks of at most
// chunkSize runes that overlap by up to overlap runes.
func NewChunkTransformer(ctx context.Context, chunkSize, overlap int) (*ChunkTransformer, error) {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Separators:  chunkSeparators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	return &ChunkTransformer{splitter: splitter}, nil
}

func (t *ChunkTransformer) Transform(ctx context.Context, src []*schema.Document, opts ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range src {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			continue
		}
		source := doc.ID
		if s, ok := doc.MetaData[MetaSource].(string); ok && s != "" {
			source = s
		}

		parts, err := t.splitter.Transform(ctx, []*schema.Document{{ID: source, Content: doc.Content}}, opts...)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, p := range parts {
			if p == nil || strings.TrimSpace(p.Content) == "" {
				continue
			}
			out = append(out, &schema.Document{
				ID:      Locator(source, n),
				Content: p.Content,
				MetaData: map[string]any{
					MetaSource: source,
					MetaChunk:  n,
				},
			})
			n++
		}
	}
	return out, nil
}

// Locator names chunk i of source.
func Locator(source string, i int) string {
	return fmt.Sprintf("%s#chunk-%d", source, i)
}

var _ document.Transformer = (*ChunkTransformer)(nil)
