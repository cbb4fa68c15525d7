package retrieval

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// ErrUnsupportedDocument is returned for file types the loader cannot read.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// Metadata keys set on loaded and split documents.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
)

const defaultMaxBytes = 20 << 20

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".json":     true,
	".log":      true,
	".rst":      true,
}

// SupportedExtension reports whether FileLoader can read files with ext.
func SupportedExtension(ext string) bool {
	switch ext = strings.ToLower(ext); ext {
	case ".pdf", ".docx":
		return true
	default:
		return textExtensions[ext]
	}
}

// FileLoader reads one local file into a single document whose ID is the
// file's path. PDF and .docx files have their own parsers, the other
// supported extensions are read as plain text.
type FileLoader struct {
	inner    *file.FileLoader
	maxBytes int64
}

// NewFileLoader builds a loader refusing files larger than maxBytes (20MB
// when zero).
func NewFileLoader(ctx context.Context, maxBytes int64) (*FileLoader, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}

	byExt := map[string]parser.Parser{}
	for ext, p := range map[string]parser.Parser{".pdf": pdfParser, ".docx": DocxParser{}} {
		byExt[ext] = p
		byExt[strings.ToUpper(ext)] = p
	}
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        byExt,
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("create document parser: %w", err)
	}

	inner, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{Parser: extParser})
	if err != nil {
		return nil, fmt.Errorf("create file loader: %w", err)
	}
	return &FileLoader{inner: inner, maxBytes: maxBytes}, nil
}

func (l *FileLoader) Load(ctx context.Context, src document.Source, opts ...document.LoaderOption) ([]*schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := src.URI
	ext := filepath.Ext(path)
	if !SupportedExtension(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDocument, strings.ToLower(ext))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("document %s is %d bytes, limit is %d", path, info.Size(), l.maxBytes)
	}

	docs, err := l.inner.Load(ctx, src, opts...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	parts := make([]string, 0, len(docs))
	meta := map[string]any{}
	for _, d := range docs {
		if d == nil {
			continue
		}
		parts = append(parts, d.Content)
		for k, v := range d.MetaData {
			meta[k] = v
		}
	}
	meta[MetaSource] = path

	return []*schema.Document{{
		ID:       path,
		Content:  strings.Join(parts, "\n\n"),
		MetaData: meta,
	}}, nil
}

// DocxParser extracts paragraph text from word/document.xml of a .docx file.
type DocxParser struct{}

func (DocxParser) Parse(ctx context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		text, err := docxText(rc)
		if err != nil {
			return nil, fmt.Errorf("parse docx: %w", err)
		}
		o := parser.GetCommonOptions(&parser.Options{}, opts...)
		return []*schema.Document{{Content: text, MetaData: o.ExtraMeta}}, nil
	}
	return nil, errors.New("word/document.xml not found")
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

var (
	_ document.Loader = (*FileLoader)(nil)
	_ parser.Parser   = DocxParser{}
)
