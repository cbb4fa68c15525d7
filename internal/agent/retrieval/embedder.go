package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"
)

// maxEmbedBatch is the Gemini batch limit for embedContent.
const maxEmbedBatch = 100

// Gemini embedding task types.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// GenAIEmbedder generates embeddings with the Gemini embedding API.
type GenAIEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIEmbedder creates an embedder for one task type, TaskRetrievalDocument
// for chunks and TaskRetrievalQuery for questions.
func NewGenAIEmbedder(client *genai.Client, model, taskType string) *GenAIEmbedder {
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GenAIEmbedder{client: client, model: model, taskType: taskType}
}

func (e *GenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			TaskType: e.taskType,
		})
		if err != nil {
			return nil, fmt.Errorf("genai embed failed: %w", err)
		}
		if len(result.Embeddings) != end-start {
			return nil, fmt.Errorf("genai embed returned %d vectors for %d texts", len(result.Embeddings), end-start)
		}

		for _, emb := range result.Embeddings {
			vec := make([]float64, len(emb.Values))
			for i, v := range emb.Values {
				vec[i] = float64(v)
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

var _ embedding.Embedder = (*GenAIEmbedder)(nil)
