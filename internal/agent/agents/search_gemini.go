package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiSearcher answers search queries with Gemini grounded on Google Search.
type GeminiSearcher struct {
	client *genai.Client
	model  string
}

func NewGeminiSearcher(client *genai.Client, model string) *GeminiSearcher {
	return &GeminiSearcher{client: client, model: model}
}

func (s *GeminiSearcher) Search(ctx context.Context, query string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(query), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return "", fmt.Errorf("grounded search: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("grounded search returned no text")
	}
	return text + sourcesOf(resp), nil
}

// sourcesOf lists the web pages the grounded answer cites.
func sourcesOf(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return ""
	}
	var b strings.Builder
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		fmt.Fprintf(&b, "\n- %s (%s)", chunk.Web.Title, chunk.Web.URI)
	}
	if b.Len() == 0 {
		return ""
	}
	return "\n\nSources:" + b.String()
}
