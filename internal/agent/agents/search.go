package agents

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/graph/prompts"
	"github.com/agentdesk/server/internal/agent/model"
)

// Searcher looks up fresh information on the web.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchAgent queries a Searcher and summarises the findings for the task.
type SearchAgent struct {
	searcher  Searcher
	chat      einomodel.BaseChatModel
	modelName string
}

func NewSearchAgent(searcher Searcher, chat einomodel.BaseChatModel, modelName string) *SearchAgent {
	return &SearchAgent{searcher: searcher, chat: chat, modelName: modelName}
}

func (a *SearchAgent) Label() model.AgentLabel { return model.AgentSearch }

func (a *SearchAgent) Run(ctx context.Context, req Request) Result {
	query := strings.TrimSpace(req.Task)
	if query == "" {
		query = req.Question
	}
	findings, err := a.searcher.Search(ctx, query)
	if err != nil {
		return Failure(fmt.Errorf("web search: %w", err))
	}
	if strings.TrimSpace(findings) == "" {
		return Failure(fmt.Errorf("web search returned nothing for %q", query))
	}

	system, err := prompts.RenderSearchSystem(ctx, findings)
	if err != nil {
		return Failure(err)
	}
	out, err := a.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(req.Task),
	})
	if err != nil {
		return Failure(err)
	}
	return completion(a.modelName, out)
}
