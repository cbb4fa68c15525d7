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

// ChatAgent answers from a system prompt, the session history and the task.
// It backs the general, math and knowledge agents.
type ChatAgent struct {
	label     model.AgentLabel
	chat      einomodel.BaseChatModel
	modelName string
	system    string
}

func NewChatAgent(label model.AgentLabel, chat einomodel.BaseChatModel, modelName string) (*ChatAgent, error) {
	system, err := prompts.AgentSystem(label)
	if err != nil {
		return nil, err
	}
	return &ChatAgent{label: label, chat: chat, modelName: modelName, system: system}, nil
}

func (a *ChatAgent) Label() model.AgentLabel { return a.label }

func (a *ChatAgent) Run(ctx context.Context, req Request) Result {
	msgs := make([]*schema.Message, 0, len(req.History)+2)
	msgs = append(msgs, schema.SystemMessage(a.system))
	msgs = append(msgs, req.History...)
	msgs = append(msgs, schema.UserMessage(req.Task))

	out, err := a.chat.Generate(ctx, msgs)
	if err != nil {
		return Failure(err)
	}
	return completion(a.modelName, out)
}

// completion turns a model reply into a Result, treating empty text as failure.
func completion(modelName string, out *schema.Message) Result {
	usage := usageOf(modelName, out)
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return Failure(fmt.Errorf("model %s returned an empty answer", modelName), usage...)
	}
	return Success(strings.TrimSpace(out.Content), usage...)
}
