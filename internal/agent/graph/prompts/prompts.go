package prompts

import (
	"context"
	"embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/model"
)

//go:embed template/*.txt
var templates embed.FS

func mustTemplate(name string) string {
	b, err := templates.ReadFile("template/" + name)
	if err != nil {
		panic(fmt.Sprintf("prompts: missing template %s: %v", name, err))
	}
	return string(b)
}

var (
	classifierLabelPrompt = mustTemplate("classifier_label.txt")
	classifierPlanPrompt  = mustTemplate("classifier_plan.txt")
	mergePrompt           = mustTemplate("merge.txt")
	finalizePrompt        = mustTemplate("finalize.txt")
	fileQAPrompt          = mustTemplate("agent_fileqa.txt")
	searchPrompt          = mustTemplate("agent_search.txt")

	agentPrompts = map[model.AgentLabel]string{
		model.AgentGeneral:   mustTemplate("agent_general.txt"),
		model.AgentMath:      mustTemplate("agent_math.txt"),
		model.AgentKnowledge: mustTemplate("agent_knowledge.txt"),
	}
)

// taskPrefixes frame the raw question when the plan gave an agent no sub-task.
var taskPrefixes = map[model.AgentLabel]string{
	model.AgentGeneral:   "Answer the user's question.",
	model.AgentMath:      "Focus on the calculations, formulas and numeric analysis this question needs.",
	model.AgentSearch:    "Find the latest real-world information and data this question needs.",
	model.AgentKnowledge: "Provide an in-depth analysis based on the conversation history and your knowledge.",
	model.AgentFileQA:    "Answer from the content of the uploaded document.",
}

// TaskFor builds the task text handed to an agent without a planned sub-task.
func TaskFor(label model.AgentLabel, question string) string {
	prefix, ok := taskPrefixes[label]
	if !ok {
		return question
	}
	return prefix + "\n\nUser question: " + question
}

// render formats a Go template through the Eino prompt component so prompt
// callbacks fire, and returns the resulting system prompt text.
func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

// RenderClassifierLabel builds the single-label routing request.
func RenderClassifierLabel(ctx context.Context, question, transcript string) ([]*schema.Message, error) {
	sys, err := render(ctx, "classifier label", classifierLabelPrompt, map[string]any{"History": transcript})
	if err != nil {
		return nil, err
	}
	return []*schema.Message{schema.SystemMessage(sys), schema.UserMessage(question)}, nil
}

// RenderClassifierPlan builds the collaboration-plan request.
func RenderClassifierPlan(ctx context.Context, question, transcript, document string) ([]*schema.Message, error) {
	sys, err := render(ctx, "classifier plan", classifierPlanPrompt, map[string]any{
		"History":  transcript,
		"Document": document,
	})
	if err != nil {
		return nil, err
	}
	return []*schema.Message{schema.SystemMessage(sys), schema.UserMessage(question)}, nil
}

// AgentSystem returns the system prompt of a prompt-only agent.
func AgentSystem(label model.AgentLabel) (string, error) {
	p, ok := agentPrompts[label]
	if !ok {
		return "", fmt.Errorf("no system prompt for agent %q", label)
	}
	return p, nil
}

// RenderSearchSystem embeds web findings into the search agent prompt.
func RenderSearchSystem(ctx context.Context, findings string) (string, error) {
	return render(ctx, "search", searchPrompt, map[string]any{"Findings": findings})
}

// RenderFileQASystem embeds retrieved chunks into the document agent prompt.
func RenderFileQASystem(ctx context.Context, document string, chunks []string) (string, error) {
	// text/template has no arithmetic, so chunk numbers are precomputed
	numbered := make([]string, len(chunks))
	for i, c := range chunks {
		numbered[i] = fmt.Sprintf("[%d] %s", i+1, c)
	}
	return render(ctx, "fileqa", fileQAPrompt, map[string]any{
		"Document": document,
		"Chunks":   numbered,
	})
}

// RenderMerge builds the merger request from every outcome of a round.
func RenderMerge(ctx context.Context, round model.Round) ([]*schema.Message, error) {
	content, err := render(ctx, "merge", mergePrompt, map[string]any{
		"Question":  round.Question,
		"Rationale": round.Decision.Rationale,
		"Outcomes":  round.Outcomes,
	})
	if err != nil {
		return nil, err
	}
	return []*schema.Message{schema.UserMessage(content)}, nil
}

// RenderFinalize builds the finalizer request for a draft answer.
func RenderFinalize(ctx context.Context, question, draft string) ([]*schema.Message, error) {
	sys, err := render(ctx, "finalize", finalizePrompt, nil)
	if err != nil {
		return nil, err
	}
	user := fmt.Sprintf("Question:\n%s\n\nDraft answer:\n%s", question, draft)
	return []*schema.Message{schema.SystemMessage(sys), schema.UserMessage(user)}, nil
}
