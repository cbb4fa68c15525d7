package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/graph/prompts"
	"github.com/agentdesk/server/internal/agent/model"
	"github.com/agentdesk/server/internal/agent/retrieval"
)

// ErrNoDocument is returned when a document question names no document and
// the session has no uploads.
var ErrNoDocument = errors.New("no document: upload a file or ask as \"<path>|<question>\"")

// DocumentIndex hands out a retriever over one document.
type DocumentIndex interface {
	Retriever(ctx context.Context, path string) (retriever.Retriever, error)
}

// FileQAAgent answers questions from retrieved chunks of a document.
type FileQAAgent struct {
	index      DocumentIndex
	chat       einomodel.BaseChatModel
	modelName  string
	maxSources int
}

func NewFileQAAgent(index DocumentIndex, chat einomodel.BaseChatModel, modelName string, maxSources int) *FileQAAgent {
	if maxSources <= 0 {
		maxSources = 3
	}
	return &FileQAAgent{index: index, chat: chat, modelName: modelName, maxSources: maxSources}
}

func (a *FileQAAgent) Label() model.AgentLabel { return model.AgentFileQA }

func (a *FileQAAgent) Run(ctx context.Context, req Request) Result {
	path, question := ResolveDocument(req)
	if path == "" {
		return Failure(ErrNoDocument)
	}

	r, err := a.index.Retriever(ctx, path)
	if err != nil {
		return Failure(err)
	}
	docs, err := r.Retrieve(ctx, question)
	if err != nil {
		return Failure(fmt.Errorf("retrieve from %s: %w", path, err))
	}
	if len(docs) == 0 {
		return Failure(fmt.Errorf("nothing in %s matches the question", path))
	}

	chunks := make([]string, 0, len(docs))
	for _, d := range docs {
		chunks = append(chunks, d.Content)
	}
	system, err := prompts.RenderFileQASystem(ctx, path, chunks)
	if err != nil {
		return Failure(err)
	}
	out, err := a.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(question),
	})
	if err != nil {
		return Failure(err)
	}

	res := completion(a.modelName, out)
	if !res.Succeeded() {
		return res
	}
	for i, d := range docs {
		if i == a.maxSources {
			break
		}
		res.Sources = append(res.Sources, d.ID)
	}
	res.Output = withSources(res.Output, res.Sources)
	return res
}

// ResolveDocument picks the document and the question to ask of it. An
// explicit "<path>|<question>" in the task or the question wins, otherwise
// the session's latest upload is used with the raw question.
func ResolveDocument(req Request) (path, question string) {
	for _, s := range []string{req.Task, req.Question} {
		if p, q, ok := splitDocumentQuestion(s); ok {
			return p, q
		}
	}
	if len(req.Documents) > 0 {
		return req.Documents[len(req.Documents)-1], req.Question
	}
	return "", req.Question
}

func splitDocumentQuestion(s string) (string, string, bool) {
	left, right, ok := strings.Cut(s, "|")
	if !ok {
		return "", "", false
	}
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if left == "" || right == "" || strings.ContainsAny(left, "\n") {
		return "", "", false
	}
	if !looksLikeDocument(left) {
		return "", "", false
	}
	return left, right, true
}

// looksLikeDocument accepts a readable extension or an existing regular file.
func looksLikeDocument(s string) bool {
	if strings.ContainsAny(s, " \t") && !fileExists(s) {
		return false
	}
	return retrieval.SupportedExtension(filepath.Ext(s)) || fileExists(s)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func withSources(answer string, sources []string) string {
	if len(sources) == 0 {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\nSources:")
	for i, s := range sources {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s)
	}
	return b.String()
}
