// Package service exposes the assistant's user-facing operations on top of
// the question answering graph and session memory.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentdesk/server/internal/agent/graph"
	"github.com/agentdesk/server/internal/agent/model"
	"github.com/agentdesk/server/internal/agent/retrieval"
	errx "github.com/agentdesk/server/internal/core/error"
	"github.com/agentdesk/server/pkg/events"
	logx "github.com/agentdesk/server/pkg/logger"
)

var tracer = otel.Tracer("github.com/agentdesk/server/internal/agent/service")

// DocumentIndex builds or returns the retrieval index of a document.
type DocumentIndex interface {
	Get(ctx context.Context, path string) (*retrieval.MemoryIndex, error)
}

// SessionView is the stored state of one session.
type SessionView struct {
	SessionID string
	Turns     []model.Turn
	Documents []string
}

type Assistant struct {
	runner     graph.Runner
	sessions   model.SessionRepository
	index      DocumentIndex
	publisher  events.Publisher
	askTimeout time.Duration
}

type Option func(*Assistant)

func WithIndex(index DocumentIndex) Option {
	return func(a *Assistant) { a.index = index }
}

func WithPublisher(p events.Publisher) Option {
	return func(a *Assistant) { a.publisher = p }
}

// WithAskTimeout bounds every Ask. Zero means no deadline.
func WithAskTimeout(d time.Duration) Option {
	return func(a *Assistant) { a.askTimeout = d }
}

func NewAssistant(runner graph.Runner, sessions model.SessionRepository, opts ...Option) *Assistant {
	a := &Assistant{
		runner:    runner,
		sessions:  sessions,
		publisher: events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Ask answers question within the session and records the exchange.
func (a *Assistant) Ask(ctx context.Context, sessionID, question string) (model.Answer, error) {
	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "assistant.ask", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("request.id", requestID),
	))
	defer span.End()

	if a.askTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.askTimeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := a.runner.Invoke(ctx, model.QueryInput{SessionID: sessionID, Question: question})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errx.MessageOf(err))
		logx.Error().
			Err(err).
			Str("conversation_id", sessionID).
			Str("request_id", requestID).
			Int("status", errx.StatusOf(err)).
			Msg("Question failed")
		a.publish(ctx, events.New(events.TypeQuestionFailed, map[string]any{
			"session_id": sessionID,
			"request_id": requestID,
			"status":     errx.StatusOf(err),
			"error":      errx.MessageOf(err),
		}))
		return model.Answer{}, err
	}

	agents := make([]string, len(answer.Agents))
	for i, l := range answer.Agents {
		agents[i] = string(l)
	}
	span.SetAttributes(
		attribute.StringSlice("routing.agents", agents),
		attribute.String("routing.strategy", string(answer.Strategy)),
		attribute.Float64("llm.cost_usd", answer.TotalCostUSD),
	)
	logx.Info().
		Str("conversation_id", sessionID).
		Str("request_id", requestID).
		Strs("agents", agents).
		Str("strategy", string(answer.Strategy)).
		Float64("total_cost_usd", answer.TotalCostUSD).
		Dur("took", time.Since(start)).
		Msg("Question answered")
	a.publish(ctx, events.New(events.TypeQuestionAnswered, map[string]any{
		"session_id":     sessionID,
		"request_id":     requestID,
		"agents":         agents,
		"strategy":       string(answer.Strategy),
		"total_cost_usd": answer.TotalCostUSD,
	}))
	return answer, nil
}

// Upload registers a document with the session and builds its index so the
// first question about it does not pay for embedding. It returns the
// absolute path that was recorded.
func (a *Assistant) Upload(ctx context.Context, sessionID, path string) (string, error) {
	ctx, span := tracer.Start(ctx, "assistant.upload", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	if strings.TrimSpace(sessionID) == "" {
		return "", errx.InvalidInput("session id is required")
	}
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil || strings.TrimSpace(path) == "" {
		return "", errx.InvalidInput("invalid document path %q", path)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", errx.InvalidInput("file not found: %s", abs)
	case err != nil:
		return "", fmt.Errorf("stat %s: %w", abs, err)
	case info.IsDir():
		return "", errx.InvalidInput("%s is a directory", abs)
	}
	if !retrieval.SupportedExtension(filepath.Ext(abs)) {
		return "", errx.InvalidInput("unsupported document type %q", filepath.Ext(abs))
	}
	span.SetAttributes(attribute.String("document.path", abs))

	chunks := 0
	if a.index != nil {
		idx, err := a.index.Get(ctx, abs)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, retrieval.ErrUnsupportedDocument) || errors.Is(err, retrieval.ErrDocumentNotFound) {
				return "", errx.InvalidInput("%v", err)
			}
			return "", fmt.Errorf("index %s: %w", abs, err)
		}
		chunks = idx.Len()
	}

	if err := a.sessions.AddDocument(ctx, sessionID, abs); err != nil {
		return "", err
	}
	logx.Info().Str("conversation_id", sessionID).Str("path", abs).Int("chunks", chunks).Msg("Document uploaded")
	a.publish(ctx, events.New(events.TypeDocumentUploaded, map[string]any{
		"session_id": sessionID,
		"path":       abs,
		"chunks":     chunks,
	}))
	return abs, nil
}

// History returns every stored turn and document of the session.
func (a *Assistant) History(ctx context.Context, sessionID string) (SessionView, error) {
	if strings.TrimSpace(sessionID) == "" {
		return SessionView{}, errx.InvalidInput("session id is required")
	}
	h, err := a.sessions.LoadHistory(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	docs, err := a.sessions.ListDocuments(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	view := SessionView{SessionID: sessionID, Documents: docs}
	if h != nil {
		view.Turns = h.Turns
	}
	return view, nil
}

// Clear deletes the session's turns and documents.
func (a *Assistant) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errx.InvalidInput("session id is required")
	}
	if err := a.sessions.ClearHistory(ctx, sessionID); err != nil {
		return err
	}
	logx.Info().Str("conversation_id", sessionID).Msg("Session cleared")
	a.publish(ctx, events.New(events.TypeSessionCleared, map[string]any{"session_id": sessionID}))
	return nil
}

// Rename moves a session to a new id.
func (a *Assistant) Rename(ctx context.Context, oldID, newID string) error {
	oldID, newID = strings.TrimSpace(oldID), strings.TrimSpace(newID)
	if oldID == "" || newID == "" {
		return errx.InvalidInput("both session ids are required")
	}
	if err := a.sessions.RenameSession(ctx, oldID, newID); err != nil {
		return err
	}
	logx.Info().Str("from", oldID).Str("to", newID).Msg("Session renamed")
	a.publish(ctx, events.New(events.TypeSessionRenamed, map[string]any{
		"from": oldID,
		"to":   newID,
	}))
	return nil
}

func (a *Assistant) publish(ctx context.Context, e events.Event) {
	if err := a.publisher.Publish(ctx, e); err != nil {
		logx.Warn().Err(err).Str("event", e.EventType()).Msg("failed to publish event")
	}
}
