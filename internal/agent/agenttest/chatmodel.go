// Package agenttest provides in-memory fakes for testing code built on the
// agent packages.
package agenttest

import (
	"context"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is a scripted eino chat model. Handle decides every reply.
type ChatModel struct {
	Handle func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

	mu    sync.Mutex
	calls [][]*schema.Message
}

// Reply returns a ChatModel that always answers text.
func Reply(text string) *ChatModel {
	return &ChatModel{Handle: func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}}
}

// Fail returns a ChatModel whose every call fails with err.
func Fail(err error) *ChatModel {
	return &ChatModel{Handle: func(context.Context, []*schema.Message) (*schema.Message, error) {
		return nil, err
	}}
}

// Sequence returns a ChatModel that answers with replies in order and then
// repeats the last one.
func Sequence(replies ...string) *ChatModel {
	var mu sync.Mutex
	i := 0
	return &ChatModel{Handle: func(context.Context, []*schema.Message) (*schema.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		r := replies[min(i, len(replies)-1)]
		i++
		return schema.AssistantMessage(r, nil), nil
	}}
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	return m.Handle(ctx, input)
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

// Calls returns the inputs of every Generate call so far.
func (m *ChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Generate calls.
func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastUser returns the content of the last user message of input.
func LastUser(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

// System returns the content of the first system message of input.
func System(input []*schema.Message) string {
	for _, m := range input {
		if m != nil && m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

// Contains reports whether any message of input contains substr.
func Contains(input []*schema.Message, substr string) bool {
	for _, m := range input {
		if m != nil && strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

var _ einomodel.BaseChatModel = (*ChatModel)(nil)
