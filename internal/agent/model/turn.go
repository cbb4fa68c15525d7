package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// TimeLayout is how turn timestamps are rendered for people.
const TimeLayout = "2006-01-02 15:04:05"

// Turn is one utterance in a session. Turns are append-only.
type Turn struct {
	Role      schema.RoleType `json:"role"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewUserTurn(text string, at time.Time) Turn {
	return Turn{Role: schema.User, Text: text, Timestamp: at}
}

func NewAssistantTurn(text string, at time.Time) Turn {
	return Turn{Role: schema.Assistant, Text: text, Timestamp: at}
}

// Message converts the turn into a chat message for model input.
func (t Turn) Message() *schema.Message {
	if t.Role == schema.Assistant {
		return schema.AssistantMessage(t.Text, nil)
	}
	return schema.UserMessage(t.Text)
}

// Messages converts turns into chat messages, preserving order.
func Messages(turns []Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, t.Message())
	}
	return msgs
}
