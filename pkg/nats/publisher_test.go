package nats

import (
	"testing"

	"github.com/agentdesk/server/pkg/events"
	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	ev := events.New(events.TypeSessionRenamed, map[string]any{"from": "a", "to": "b"})
	assert.Equal(t, "agentdesk.session.renamed", Subject(ev))
}
