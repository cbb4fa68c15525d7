package logx

import (
	"bytes"
	"testing"

	"github.com/agentdesk/server/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestInitProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Output: &buf})
	t.Cleanup(func() { Init() })

	Debug().Msg("hidden")
	Info().Str("agent", "math").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"agent":"math"`)
	assert.Contains(t, out, `"message":"visible"`)
}

func TestInitLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Level: "warn", Output: &buf})
	t.Cleanup(func() { Init() })

	Info().Msg("skipped")
	Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "kept")
}
