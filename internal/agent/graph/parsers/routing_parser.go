package parsers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/agentdesk/server/internal/agent/model"
	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxTaskLen    = 8 * 1024  // 8KB per sub-task
	maxErrSnippet = 200       // limit error snippet size
)

// ErrMalformedPlan is returned for any plan that fails the schema checks.
// Callers recover from it with a fallback strategy.
var ErrMalformedPlan = errors.New("malformed routing plan")

// RoutingPlan is a validated collaboration plan.
type RoutingPlan struct {
	Agents        []model.AgentLabel
	Tasks         map[model.AgentLabel]string
	Collaboration string
	// Dropped lists entries that were not valid specialist labels.
	Dropped []string
}

type rawPlan struct {
	Agents        []string          `json:"agents"`
	Tasks         map[string]string `json:"tasks"`
	Collaboration string            `json:"collaboration"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPlan, fmt.Sprintf(format, args...))
}

// ParseRoutingPlan decodes and validates the JSON plan produced by the
// classifier. The agents list must contain at least one specialist label;
// unknown labels are dropped and duplicates collapsed in first-seen order.
func ParseRoutingPlan(content string) (plan *RoutingPlan, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "routing_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("routing parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			plan = nil
		}
	}()

	if len(content) > maxContentLen {
		return nil, malformed("content exceeds %d bytes", maxContentLen)
	}
	if !utf8.ValidString(content) {
		return nil, malformed("invalid utf8")
	}

	obj, ok := extractObject(content)
	if !ok {
		return nil, malformed("no json object in %q", safeSnippet(content))
	}

	var raw rawPlan
	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	if err := dec.Decode(&raw); err != nil {
		return nil, malformed("decode: %v", err)
	}

	plan = &RoutingPlan{
		Tasks:         map[model.AgentLabel]string{},
		Collaboration: strings.TrimSpace(raw.Collaboration),
	}
	seen := map[model.AgentLabel]bool{}
	for _, name := range raw.Agents {
		label, err := model.ParseAgentLabel(name)
		if err != nil || !label.IsSpecialist() {
			plan.Dropped = append(plan.Dropped, name)
			continue
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		plan.Agents = append(plan.Agents, label)
	}
	if len(plan.Agents) == 0 {
		return nil, malformed("no valid agents in %q", safeSnippet(obj))
	}

	for name, task := range raw.Tasks {
		label, err := model.ParseAgentLabel(name)
		if err != nil || !seen[label] {
			continue
		}
		task = truncateRunes(strings.TrimSpace(task), maxTaskLen)
		if task != "" {
			plan.Tasks[label] = task
		}
	}

	if len(plan.Dropped) > 0 {
		logx.Warn().
			Str("component", "routing_parser").
			Strs("dropped", plan.Dropped).
			Msg("ignored unknown agents in routing plan")
	}
	return plan, nil
}

// ParseLabel reads a single agent label from a routing reply. Only the
// first line is considered.
func ParseLabel(content string) (model.AgentLabel, error) {
	line := strings.TrimSpace(content)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return model.ParseAgentLabel(line)
}

// extractObject strips markdown fences and returns the outermost {...} span.
func extractObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func safeSnippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return truncateRunes(s, maxErrSnippet) + "..."
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
