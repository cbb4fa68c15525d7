package routing

import (
	"regexp"
	"strings"

	"github.com/agentdesk/server/internal/agent/model"
)

// FallbackStrategy picks agents when the classifier's plan is unusable.
// Implementations must return at least one label.
type FallbackStrategy interface {
	Name() string
	Select(question string) []model.AgentLabel
}

// KeywordRule selects Label when any keyword is a substring of the
// lower-cased question or any pattern matches it.
type KeywordRule struct {
	Label    model.AgentLabel
	Keywords []string
	Patterns []*regexp.Regexp
}

func (r KeywordRule) matches(q string) bool {
	for _, k := range r.Keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	for _, p := range r.Patterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// KeywordStrategy evaluates rules in order and falls back to a default label.
type KeywordStrategy struct {
	rules        []KeywordRule
	defaultLabel model.AgentLabel
}

func NewKeywordStrategy(defaultLabel model.AgentLabel, rules ...KeywordRule) *KeywordStrategy {
	return &KeywordStrategy{rules: rules, defaultLabel: defaultLabel}
}

// DefaultKeywordStrategy knows arithmetic, fresh-information and document
// vocabulary in Chinese and English, and defaults to knowledge.
func DefaultKeywordStrategy() *KeywordStrategy {
	return NewKeywordStrategy(model.AgentKnowledge,
		KeywordRule{
			Label:    model.AgentMath,
			Keywords: []string{"计算", "数学", "公式", "算", "等于", "百分比", "价格", "乘以", "除以", "加上", "减去"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\d\s*[-+*/×÷^]\s*\d`),
				regexp.MustCompile(`\d\s*%`),
				regexp.MustCompile(`\b(calculate|compute|math|formula|percent|percentage|equals|multiply|divide|sum)\b`),
			},
		},
		KeywordRule{
			Label:    model.AgentSearch,
			Keywords: []string{"搜索", "查找", "最新", "新闻", "价格", "天气", "买", "多少钱", "现在", "当前", "今天"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(search|look up|latest|news|weather|price|prices|today|current|currently|now)\b`),
			},
		},
		KeywordRule{
			Label:    model.AgentFileQA,
			Keywords: []string{"文件", "文档", "上传"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\.(pdf|txt|md|docx)\b`),
				regexp.MustCompile(`\b(file|document|pdf|docx|upload|uploaded)\b`),
			},
		},
	)
}

func (s *KeywordStrategy) Name() string { return "keyword" }

func (s *KeywordStrategy) Select(question string) []model.AgentLabel {
	q := strings.ToLower(question)
	var out []model.AgentLabel
	for _, r := range s.rules {
		if r.matches(q) {
			out = append(out, r.Label)
		}
	}
	if len(out) == 0 {
		out = append(out, s.defaultLabel)
	}
	return out
}

var _ FallbackStrategy = (*KeywordStrategy)(nil)
