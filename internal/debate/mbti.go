package debate

import (
	"sort"
	"strings"
)

// styles maps every MBTI type to the debating style injected into prompts.
var styles = map[string]string{
	"INTJ": "rigorous and systematic, builds the case as a deductive framework",
	"INTP": "quick and analytical, dismantles the opponent's logic and offers unexpected angles",
	"ENTJ": "direct and incisive, thinks strategically and controls the overall flow",
	"ENTP": "inventive and flexible, wins with surprising arguments",
	"INFJ": "sees to the heart of the issue, persuades with cases and stories",
	"INFP": "principled and sincere, argues from values and personal meaning",
	"ENFJ": "a natural leader, builds a complete theory and speaks with stirring conviction",
	"ENFP": "infectious and emotive, lifts the argument to shared values",
	"ISTJ": "fact-driven and steady, relies on data and precedent",
	"ISFJ": "meticulous, finds gaps in the opponent's reasoning and answers with facts",
	"ESTJ": "orderly and clear, organises evidence and cites authoritative data",
	"ESFJ": "a team player, weaves many viewpoints together in a warm tone",
	"ISTP": "pragmatic and calm, analyses concrete problems in short, sharp sentences",
	"ISFP": "gentle but tenacious, starts from details and rebuts with concrete examples",
	"ESTP": "bold and decisive, challenges conventional views and counters fast",
	"ESFP": "quick on their feet, improvises well and speaks vividly",
}

// NormalizeMBTI upper-cases t and reports whether it is one of the 16 types.
func NormalizeMBTI(t string) (string, bool) {
	t = strings.ToUpper(strings.TrimSpace(t))
	_, ok := styles[t]
	return t, ok
}

// Style returns the debating style of an MBTI type.
func Style(t string) string {
	if s, ok := styles[strings.ToUpper(t)]; ok {
		return s
	}
	return "typical of the " + t + " personality type"
}

// Types lists the known MBTI types in alphabetical order.
func Types() []string {
	out := make([]string, 0, len(styles))
	for t := range styles {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
