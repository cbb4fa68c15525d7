// Package debate runs a scripted eight-speaker debate in which every speaker
// is an LLM persona shaped by an MBTI type.
package debate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/graph/observers"
	"github.com/agentdesk/server/internal/agent/model"
	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
)

type Side string

const (
	SidePro Side = "pro"
	SideOpp Side = "opp"
)

func (s Side) Name() string {
	if s == SidePro {
		return "affirmative"
	}
	return "negative"
}

type Stage string

const (
	StageOpening          Stage = "opening"
	StageCrossExamination Stage = "cross_examination"
	StageFreeDebate       Stage = "free_debate"
	StageClosing          Stage = "closing"
)

var (
	ProTeam = []string{"pro1", "pro2", "pro3", "pro4"}
	OppTeam = []string{"opp1", "opp2", "opp3", "opp4"}
)

const (
	DefaultTopic      = "Will artificial intelligence replace human jobs?"
	DefaultFreeRounds = 10
	noHistory         = "(no prior speeches)"
)

// DefaultRoster returns the default MBTI type of every speaker.
func DefaultRoster() map[string]string {
	return map[string]string{
		"pro1": "INTJ", "pro2": "ENTJ", "pro3": "ENFP", "pro4": "INTP",
		"opp1": "ISTJ", "opp2": "ESTJ", "opp3": "ESFP", "opp4": "INFJ",
	}
}

// SideOf returns the side of a speaker id.
func SideOf(speaker string) (Side, bool) {
	switch {
	case slices.Contains(ProTeam, speaker):
		return SidePro, true
	case slices.Contains(OppTeam, speaker):
		return SideOpp, true
	}
	return "", false
}

// Speech is one recorded contribution.
type Speech struct {
	Speaker string `json:"speaker"`
	Side    Side   `json:"side"`
	Round   int    `json:"round"`
	Stage   Stage  `json:"stage"`
	MBTI    string `json:"mbti"`
	Content string `json:"content"`
}

// Config describes one debate.
type Config struct {
	Topic      string
	FreeRounds int
	// MBTI overrides the default roster per speaker id.
	MBTI map[string]string
	// Rand picks free-debate speakers. Nil means a time-seeded source.
	Rand *rand.Rand
	// OnSpeech is called after every speech, in order.
	OnSpeech func(Speech)
}

// Transcript is the full record of a debate.
type Transcript struct {
	Topic    string            `json:"topic"`
	Roster   map[string]string `json:"roster"`
	Speeches []Speech          `json:"speeches"`
	Usage    []model.Usage     `json:"-"`
}

// CostUSD prices every model call of the debate.
func (t *Transcript) CostUSD() float64 {
	return model.TotalCost(t.Usage)
}

// Engine compiles one prompt-to-model chain per stage.
type Engine struct {
	modelName string
	chains    map[Stage]compose.Runnable[map[string]any, *schema.Message]
}

func NewEngine(ctx context.Context, chat einomodel.BaseChatModel, modelName string) (*Engine, error) {
	e := &Engine{modelName: modelName, chains: map[Stage]compose.Runnable[map[string]any, *schema.Message]{}}
	for _, stage := range []Stage{StageOpening, StageCrossExamination, StageFreeDebate, StageClosing} {
		r, err := compose.NewChain[map[string]any, *schema.Message]().
			AppendChatTemplate(chatTemplate(stage)).
			AppendChatModel(chat).
			Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("compile %s chain: %w", stage, err)
		}
		e.chains[stage] = r
	}
	return e, nil
}

// ResolveRoster applies overrides to the default roster.
func ResolveRoster(overrides map[string]string) (map[string]string, error) {
	roster := DefaultRoster()
	for speaker, t := range overrides {
		if _, ok := SideOf(speaker); !ok {
			return nil, errx.InvalidInput("unknown speaker %q", speaker)
		}
		norm, ok := NormalizeMBTI(t)
		if !ok {
			return nil, errx.InvalidInput("invalid MBTI type %q for %s", t, speaker)
		}
		roster[speaker] = norm
	}
	return roster, nil
}

// Run plays the whole debate: opening, cross-examination, free debate and
// closing. On a model error the speeches so far are returned with the error.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Transcript, error) {
	roster, err := ResolveRoster(cfg.MBTI)
	if err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	freeRounds := cfg.FreeRounds
	if freeRounds < 0 {
		return nil, errx.InvalidInput("free rounds must not be negative")
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	r := &run{
		engine:     e,
		transcript: &Transcript{Topic: topic, Roster: roster},
		onSpeech:   cfg.OnSpeech,
	}
	logx.Info().Str("topic", topic).Int("free_rounds", freeRounds).Msg("Debate started")

	steps := []func(context.Context) error{
		func(ctx context.Context) error {
			if err := r.speak(ctx, StageOpening, 1, "pro1", "Deliver your opening statement."); err != nil {
				return err
			}
			return r.speak(ctx, StageOpening, 2, "opp1", "Deliver your opening statement and answer the affirmative's case.")
		},
		func(ctx context.Context) error {
			pairs := [][2]string{{"pro2", "opp2"}, {"pro3", "opp3"}}
			for i, p := range pairs {
				round := 3 + 2*i
				if err := r.speak(ctx, StageCrossExamination, round, p[0],
					fmt.Sprintf("You are the questioner. Question %s on the weakest point of their case.", p[1])); err != nil {
					return err
				}
				if err := r.speak(ctx, StageCrossExamination, round+1, p[1],
					fmt.Sprintf("You are the respondent. Answer %s's question.", p[0])); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			for i := 0; i < freeRounds; i++ {
				team := ProTeam
				if i%2 == 1 {
					team = OppTeam
				}
				speaker := team[rng.IntN(len(team))]
				if err := r.speak(ctx, StageFreeDebate, 7+i, speaker, "Give your free-debate speech."); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			round := 7 + freeRounds
			if err := r.speak(ctx, StageClosing, round, "opp4", "Deliver the negative's closing statement."); err != nil {
				return err
			}
			return r.speak(ctx, StageClosing, round+1, "pro4", "Deliver the affirmative's closing statement.")
		},
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return r.transcript, err
		}
	}

	logx.Info().
		Str("topic", topic).
		Int("speeches", len(r.transcript.Speeches)).
		Float64("total_cost_usd", r.transcript.CostUSD()).
		Msg("Debate finished")
	return r.transcript, nil
}

type run struct {
	engine     *Engine
	transcript *Transcript
	onSpeech   func(Speech)
}

func (r *run) speak(ctx context.Context, stage Stage, round int, speaker, instruction string) error {
	side, _ := SideOf(speaker)
	mbti := r.transcript.Roster[speaker]
	vars := map[string]any{
		"Speaker":     speaker,
		"SideName":    side.Name(),
		"MBTI":        mbti,
		"Style":       Style(mbti),
		"Topic":       r.transcript.Topic,
		"History":     HistorySummary(r.transcript.Speeches),
		"Instruction": instruction,
	}

	out, err := r.engine.chains[stage].Invoke(ctx, vars, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return fmt.Errorf("%s speech in round %d: %w", speaker, round, err)
	}
	content := ""
	if out != nil {
		content = strings.TrimSpace(out.Content)
	}
	if content == "" {
		return fmt.Errorf("%s speech in round %d: model returned no content", speaker, round)
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		r.transcript.Usage = append(r.transcript.Usage, model.Usage{Model: r.engine.modelName, Tokens: out.ResponseMeta.Usage})
	}

	s := Speech{Speaker: speaker, Side: side, Round: round, Stage: stage, MBTI: mbti, Content: content}
	r.transcript.Speeches = append(r.transcript.Speeches, s)
	logx.Debug().Str("speaker", speaker).Int("round", round).Str("stage", string(stage)).Msg("speech recorded")
	if r.onSpeech != nil {
		r.onSpeech(s)
	}
	return nil
}

// HistorySummary renders prior speeches for the next speaker's prompt.
func HistorySummary(speeches []Speech) string {
	if len(speeches) == 0 {
		return noHistory
	}
	parts := make([]string, len(speeches))
	for i, s := range speeches {
		parts[i] = fmt.Sprintf("Round %d [%s] %s (%s):\n%s", s.Round, s.Stage, s.Speaker, s.MBTI, s.Content)
	}
	return strings.Join(parts, "\n\n")
}
