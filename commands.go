package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentdesk/server/internal/agent/model"
	"github.com/agentdesk/server/internal/agent/service"
	"github.com/agentdesk/server/internal/debate"
	"github.com/agentdesk/server/pkg/events"
	logx "github.com/agentdesk/server/pkg/logger"
)

var (
	envFile   string
	sessionID string
	asJSON    bool

	cfg AppConfig
)

var rootCmd = &cobra.Command{
	Use:           "agentdesk",
	Short:         "Multi-agent question answering and debate simulation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig(envFile)
		if err != nil {
			return err
		}
		logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Level: cfg.LogLevel})
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question within a session",
	Long: `Routes the question to one or more specialist agents (general, math,
search, knowledge, fileqa), merges their answers when several ran, and
stores the exchange in the session.

Ask about a specific document with "<path>|<question>".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Attach a document to a session and index it",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the turns and documents of a session",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete a session's turns and documents",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var renameCmd = &cobra.Command{
	Use:   "rename [old] [new]",
	Short: "Move a session to a new id",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var (
	debateTopic      string
	debateFreeRounds int
	debateMBTI       map[string]string
	debateSeed       uint64
)

var debateCmd = &cobra.Command{
	Use:   "debate",
	Short: "Run an eight-speaker MBTI debate",
	Long: `Runs opening statements, cross-examination, free debate and closing
statements between four affirmative (pro1-pro4) and four negative
(opp1-opp4) speakers, each with an MBTI debating style.

Example:
  agentdesk debate --topic "Should AI have legal rights?" --mbti pro1=ENTP --mbti opp4=INTJ`,
	Args: cobra.NoArgs,
	RunE: runDebate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	for _, c := range []*cobra.Command{askCmd, uploadCmd, historyCmd, clearCmd} {
		c.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	}
	for _, c := range []*cobra.Command{uploadCmd, historyCmd, clearCmd} {
		_ = c.MarkFlagRequired("session")
	}
	askCmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON")

	debateCmd.Flags().StringVar(&debateTopic, "topic", debate.DefaultTopic, "debate motion")
	debateCmd.Flags().IntVar(&debateFreeRounds, "free-rounds", 0, "free debate speeches (default from DEBATE_FREE_ROUNDS)")
	debateCmd.Flags().StringToStringVar(&debateMBTI, "mbti", nil, "speaker=TYPE overrides, e.g. pro1=ENTP")
	debateCmd.Flags().Uint64Var(&debateSeed, "seed", 0, "seed for free debate speaker choice (0 = random)")

	rootCmd.AddCommand(askCmd, uploadCmd, historyCmd, clearCmd, renameCmd, debateCmd)
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*App) error) error {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))
	return fn(app)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if sessionID == "" {
		sessionID = service.NewSessionID()
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
	}
	return withApp(cmd.Context(), func(app *App) error {
		answer, err := app.Assistant.Ask(cmd.Context(), sessionID, question)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, answer)
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
		fmt.Fprintf(cmd.ErrOrStderr(), "\nagents: %s (%s), cost: $%.6f\n",
			joinLabels(answer.Agents), answer.Strategy, answer.TotalCostUSD)
		return nil
	})
}

func runUpload(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		abs, err := app.Assistant.Upload(cmd.Context(), sessionID, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", abs)
		return nil
	})
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		view, err := app.Assistant.History(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, view)
		}
		out := cmd.OutOrStdout()
		if len(view.Turns) == 0 {
			fmt.Fprintln(out, "(no turns)")
		}
		for _, t := range view.Turns {
			fmt.Fprintf(out, "[%s] %s: %s\n", t.Timestamp.Local().Format(model.TimeLayout), t.Role, t.Text)
		}
		if len(view.Documents) > 0 {
			fmt.Fprintln(out, "\ndocuments:")
			for i, d := range view.Documents {
				fmt.Fprintf(out, "%d. %s\n", i+1, d)
			}
		}
		return nil
	})
}

func runClear(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		if err := app.Assistant.Clear(cmd.Context(), sessionID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", sessionID)
		return nil
	})
}

func runRename(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		if err := app.Assistant.Rename(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
		return nil
	})
}

func runDebate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	freeRounds := debateFreeRounds
	if !cmd.Flags().Changed("free-rounds") {
		freeRounds = cfg.Debate.FreeRounds
	}
	var rng *rand.Rand
	if debateSeed != 0 {
		rng = rand.New(rand.NewPCG(debateSeed, debateSeed))
	}

	return withApp(ctx, func(app *App) error {
		engine, err := app.NewDebateEngine(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		stage := debate.Stage("")
		transcript, err := engine.Run(ctx, debate.Config{
			Topic:      debateTopic,
			FreeRounds: freeRounds,
			MBTI:       debateMBTI,
			Rand:       rng,
			OnSpeech: func(s debate.Speech) {
				if s.Stage != stage {
					stage = s.Stage
					fmt.Fprintf(out, "\n=== %s ===\n", strings.ReplaceAll(string(stage), "_", " "))
				}
				fmt.Fprintf(out, "\nround %d %s (%s):\n%s\n", s.Round, s.Speaker, s.MBTI, s.Content)
			},
		})
		if err != nil {
			return err
		}

		if err := app.Publisher.Publish(ctx, events.New(events.TypeDebateFinished, map[string]any{
			"topic":          transcript.Topic,
			"speeches":       len(transcript.Speeches),
			"total_cost_usd": transcript.CostUSD(),
		})); err != nil {
			logx.Warn().Err(err).Msg("failed to publish event")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d speeches, cost: $%.6f\n", len(transcript.Speeches), transcript.CostUSD())
		return nil
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func joinLabels(labels []model.AgentLabel) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}
