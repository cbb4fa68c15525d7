package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/model"
	logx "github.com/agentdesk/server/pkg/logger"
)

// Graph node names.
const (
	NodeInputConverter     = "InputConverter"
	NodeClassifier         = "Classifier"
	NodeExecutor           = "Executor"
	NodeMergeAssembler     = "MergeAssembler"
	NodeMergerChatModel    = "MergerChatModel"
	NodePassThrough        = "PassThrough"
	NodeFinalizeAssembler  = "FinalizeAssembler"
	NodeFinalizerChatModel = "FinalizerChatModel"
)

// Keys of the final message's Extra map.
const (
	ExtraUsageCost    = "usage_cost"
	ExtraTotalCostUSD = "usage_cost_total_usd"
	ExtraRound        = "round"
)

// recordModelUsage prices the usage of one chat model reply, adds it to the
// state total and exposes it in the message Extra.
func recordModelUsage(state *model.AppState, node, modelName string, out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra[ExtraUsageCost] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}
	logx.Debug().
		Str("conversation_id", state.SessionID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")

	state.TotalCostUSD += totalC
	out.Extra[ExtraTotalCostUSD] = state.TotalCostUSD
}

// recordUsages adds usages collected outside graph model nodes to the state.
func recordUsages(state *model.AppState, node string, usages []model.Usage) {
	if len(usages) == 0 {
		return
	}
	cost := model.TotalCost(usages)
	state.TotalCostUSD += cost
	logx.Debug().
		Str("conversation_id", state.SessionID).
		Str("node", node).
		Int("model_calls", len(usages)).
		Float64("total_cost_usd", cost).
		Msg("LLM usage")
}
