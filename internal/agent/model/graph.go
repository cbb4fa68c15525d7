package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	SessionID string
	Question  string
	History   []*schema.Message // prior turns, loaded once by the input converter
	Documents []string          // uploaded document paths, oldest first
	Decision  *RoutingDecision  // set by the classifier post-handler
	Round     *Round            // set by the executor post-handler

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// ClassifyInput is what the classifier node receives.
type ClassifyInput struct {
	Question string
	History  []*schema.Message
	// Document is the session's latest upload, if any.
	Document string
}

// Answer is the outcome of one processed question.
type Answer struct {
	SessionID    string         `json:"session_id"`
	Text         string         `json:"text"`
	Agents       []AgentLabel   `json:"agents"`
	Strategy     Strategy       `json:"strategy"`
	Outcomes     []AgentOutcome `json:"outcomes,omitempty"`
	TotalCostUSD float64        `json:"total_cost_usd"`
}
