package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL     time.Duration `envconfig:"CONVERSATION_TTL" default:"168h"`
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"20"`
	}
}

// ChatModelConfig describes one Gemini chat model.
type ChatModelConfig struct {
	Model          string  `envconfig:"MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"TEMPERATURE" default:"0.2"`
	ThinkingBudget int32   `envconfig:"THINKING_BUDGET" default:"0"`
}

type ClassifierConfig struct {
	ChatModelConfig
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"2"`
	RetryDelay  time.Duration `envconfig:"RETRY_DELAY" default:"500ms"`
}

type FileQAConfig struct {
	ChunkSize      int           `envconfig:"FILEQA_CHUNK_SIZE" default:"1000"`
	ChunkOverlap   int           `envconfig:"FILEQA_CHUNK_OVERLAP" default:"100"`
	TopK           int           `envconfig:"FILEQA_TOP_K" default:"3"`
	CacheTTL       time.Duration `envconfig:"FILEQA_CACHE_TTL" default:"1h"`
	EmbeddingModel string        `envconfig:"FILEQA_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	MaxBytes       int64         `envconfig:"FILEQA_MAX_BYTES" default:"20971520"`
}

type SearchConfig struct {
	Model string `envconfig:"SEARCH_MODEL" default:"gemini-2.5-flash"`
}

type DebateConfig struct {
	Model       string  `envconfig:"DEBATE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"DEBATE_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"DEBATE_TEMPERATURE" default:"0.6"`
	FreeRounds  int     `envconfig:"DEBATE_FREE_ROUNDS" default:"10"`
}
