package main

import "time"

// ChatMessage is a single message sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stage1Response represents a single model's response in Stage 1
type Stage1Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Stage2Ranking represents a model's evaluation of the anonymized responses,
// together with the ranking parsed out of the free-form evaluation text.
// ParsedRanking may be empty when nothing recognizable was found; the raw
// evaluation text is kept either way.
type Stage2Ranking struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// AggregateRanking represents the aggregate ranking across all evaluators
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Stage2Result bundles everything Stage 2 produces: the per-evaluator
// rankings, the label-to-model mapping used for de-anonymization, and the
// aggregate rankings computed from the parsed evaluations.
type Stage2Result struct {
	Rankings          []Stage2Ranking    `json:"rankings"`
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}

// Stage3Response represents the chairman's final synthesis
type Stage3Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// CouncilResult is the outcome of a full council run. Stages that completed
// before a failure stay populated; the failing stage and everything after it
// stay unset and Error carries a single descriptive message naming the stage.
type CouncilResult struct {
	Query  string           `json:"query"`
	Stage1 []Stage1Response `json:"stage1,omitempty"`
	Stage2 *Stage2Result    `json:"stage2,omitempty"`
	Stage3 *Stage3Response  `json:"stage3,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// LabeledResponse pairs an anonymized label with the response text it hides.
type LabeledResponse struct {
	Label    string `json:"label"`
	Response string `json:"response"`
}

// Message represents a single message in a conversation
type Message struct {
	Role    string           `json:"role"`
	Content string           `json:"content,omitempty"`
	Stage1  []Stage1Response `json:"stage1,omitempty"`
	Stage2  *Stage2Result    `json:"stage2,omitempty"`
	Stage3  *Stage3Response  `json:"stage3,omitempty"`
}

// Conversation represents a full conversation with all messages
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// ConversationMetadata represents conversation list metadata
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// SendMessageRequest represents a request to send a message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// chatCompletionRequest is the wire request shared by both provider variants
// (OpenRouter speaks the same chat/completions schema as OpenAI).
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// chatCompletionResponse is the wire response from a chat/completions endpoint
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
