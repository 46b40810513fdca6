package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Council orchestrates the three-stage process: parallel responses,
// anonymized peer ranking, and chairman synthesis. The provider client and
// the progress logger are injected so the pipeline stays testable.
type Council struct {
	client       ChatClient
	models       []string
	chairman     string
	titleModel   string
	queryTimeout time.Duration
	titleTimeout time.Duration
	logger       *log.Logger
}

// NewCouncil creates a council over the configured models. A nil logger
// falls back to the standard logger.
func NewCouncil(cfg *Config, client ChatClient, logger *log.Logger) *Council {
	if logger == nil {
		logger = log.Default()
	}
	return &Council{
		client:       client,
		models:       cfg.CouncilModels,
		chairman:     cfg.ChairmanModel,
		titleModel:   cfg.TitleModel,
		queryTimeout: cfg.ModelQueryTimeout,
		titleTimeout: cfg.TitleGenTimeout,
		logger:       logger,
	}
}

// callResult captures one model call's outcome. Each call writes into its
// own slot, so results keep configured-model order no matter which call
// finishes first.
type callResult struct {
	content string
	err     error
}

// queryAll issues one chat request per model concurrently and waits for every
// one of them to settle. Individual failures are logged and recorded in the
// result slot; they never abort the other calls.
func (c *Council) queryAll(ctx context.Context, models []string, messages []ChatMessage) []callResult {
	results := make([]callResult, len(models))

	g, ctx := errgroup.WithContext(ctx)
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
			defer cancel()

			content, err := c.client.Chat(callCtx, model, messages)
			if err != nil {
				c.logger.Printf("Error querying model %s: %v", model, err)
			}
			results[i] = callResult{content: content, err: err}
			return nil
		})
	}
	// Per-call errors are absorbed above, so the join itself cannot fail.
	_ = g.Wait()

	return results
}

// Stage1CollectResponses collects individual responses from all council
// models. Each model independently answers the user's question; failed models
// are dropped and the survivors keep their configured order. Errors only when
// every single model failed.
func (c *Council) Stage1CollectResponses(ctx context.Context, userQuery string) ([]Stage1Response, error) {
	messages := []ChatMessage{
		{Role: "user", Content: userQuery},
	}

	results := c.queryAll(ctx, c.models, messages)

	var stage1Results []Stage1Response
	for i, result := range results {
		if result.err != nil {
			continue
		}
		stage1Results = append(stage1Results, Stage1Response{
			Model:    c.models[i],
			Response: result.content,
		})
	}

	if len(stage1Results) == 0 {
		return nil, fmt.Errorf("All models failed to respond")
	}

	return stage1Results, nil
}

// Stage2CollectRankings has every configured model rank the anonymized Stage 1
// responses. Models that failed Stage 1 still get to evaluate; a model whose
// ranking request fails is simply left out. Replies are parsed for rankings
// whether or not parsing finds anything, so this stage never aborts the run.
func (c *Council) Stage2CollectRankings(ctx context.Context, userQuery string, stage1Results []Stage1Response) ([]Stage2Ranking, map[string]string) {
	labeled, labelToModel := AnonymizeResponses(stage1Results)

	messages := []ChatMessage{
		{Role: "user", Content: buildRankingPrompt(userQuery, labeled)},
	}

	results := c.queryAll(ctx, c.models, messages)

	var stage2Results []Stage2Ranking
	for i, result := range results {
		if result.err != nil {
			continue
		}
		stage2Results = append(stage2Results, Stage2Ranking{
			Model:         c.models[i],
			Ranking:       result.content,
			ParsedRanking: ParseRankingFromText(result.content),
		})
	}

	return stage2Results, labelToModel
}

// Stage3SynthesizeFinal asks the chairman model to synthesize the final
// answer from all responses and rankings. There is no fallback synthesizer;
// any failure here is returned as-is.
func (c *Council) Stage3SynthesizeFinal(ctx context.Context, userQuery string, stage1Results []Stage1Response, stage2Results []Stage2Ranking) (*Stage3Response, error) {
	messages := []ChatMessage{
		{Role: "user", Content: buildChairmanPrompt(userQuery, stage1Results, stage2Results)},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	content, err := c.client.Chat(callCtx, c.chairman, messages)
	if err != nil {
		return nil, fmt.Errorf("chairman model query failed: %w", err)
	}

	return &Stage3Response{
		Model:    c.chairman,
		Response: content,
	}, nil
}

// Run executes the complete 3-stage council process. Stages run strictly in
// sequence; every stage that completes before a failure stays populated in
// the result and the error names the stage that broke the run. Stage 1 fails
// only on total failure, Stage 2 never fails, Stage 3 fails on its single
// call failing.
func (c *Council) Run(ctx context.Context, userQuery string) *CouncilResult {
	result := &CouncilResult{Query: userQuery}

	stage1Results, err := c.Stage1CollectResponses(ctx, userQuery)
	if err != nil {
		result.Error = fmt.Sprintf("Stage 1 failed: %v", err)
		return result
	}
	result.Stage1 = stage1Results

	stage2Results, labelToModel := c.Stage2CollectRankings(ctx, userQuery, stage1Results)
	result.Stage2 = &Stage2Result{
		Rankings:          stage2Results,
		LabelToModel:      labelToModel,
		AggregateRankings: CalculateAggregateRankings(stage2Results, labelToModel),
	}

	stage3Result, err := c.Stage3SynthesizeFinal(ctx, userQuery, stage1Results, stage2Results)
	if err != nil {
		result.Error = fmt.Sprintf("Stage 3 failed: %v", err)
		return result
	}
	result.Stage3 = stage3Result

	return result
}

// GenerateTitle generates a short conversation title from the user's query
// using the configured fast model.
func (c *Council) GenerateTitle(ctx context.Context, userQuery string) (string, error) {
	messages := []ChatMessage{
		{Role: "user", Content: buildTitlePrompt(userQuery)},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.titleTimeout)
	defer cancel()

	content, err := c.client.Chat(callCtx, c.titleModel, messages)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := strings.TrimSpace(content)
	title = strings.Trim(title, "\"'")
	if len(title) > 50 {
		title = title[:47] + "..."
	}

	return title, nil
}

// buildRankingPrompt builds the Stage 2 prompt presenting the anonymized
// responses and spelling out the exact ranking format evaluators must emit.
func buildRankingPrompt(userQuery string, labeled []LabeledResponse) string {
	var responsesText strings.Builder
	for _, lr := range labeled {
		responsesText.WriteString(fmt.Sprintf("%s:\n%s\n\n", lr.Label, lr.Response))
	}

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText.String())
}

// buildChairmanPrompt builds the Stage 3 prompt carrying all de-anonymized
// responses and the raw Stage 2 evaluations.
func buildChairmanPrompt(userQuery string, stage1Results []Stage1Response, stage2Results []Stage2Ranking) string {
	var stage1Text strings.Builder
	for _, result := range stage1Results {
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", result.Model, result.Response))
	}

	var stage2Text strings.Builder
	for _, result := range stage2Results {
		stage2Text.WriteString(fmt.Sprintf("Model: %s\nRanking: %s\n\n", result.Model, result.Ranking))
	}

	return fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, userQuery, stage1Text.String(), stage2Text.String())
}

// buildTitlePrompt builds the title-generation prompt.
func buildTitlePrompt(userQuery string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)
}
