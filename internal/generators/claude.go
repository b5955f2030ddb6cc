package generators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
)

// ClaudeGenerator implements the ContentGenerator interface using the
// Anthropic Claude API.
type ClaudeGenerator struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

var _ interfaces.ContentGenerator = (*ClaudeGenerator)(nil)

// NewClaudeGenerator creates a new Claude content generator
func NewClaudeGenerator(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set via SOCRATIC_CLAUDE_API_KEY, ANTHROPIC_API_KEY, or claude.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Info().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude content generator initialized")

	return &ClaudeGenerator{
		config:    config,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

func (g *ClaudeGenerator) Name() string {
	return "claude"
}

// GenerateSummary produces a markdown study summary of the text plus
// short-answer question/answer pairs
func (g *ClaudeGenerator) GenerateSummary(ctx context.Context, title, text, refContext string) (string, []models.QAPair, error) {
	if text == "" {
		return "", nil, fmt.Errorf("text cannot be empty for summary generation")
	}

	startTime := time.Now()
	response, err := g.generate(ctx, summarySystemPrompt, buildSummaryPrompt(title, text, refContext))
	if err != nil {
		g.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Summary generation failed")
		return "", nil, fmt.Errorf("summary generation failed: %w", err)
	}

	summary, pairs, err := parseSummaryResponse(response)
	if err != nil {
		return "", nil, err
	}

	g.logger.Info().
		Int("text_length", len(text)).
		Int("summary_length", len(summary)).
		Int("qa_pair_count", len(pairs)).
		Dur("duration", time.Since(startTime)).
		Msg("Summary generation completed")

	return summary, pairs, nil
}

// GenerateQuiz produces multiple-choice quiz questions from the text
func (g *ClaudeGenerator) GenerateQuiz(ctx context.Context, title, text, refContext string, priorQuestions []models.QuizQuestion) ([]models.QuizQuestion, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for quiz generation")
	}

	startTime := time.Now()
	response, err := g.generate(ctx, quizSystemPrompt, buildQuizPrompt(title, text, refContext, priorQuestions))
	if err != nil {
		g.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Quiz generation failed")
		return nil, fmt.Errorf("quiz generation failed: %w", err)
	}

	questions, err := parseQuizResponse(response)
	if err != nil {
		return nil, err
	}

	g.logger.Info().
		Int("question_count", len(questions)).
		Dur("duration", time.Since(startTime)).
		Msg("Quiz generation completed")

	return questions, nil
}

// generate runs a single prompt through the Claude API
func (g *ClaudeGenerator) generate(ctx context.Context, system, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		MaxTokens: int64(g.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if g.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.config.Temperature))
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := g.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return response.String(), nil
}
