package generators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
	"google.golang.org/genai"
)

// GeminiGenerator implements the ContentGenerator interface using the
// Gemini API.
type GeminiGenerator struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

var _ interfaces.ContentGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new Gemini content generator
func NewGeminiGenerator(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set via SOCRATIC_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini content generator initialized")

	return &GeminiGenerator{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

func (g *GeminiGenerator) Name() string {
	return "gemini"
}

// GenerateSummary produces a markdown study summary of the text plus
// short-answer question/answer pairs
func (g *GeminiGenerator) GenerateSummary(ctx context.Context, title, text, refContext string) (string, []models.QAPair, error) {
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
func (g *GeminiGenerator) GenerateQuiz(ctx context.Context, title, text, refContext string, priorQuestions []models.QuizQuestion) ([]models.QuizQuestion, error) {
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

// generate runs a single prompt through the Gemini chat model
func (g *GeminiGenerator) generate(ctx context.Context, system, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.config.Temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(timeoutCtx, g.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("content generation failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from model")
	}

	return response.String(), nil
}
