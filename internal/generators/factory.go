package generators

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
)

// NewContentGenerator creates the content generator selected by the
// llm.provider configuration.
func NewContentGenerator(cfg *common.Config, logger arbor.ILogger) (interfaces.ContentGenerator, error) {
	logger.Info().Str("provider", cfg.LLM.Provider).Msg("Initializing content generator")

	switch cfg.LLM.Provider {
	case "gemini":
		return NewGeminiGenerator(&cfg.Gemini, logger)
	case "claude":
		return NewClaudeGenerator(&cfg.Claude, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}
