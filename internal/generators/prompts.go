package generators

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/socratic/internal/models"
)

const summarySystemPrompt = `You are a study assistant that writes clear, well-structured revision summaries.
Respond with JSON only, no prose and no markdown fences, matching exactly this shape:
{
  "summary": "markdown text",
  "qa_pairs": [
    {"question": "...", "answer": "..."}
  ]
}
The summary is markdown: use headings, bullet lists, and tables where they help, and cover
every major topic in the document. Produce 5 short-answer question/answer pairs that test
understanding of the material. Do not invent content that is not in the document.`

const quizSystemPrompt = `You are a study assistant that writes exam-style questions from course material.
Respond with JSON only, no prose and no markdown fences, matching exactly this shape:
{
  "questions": [
    {"question": "...", "options": ["...", "...", "...", "..."], "answer": "A", "explanation": "..."}
  ]
}
Each question has exactly four options and the answer is the letter A, B, C, or D.`

// maxPromptTextLength bounds how much document text is sent to the model
const maxPromptTextLength = 60000

// maxRefContextLength bounds the secondary reference material in a prompt
const maxRefContextLength = 15000

func buildSummaryPrompt(title, text, refContext string) string {
	var b strings.Builder
	b.WriteString("Write a revision summary of the following document")
	if title != "" {
		fmt.Fprintf(&b, ", titled %q", title)
	}
	b.WriteString(". Start with a level-1 heading.\n")

	if refContext != "" {
		b.WriteString("\nThe student also supplied past exam questions. Give extra weight to the topics they cover:\n\n")
		b.WriteString(truncateText(refContext, maxRefContextLength))
		b.WriteString("\n")
	}

	b.WriteString("\nDocument:\n\n")
	b.WriteString(truncateText(text, maxPromptTextLength))
	return b.String()
}

func buildQuizPrompt(title, text, refContext string, priorQuestions []models.QuizQuestion) string {
	var b strings.Builder
	b.WriteString("Generate 10 multiple-choice questions from the following document")
	if title != "" {
		fmt.Fprintf(&b, ", titled %q", title)
	}
	b.WriteString(".\n")

	if refContext != "" {
		b.WriteString("\nThe student also supplied past exam questions. Write questions in a similar style and favor the topics they cover:\n\n")
		b.WriteString(truncateText(refContext, maxRefContextLength))
		b.WriteString("\n")
	}

	if len(priorQuestions) > 0 {
		b.WriteString("\nThe student has already been asked these questions. Ask about different aspects of the material, and where a topic repeats, probe it from a new angle:\n")
		for _, q := range priorQuestions {
			fmt.Fprintf(&b, "- %s\n", q.Question)
		}
	}

	b.WriteString("\nDocument:\n\n")
	b.WriteString(truncateText(text, maxPromptTextLength))
	return b.String()
}

// summaryPayload mirrors the JSON shape the summary prompt requests
type summaryPayload struct {
	Summary string          `json:"summary"`
	QAPairs []models.QAPair `json:"qa_pairs"`
}

// parseSummaryResponse decodes the model's summary JSON. When the model
// ignores the JSON instruction and answers in plain markdown, the whole
// response is taken as the summary with no question/answer pairs.
func parseSummaryResponse(response string) (string, []models.QAPair, error) {
	cleaned := stripCodeFences(response)
	if cleaned == "" {
		return "", nil, fmt.Errorf("summary response is empty")
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil || payload.Summary == "" {
		return cleaned, nil, nil
	}

	return payload.Summary, payload.QAPairs, nil
}

// quizPayload mirrors the JSON shape the quiz prompt requests
type quizPayload struct {
	Questions []models.QuizQuestion `json:"questions"`
}

// parseQuizResponse decodes the model's quiz JSON. Models sometimes
// wrap JSON in markdown fences despite instructions, so fences are
// stripped before decoding.
func parseQuizResponse(response string) ([]models.QuizQuestion, error) {
	cleaned := stripCodeFences(response)

	var payload quizPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse quiz response: %w", err)
	}

	if len(payload.Questions) == 0 {
		return nil, fmt.Errorf("quiz response contains no questions")
	}

	for i, q := range payload.Questions {
		if q.Question == "" || len(q.Options) != 4 {
			return nil, fmt.Errorf("quiz question %d is malformed", i+1)
		}
		answer := strings.ToUpper(strings.TrimSpace(q.Answer))
		if len(answer) != 1 || answer < "A" || answer > "D" {
			return nil, fmt.Errorf("quiz question %d has invalid answer %q", i+1, q.Answer)
		}
		payload.Questions[i].Answer = answer
	}

	return payload.Questions, nil
}

// stripCodeFences removes a surrounding markdown code fence if present
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line (may carry a language tag)
	if idx := strings.Index(trimmed, "\n"); idx != -1 {
		trimmed = trimmed[idx+1:]
	}

	if idx := strings.LastIndex(trimmed, "```"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	return strings.TrimSpace(trimmed)
}

// truncateText caps text at limit bytes, cutting at a word boundary
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "\n\n[document truncated]"
}
