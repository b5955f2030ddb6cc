package interfaces

import (
	"context"

	"github.com/ternarybob/socratic/internal/models"
)

// TextExtractor extracts plain text from an uploaded document file.
// Implementations exist per format (PDF, DOCX); the pipeline picks one
// by file extension.
type TextExtractor interface {
	// ExtractText returns the full text content of the document at path
	ExtractText(ctx context.Context, path string) (string, error)

	// Supports reports whether the extractor handles the given file
	// extension (lowercase, with leading dot, e.g. ".pdf")
	Supports(ext string) bool
}

// ContentGenerator produces study content from extracted document text.
// Implementations wrap a hosted LLM (Gemini, Claude). refContext is
// optional text from a secondary reference document (e.g. past exam
// questions) that steers what the model emphasizes; empty means none.
type ContentGenerator interface {
	// GenerateSummary produces a markdown study summary of the text
	// together with short-answer question/answer pairs
	GenerateSummary(ctx context.Context, title, text, refContext string) (string, []models.QAPair, error)

	// GenerateQuiz produces multiple-choice questions from the text.
	// priorQuestions lists questions from the user's earlier quizzes so
	// the model can avoid repeats.
	GenerateQuiz(ctx context.Context, title, text, refContext string, priorQuestions []models.QuizQuestion) ([]models.QuizQuestion, error)

	// Name returns the provider name for logging ("gemini", "claude")
	Name() string
}

// ReportRenderer renders a markdown summary into a PDF report
type ReportRenderer interface {
	RenderPDF(markdown, title string) ([]byte, error)
}

// AudioSynthesizer converts summary text into spoken audio
type AudioSynthesizer interface {
	// Synthesize returns encoded audio bytes and the file extension
	// of the produced format (e.g. ".wav")
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}
