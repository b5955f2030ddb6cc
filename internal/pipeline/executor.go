// -----------------------------------------------------------------------
// Pipeline Executor - runs the document processing stages for one job
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
	"github.com/ternarybob/socratic/internal/queue"
)

// recentQuestionLimit caps how many past questions feed quiz generation
const recentQuestionLimit = 30

// minRefTextLength is the threshold below which extracted secondary
// reference text is discarded as unusable
const minRefTextLength = 20

// Executor drives a job through the processing stages: text
// extraction, summary generation, PDF report, audio synthesis, and
// quiz creation. Summary and extraction failures end the run; the
// output stages degrade softly so one broken artifact does not sink
// the whole job.
type Executor struct {
	storage       interfaces.StorageManager
	extractor     interfaces.TextExtractor
	generator     interfaces.ContentGenerator
	renderer      interfaces.ReportRenderer
	synthesizer   interfaces.AudioSynthesizer
	logger        arbor.ILogger
	artifactsDir  string
	minTextLength int
}

// NewExecutor creates a pipeline executor. synthesizer may be nil,
// in which case the audio stage soft-fails.
func NewExecutor(
	storage interfaces.StorageManager,
	extractor interfaces.TextExtractor,
	generator interfaces.ContentGenerator,
	renderer interfaces.ReportRenderer,
	synthesizer interfaces.AudioSynthesizer,
	artifactsDir string,
	minTextLength int,
	logger arbor.ILogger,
) (*Executor, error) {
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if minTextLength <= 0 {
		minTextLength = 100
	}

	return &Executor{
		storage:       storage,
		extractor:     extractor,
		generator:     generator,
		renderer:      renderer,
		synthesizer:   synthesizer,
		logger:        logger,
		artifactsDir:  artifactsDir,
		minTextLength: minTextLength,
	}, nil
}

// Handler returns the queue handler that processes job messages
func (e *Executor) Handler() queue.JobHandler {
	return func(ctx context.Context, msg *models.QueueMessage, attempt queue.Attempt) error {
		return e.Process(ctx, msg.JobID, attempt)
	}
}

// Process runs the full pipeline for one job delivery attempt. A job
// in the failed state is re-run from the start: redelivery only
// happens when an earlier attempt asked for a retry.
func (e *Executor) Process(ctx context.Context, jobID string, attempt queue.Attempt) error {
	job, err := e.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		// Job record gone (e.g. deleted while queued), drop the message
		e.logger.Warn().Str("job_id", jobID).Err(err).Msg("Job not found for queued message")
		return nil
	}

	if job.IsDeleted {
		e.logger.Info().Str("job_id", jobID).Msg("Skipping deleted job")
		return nil
	}
	if job.Status == models.JobStatusCompleted {
		e.logger.Info().Str("job_id", jobID).Msg("Skipping completed job")
		return nil
	}

	e.logger.Info().
		Str("job_id", jobID).
		Str("file", job.SourceFileName).
		Int("attempt", attempt.Receive).
		Msg("Starting document processing")

	startTime := time.Now()
	job.MarkProcessing()
	job.ErrorMessage = ""
	if err := e.saveJob(ctx, job); err != nil {
		return err
	}

	result := e.run(ctx, job)
	if result.Outcome == StageHardFail {
		job.MarkFailed(result.Error())
		e.saveJob(ctx, job)

		if result.Permanent || attempt.Final {
			e.cleanupUploads(job)

			e.logger.Error().
				Str("job_id", jobID).
				Err(result.Err).
				Bool("permanent", result.Permanent).
				Msg("Document processing failed")

			if result.Permanent {
				// Nothing a retry could fix, drop the message cleanly
				return nil
			}
			return result.Err
		}

		// The message redelivers after backoff and re-runs the job
		e.logger.Warn().
			Str("job_id", jobID).
			Err(result.Err).
			Int("attempt", attempt.Receive).
			Msg("Document processing failed, will retry")
		return result.Err
	}

	job.MarkCompleted(time.Since(startTime))
	if err := e.saveJob(ctx, job); err != nil {
		return err
	}
	e.cleanupUploads(job)

	e.logger.Info().
		Str("job_id", jobID).
		Float64("processing_time", job.ProcessingTime).
		Bool("pdf", job.PDFGenerated).
		Bool("audio", job.AudioGenerated).
		Bool("quiz", job.QuizGenerated).
		Msg("Document processing completed")

	return nil
}

// run executes the stages in order. It returns the first hard failure,
// or Ok once the final stage finishes.
func (e *Executor) run(ctx context.Context, job *models.Job) StageResult {
	text, result := e.extractText(ctx, job)
	if result.Outcome == StageHardFail {
		return result
	}

	// Secondary reference material is best-effort
	refContext := e.extractReference(ctx, job)

	summary, result := e.generateSummary(ctx, job, text, refContext)
	if result.Outcome == StageHardFail {
		return result
	}

	// Output stages degrade softly
	e.createPDF(ctx, job, summary)
	e.generateAudio(ctx, job, summary)
	e.createQuiz(ctx, job, text, refContext)

	job.UpdateStage(models.StageCreatingQuiz, 95, "Finalizing results")
	e.saveJob(ctx, job)

	return Ok()
}

// extractText runs the text extraction stage
func (e *Executor) extractText(ctx context.Context, job *models.Job) (string, StageResult) {
	job.UpdateStage(models.StageExtractingText, 10, "Extracting text from document")
	e.saveJob(ctx, job)

	ext := strings.ToLower(filepath.Ext(job.SourceFileName))
	if !e.extractor.Supports(ext) {
		return "", PermanentFail(fmt.Errorf("unsupported file type: %s", ext))
	}

	if _, err := os.Stat(job.SourceFilePath); err != nil {
		return "", PermanentFail(fmt.Errorf("uploaded file no longer available: %w", err))
	}

	text, err := e.extractor.ExtractText(ctx, job.SourceFilePath)
	if err != nil {
		return "", HardFail(fmt.Errorf("text extraction failed: %w", err))
	}

	text = strings.TrimSpace(text)
	if len(text) < e.minTextLength {
		return "", PermanentFail(fmt.Errorf("document contains insufficient text (%d characters, need %d)", len(text), e.minTextLength))
	}

	job.UpdateStage(models.StageExtractingText, 20, "Text extracted")
	e.saveJob(ctx, job)

	return text, Ok()
}

// extractReference pulls text from the optional secondary reference
// document (e.g. past exam questions). Any failure here logs and
// yields empty text; the job continues without the reference material.
// Text below the usefulness threshold is discarded the same way.
func (e *Executor) extractReference(ctx context.Context, job *models.Job) string {
	if job.PastQuestionsPath == "" {
		return ""
	}

	job.UpdateStage(models.StageExtractingText, 30, "Extracting reference material")
	e.saveJob(ctx, job)

	ext := strings.ToLower(filepath.Ext(job.PastQuestionsFileName))
	if !e.extractor.Supports(ext) {
		e.logger.Warn().
			Str("job_id", job.ID).
			Str("ext", ext).
			Msg("Reference material format not extractable, continuing without it")
		return ""
	}

	text, err := e.extractor.ExtractText(ctx, job.PastQuestionsPath)
	if err != nil {
		e.logger.Warn().
			Str("job_id", job.ID).
			Err(err).
			Msg("Reference material extraction failed, continuing without it")
		return ""
	}

	text = strings.TrimSpace(text)
	if len(text) < minRefTextLength {
		e.logger.Info().
			Str("job_id", job.ID).
			Int("length", len(text)).
			Msg("Reference material too short to use, discarding")
		return ""
	}

	job.UsedPastQuestions = true
	job.PastQuestionsContext = text
	e.saveJob(ctx, job)

	return text
}

// generateSummary runs the summary generation stage
func (e *Executor) generateSummary(ctx context.Context, job *models.Job, text, refContext string) (string, StageResult) {
	job.UpdateStage(models.StageGeneratingSummary, 35, "Generating study summary")
	e.saveJob(ctx, job)

	summary, pairs, err := e.generator.GenerateSummary(ctx, job.Title, text, refContext)
	if err != nil {
		return "", HardFail(fmt.Errorf("summary generation failed: %w", err))
	}

	job.Summary = summary
	job.QAPairs = pairs
	job.UpdateStage(models.StageGeneratingSummary, 55, "Summary generated")
	e.saveJob(ctx, job)

	return summary, Ok()
}

// createPDF renders the summary into a PDF report
func (e *Executor) createPDF(ctx context.Context, job *models.Job, summary string) StageResult {
	job.UpdateStage(models.StageCreatingPDF, 65, "Creating PDF report")
	e.saveJob(ctx, job)

	pdfBytes, err := e.renderer.RenderPDF(summary, job.Title)
	if err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("PDF report generation failed, continuing")
		job.UpdateStage(models.StageCreatingPDF, 75, "PDF report unavailable")
		e.saveJob(ctx, job)
		return SoftFail(err)
	}

	path := filepath.Join(e.artifactsDir, job.ID+".pdf")
	if err := os.WriteFile(path, pdfBytes, 0644); err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to write PDF report, continuing")
		return SoftFail(err)
	}

	job.PDFGenerated = true
	job.PDFPath = path
	job.UpdateStage(models.StageCreatingPDF, 75, "PDF report created")
	e.saveJob(ctx, job)

	return Ok()
}

// generateAudio synthesizes the summary as spoken audio
func (e *Executor) generateAudio(ctx context.Context, job *models.Job, summary string) StageResult {
	job.UpdateStage(models.StageGeneratingAudio, 80, "Generating audio summary")
	e.saveJob(ctx, job)

	if e.synthesizer == nil {
		job.UpdateStage(models.StageGeneratingAudio, 85, "Audio summary unavailable")
		e.saveJob(ctx, job)
		return SoftFail(fmt.Errorf("audio synthesis not configured"))
	}

	audio, ext, err := e.synthesizer.Synthesize(ctx, summary)
	if err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Audio synthesis failed, continuing")
		job.UpdateStage(models.StageGeneratingAudio, 85, "Audio summary unavailable")
		e.saveJob(ctx, job)
		return SoftFail(err)
	}

	path := filepath.Join(e.artifactsDir, job.ID+ext)
	if err := os.WriteFile(path, audio, 0644); err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to write audio file, continuing")
		return SoftFail(err)
	}

	job.AudioGenerated = true
	job.AudioPath = path
	job.UpdateStage(models.StageGeneratingAudio, 85, "Audio summary generated")
	e.saveJob(ctx, job)

	return Ok()
}

// createQuiz generates the quiz, steering away from the user's past
// questions when any exist.
func (e *Executor) createQuiz(ctx context.Context, job *models.Job, text, refContext string) StageResult {
	job.UpdateStage(models.StageCreatingQuiz, 90, "Creating quiz questions")
	e.saveJob(ctx, job)

	priorQuestions, err := e.storage.QuizStorage().GetRecentQuestions(ctx, job.UserID, recentQuestionLimit)
	if err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to load past questions, generating without them")
		priorQuestions = nil
	}

	questions, err := e.generator.GenerateQuiz(ctx, job.Title, text, refContext, priorQuestions)
	if err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Quiz generation failed, continuing")
		return SoftFail(err)
	}

	quiz := models.NewQuiz(job.ID, questions)
	if err := e.storage.QuizStorage().SaveQuiz(ctx, quiz); err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to save quiz, continuing")
		return SoftFail(err)
	}

	job.QuizGenerated = true
	e.saveJob(ctx, job)

	return Ok()
}

// saveJob persists the job, logging rather than failing the stage on error
func (e *Executor) saveJob(ctx context.Context, job *models.Job) error {
	if err := e.storage.JobStorage().SaveJob(ctx, job); err != nil {
		e.logger.Error().Str("job_id", job.ID).Err(err).Msg("Failed to save job state")
		return err
	}
	return nil
}

// cleanupUploads removes the temp upload files once no further attempt
// will need them
func (e *Executor) cleanupUploads(job *models.Job) {
	for _, path := range []string{job.SourceFilePath, job.PastQuestionsPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to remove temp upload")
		}
	}
}
