// -----------------------------------------------------------------------
// Processing Job - Document processing lifecycle record
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobStatus represents the coarse lifecycle state of a processing job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobStage represents the fine-grained pipeline stage a job is in.
// Stages advance monotonically while a job processes; a soft-failed
// stage is skipped and the pipeline continues to the next stage.
type JobStage string

const (
	StagePending           JobStage = "pending"
	StageExtractingText    JobStage = "extracting_text"
	StageGeneratingSummary JobStage = "generating_summary"
	StageCreatingPDF       JobStage = "creating_pdf"
	StageGeneratingAudio   JobStage = "generating_audio"
	StageCreatingQuiz      JobStage = "creating_quiz"
	StageCompleted         JobStage = "completed"
	StageFailed            JobStage = "failed"
)

// Job represents a single document processing request and its results.
// The job record is the unit of status streaming: SSE handlers poll it
// and publish snapshots whenever Status/Stage/StageProgress change.
type Job struct {
	ID     string `json:"id" badgerhold:"key"`
	UserID string `json:"user_id" badgerhold:"index"`

	// Source document
	Title          string `json:"title"`
	SourceFileName string `json:"source_file_name"`
	SourceFilePath string `json:"-"` // Temp upload path, removed once the job is terminal

	// Optional secondary reference document (e.g. past exam questions).
	// Extraction of this file is best-effort and never fails the job.
	PastQuestionsFileName string `json:"past_questions_file_name,omitempty"`
	PastQuestionsPath     string `json:"-"`

	// Lifecycle
	Status        JobStatus `json:"status"`
	Stage         JobStage  `json:"stage"`
	StageProgress int       `json:"stage_progress"` // 0-100
	StageMessage  string    `json:"stage_message"`
	ErrorMessage  string    `json:"error_message,omitempty"`

	// Outputs
	Summary        string   `json:"summary,omitempty"`
	QAPairs        []QAPair `json:"questions_and_answers,omitempty"`
	PDFGenerated   bool     `json:"pdf_generated"`
	AudioGenerated bool     `json:"audio_generated"`
	QuizGenerated  bool     `json:"quiz_generated"`
	PDFPath        string   `json:"-"`
	AudioPath      string   `json:"-"`

	// Secondary reference material usage: set when usable text was
	// extracted from the past-questions upload and fed to generation
	UsedPastQuestions    bool   `json:"used_past_questions"`
	PastQuestionsContext string `json:"past_questions_context,omitempty"`

	// Timing
	ProcessingTime float64    `json:"processing_time"` // Seconds, set on completion
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// Soft deletion. Deleted jobs are hidden from listings and purged
	// by the retention sweeper once they age out.
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewJob creates a pending job for an uploaded document
func NewJob(id, userID, title, fileName, filePath string) *Job {
	now := time.Now()
	return &Job{
		ID:             id,
		UserID:         userID,
		Title:          title,
		SourceFileName: fileName,
		SourceFilePath: filePath,
		Status:         JobStatusPending,
		Stage:          StagePending,
		StageProgress:  0,
		StageMessage:   "Waiting to start",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// UpdateStage advances the job to a new pipeline stage
func (j *Job) UpdateStage(stage JobStage, progress int, message string) {
	j.Stage = stage
	j.StageProgress = progress
	j.StageMessage = message
	j.UpdatedAt = time.Now()
}

// MarkProcessing transitions the job into the processing state
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkCompleted finalizes a successful job
func (j *Job) MarkCompleted(elapsed time.Duration) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Stage = StageCompleted
	j.StageProgress = 100
	j.StageMessage = "Processing complete"
	j.ProcessingTime = elapsed.Seconds()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed records a failed run with an error message. Progress and
// artifact flags reset so consumers never see a failed job claiming
// partial completion; a retried run rebuilds them from scratch.
func (j *Job) MarkFailed(message string) {
	j.Status = JobStatusFailed
	j.Stage = StageFailed
	j.StageProgress = 0
	j.StageMessage = "Processing failed"
	j.ErrorMessage = message
	j.PDFGenerated = false
	j.AudioGenerated = false
	j.QuizGenerated = false
	j.UpdatedAt = time.Now()
}

// SoftDelete hides the job from listings without destroying its record
func (j *Job) SoftDelete() {
	now := time.Now()
	j.IsDeleted = true
	j.DeletedAt = &now
	j.UpdatedAt = now
}

// IsTerminal reports whether the job has reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// StatusSnapshot is the compact view published on the status stream.
// Two snapshots comparing equal means nothing worth pushing changed.
type StatusSnapshot struct {
	JobID         string    `json:"job_id"`
	Status        JobStatus `json:"status"`
	Stage         JobStage  `json:"stage"`
	StageProgress int       `json:"stage_progress"`
	StageMessage  string    `json:"stage_message"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// Snapshot returns the streamable view of the job's current state
func (j *Job) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		JobID:         j.ID,
		Status:        j.Status,
		Stage:         j.Stage,
		StageProgress: j.StageProgress,
		StageMessage:  j.StageMessage,
		ErrorMessage:  j.ErrorMessage,
	}
}

// Changed reports whether the snapshot differs from a previous one in
// any field the stream contract cares about.
func (s StatusSnapshot) Changed(prev StatusSnapshot) bool {
	return s.Status != prev.Status ||
		s.Stage != prev.Stage ||
		s.StageProgress != prev.StageProgress ||
		s.StageMessage != prev.StageMessage
}
