package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob("job_1", "user_1", "Lecture Notes", "notes.pdf", "/tmp/notes.pdf")

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, StagePending, job.Stage)
	assert.Equal(t, 0, job.StageProgress)
	assert.False(t, job.IsTerminal())
	assert.False(t, job.IsDeleted)
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("job_1", "user_1", "Lecture Notes", "notes.pdf", "/tmp/notes.pdf")

	job.MarkProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)

	job.UpdateStage(StageExtractingText, 20, "Extracting text")
	assert.Equal(t, StageExtractingText, job.Stage)
	assert.Equal(t, 20, job.StageProgress)
	assert.Equal(t, "Extracting text", job.StageMessage)

	job.MarkCompleted(90 * time.Second)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, StageCompleted, job.Stage)
	assert.Equal(t, 100, job.StageProgress)
	assert.InDelta(t, 90.0, job.ProcessingTime, 0.001)
	require.NotNil(t, job.CompletedAt)
	assert.True(t, job.IsTerminal())
}

func TestJob_MarkFailed(t *testing.T) {
	job := NewJob("job_1", "user_1", "Lecture Notes", "notes.pdf", "/tmp/notes.pdf")
	job.MarkProcessing()
	job.UpdateStage(StageCreatingPDF, 65, "Creating PDF report")
	job.PDFGenerated = true
	job.MarkFailed("document contains insufficient text")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, StageFailed, job.Stage)
	assert.Equal(t, "document contains insufficient text", job.ErrorMessage)
	assert.True(t, job.IsTerminal())

	// A failed job never advertises partial progress or artifacts
	assert.Equal(t, 0, job.StageProgress)
	assert.False(t, job.PDFGenerated)
	assert.False(t, job.AudioGenerated)
	assert.False(t, job.QuizGenerated)
}

func TestJob_SoftDelete(t *testing.T) {
	job := NewJob("job_1", "user_1", "Lecture Notes", "notes.pdf", "/tmp/notes.pdf")
	job.SoftDelete()

	assert.True(t, job.IsDeleted)
	require.NotNil(t, job.DeletedAt)
}

func TestStatusSnapshot_Changed(t *testing.T) {
	job := NewJob("job_1", "user_1", "Lecture Notes", "notes.pdf", "/tmp/notes.pdf")
	prev := job.Snapshot()

	assert.False(t, job.Snapshot().Changed(prev))

	job.UpdateStage(StageExtractingText, 20, "Extracting text")
	assert.True(t, job.Snapshot().Changed(prev))

	prev = job.Snapshot()
	job.UpdateStage(StageExtractingText, 20, "Extracting text")
	assert.False(t, job.Snapshot().Changed(prev))
}

func TestUser_Quota(t *testing.T) {
	user := NewUser("user_1", "student@example.com")

	assert.True(t, user.CanGenerate(3))

	user.ConsumeGeneration()
	user.ConsumeGeneration()
	user.ConsumeGeneration()
	assert.Equal(t, 3, user.GenerationsUsed)
	assert.False(t, user.CanGenerate(3))

	user.ReclaimGeneration()
	assert.True(t, user.CanGenerate(3))

	// Floor at zero
	user.GenerationsUsed = 0
	user.ReclaimGeneration()
	assert.Equal(t, 0, user.GenerationsUsed)
}

func TestUser_PremiumBypassesQuota(t *testing.T) {
	user := NewUser("user_1", "student@example.com")
	user.IsPremium = true
	user.GenerationsUsed = 100

	assert.True(t, user.CanGenerate(3))
}
