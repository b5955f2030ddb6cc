package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/socratic/internal/models"
)

// ListOptions controls job listing queries
type ListOptions struct {
	UserID         string // Filter by owner; empty means all users
	Status         string // Filter by status; empty means all statuses
	IncludeDeleted bool   // Include soft-deleted jobs
	Limit          int    // Max results; 0 means no limit
	Offset         int    // Pagination offset
}

// JobStorage - interface for processing job persistence
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *ListOptions) ([]*models.Job, error)
	CountJobs(ctx context.Context, opts *ListOptions) (int, error)
	DeleteJob(ctx context.Context, id string) error

	// Retention operations
	GetDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
}

// UserStorage - interface for user account persistence
type UserStorage interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// QuizStorage - interface for generated quiz persistence
type QuizStorage interface {
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, jobID string) (*models.Quiz, error)
	DeleteQuiz(ctx context.Context, jobID string) error

	// GetRecentQuestions returns questions from a user's previous quizzes,
	// newest first, used to steer new quiz generation away from repeats.
	GetRecentQuestions(ctx context.Context, userID string, limit int) ([]models.QuizQuestion, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	JobStorage() JobStorage
	UserStorage() UserStorage
	QuizStorage() QuizStorage
	DB() interface{}

	// RunGC reclaims backing-store space after bulk deletions
	RunGC() error
	Close() error
}
