package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/interfaces"
	"github.com/ternarybob/socratic/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// quizRecord wraps a quiz with its owner for past-question lookups
type quizRecord struct {
	JobID     string `badgerhold:"key"`
	UserID    string `badgerhold:"index"`
	CreatedAt time.Time
	Quiz      models.Quiz
}

// QuizStorage implements the QuizStorage interface for Badger
type QuizStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewQuizStorage creates a new QuizStorage instance
func NewQuizStorage(db *BadgerDB, logger arbor.ILogger) interfaces.QuizStorage {
	return &QuizStorage{
		db:     db,
		logger: logger,
	}
}

func (s *QuizStorage) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	if quiz.JobID == "" {
		return fmt.Errorf("quiz job ID is required")
	}

	// Resolve the owning user so past-question queries stay cheap
	var job models.Job
	userID := ""
	if err := s.db.Store().Get(quiz.JobID, &job); err == nil {
		userID = job.UserID
	}

	record := quizRecord{
		JobID:     quiz.JobID,
		UserID:    userID,
		CreatedAt: quiz.CreatedAt,
		Quiz:      *quiz,
	}

	if err := s.db.Store().Upsert(quiz.JobID, &record); err != nil {
		return fmt.Errorf("failed to save quiz: %w", err)
	}
	return nil
}

func (s *QuizStorage) GetQuiz(ctx context.Context, jobID string) (*models.Quiz, error) {
	var record quizRecord
	if err := s.db.Store().Get(jobID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("quiz not found for job: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &record.Quiz, nil
}

func (s *QuizStorage) DeleteQuiz(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &quizRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	return nil
}

// GetRecentQuestions returns questions from the user's newest quizzes,
// capped at limit questions total.
func (s *QuizStorage) GetRecentQuestions(ctx context.Context, userID string, limit int) ([]models.QuizQuestion, error) {
	var records []quizRecord
	query := badgerhold.Where("UserID").Eq(userID).SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to find quizzes: %w", err)
	}

	questions := make([]models.QuizQuestion, 0, limit)
	for _, record := range records {
		for _, q := range record.Quiz.Questions {
			if limit > 0 && len(questions) >= limit {
				return questions, nil
			}
			questions = append(questions, q)
		}
	}
	return questions, nil
}
