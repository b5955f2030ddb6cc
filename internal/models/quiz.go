package models

import "time"

// QuizQuestion is a single multiple-choice question generated from a
// document. Answer holds the letter of the correct option ("A"-"D").
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// QAPair is a short-answer question and its expected answer
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Quiz holds the multiple-choice questions generated for a job. The
// short-answer pairs live on the job record itself, produced alongside
// the summary.
type Quiz struct {
	JobID     string         `json:"job_id" badgerhold:"key"`
	Questions []QuizQuestion `json:"questions"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewQuiz creates a quiz record for a job
func NewQuiz(jobID string, questions []QuizQuestion) *Quiz {
	return &Quiz{
		JobID:     jobID,
		Questions: questions,
		CreatedAt: time.Now(),
	}
}
