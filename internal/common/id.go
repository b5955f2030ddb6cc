package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewUserID generates a unique user ID with the "user_" prefix
func NewUserID() string {
	return "user_" + uuid.New().String()
}

// NewMessageID generates a unique queue message ID
func NewMessageID() string {
	return uuid.New().String()
}
