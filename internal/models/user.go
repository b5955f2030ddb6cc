package models

import "time"

// User represents an account that submits documents for processing.
// Free users are bounded by a reclaimable generation counter: each
// submission increments GenerationsUsed, each deletion decrements it.
type User struct {
	ID              string    `json:"id" badgerhold:"key"`
	Email           string    `json:"email" badgerhold:"unique"`
	IsPremium       bool      `json:"is_premium"`
	GenerationsUsed int       `json:"generations_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewUser creates a user with no generations consumed
func NewUser(id, email string) *User {
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanGenerate reports whether the user may submit another document
// given the free-tier limit. Premium users are unbounded.
func (u *User) CanGenerate(freeLimit int) bool {
	if u.IsPremium {
		return true
	}
	return u.GenerationsUsed < freeLimit
}

// ConsumeGeneration increments the generation counter
func (u *User) ConsumeGeneration() {
	u.GenerationsUsed++
	u.UpdatedAt = time.Now()
}

// ReclaimGeneration decrements the generation counter, flooring at zero
func (u *User) ReclaimGeneration() {
	if u.GenerationsUsed > 0 {
		u.GenerationsUsed--
	}
	u.UpdatedAt = time.Now()
}
