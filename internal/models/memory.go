// ABOUTME: UserMemory is an append-only note a user keeps (quote, preference, goal)
// ABOUTME: Used as auxiliary grounding context for answers
package models

import (
	"fmt"
	"time"
)

// MemoryType classifies a user memory entry
type MemoryType string

const (
	MemoryQuote      MemoryType = "quote"
	MemoryPreference MemoryType = "preference"
	MemoryGoal       MemoryType = "goal"
	MemoryNote       MemoryType = "note"
)

// IsValid returns true for the known memory types
func (mt MemoryType) IsValid() bool {
	switch mt {
	case MemoryQuote, MemoryPreference, MemoryGoal, MemoryNote:
		return true
	}
	return false
}

// UserMemory is one stored memory entry
type UserMemory struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	DocumentID string         `json:"document_id,omitempty"`
	Type       MemoryType     `json:"memory_type"`
	Text       string         `json:"text"`
	Page       int            `json:"page,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// String renders the memory the way it is fed to the generator
func (m UserMemory) String() string {
	return fmt.Sprintf("%s: %s", m.Type, m.Text)
}
