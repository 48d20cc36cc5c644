package model

import (
	"encoding/json"
	"time"
)

const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
	AttemptFailed     = "failed"
)

// swagger:model TestAttempt
type TestAttempt struct {
	UUIDBase
	TestID    string     `gorm:"index;type:varchar(36);not null" json:"testId"`
	UserID    uint       `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	Status    string     `gorm:"size:20;default:'in_progress'" json:"status"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Score     *int       `json:"score,omitempty"`     // Percent, set at finalization
	TimeSpent *int       `json:"timeSpent,omitempty"` // Seconds, set at finalization
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// IsTerminal reports whether the attempt reached a final status. Terminal
// attempts are never mutated again.
func (a *TestAttempt) IsTerminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptFailed
}

type TestAnswer struct {
	UUIDBase
	AttemptID  string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_question" json:"attemptId"`
	QuestionID string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_question" json:"questionId"`
	UserAnswer json.RawMessage `gorm:"type:json" json:"userAnswer,omitempty"`
	IsCorrect  bool            `gorm:"default:false" json:"isCorrect"`
	Points     int             `gorm:"default:0" json:"points"`
}

func (TestAnswer) TableName() string {
	return "test_answers"
}
