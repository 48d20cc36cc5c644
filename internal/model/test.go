package model

import "encoding/json"

// swagger:model Test
type Test struct {
	UUIDBase
	Title         string  `gorm:"size:255;not null" json:"title"`
	TitleRu       string  `gorm:"size:255" json:"titleRu"`
	Description   string  `gorm:"type:text" json:"description"`
	DescriptionRu string  `gorm:"type:text" json:"descriptionRu"`
	// PassingScore and AllowRetake carry no gorm default tag: gorm omits
	// zero-value fields with a default at insert, which would silently turn
	// an authored passingScore of 0 or allowRetake=false back into the
	// default. CreateTest applies the defaults instead.
	PassingScore int     `json:"passingScore"`                 // Percent, 0-100
	TimeLimit    int     `gorm:"default:0" json:"timeLimit"`   // Minutes, 0 = unlimited
	MaxAttempts  int     `gorm:"default:0" json:"maxAttempts"` // 0 = unlimited
	AllowRetake  bool    `json:"allowRetake"`
	CourseID     *string `gorm:"index;type:varchar(36)" json:"courseId,omitempty"`
	IsPublished  bool    `gorm:"default:false" json:"isPublished"`
	CreatorID    uint    `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (Test) TableName() string {
	return "tests"
}

// Question holds the type-shaped options and answer-key payloads as JSON.
// The key shape per question type is owned by the scoring package.
type Question struct {
	UUIDBase
	TestID        string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_test_question_order" json:"testId"`
	QuestionType  string          `gorm:"size:50;not null" json:"questionType"` // single_choice, multiple_choice, true_false, short_text, ordering, matching
	Content       string          `gorm:"type:text;not null" json:"content"`
	ContentRu     string          `gorm:"type:text" json:"contentRu"`
	Options       json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer json.RawMessage `gorm:"type:json" json:"-"`
	Points        int             `gorm:"default:1" json:"points"`
	Order         int             `gorm:"default:0;uniqueIndex:idx_test_question_order" json:"order"`
	Explanation   string          `gorm:"type:text" json:"explanation,omitempty"`
	ExplanationRu string          `gorm:"type:text" json:"explanationRu,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
