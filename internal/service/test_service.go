package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/scoring"
	"lms_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// TestService is the instructor-side authoring surface. Tests and questions
// are read-only at assessment time; all writes happen here.
type TestService struct {
	Tests    *repository.TestRepository
	Attempts *repository.AttemptRepository
	Redis    *redis.Client
}

func NewTestService(tests *repository.TestRepository, attempts *repository.AttemptRepository, rdb *redis.Client) *TestService {
	return &TestService{Tests: tests, Attempts: attempts, Redis: rdb}
}

type QuestionReq struct {
	ID            string          `json:"id"`
	QuestionType  string          `json:"questionType" binding:"required"`
	Content       string          `json:"content" binding:"required"`
	ContentRu     string          `json:"contentRu"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer" binding:"required"`
	Points        int             `json:"points"`
	Order         int             `json:"order"`
	Explanation   string          `json:"explanation"`
	ExplanationRu string          `json:"explanationRu"`
}

type TestReq struct {
	Title         *string        `json:"title"`
	TitleRu       *string        `json:"titleRu"`
	Description   *string        `json:"description"`
	DescriptionRu *string        `json:"descriptionRu"`
	PassingScore  *int           `json:"passingScore"`
	TimeLimit     *int           `json:"timeLimit"`
	MaxAttempts   *int           `json:"maxAttempts"`
	AllowRetake   *bool          `json:"allowRetake"`
	CourseID      *string        `json:"courseId"`
	IsPublished   *bool          `json:"isPublished"`
	Questions     *[]QuestionReq `json:"questions"`
}

func validateQuestionReqs(qs []QuestionReq) error {
	orders := make(map[int]bool, len(qs))
	for _, q := range qs {
		if err := scoring.ValidateQuestion(q.QuestionType, q.Options, q.CorrectAnswer); err != nil {
			return fmt.Errorf("question %q: %w", q.Content, err)
		}
		if q.Points < 0 {
			return fmt.Errorf("question %q: points must not be negative", q.Content)
		}
		if q.Order < 0 {
			return fmt.Errorf("question %q: order must not be negative", q.Content)
		}
		if orders[q.Order] {
			return fmt.Errorf("duplicate question order %d", q.Order)
		}
		orders[q.Order] = true
	}
	return nil
}

func questionFromReq(testID string, q QuestionReq) *model.Question {
	points := q.Points
	if points == 0 {
		points = 1
	}
	return &model.Question{
		TestID:        testID,
		QuestionType:  q.QuestionType,
		Content:       q.Content,
		ContentRu:     q.ContentRu,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Points:        points,
		Order:         q.Order,
		Explanation:   q.Explanation,
		ExplanationRu: q.ExplanationRu,
	}
}

func (s *TestService) CreateTest(ctx context.Context, creatorID uint, req TestReq) (*model.Test, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}
	if req.PassingScore != nil && (*req.PassingScore < 0 || *req.PassingScore > 100) {
		return nil, errors.New("passing score must be between 0 and 100")
	}

	test := &model.Test{
		Title:        *req.Title,
		CreatorID:    creatorID,
		PassingScore: 70,
		AllowRetake:  true,
	}
	applyTestReq(test, req)

	if req.Questions != nil {
		if err := validateQuestionReqs(*req.Questions); err != nil {
			return nil, err
		}
	}

	if err := s.Tests.CreateTest(test); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		questions := make([]*model.Question, 0, len(*req.Questions))
		for _, qReq := range *req.Questions {
			questions = append(questions, questionFromReq(test.ID, qReq))
		}
		if err := s.Tests.ReplaceQuestions(test.ID, nil, questions); err != nil {
			return nil, err
		}
	}

	return test, nil
}

func (s *TestService) UpdateTest(ctx context.Context, testID string, req TestReq) (*model.Test, error) {
	test, err := s.Tests.FindTestByID(testID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.PassingScore != nil && (*req.PassingScore < 0 || *req.PassingScore > 100) {
		return nil, errors.New("passing score must be between 0 and 100")
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	applyTestReq(test, req)

	if err := s.Tests.UpdateTest(test); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		if err := validateQuestionReqs(*req.Questions); err != nil {
			return nil, err
		}

		existingQs, err := s.Tests.ListQuestions(testID)
		if err != nil {
			return nil, err
		}
		existingMap := make(map[string]*model.Question, len(existingQs))
		for i := range existingQs {
			existingMap[existingQs[i].ID] = &existingQs[i]
		}

		keptIDs := make(map[string]bool)
		questions := make([]*model.Question, 0, len(*req.Questions))
		for _, qReq := range *req.Questions {
			q := questionFromReq(testID, qReq)
			if qReq.ID != "" {
				existing, ok := existingMap[qReq.ID]
				if !ok {
					return nil, util.ErrQuestionNotFound
				}
				q.UUIDBase = existing.UUIDBase
				keptIDs[existing.ID] = true
			}
			questions = append(questions, q)
		}

		var removeIDs []string
		for id := range existingMap {
			if !keptIDs[id] {
				removeIDs = append(removeIDs, id)
			}
		}

		if err := s.Tests.ReplaceQuestions(testID, removeIDs, questions); err != nil {
			return nil, err
		}
	}

	s.invalidateView(ctx, testID)
	return test, nil
}

func applyTestReq(test *model.Test, req TestReq) {
	if req.TitleRu != nil {
		test.TitleRu = *req.TitleRu
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DescriptionRu != nil {
		test.DescriptionRu = *req.DescriptionRu
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.TimeLimit != nil {
		test.TimeLimit = *req.TimeLimit
	}
	if req.MaxAttempts != nil {
		test.MaxAttempts = *req.MaxAttempts
	}
	if req.AllowRetake != nil {
		test.AllowRetake = *req.AllowRetake
	}
	if req.CourseID != nil {
		test.CourseID = req.CourseID
	}
	if req.IsPublished != nil {
		test.IsPublished = *req.IsPublished
	}
}

func (s *TestService) DeleteTest(ctx context.Context, testID string) error {
	if err := s.Tests.DeleteTest(testID); err != nil {
		return err
	}
	s.invalidateView(ctx, testID)
	return nil
}

// GetTest returns the full test including answer keys; teacher-only.
func (s *TestService) GetTest(testID string) (*model.Test, []TeacherQuestion, error) {
	test, err := s.Tests.FindTestByID(testID)
	if err == gorm.ErrRecordNotFound {
		return nil, nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	qs, err := s.Tests.ListQuestions(testID)
	if err != nil {
		return nil, nil, err
	}

	teacherQs := make([]TeacherQuestion, 0, len(qs))
	for _, q := range qs {
		teacherQs = append(teacherQs, TeacherQuestion{Question: q, CorrectAnswer: q.CorrectAnswer})
	}
	return test, teacherQs, nil
}

// TeacherQuestion re-exposes the answer key the student serialization hides.
type TeacherQuestion struct {
	model.Question
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
}

func (s *TestService) ListTests(page, limit int) ([]repository.TestListRow, int64, error) {
	return s.Tests.ListTests(page, limit, false)
}

func (s *TestService) ListAttempts(testID string, page, limit int, status string) ([]model.TestAttempt, int64, error) {
	if _, err := s.Tests.FindTestByID(testID); err == gorm.ErrRecordNotFound {
		return nil, 0, util.ErrTestNotFound
	} else if err != nil {
		return nil, 0, err
	}
	return s.Attempts.ListByTest(testID, page, limit, status)
}

type TeacherAttemptDetail struct {
	Attempt   *model.TestAttempt `json:"attempt"`
	Test      *model.Test        `json:"test"`
	Questions []TeacherQuestion  `json:"questions"`
	Answers   []model.TestAnswer `json:"answers"`
}

func (s *TestService) GetAttemptDetail(attemptID string) (*TeacherAttemptDetail, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}

	test, questions, err := s.GetTest(attempt.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Attempts.GetAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	return &TeacherAttemptDetail{
		Attempt:   attempt,
		Test:      test,
		Questions: questions,
		Answers:   answers,
	}, nil
}

func (s *TestService) invalidateView(ctx context.Context, testID string) {
	if s.Redis != nil {
		s.Redis.Del(ctx, testViewCachePrefix+testID)
	}
}
