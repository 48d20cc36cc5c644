package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/scoring"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testViewCachePrefix = "lms:test:view:"
	testViewCacheTTL    = 10 * time.Minute
)

// AssessmentService owns the attempt lifecycle: starting and resuming
// attempts, grading submissions and assembling results. All state lives in
// the attempt and answer rows; nothing is held in process memory between
// requests.
type AssessmentService struct {
	Tests    *repository.TestRepository
	Attempts *repository.AttemptRepository
	Redis    *redis.Client
}

func NewAssessmentService(tests *repository.TestRepository, attempts *repository.AttemptRepository, rdb *redis.Client) *AssessmentService {
	return &AssessmentService{Tests: tests, Attempts: attempts, Redis: rdb}
}

// StudentQuestion is the learner-facing question view. It deliberately has
// no field for the answer key.
type StudentQuestion struct {
	ID           string          `json:"id"`
	QuestionType string          `json:"questionType"`
	Content      string          `json:"content"`
	ContentRu    string          `json:"contentRu,omitempty"`
	Options      json.RawMessage `json:"options,omitempty"`
	Points       int             `json:"points"`
	Order        int             `json:"order"`
}

type StudentTestView struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	TitleRu       string            `json:"titleRu,omitempty"`
	Description   string            `json:"description"`
	DescriptionRu string            `json:"descriptionRu,omitempty"`
	PassingScore  int               `json:"passingScore"`
	TimeLimit     int               `json:"timeLimit"`
	MaxAttempts   int               `json:"maxAttempts"`
	AllowRetake   bool              `json:"allowRetake"`
	QuestionCount int               `json:"questionCount"`
	Questions     []StudentQuestion `json:"questions"`
}

type StartAttemptResult struct {
	Test    *StudentTestView   `json:"test"`
	Attempt *model.TestAttempt `json:"attempt"`
	// Always empty while in progress: answers are only persisted at
	// submission, so a resumed attempt carries no drafts.
	PriorAnswers []model.TestAnswer `json:"priorAnswers"`
	// Seconds left on the clock; -1 when the test has no time limit. The
	// countdown itself runs client-side.
	RemainingSeconds int  `json:"remainingSeconds"`
	Resumed          bool `json:"resumed"`
}

type SubmitResult struct {
	Passed       bool `json:"passed"`
	Score        int  `json:"score"`
	EarnedPoints int  `json:"earnedPoints"`
	TotalPoints  int  `json:"totalPoints"`
}

type QuestionReview struct {
	QuestionID    string          `json:"questionId"`
	Content       string          `json:"content"`
	ContentRu     string          `json:"contentRu,omitempty"`
	Points        int             `json:"points"`
	Earned        int             `json:"earned"`
	IsCorrect     bool            `json:"isCorrect"`
	UserAnswer    json.RawMessage `json:"userAnswer,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	ExplanationRu string          `json:"explanationRu,omitempty"`
}

type AttemptResult struct {
	AttemptID    string           `json:"attemptId"`
	TestID       string           `json:"testId"`
	Status       string           `json:"status"`
	Passed       bool             `json:"passed"`
	Score        int              `json:"score"`
	PassingScore int              `json:"passingScore"`
	EarnedPoints int              `json:"earnedPoints"`
	TotalPoints  int              `json:"totalPoints"`
	TimeSpent    int              `json:"timeSpent"`
	Questions    []QuestionReview `json:"questions"`
}

// StartAttempt resumes the learner's open attempt if one exists; otherwise
// it checks the attempt budget and opens a new one. The count-then-create is
// a read-then-write within one request; a learner racing themselves with a
// double-submit can gain one extra attempt, which is accepted for this
// domain.
func (s *AssessmentService) StartAttempt(ctx context.Context, testID string, userID uint) (*StartAttemptResult, error) {
	test, err := s.Tests.FindTestByID(testID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	if !test.IsPublished {
		return nil, util.ErrTestNotPublished
	}

	view, err := s.studentView(ctx, test)
	if err != nil {
		return nil, err
	}

	if existing, err := s.Attempts.FindInProgress(userID, testID); err != nil {
		return nil, err
	} else if existing != nil {
		return &StartAttemptResult{
			Test:             view,
			Attempt:          existing,
			PriorAnswers:     []model.TestAnswer{},
			RemainingSeconds: remainingSeconds(test, existing),
			Resumed:          true,
		}, nil
	}

	count, err := s.Attempts.CountByUserAndTest(userID, testID)
	if err != nil {
		return nil, err
	}
	if count > 0 && !test.AllowRetake {
		return nil, util.ErrAttemptLimitExceeded
	}
	if test.MaxAttempts > 0 && count >= int64(test.MaxAttempts) {
		return nil, util.ErrAttemptLimitExceeded
	}

	attempt := &model.TestAttempt{
		TestID:    testID,
		UserID:    userID,
		Status:    model.AttemptInProgress,
		StartedAt: time.Now(),
	}
	if err := s.Attempts.Create(attempt); err != nil {
		return nil, err
	}

	monitoring.AttemptsStarted.WithLabelValues(testID).Inc()

	return &StartAttemptResult{
		Test:             view,
		Attempt:          attempt,
		PriorAnswers:     []model.TestAnswer{},
		RemainingSeconds: remainingSeconds(test, attempt),
	}, nil
}

// SubmitAttempt grades every question of the attempt's test, unanswered ones
// included, and finalizes the attempt. Submitting an already terminal
// attempt returns the stored result without re-grading.
//
// Elapsed time is not validated against the test's time limit here: the
// countdown is client-enforced and a late submission grades normally.
func (s *AssessmentService) SubmitAttempt(attemptID string, userID uint, answers map[string]json.RawMessage) (*SubmitResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}

	test, err := s.Tests.FindTestByID(attempt.TestID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Tests.ListQuestions(attempt.TestID)
	if err != nil {
		return nil, err
	}

	if attempt.IsTerminal() {
		return s.storedResult(attempt, test, questions)
	}

	graded := make([]model.TestAnswer, 0, len(questions))
	totalPoints := 0
	earnedPoints := 0
	for _, q := range questions {
		totalPoints += q.Points

		correct, err := scoring.Score(q.QuestionType, q.CorrectAnswer, answers[q.ID])
		if err != nil {
			// Broken answer key is an authoring defect; the learner's
			// grading pass must still complete.
			logger.Log.Error("unscorable question",
				zap.String("questionId", q.ID),
				zap.String("testId", test.ID),
				zap.Error(err))
			correct = false
		}
		earned := scoring.Award(correct, q.Points)
		earnedPoints += earned

		graded = append(graded, model.TestAnswer{
			AttemptID:  attempt.ID,
			QuestionID: q.ID,
			UserAnswer: answers[q.ID],
			IsCorrect:  correct,
			Points:     earned,
		})
	}

	score := 0
	if totalPoints > 0 {
		score = int(math.Round(float64(earnedPoints) / float64(totalPoints) * 100))
	}
	passed := score >= test.PassingScore

	now := time.Now()
	timeSpent := int(now.Sub(attempt.StartedAt).Seconds())
	attempt.Status = model.AttemptFailed
	if passed {
		attempt.Status = model.AttemptCompleted
	}
	attempt.EndedAt = &now
	attempt.Score = &score
	attempt.TimeSpent = &timeSpent

	if err := s.Attempts.Finalize(attempt, graded); err != nil {
		return nil, err
	}

	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	monitoring.AttemptsSubmitted.WithLabelValues(test.ID, outcome).Inc()

	return &SubmitResult{
		Passed:       passed,
		Score:        score,
		EarnedPoints: earnedPoints,
		TotalPoints:  totalPoints,
	}, nil
}

// storedResult rebuilds the submit response from persisted rows for the
// idempotent double-submit path.
func (s *AssessmentService) storedResult(attempt *model.TestAttempt, test *model.Test, questions []model.Question) (*SubmitResult, error) {
	stored, err := s.Attempts.GetAnswers(attempt.ID)
	if err != nil {
		return nil, err
	}

	totalPoints := 0
	for _, q := range questions {
		totalPoints += q.Points
	}
	earnedPoints := 0
	for _, a := range stored {
		earnedPoints += a.Points
	}

	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	return &SubmitResult{
		Passed:       attempt.Status == model.AttemptCompleted,
		Score:        score,
		EarnedPoints: earnedPoints,
		TotalPoints:  totalPoints,
	}, nil
}

// GetResult joins the graded answers of a terminal attempt back to question
// metadata for the review display.
func (s *AssessmentService) GetResult(attemptID string, userID uint) (*AttemptResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	// Another learner's attempt is indistinguishable from a missing one.
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if !attempt.IsTerminal() {
		return nil, util.ErrResultNotReady
	}

	test, err := s.Tests.FindTestByID(attempt.TestID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Tests.ListQuestions(attempt.TestID)
	if err != nil {
		return nil, err
	}
	stored, err := s.Attempts.GetAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[string]model.TestAnswer, len(stored))
	for _, a := range stored {
		byQuestion[a.QuestionID] = a
	}

	totalPoints := 0
	earnedPoints := 0
	reviews := make([]QuestionReview, 0, len(questions))
	for _, q := range questions {
		totalPoints += q.Points
		ans := byQuestion[q.ID]
		earnedPoints += ans.Points
		reviews = append(reviews, QuestionReview{
			QuestionID:    q.ID,
			Content:       q.Content,
			ContentRu:     q.ContentRu,
			Points:        q.Points,
			Earned:        ans.Points,
			IsCorrect:     ans.IsCorrect,
			UserAnswer:    ans.UserAnswer,
			Explanation:   q.Explanation,
			ExplanationRu: q.ExplanationRu,
		})
	}

	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	timeSpent := 0
	if attempt.TimeSpent != nil {
		timeSpent = *attempt.TimeSpent
	}

	return &AttemptResult{
		AttemptID:    attempt.ID,
		TestID:       test.ID,
		Status:       attempt.Status,
		Passed:       attempt.Status == model.AttemptCompleted,
		Score:        score,
		PassingScore: test.PassingScore,
		EarnedPoints: earnedPoints,
		TotalPoints:  totalPoints,
		TimeSpent:    timeSpent,
		Questions:    reviews,
	}, nil
}

type StudentTestSummary struct {
	repository.TestListRow
	AttemptsUsed int  `json:"attemptsUsed"`
	BestScore    *int `json:"bestScore,omitempty"`
	InProgress   bool `json:"inProgress"`
}

// ListTestsForStudent lists published tests with the caller's attempt
// history folded in.
func (s *AssessmentService) ListTestsForStudent(userID uint, page, limit int) ([]StudentTestSummary, int64, error) {
	rows, total, err := s.Tests.ListTests(page, limit, true)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]StudentTestSummary, 0, len(rows))
	for _, row := range rows {
		attempts, err := s.Attempts.ListByUserAndTest(userID, row.ID)
		if err != nil {
			return nil, 0, err
		}
		summary := StudentTestSummary{TestListRow: row, AttemptsUsed: len(attempts)}
		for _, a := range attempts {
			if a.Status == model.AttemptInProgress {
				summary.InProgress = true
			}
			if a.Score != nil && (summary.BestScore == nil || *a.Score > *summary.BestScore) {
				best := *a.Score
				summary.BestScore = &best
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

type StudentTestDetail struct {
	Test             *StudentTestView `json:"test"`
	Status           string           `json:"status"` // pending, in_progress, completed, failed
	AttemptID        string           `json:"attemptId,omitempty"`
	StartedAt        *time.Time       `json:"startedAt,omitempty"`
	RemainingSeconds int              `json:"remainingSeconds"`
	AttemptsUsed     int              `json:"attemptsUsed"`
	Score            *int             `json:"score,omitempty"`
}

// GetStudentTestDetail returns the learner-safe test payload plus the state
// of the learner's latest attempt, including the remaining seconds the
// client countdown starts from.
func (s *AssessmentService) GetStudentTestDetail(ctx context.Context, testID string, userID uint) (*StudentTestDetail, error) {
	test, err := s.Tests.FindTestByID(testID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	if !test.IsPublished {
		return nil, util.ErrTestNotPublished
	}

	view, err := s.studentView(ctx, test)
	if err != nil {
		return nil, err
	}

	attempts, err := s.Attempts.ListByUserAndTest(userID, testID)
	if err != nil {
		return nil, err
	}

	detail := &StudentTestDetail{
		Test:             view,
		Status:           "pending",
		RemainingSeconds: remainingSeconds(test, nil),
		AttemptsUsed:     len(attempts),
	}
	if len(attempts) > 0 {
		latest := attempts[len(attempts)-1]
		detail.Status = latest.Status
		detail.AttemptID = latest.ID
		detail.StartedAt = &latest.StartedAt
		detail.Score = latest.Score
		if latest.Status == model.AttemptInProgress {
			detail.RemainingSeconds = remainingSeconds(test, &latest)
		}
	}
	return detail, nil
}

// studentView builds the answer-key-free test payload, cached in Redis since
// it is read on every start/resume and only changes on authoring writes.
func (s *AssessmentService) studentView(ctx context.Context, test *model.Test) (*StudentTestView, error) {
	cacheKey := testViewCachePrefix + test.ID
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var view StudentTestView
			if json.Unmarshal([]byte(cached), &view) == nil {
				return &view, nil
			}
		}
	}

	questions, err := s.Tests.ListQuestions(test.ID)
	if err != nil {
		return nil, err
	}

	view := &StudentTestView{
		ID:            test.ID,
		Title:         test.Title,
		TitleRu:       test.TitleRu,
		Description:   test.Description,
		DescriptionRu: test.DescriptionRu,
		PassingScore:  test.PassingScore,
		TimeLimit:     test.TimeLimit,
		MaxAttempts:   test.MaxAttempts,
		AllowRetake:   test.AllowRetake,
		QuestionCount: len(questions),
		Questions:     make([]StudentQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, StudentQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			ContentRu:    q.ContentRu,
			Options:      q.Options,
			Points:       q.Points,
			Order:        q.Order,
		})
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(view); err == nil {
			if err := s.Redis.Set(ctx, cacheKey, payload, testViewCacheTTL).Err(); err != nil {
				logger.Log.Warn("test view cache write failed", zap.Error(err))
			}
		}
	}
	return view, nil
}

// remainingSeconds derives the client countdown from the server-recorded
// start time. -1 means no time limit.
func remainingSeconds(test *model.Test, attempt *model.TestAttempt) int {
	if test.TimeLimit <= 0 {
		return -1
	}
	total := test.TimeLimit * 60
	if attempt == nil {
		return total
	}
	remaining := total - int(time.Since(attempt.StartedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
