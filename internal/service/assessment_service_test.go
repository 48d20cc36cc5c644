package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const learnerID uint = 7

func newTestService(t *testing.T) (*AssessmentService, *TestService, *gorm.DB) {
	t.Helper()

	logger.Log = zap.NewNop()

	// A named in-memory database keeps the connection pool on one store
	// while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.TestAttempt{},
		&model.TestAnswer{},
	))

	tests := repository.NewTestRepository(db)
	attempts := repository.NewAttemptRepository(db)
	return NewAssessmentService(tests, attempts, nil), NewTestService(tests, attempts, nil), db
}

// seedTest creates a published two-question test: Q1 single choice (correct
// "2"), Q2 true/false (correct false), both worth one point, passing at 70.
func seedTest(t *testing.T, svc *TestService, mutate func(*TestReq)) *model.Test {
	t.Helper()

	title := "Basics"
	passing := 70
	published := true
	req := TestReq{
		Title:        &title,
		PassingScore: &passing,
		IsPublished:  &published,
		Questions: &[]QuestionReq{
			{
				QuestionType:  "single_choice",
				Content:       "Pick the right option",
				Options:       json.RawMessage(`[{"id":"1","text":"Wrong"},{"id":"2","text":"Right"}]`),
				CorrectAnswer: json.RawMessage(`{"answer":"2"}`),
				Points:        1,
				Order:         1,
			},
			{
				QuestionType:  "true_false",
				Content:       "The earth is flat",
				CorrectAnswer: json.RawMessage(`{"answer":false}`),
				Points:        1,
				Order:         2,
				Explanation:   "It is an oblate spheroid.",
			},
		},
	}
	if mutate != nil {
		mutate(&req)
	}

	test, err := svc.CreateTest(context.Background(), 1, req)
	require.NoError(t, err)
	return test
}

func submission(answers map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(answers))
	for id, raw := range answers {
		out[id] = json.RawMessage(raw)
	}
	return out
}

func questionIDs(t *testing.T, svc *AssessmentService, testID string) []string {
	t.Helper()
	qs, err := svc.Tests.ListQuestions(testID)
	require.NoError(t, err)
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestStartAttemptCreatesAndResumes(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)

	first, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)
	assert.False(t, first.Resumed)
	assert.Equal(t, model.AttemptInProgress, first.Attempt.Status)
	assert.Empty(t, first.PriorAnswers)

	// Starting again must hand back the same open attempt unchanged.
	second, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Attempt.ID, second.Attempt.ID)
	assert.Empty(t, second.PriorAnswers, "in-progress attempts carry no draft answers")
}

func TestStartAttemptNeverLeaksAnswerKeys(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)

	result, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	payload, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "correctAnswer")
	assert.NotContains(t, string(payload), `"answer":"2"`)
}

func TestStartAttemptUnknownOrUnpublished(t *testing.T) {
	svc, testSvc, _ := newTestService(t)

	_, err := svc.StartAttempt(context.Background(), "missing", learnerID)
	assert.ErrorIs(t, err, util.ErrTestNotFound)

	draft := seedTest(t, testSvc, func(req *TestReq) {
		published := false
		req.IsPublished = &published
	})
	_, err = svc.StartAttempt(context.Background(), draft.ID, learnerID)
	assert.ErrorIs(t, err, util.ErrTestNotPublished)
}

func TestSubmitAttemptScoresAndFinalizes(t *testing.T) {
	svc, testSvc, db := newTestService(t)
	test := seedTest(t, testSvc, nil)
	ids := questionIDs(t, svc, test.ID)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	result, err := svc.SubmitAttempt(started.Attempt.ID, learnerID, submission(map[string]string{
		ids[0]: `{"answer":"2"}`,
		ids[1]: `{"answer":false}`,
	}))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 2, result.EarnedPoints)
	assert.Equal(t, 2, result.TotalPoints)

	var attempt model.TestAttempt
	require.NoError(t, db.First(&attempt, "id = ?", started.Attempt.ID).Error)
	assert.Equal(t, model.AttemptCompleted, attempt.Status)
	require.NotNil(t, attempt.Score)
	assert.Equal(t, 100, *attempt.Score)
	assert.NotNil(t, attempt.EndedAt)
	assert.NotNil(t, attempt.TimeSpent)
}

func TestSubmitAttemptPartialScoreFails(t *testing.T) {
	svc, testSvc, db := newTestService(t)
	test := seedTest(t, testSvc, nil)
	ids := questionIDs(t, svc, test.ID)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	result, err := svc.SubmitAttempt(started.Attempt.ID, learnerID, submission(map[string]string{
		ids[0]: `{"answer":"1"}`,
		ids[1]: `{"answer":false}`,
	}))
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 1, result.EarnedPoints)

	var attempt model.TestAttempt
	require.NoError(t, db.First(&attempt, "id = ?", started.Attempt.ID).Error)
	assert.Equal(t, model.AttemptFailed, attempt.Status)
}

func TestSubmitAttemptGradesUnansweredQuestions(t *testing.T) {
	svc, testSvc, db := newTestService(t)
	test := seedTest(t, testSvc, nil)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	result, err := svc.SubmitAttempt(started.Attempt.ID, learnerID, nil)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, 0, result.Score)

	// A row exists for every question of the test, answered or not.
	var answers []model.TestAnswer
	require.NoError(t, db.Where("attempt_id = ?", started.Attempt.ID).Find(&answers).Error)
	assert.Len(t, answers, 2)
	for _, a := range answers {
		assert.False(t, a.IsCorrect)
		assert.Equal(t, 0, a.Points)
	}
}

func TestSubmitAttemptIsIdempotent(t *testing.T) {
	svc, testSvc, db := newTestService(t)
	test := seedTest(t, testSvc, nil)
	ids := questionIDs(t, svc, test.ID)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	answers := submission(map[string]string{
		ids[0]: `{"answer":"2"}`,
		ids[1]: `{"answer":false}`,
	})
	first, err := svc.SubmitAttempt(started.Attempt.ID, learnerID, answers)
	require.NoError(t, err)

	// Re-submitting a terminal attempt returns the stored result and must
	// not create duplicate answer rows or flip the verdict.
	second, err := svc.SubmitAttempt(started.Attempt.ID, learnerID, submission(map[string]string{
		ids[0]: `{"answer":"1"}`,
	}))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	require.NoError(t, db.Model(&model.TestAnswer{}).Where("attempt_id = ?", started.Attempt.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSubmitAttemptOwnershipAndExistence(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)

	_, err := svc.SubmitAttempt("missing", learnerID, nil)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	_, err = svc.SubmitAttempt(started.Attempt.ID, learnerID+1, nil)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestAttemptLimit(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, func(req *TestReq) {
		max := 1
		req.MaxAttempts = &max
	})

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)
	_, err = svc.SubmitAttempt(started.Attempt.ID, learnerID, nil)
	require.NoError(t, err)

	_, err = svc.StartAttempt(context.Background(), test.ID, learnerID)
	assert.ErrorIs(t, err, util.ErrAttemptLimitExceeded)
}

func TestNoRetakeBlocksSecondAttempt(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, func(req *TestReq) {
		retake := false
		req.AllowRetake = &retake
	})
	ids := questionIDs(t, svc, test.ID)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)
	_, err = svc.SubmitAttempt(started.Attempt.ID, learnerID, submission(map[string]string{
		ids[0]: `{"answer":"2"}`,
		ids[1]: `{"answer":false}`,
	}))
	require.NoError(t, err)

	_, err = svc.StartAttempt(context.Background(), test.ID, learnerID)
	assert.ErrorIs(t, err, util.ErrAttemptLimitExceeded)
}

func TestGetResult(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)
	ids := questionIDs(t, svc, test.ID)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)

	// No result while the attempt is open.
	_, err = svc.GetResult(started.Attempt.ID, learnerID)
	assert.ErrorIs(t, err, util.ErrResultNotReady)

	_, err = svc.SubmitAttempt(started.Attempt.ID, learnerID, submission(map[string]string{
		ids[0]: `{"answer":"2"}`,
	}))
	require.NoError(t, err)

	result, err := svc.GetResult(started.Attempt.ID, learnerID)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 70, result.PassingScore)
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.EarnedPoints)
	assert.Equal(t, 2, result.TotalPoints)
	require.Len(t, result.Questions, 2)
	assert.True(t, result.Questions[0].IsCorrect)
	assert.False(t, result.Questions[1].IsCorrect)
	assert.Equal(t, "It is an oblate spheroid.", result.Questions[1].Explanation)

	// Someone else's attempt looks like a missing one.
	_, err = svc.GetResult(started.Attempt.ID, learnerID+1)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestRemainingSecondsFromServerStartTime(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	timed := seedTest(t, testSvc, func(req *TestReq) {
		limit := 2
		req.TimeLimit = &limit
	})

	started, err := svc.StartAttempt(context.Background(), timed.ID, learnerID)
	require.NoError(t, err)
	assert.Greater(t, started.RemainingSeconds, 0)
	assert.LessOrEqual(t, started.RemainingSeconds, 120)

	unlimited := seedTest(t, testSvc, func(req *TestReq) {
		title := "Untimed"
		req.Title = &title
	})
	startedUnlimited, err := svc.StartAttempt(context.Background(), unlimited.ID, learnerID)
	require.NoError(t, err)
	assert.Equal(t, -1, startedUnlimited.RemainingSeconds)
}

func TestListTestsForStudent(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)
	ids := questionIDs(t, svc, test.ID)

	summaries, total, err := svc.ListTestsForStudent(learnerID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].AttemptsUsed)
	assert.Nil(t, summaries[0].BestScore)

	started, err := svc.StartAttempt(context.Background(), test.ID, learnerID)
	require.NoError(t, err)
	_, err = svc.SubmitAttempt(started.Attempt.ID, learnerID, submission(map[string]string{
		ids[0]: `{"answer":"2"}`,
		ids[1]: `{"answer":false}`,
	}))
	require.NoError(t, err)

	summaries, _, err = svc.ListTestsForStudent(learnerID, 1, 20)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].AttemptsUsed)
	require.NotNil(t, summaries[0].BestScore)
	assert.Equal(t, 100, *summaries[0].BestScore)
	assert.False(t, summaries[0].InProgress)
}
