package service

import (
	"context"
	"encoding/json"
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestPersistsExplicitZeroValues(t *testing.T) {
	_, testSvc, db := newTestService(t)

	// allowRetake=false and passingScore=0 are valid authored values and
	// must survive the round trip to the database.
	test := seedTest(t, testSvc, func(req *TestReq) {
		retake := false
		passing := 0
		req.AllowRetake = &retake
		req.PassingScore = &passing
	})

	var stored model.Test
	require.NoError(t, db.First(&stored, "id = ?", test.ID).Error)
	assert.False(t, stored.AllowRetake)
	assert.Equal(t, 0, stored.PassingScore)
}

func TestCreateTestAppliesDefaults(t *testing.T) {
	_, testSvc, db := newTestService(t)

	test := seedTest(t, testSvc, func(req *TestReq) {
		req.PassingScore = nil
	})

	var stored model.Test
	require.NoError(t, db.First(&stored, "id = ?", test.ID).Error)
	assert.Equal(t, 70, stored.PassingScore)
	assert.True(t, stored.AllowRetake)
}

// questionUpdateReq rebuilds the authoring payload for an existing question
// so update requests can keep it while changing selected fields.
func questionUpdateReq(q model.Question) QuestionReq {
	return QuestionReq{
		ID:            q.ID,
		QuestionType:  q.QuestionType,
		Content:       q.Content,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Points:        q.Points,
		Order:         q.Order,
	}
}

func TestUpdateTestSwapsQuestionOrder(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)

	qs, err := svc.Tests.ListQuestions(test.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	first := questionUpdateReq(qs[0])
	second := questionUpdateReq(qs[1])
	first.Order, second.Order = second.Order, first.Order

	_, err = testSvc.UpdateTest(context.Background(), test.ID, TestReq{
		Questions: &[]QuestionReq{first, second},
	})
	require.NoError(t, err)

	reordered, err := svc.Tests.ListQuestions(test.ID)
	require.NoError(t, err)
	require.Len(t, reordered, 2)
	assert.Equal(t, qs[1].ID, reordered[0].ID)
	assert.Equal(t, qs[0].ID, reordered[1].ID)
}

func TestUpdateTestReusesRemovedQuestionOrder(t *testing.T) {
	svc, testSvc, _ := newTestService(t)
	test := seedTest(t, testSvc, nil)

	qs, err := svc.Tests.ListQuestions(test.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	// Drop the second question and add a new one on its order slot.
	kept := questionUpdateReq(qs[0])
	replacement := QuestionReq{
		QuestionType:  "short_text",
		Content:       "Name the capital of France",
		CorrectAnswer: json.RawMessage(`{"answer":"Paris"}`),
		Points:        1,
		Order:         qs[1].Order,
	}

	_, err = testSvc.UpdateTest(context.Background(), test.ID, TestReq{
		Questions: &[]QuestionReq{kept, replacement},
	})
	require.NoError(t, err)

	updated, err := svc.Tests.ListQuestions(test.ID)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, qs[0].ID, updated[0].ID)
	assert.Equal(t, "short_text", updated[1].QuestionType)
	assert.NotEqual(t, qs[1].ID, updated[1].ID)
}

func TestAuthoringRejectsDuplicateOrders(t *testing.T) {
	_, testSvc, _ := newTestService(t)

	title := "Dup orders"
	_, err := testSvc.CreateTest(context.Background(), 1, TestReq{
		Title: &title,
		Questions: &[]QuestionReq{
			{
				QuestionType:  "short_text",
				Content:       "First",
				CorrectAnswer: json.RawMessage(`{"answer":"a"}`),
				Order:         1,
			},
			{
				QuestionType:  "short_text",
				Content:       "Second",
				CorrectAnswer: json.RawMessage(`{"answer":"b"}`),
				Order:         1,
			},
		},
	})
	assert.ErrorContains(t, err, "duplicate question order")
}
