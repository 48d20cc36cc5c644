package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.TestAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.TestAttempt, error) {
	var a model.TestAttempt
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindInProgress returns the learner's open attempt for a test, or nil when
// there is none.
func (r *AttemptRepository) FindInProgress(userID uint, testID string) (*model.TestAttempt, error) {
	var a model.TestAttempt
	err := r.DB.Where("user_id = ? AND test_id = ? AND status = ?", userID, testID, model.AttemptInProgress).
		First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountByUserAndTest counts every prior attempt regardless of status; the
// max-attempt check includes in-progress and failed ones.
func (r *AttemptRepository) CountByUserAndTest(userID uint, testID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.TestAttempt{}).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) ListByUserAndTest(userID uint, testID string) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.DB.Where("user_id = ? AND test_id = ?", userID, testID).
		Order("started_at asc").Find(&attempts).Error
	return attempts, err
}

// Finalize writes the terminal attempt state and the full batch of graded
// answers in one transaction. Re-grading an attempt replaces any prior rows
// for the same (attempt, question) pairs, so no partial grading pass is ever
// observable.
func (r *AttemptRepository) Finalize(attempt *model.TestAttempt, answers []model.TestAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("attempt_id = ?", attempt.ID).Delete(&model.TestAnswer{}).Error; err != nil {
			return err
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		return tx.Save(attempt).Error
	})
}

func (r *AttemptRepository) GetAnswers(attemptID string) ([]model.TestAnswer, error) {
	var answers []model.TestAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) ListByTest(testID string, page, limit int, status string) ([]model.TestAttempt, int64, error) {
	query := r.DB.Model(&model.TestAttempt{}).Where("test_id = ?", testID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.TestAttempt
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}
