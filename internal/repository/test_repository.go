package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) CreateTest(test *model.Test) error {
	return r.DB.Create(test).Error
}

func (r *TestRepository) FindTestByID(id string) (*model.Test, error) {
	var test model.Test
	err := r.DB.First(&test, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *TestRepository) UpdateTest(test *model.Test) error {
	return r.DB.Save(test).Error
}

// DeleteTest removes a test together with its questions, attempts and graded
// answers in one transaction.
func (r *TestRepository) DeleteTest(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		var attemptIDs []string
		if err := tx.Model(&model.TestAttempt{}).Where("test_id = ?", id).Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) > 0 {
			if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&model.TestAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("test_id = ?", id).Delete(&model.TestAttempt{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Test{}, "id = ?", id).Error
	})
}

type TestListRow struct {
	model.Test
	QuestionCount int `json:"questionCount"`
	AttemptCount  int `json:"attemptCount"`
}

func (r *TestRepository) ListTests(page, limit int, publishedOnly bool) ([]TestListRow, int64, error) {
	var total int64
	countQuery := r.DB.Model(&model.Test{})
	if publishedOnly {
		countQuery = countQuery.Where("is_published = ?", true)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dbQuery := r.DB.Table("tests t").
		Select("t.*, " +
			"(SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id AND q.deleted_at IS NULL) as question_count, " +
			"(SELECT COUNT(*) FROM test_attempts a WHERE a.test_id = t.id AND a.deleted_at IS NULL) as attempt_count").
		Where("t.deleted_at IS NULL")
	if publishedOnly {
		dbQuery = dbQuery.Where("t.is_published = ?", true)
	}

	if limit > 0 {
		offset := (page - 1) * limit
		dbQuery = dbQuery.Offset(offset).Limit(limit)
	}

	var tests []TestListRow
	err := dbQuery.Order("t.created_at desc").Scan(&tests).Error
	return tests, total, err
}

// ReplaceQuestions applies one authoring pass over a test's questions in a
// single transaction: removed questions are dropped, kept ones rewritten in
// place, new ones created. Removals are hard deletes so their (test_id,
// order) slot is freed, and surviving rows are parked on temporary negative
// orders first so order swaps never trip the unique index mid-pass.
func (r *TestRepository) ReplaceQuestions(testID string, removeIDs []string, questions []*model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if len(removeIDs) > 0 {
			if err := tx.Unscoped().
				Where("test_id = ? AND id IN ?", testID, removeIDs).
				Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}

		// Orders are non-negative, so -(order+1) cannot collide with any
		// row's current or final position.
		if err := tx.Model(&model.Question{}).
			Where("test_id = ?", testID).
			Update("order", gorm.Expr("-(`order` + 1)")).Error; err != nil {
			return err
		}

		for _, q := range questions {
			if q.ID != "" {
				if err := tx.Save(q).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Create(q).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *TestRepository) ListQuestions(testID string) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("test_id = ?", testID).Order("`order` asc, created_at asc").Find(&qs).Error
	return qs, err
}
