package repository

import (
	"context"

	"github.com/XANDER-CAGE/dating/internal/db"

	"gorm.io/gorm"
)

// SwipeRepository provides data access methods for the Swipe ledger.
// The ledger is strictly append-only: the composite PK on
// (judge_id, subject_id) rejects a second decision for the same pair,
// and the only permitted mutation is deleting a row during undo.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Create inserts a swipe made by judge -> subject.
//
// Behavior:
//   - Strict insert, never an upsert. If a row for (judge_id, subject_id)
//     already exists the PK constraint fires and the error comes back as
//     gorm.ErrDuplicatedKey (TranslateError is enabled on the connection).
//   - Callers decide how to surface the duplicate; this layer stays quiet.
//
// Example:
//
//	swipe, err := repo.Create(ctx, 1, 2, db.DecisionLike) // user 1 liked user 2
func (r *SwipeRepository) Create(
	ctx context.Context,
	judgeID, subjectID uint64,
	decision string,
) (*db.Swipe, error) {
	swipe := db.Swipe{
		JudgeID:   judgeID,
		SubjectID: subjectID,
		Decision:  decision,
	}
	if err := r.db.WithContext(ctx).Create(&swipe).Error; err != nil {
		return nil, err
	}
	return &swipe, nil
}

// HasLike reports whether judge has an interest decision (like or
// super_like) recorded on subject. This is the reciprocity probe the
// match detector runs for the reverse direction.
func (r *SwipeRepository) HasLike(
	ctx context.Context,
	judgeID, subjectID uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("judge_id = ? AND subject_id = ? AND decision IN ?",
			judgeID, subjectID, []string{db.DecisionLike, db.DecisionSuperLike}).
		Count(&count).Error
	return count > 0, err
}

// LastByJudge returns the judge's most recent swipe.
// Returns gorm.ErrRecordNotFound when the judge has no swipes at all.
func (r *SwipeRepository) LastByJudge(
	ctx context.Context,
	judgeID uint64,
) (*db.Swipe, error) {
	var swipe db.Swipe
	err := r.db.WithContext(ctx).
		Where("judge_id = ?", judgeID).
		Order("created_at DESC, subject_id DESC").
		First(&swipe).Error
	if err != nil {
		return nil, err
	}
	return &swipe, nil
}

// Delete removes the swipe row for (judge, subject). Only undo calls this.
func (r *SwipeRepository) Delete(
	ctx context.Context,
	judgeID, subjectID uint64,
) error {
	return r.db.WithContext(ctx).
		Where("judge_id = ? AND subject_id = ?", judgeID, subjectID).
		Delete(&db.Swipe{}).Error
}

// ListByJudge returns the judge's swipes, most recent first.
//
// Example:
//
//	repo.ListByJudge(ctx, 42, 50, 0) // first 50 decisions by user 42
func (r *SwipeRepository) ListByJudge(
	ctx context.Context,
	judgeID uint64,
	limit, offset int,
) ([]db.Swipe, error) {
	var swipes []db.Swipe
	err := r.db.WithContext(ctx).
		Where("judge_id = ?", judgeID).
		Order("created_at DESC, subject_id DESC").
		Limit(limit).
		Offset(offset).
		Find(&swipes).Error
	return swipes, err
}
