package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/XANDER-CAGE/dating/internal/db"
	"github.com/XANDER-CAGE/dating/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.User{}, &db.Swipe{}, &db.Match{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestCreateSwipe_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	// first decision lands
	swipe, err := repo.Create(ctx, 1, 2, db.DecisionLike)
	require.NoError(t, err)
	assert.Equal(t, db.DecisionLike, swipe.Decision)

	// second decision on the same pair hits the composite PK,
	// whatever the decision value
	_, err = repo.Create(ctx, 1, 2, db.DecisionDislike)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// reverse direction is a different pair and fine
	_, err = repo.Create(ctx, 2, 1, db.DecisionLike)
	assert.NoError(t, err)
}

func TestHasLike(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, err := repo.Create(ctx, 1, 2, db.DecisionSuperLike)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 1, 3, db.DecisionDislike)
	require.NoError(t, err)

	liked, err := repo.HasLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, liked, "super_like counts as interest")

	liked, err = repo.HasLike(ctx, 1, 3)
	require.NoError(t, err)
	assert.False(t, liked, "dislike is not interest")

	liked, err = repo.HasLike(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, liked, "no reverse swipe yet")
}

func TestLastByJudgeAndDelete(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, err := repo.LastByJudge(ctx, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.Create(ctx, 1, 2, db.DecisionLike)
	require.NoError(t, err)
	// make ordering unambiguous
	require.NoError(t, dbase.Model(&db.Swipe{}).
		Where("judge_id = ? AND subject_id = ?", 1, 2).
		Update("created_at", time.Now().UTC().Add(-time.Minute)).Error)
	_, err = repo.Create(ctx, 1, 3, db.DecisionDislike)
	require.NoError(t, err)

	last, err := repo.LastByJudge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last.SubjectID)

	require.NoError(t, repo.Delete(ctx, 1, 3))

	last, err = repo.LastByJudge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last.SubjectID)
}

func TestListByJudge(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	base := time.Now().UTC().Add(-time.Hour)
	for i, subject := range []uint64{2, 3, 4} {
		_, err := repo.Create(ctx, 1, subject, db.DecisionLike)
		require.NoError(t, err)
		require.NoError(t, dbase.Model(&db.Swipe{}).
			Where("judge_id = ? AND subject_id = ?", 1, subject).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	swipes, err := repo.ListByJudge(ctx, 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, swipes, 2)
	assert.Equal(t, uint64(4), swipes[0].SubjectID)
	assert.Equal(t, uint64(3), swipes[1].SubjectID)

	swipes, err = repo.ListByJudge(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, swipes, 1)
	assert.Equal(t, uint64(2), swipes[0].SubjectID)
}
