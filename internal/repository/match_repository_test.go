package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/XANDER-CAGE/dating/internal/db"
	"github.com/XANDER-CAGE/dating/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIfAbsent_CanonicalPair(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	// first writer creates the pair
	match, created, err := repo.CreateIfAbsent(ctx, 7, 3)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(3), match.UserAID)
	assert.Equal(t, uint64(7), match.UserBID)

	// second writer, opposite direction, hits the same canonical key
	again, created, err := repo.CreateIfAbsent(ctx, 3, 7)
	require.NoError(t, err)
	assert.False(t, created, "conflict means another writer already won")
	assert.Equal(t, match.ID, again.ID)

	var count int64
	require.NoError(t, dbase.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateIfAbsent_ReactivatesInactivePair(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	match, created, err := repo.CreateIfAbsent(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, created)

	deactivated, err := repo.Deactivate(ctx, match.ID)
	require.NoError(t, err)
	require.True(t, deactivated)

	// a fresh reciprocal like after an undo revives the same row
	revived, created, err := repo.CreateIfAbsent(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created, "reactivation fires the match event again")
	assert.Equal(t, match.ID, revived.ID)
	assert.True(t, revived.Active)

	var count int64
	require.NoError(t, dbase.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFindActiveForUser(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	match, _, err := repo.CreateIfAbsent(ctx, 1, 2)
	require.NoError(t, err)

	got, err := repo.FindActiveForUser(ctx, match.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, match.ID, got.ID)

	// user 3 is not a participant
	_, err = repo.FindActiveForUser(ctx, match.ID, 3)
	assert.Error(t, err)

	deactivated, err := repo.Deactivate(ctx, match.ID)
	require.NoError(t, err)
	require.True(t, deactivated)
	_, err = repo.FindActiveForUser(ctx, match.ID, 1)
	assert.Error(t, err)
}

// Two deactivators race on one row; only the first one wins it.
func TestDeactivateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	match, _, err := repo.CreateIfAbsent(ctx, 1, 2)
	require.NoError(t, err)

	first, err := repo.Deactivate(ctx, match.ID)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.Deactivate(ctx, match.ID)
	require.NoError(t, err)
	assert.False(t, second, "an already-inactive row is nobody's to deactivate")
}

func TestStampMessage(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	match, _, err := repo.CreateIfAbsent(ctx, 1, 2)
	require.NoError(t, err)
	require.Nil(t, match.LastMessageAt)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.StampMessage(ctx, match.ID, at))

	got, err := repo.FindByPair(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)
	assert.WithinDuration(t, at, *got.LastMessageAt, time.Second)
}

func TestListActiveForUserPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	for i, other := range []uint64{2, 3, 4, 5} {
		m, _, err := repo.CreateIfAbsent(ctx, 1, other)
		require.NoError(t, err)
		require.NoError(t, dbase.Model(&db.Match{}).
			Where("id = ?", m.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	// a match user 1 is not part of
	_, _, err := repo.CreateIfAbsent(ctx, 8, 9)
	require.NoError(t, err)

	page1, next, err := repo.ListActiveForUser(ctx, 1, nil, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotNil(t, next, "a fourth match remains")
	// newest first
	assert.Equal(t, uint64(5), page1[0].UserBID)

	page2, next2, err := repo.ListActiveForUser(ctx, 1, next, 3)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Nil(t, next2)
	assert.Equal(t, uint64(2), page2[0].UserBID)
}
