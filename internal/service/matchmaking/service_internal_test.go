package matchmaking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/XANDER-CAGE/dating/internal/app"
	"github.com/XANDER-CAGE/dating/internal/config"
	"github.com/XANDER-CAGE/dating/internal/db"
	"github.com/XANDER-CAGE/dating/internal/realtime"
)

type eventLog struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (l *eventLog) Publish(_ context.Context, ev realtime.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func setupBlindService(t *testing.T) (*Service, *eventLog, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.User{}, &db.Swipe{}, &db.Match{}))

	users := []db.User{
		{ID: 1, Username: "anna", Email: "anna@test.com", PasswordHash: "x",
			Active: true, Age: 25, Gender: db.GenderFemale, InterestedIn: db.GenderMale,
			MaxDistanceKm: 50, LastActiveAt: time.Now().UTC()},
		{ID: 2, Username: "alex", Email: "alex@test.com", PasswordHash: "x",
			Active: true, Age: 27, Gender: db.GenderMale, InterestedIn: db.GenderFemale,
			MaxDistanceKm: 50, LastActiveAt: time.Now().UTC()},
	}
	require.NoError(t, dbase.Create(&users).Error)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(config.New(), dbase, nil, logger)

	log := &eventLog{}
	svc := NewService(appCtx, log)

	// Model repeatable-read isolation: the read inside the swipe
	// transaction never sees the reverse swipe, the way a transaction
	// snapshot taken before the other direction's commit would not.
	svc.reciprocalInTx = func(context.Context, *gorm.DB, uint64, uint64) (bool, error) {
		return false, nil
	}

	return svc, log, dbase
}

// Two reciprocal likes whose in-transaction reciprocity reads both come up
// empty must still converge on one match: the post-commit re-check against
// committed state picks it up.
func TestRecordSwipe_DetectsMatchPastSnapshotReads(t *testing.T) {
	ctx := context.Background()
	svc, log, gdb := setupBlindService(t)

	res, err := svc.RecordSwipe(ctx, 1, 2, db.DecisionLike)
	require.NoError(t, err)
	assert.False(t, res.Matched, "no reverse like committed yet")
	assert.Zero(t, log.count(realtime.EventMatchCreated))

	res, err = svc.RecordSwipe(ctx, 2, 1, db.DecisionLike)
	require.NoError(t, err)
	assert.True(t, res.Matched, "committed-state re-check finds the pair")
	assert.NotZero(t, res.MatchID)

	var count int64
	require.NoError(t, gdb.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, log.count(realtime.EventMatchCreated))
}

// The re-check must not resurrect anything for dislikes.
func TestRecordSwipe_SnapshotMissOnDislikeStaysQuiet(t *testing.T) {
	ctx := context.Background()
	svc, log, gdb := setupBlindService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DecisionLike)
	require.NoError(t, err)
	res, err := svc.RecordSwipe(ctx, 2, 1, db.DecisionDislike)
	require.NoError(t, err)
	assert.False(t, res.Matched)

	var count int64
	require.NoError(t, gdb.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Zero(t, log.count(realtime.EventMatchCreated))
}
