package repository

import (
	"context"
	"time"

	"github.com/XANDER-CAGE/dating/internal/db"
	"github.com/XANDER-CAGE/dating/internal/utils/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository provides data access methods for the Match model.
// Match uniqueness lives in the storage layer: the unique idx_pair index
// over the canonical (user_a_id, user_b_id) tuple arbitrates which of two
// concurrent writers creates the row.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateIfAbsent atomically creates the match for the unordered pair
// {x, y}, canonicalized internally.
//
// Behavior:
//   - INSERT ... ON CONFLICT DO NOTHING against idx_pair. If a concurrent
//     writer already inserted the pair, RowsAffected is 0 and the existing
//     row is loaded instead; the conflict is not an error.
//   - An existing row that was deactivated (undo or unmatch followed by a
//     fresh reciprocal like) is flipped back to active and reported as
//     created so the notification fires again.
//   - created is true only for the writer that actually made the pair
//     active; callers use it to fire the match event exactly once.
//
// Example:
//
//	match, created, err := repo.CreateIfAbsent(ctx, 7, 3) // stores pair (3, 7)
func (r *MatchRepository) CreateIfAbsent(
	ctx context.Context,
	x, y uint64,
) (*db.Match, bool, error) {
	a, b := db.CanonicalPair(x, y)

	match := db.Match{UserAID: a, UserBID: b, Active: true}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
			DoNothing: true,
		}).
		Create(&match)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return &match, true, nil
	}

	// Conflict: another writer holds the pair. Load what they committed.
	existing, err := r.FindByPair(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	if !existing.Active {
		err := r.db.WithContext(ctx).
			Model(existing).
			Update("active", true).Error
		if err != nil {
			return nil, false, err
		}
		existing.Active = true
		return existing, true, nil
	}
	return existing, false, nil
}

// FindByPair loads the match row for the unordered pair {x, y}, active or
// not. Returns gorm.ErrRecordNotFound when the pair never matched.
func (r *MatchRepository) FindByPair(
	ctx context.Context,
	x, y uint64,
) (*db.Match, error) {
	a, b := db.CanonicalPair(x, y)

	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// FindActiveForUser loads an active match by ID, verifying that userID is
// one of the two participants.
func (r *MatchRepository) FindActiveForUser(
	ctx context.Context,
	matchID, userID uint64,
) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ? AND (user_a_id = ? OR user_b_id = ?)",
			matchID, true, userID, userID).
		First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// Deactivate flips a match to inactive. The row stays for history; the
// unique pair index keeps guarding against duplicates. Conditional on the
// row still being active, so of two concurrent deactivators exactly one
// sees deactivated=true and owns the follow-up notification.
func (r *MatchRepository) Deactivate(ctx context.Context, matchID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND active = ?", matchID, true).
		Update("active", false)
	return res.RowsAffected > 0, res.Error
}

// StampMessage records that a message was exchanged on the match.
// A stamped match is considered confirmed and survives swipe undo.
func (r *MatchRepository) StampMessage(ctx context.Context, matchID uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Update("last_message_at", at).Error
}

// ListActiveForUser returns the user's active matches, newest first.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListActiveForUser(ctx, 42, nil, 20) // first 20 matches of user 42
func (r *MatchRepository) ListActiveForUser(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	var matches []db.Match

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("active = ? AND (user_a_id = ? OR user_b_id = ?)", true, userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.MatchID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.MatchID,
		)
	}

	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MatchID:     last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		matches = matches[:limit]
	}

	return matches, nextToken, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
