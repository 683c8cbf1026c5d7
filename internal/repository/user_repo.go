package repository

import (
	"context"
	"time"

	"github.com/XANDER-CAGE/dating/internal/db"
	"github.com/XANDER-CAGE/dating/internal/geo"

	"gorm.io/gorm"
)

// UserRepository provides data access methods for user profiles,
// including the candidate prefilter query used by discovery.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetActive loads an active user by ID.
// Returns gorm.ErrRecordNotFound for missing or deactivated users.
func (r *UserRepository) GetActive(ctx context.Context, userID uint64) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", userID, true).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLocation stores a fresh coordinate fix and bumps last_active_at.
func (r *UserRepository) UpdateLocation(ctx context.Context, userID uint64, lat, lng float64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"latitude":       lat,
			"longitude":      lng,
			"last_active_at": time.Now().UTC(),
		}).Error
}

// TouchLastActive bumps last_active_at for the user.
func (r *UserRepository) TouchLastActive(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Update("last_active_at", time.Now().UTC()).Error
}

// CandidateQuery is the SQL-side prefilter for discovery. The exact
// haversine distance check, sorting and pagination happen in the service
// on the rows this returns.
type CandidateQuery struct {
	RequesterID  uint64
	Gender       string // requester's own gender, for the mutual-interest check
	InterestedIn string // requester's gender of interest
	AgeMin       int
	AgeMax       int

	// Box restricts located candidates to a lat/lng window and excludes
	// location hiders. Nil means distance filtering is off.
	Box *geo.BoundingBox
}

// FindCandidates returns profiles that pass every filter expressible in SQL:
//
//   - not the requester, active only;
//   - age inside [AgeMin, AgeMax];
//   - mutual gender interest: the candidate's gender matches the
//     requester's InterestedIn and the candidate's InterestedIn matches
//     the requester's gender ("both" matches anyone);
//   - nobody the requester has already judged, whatever the decision —
//     NOT EXISTS over the committed swipe ledger;
//   - with distance filtering on: location hiders are excluded, located
//     candidates must fall inside the bounding box, candidates without a
//     location pass through (they sort after located ones).
//
// Rows come back ordered by last_active_at DESC as the base order; the
// service re-sorts located candidates by distance.
func (r *UserRepository) FindCandidates(
	ctx context.Context,
	q CandidateQuery,
) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id != ? AND active = ?", q.RequesterID, true).
		Where("age BETWEEN ? AND ?", q.AgeMin, q.AgeMax).
		Where(`NOT EXISTS (
			SELECT 1 FROM swipes s
			WHERE s.judge_id = ? AND s.subject_id = users.id
		)`, q.RequesterID)

	if q.InterestedIn != db.InterestBoth {
		query = query.Where("gender = ?", q.InterestedIn)
	}
	query = query.Where("interested_in IN ?", []string{q.Gender, db.InterestBoth})

	if q.Box != nil {
		query = query.
			Where("hides_location = ?", false).
			Where(`(latitude IS NULL OR (
				latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
			))`, q.Box.MinLat, q.Box.MaxLat, q.Box.MinLng, q.Box.MaxLng)
	}

	var users []db.User
	err := query.Order("last_active_at DESC, id DESC").Find(&users).Error
	return users, err
}
