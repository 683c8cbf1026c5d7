package discovery

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/XANDER-CAGE/dating/internal/app"
	"github.com/XANDER-CAGE/dating/internal/db"
	svcErr "github.com/XANDER-CAGE/dating/internal/errors"
	"github.com/XANDER-CAGE/dating/internal/geo"
	"github.com/XANDER-CAGE/dating/internal/repository"

	"gorm.io/gorm"
)

const (
	minAge = 18
	maxAge = 100
)

// Filters narrows the candidate feed. Zero values fall back to the
// requester's own settings (radius) or the widest allowed band (age).
type Filters struct {
	RadiusKm float64
	AgeMin   int
	AgeMax   int
	Limit    int
	Offset   int
}

// Candidate is one entry of the discovery feed. DistanceKm is nil when
// either party hides or lacks a location.
type Candidate struct {
	UserID       uint64    `json:"user_id"`
	Username     string    `json:"username"`
	Age          int       `json:"age"`
	Gender       string    `json:"gender"`
	DistanceKm   *float64  `json:"distance_km,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Service implements candidate discovery: the geo prefilter, preference
// matching and swipe-ledger exclusion live in the repository query; the
// exact distance math, ordering and pagination happen here.
type Service struct {
	appCtx   *app.AppContext
	userRepo *repository.UserRepository
}

// NewService creates a discovery service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		userRepo: repository.NewUserRepository(appCtx.DB),
	}
}

// FindCandidates returns the discovery feed for userID.
//
// Behavior:
//   - Requester must have an active profile (ErrProfileNotFound).
//   - Radius defaults to the requester's MaxDistanceKm and may not exceed
//     it, nor the system-wide cap (ErrInvalidFilter).
//   - Distance filtering applies only when the requester has a visible
//     location; then the radius and the candidate's own MaxDistanceKm
//     both cap the result (mutual distance cap), and location hiders are
//     excluded entirely.
//   - Ordering: ascending distance; candidates without location follow,
//     ordered by recency of activity. Offset/limit apply after ordering.
//   - Read-only over committed ledger state; safe for concurrent calls.
//
// Example:
//
//	svc.FindCandidates(ctx, 42, discovery.Filters{RadiusKm: 10, Limit: 20})
func (s *Service) FindCandidates(ctx context.Context, userID uint64, f Filters) ([]Candidate, error) {
	s.appCtx.Logger.Debug("FindCandidates called",
		"user_id", userID, "radius_km", f.RadiusKm, "limit", f.Limit)

	requester, err := s.userRepo.GetActive(ctx, userID)
	if err != nil {
		if svcErr.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.ErrProfileNotFound
		}
		return nil, err
	}

	f, err = s.normalize(requester, f)
	if err != nil {
		return nil, err
	}

	query := repository.CandidateQuery{
		RequesterID:  requester.ID,
		Gender:       requester.Gender,
		InterestedIn: requester.InterestedIn,
		AgeMin:       f.AgeMin,
		AgeMax:       f.AgeMax,
	}

	distanceFiltering := s.hasVisibleLocation(requester)
	if distanceFiltering {
		box := geo.Box(*requester.Latitude, *requester.Longitude, f.RadiusKm)
		query.Box = &box
	}

	rows, err := s.userRepo.FindCandidates(ctx, query)
	if err != nil {
		s.appCtx.Logger.Error("candidate query failed", "err", err)
		return nil, err
	}

	candidates := s.rank(requester, rows, f.RadiusKm, distanceFiltering)

	// pagination after ordering
	if f.Offset >= len(candidates) {
		return []Candidate{}, nil
	}
	candidates = candidates[f.Offset:]
	if len(candidates) > f.Limit {
		candidates = candidates[:f.Limit]
	}

	s.appCtx.Logger.Debug("FindCandidates result",
		"user_id", userID, "count", len(candidates))
	return candidates, nil
}

// normalize defaults and validates the filters against the requester's
// settings and system caps.
func (s *Service) normalize(requester *db.User, f Filters) (Filters, error) {
	maxRadius := s.appCtx.Config.Matchmaking.MaxRadiusKm
	pageLimit := s.appCtx.Config.Matchmaking.PageLimit

	if f.RadiusKm == 0 {
		// no explicit radius is never a filter error; clamp the
		// requester's own reach to the system cap
		f.RadiusKm = math.Min(requester.MaxDistanceKm, maxRadius)
	}
	if f.RadiusKm <= 0 || f.RadiusKm > requester.MaxDistanceKm || f.RadiusKm > maxRadius {
		return f, svcErr.ErrInvalidFilter
	}

	if f.AgeMin == 0 {
		f.AgeMin = minAge
	}
	if f.AgeMax == 0 {
		f.AgeMax = maxAge
	}
	if f.AgeMin < minAge || f.AgeMax > maxAge || f.AgeMin > f.AgeMax {
		return f, svcErr.ErrInvalidFilter
	}

	if f.Limit == 0 {
		f.Limit = 10
	}
	if f.Limit < 0 || f.Limit > pageLimit || f.Offset < 0 {
		return f, svcErr.ErrInvalidFilter
	}

	return f, nil
}

func (s *Service) hasVisibleLocation(u *db.User) bool {
	return !u.HidesLocation && u.Latitude != nil && u.Longitude != nil
}

// rank computes exact distances, applies the mutual distance cap and
// sorts: located candidates by ascending distance, then unlocated ones
// by last activity.
func (s *Service) rank(requester *db.User, rows []db.User, radiusKm float64, distanceFiltering bool) []Candidate {
	located := make([]Candidate, 0, len(rows))
	unlocated := make([]Candidate, 0)

	for _, u := range rows {
		c := Candidate{
			UserID:       u.ID,
			Username:     u.Username,
			Age:          u.Age,
			Gender:       u.Gender,
			LastActiveAt: u.LastActiveAt,
		}

		if distanceFiltering && u.Latitude != nil && u.Longitude != nil {
			d := geo.Distance(*requester.Latitude, *requester.Longitude, *u.Latitude, *u.Longitude)
			// the bounding box over-approximates the circle; check for real,
			// and honor the candidate's own reach as well
			if d > radiusKm || d > u.MaxDistanceKm {
				continue
			}
			c.DistanceKm = &d
			located = append(located, c)
			continue
		}
		unlocated = append(unlocated, c)
	}

	sort.SliceStable(located, func(i, j int) bool {
		return *located[i].DistanceKm < *located[j].DistanceKm
	})
	sort.SliceStable(unlocated, func(i, j int) bool {
		return unlocated[i].LastActiveAt.After(unlocated[j].LastActiveAt)
	})

	return append(located, unlocated...)
}
