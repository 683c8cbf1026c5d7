package db

import (
	"time"
)

// Swipe decisions. Stored as short strings so the seed data and the
// HTTP layer can share one vocabulary.
const (
	DecisionLike      = "like"
	DecisionDislike   = "dislike"
	DecisionSuperLike = "super_like"
)

// Gender / interest values. InterestBoth matches any gender.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	InterestBoth = "both"
)

// User table. Latitude/Longitude are nullable: a user without a fix
// still shows up in discovery, just without a distance and sorted last.
type User struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Username      string `gorm:"uniqueIndex;size:64;not null"`
	Email         string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash  string `gorm:"size:255;not null"`
	Active        bool   `gorm:"default:true"`
	Age           int    `gorm:"not null"`
	Gender        string `gorm:"size:16;not null"`
	InterestedIn  string `gorm:"size:16;not null"`
	MaxDistanceKm float64  `gorm:"not null;default:50"`
	Latitude      *float64 `gorm:"index:idx_lat_lng,priority:1"`
	Longitude     *float64 `gorm:"index:idx_lat_lng,priority:2"`
	HidesLocation bool     `gorm:"default:false"`
	LastActiveAt  time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Swipe represents a judge's like/dislike/super_like decision on a subject.
//
// Composite PK: (JudgeID, SubjectID)
//   - Enforces the one-decision-per-ordered-pair invariant. Inserts are
//     strict: a second decision on the same pair violates the PK and is
//     surfaced to the caller as a duplicate, never overwritten.
//
// Indexes:
//   - idx_judge_created(judge_id, created_at DESC)
//     Optimizes "most recent swipe by judge" for undo and history.
//   - idx_subject_decision(subject_id, decision)
//     Optimizes the reciprocal-like lookup in match detection.
type Swipe struct {
	JudgeID   uint64    `gorm:"primaryKey;index:idx_judge_created,priority:1"`
	SubjectID uint64    `gorm:"primaryKey;index:idx_subject_decision,priority:1"`
	Decision  string    `gorm:"size:16;not null;index:idx_subject_decision,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_judge_created,priority:2,sort:desc"`
}

// Match is the mutually-confirmed pairing for an unordered user pair.
//
// UserAID < UserBID always (canonical order), and the unique idx_pair
// index on that ordered tuple is the arbiter for "at most one match per
// pair": concurrent detectors both attempt the insert and the storage
// constraint decides the winner.
type Match struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	UserAID       uint64     `gorm:"not null;uniqueIndex:idx_pair,priority:1"`
	UserBID       uint64     `gorm:"not null;uniqueIndex:idx_pair,priority:2"`
	Active        bool       `gorm:"default:true;index"`
	LastMessageAt *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// CanonicalPair orders two user IDs into the (UserAID, UserBID) storage
// form. Both swipe directions map to the same key.
func CanonicalPair(x, y uint64) (uint64, uint64) {
	if x < y {
		return x, y
	}
	return y, x
}

// Likes reports whether a decision expresses interest.
func Likes(decision string) bool {
	return decision == DecisionLike || decision == DecisionSuperLike
}

// ValidDecision reports whether decision is one of the known values.
func ValidDecision(decision string) bool {
	switch decision {
	case DecisionLike, DecisionDislike, DecisionSuperLike:
		return true
	}
	return false
}
