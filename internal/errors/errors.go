package errors

import "errors"

// Domain errors for the matchmaking core. Services return these (wrapped
// or bare); the HTTP layer maps them to status codes via Status.
var (
	// ErrProfileNotFound: the requesting user has no profile.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSubjectNotFound: the swiped-on user does not exist or is inactive.
	ErrSubjectNotFound = errors.New("subject profile not found")

	// ErrInvalidFilter: discovery filter out of allowed range.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrSelfSwipe: judge and subject are the same user.
	ErrSelfSwipe = errors.New("cannot swipe on yourself")

	// ErrInvalidDecision: decision is not like/dislike/super_like.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrDuplicateSwipe: a decision for this (judge, subject) pair already
	// exists. Definitive rejection; callers must not retry.
	ErrDuplicateSwipe = errors.New("already swiped on this user")

	// ErrNothingToUndo: the judge has no swipe to undo.
	ErrNothingToUndo = errors.New("no swipes to undo")

	// ErrUndoExpired: the most recent swipe is outside the undo window.
	ErrUndoExpired = errors.New("swipe too old to undo")

	// ErrMatchNotFound: no active match for the given ID and user.
	ErrMatchNotFound = errors.New("match not found")
)
