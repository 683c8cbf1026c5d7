package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/XANDER-CAGE/dating/internal/app"
	"github.com/XANDER-CAGE/dating/internal/db"
	svcErr "github.com/XANDER-CAGE/dating/internal/errors"
	"github.com/XANDER-CAGE/dating/internal/realtime"
	"github.com/XANDER-CAGE/dating/internal/repository"

	"gorm.io/gorm"
)

// Publisher is what the service needs from the fan-out layer.
// *realtime.Broker satisfies it; tests plug in a recorder.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// MatchHook is invoked once per created match, before the event goes to
// the broker. External collaborators (message thread initializer, push
// dispatcher) register through OnMatchCreated.
type MatchHook func(ctx context.Context, matchID, userA, userB uint64)

// SwipeResult is what RecordSwipe returns to the caller.
type SwipeResult struct {
	Swipe   *db.Swipe `json:"swipe"`
	Matched bool      `json:"matched"`
	MatchID uint64    `json:"match_id,omitempty"`
}

// UndoResult reports what the undo removed.
type UndoResult struct {
	Swipe        *db.Swipe `json:"swipe"`
	MatchRemoved bool      `json:"match_removed"`
	MatchID      uint64    `json:"match_id,omitempty"`
}

// Service is the swipe ledger plus the match detector. Every safety
// property rests on storage constraints, never on in-process locks:
// swipe uniqueness on the (judge, subject) composite PK, match
// uniqueness on the canonical-pair index with conflict-as-success.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	broker Publisher

	// reciprocalInTx is the reciprocity read used inside the swipe
	// transaction. Tests swap it to model an isolation snapshot that
	// predates the reverse swipe's commit.
	reciprocalInTx func(ctx context.Context, tx *gorm.DB, subjectID, judgeID uint64) (bool, error)

	mu    sync.RWMutex
	hooks []MatchHook
}

// NewService creates a matchmaking service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, broker Publisher) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		broker: broker,
		reciprocalInTx: func(ctx context.Context, tx *gorm.DB, subjectID, judgeID uint64) (bool, error) {
			return repository.NewSwipeRepository(tx).HasLike(ctx, subjectID, judgeID)
		},
	}
}

// OnMatchCreated registers an external subscriber invoked exactly once
// per created match.
func (s *Service) OnMatchCreated(hook MatchHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// RecordSwipe appends a decision to the ledger and runs match detection.
//
// Behavior:
//   - Validates decision, self-swipe and subject existence up front;
//     nothing is written on a validation failure.
//   - The swipe insert and a first reciprocity check + conditional match
//     insert share one DB transaction. That in-transaction read runs on
//     the transaction's snapshot, which cannot see a concurrent reverse
//     swipe that has not committed yet; so when it finds nothing, the
//     check is repeated against committed state after the commit. Two
//     racing reciprocal swipes can each miss the other in-transaction,
//     but at least one re-check observes both committed rows.
//   - A duplicate (judge, subject) pair fails with ErrDuplicateSwipe —
//     definitive, not retryable.
//   - When the reverse like exists, the match insert races any concurrent
//     detector handling the other direction; the unique pair index picks
//     the winner and the loser adopts the existing row as success.
//   - Exactly one match.created event is published per pair, by whichever
//     call actually created (or revived) the row.
//
// Example:
//
//	res, err := svc.RecordSwipe(ctx, 1, 2, db.DecisionLike)
func (s *Service) RecordSwipe(ctx context.Context, judgeID, subjectID uint64, decision string) (*SwipeResult, error) {
	s.appCtx.Logger.Debug("RecordSwipe called",
		"judge", judgeID, "subject", subjectID, "decision", decision)

	if !db.ValidDecision(decision) {
		return nil, svcErr.ErrInvalidDecision
	}
	if judgeID == subjectID {
		return nil, svcErr.ErrSelfSwipe
	}
	if _, err := s.users.GetActive(ctx, subjectID); err != nil {
		if svcErr.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.ErrSubjectNotFound
		}
		return nil, err
	}

	var (
		result  SwipeResult
		match   *db.Match
		created bool
	)

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swipes := repository.NewSwipeRepository(tx)
		matches := repository.NewMatchRepository(tx)

		swipe, err := swipes.Create(ctx, judgeID, subjectID, decision)
		if err != nil {
			return err
		}
		result.Swipe = swipe

		// dislikes never trigger a match check
		if !db.Likes(decision) {
			return nil
		}

		reciprocal, err := s.reciprocalInTx(ctx, tx, subjectID, judgeID)
		if err != nil {
			return err
		}
		if !reciprocal {
			return nil
		}

		match, created, err = matches.CreateIfAbsent(ctx, judgeID, subjectID)
		return err
	})
	if err != nil {
		if svcErr.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.ErrDuplicateSwipe
		}
		s.appCtx.Logger.Error("RecordSwipe failed", "err", err)
		return nil, err
	}

	// The swipe is durable. If the in-transaction read found no reverse
	// like, look again at committed state: the reverse direction may have
	// committed while this transaction held its snapshot. CreateIfAbsent
	// keeps this race-safe; the pair index dedupes concurrent re-checks.
	if match == nil && db.Likes(decision) {
		match, created, err = s.detectCommitted(ctx, judgeID, subjectID)
		if err != nil {
			s.appCtx.Logger.Error("post-commit match detection failed", "err", err)
			return nil, err
		}
	}

	if match != nil {
		result.Matched = true
		result.MatchID = match.ID
	}

	if created {
		s.appCtx.Logger.Info("match created",
			"match_id", match.ID, "user_a", match.UserAID, "user_b", match.UserBID)
		s.fireMatchHooks(ctx, match)
		if err := s.broker.Publish(ctx, realtime.NewMatchCreated(match.ID, match.UserAID, match.UserBID)); err != nil {
			// the match is committed; a lost notification is best-effort
			s.appCtx.Logger.Warn("match event publish failed", "err", err)
		}
	}

	return &result, nil
}

// detectCommitted runs the reciprocity check and conditional match insert
// outside any transaction, so the read sees every committed swipe.
func (s *Service) detectCommitted(ctx context.Context, judgeID, subjectID uint64) (*db.Match, bool, error) {
	gdb := s.appCtx.DB.WithContext(ctx)

	reciprocal, err := repository.NewSwipeRepository(gdb).HasLike(ctx, subjectID, judgeID)
	if err != nil || !reciprocal {
		return nil, false, err
	}
	return repository.NewMatchRepository(gdb).CreateIfAbsent(ctx, judgeID, subjectID)
}

func (s *Service) fireMatchHooks(ctx context.Context, m *db.Match) {
	s.mu.RLock()
	hooks := make([]MatchHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, m.ID, m.UserAID, m.UserBID)
	}
}

// UndoLastSwipe reverses the judge's most recent swipe.
//
// Behavior:
//   - No swipes at all → ErrNothingToUndo; outside the undo window →
//     ErrUndoExpired.
//   - If the swipe was a like that produced a still-active match, and the
//     match was created no earlier than the swipe, and no message has
//     been exchanged yet, the match is deactivated and the other side is
//     told via match.removed.
//   - The swipe row is deleted; a second undo finds nothing.
//
// Example:
//
//	res, err := svc.UndoLastSwipe(ctx, 1)
func (s *Service) UndoLastSwipe(ctx context.Context, judgeID uint64) (*UndoResult, error) {
	s.appCtx.Logger.Debug("UndoLastSwipe called", "judge", judgeID)

	var result UndoResult
	var removedMatch *db.Match

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swipes := repository.NewSwipeRepository(tx)
		matches := repository.NewMatchRepository(tx)

		last, err := swipes.LastByJudge(ctx, judgeID)
		if err != nil {
			if svcErr.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.ErrNothingToUndo
			}
			return err
		}
		if time.Since(last.CreatedAt) > s.appCtx.Config.Matchmaking.UndoWindow {
			return svcErr.ErrUndoExpired
		}
		result.Swipe = last

		if db.Likes(last.Decision) {
			match, err := matches.FindByPair(ctx, last.JudgeID, last.SubjectID)
			switch {
			case err == nil:
				// only a match this swipe caused, and that nobody has acted
				// on since, goes away with it
				if match.Active && !match.CreatedAt.Before(last.CreatedAt) && match.LastMessageAt == nil {
					deactivated, err := matches.Deactivate(ctx, match.ID)
					if err != nil {
						return err
					}
					if deactivated {
						result.MatchRemoved = true
						result.MatchID = match.ID
						removedMatch = match
					}
				}
			case svcErr.Is(err, gorm.ErrRecordNotFound):
				// one-sided like, nothing more to do
			default:
				return err
			}
		}

		return swipes.Delete(ctx, last.JudgeID, last.SubjectID)
	})
	if err != nil {
		return nil, err
	}

	if removedMatch != nil {
		other := removedMatch.UserAID
		if other == judgeID {
			other = removedMatch.UserBID
		}
		if err := s.broker.Publish(ctx, realtime.NewMatchRemoved(removedMatch.ID, judgeID, other)); err != nil {
			s.appCtx.Logger.Warn("match.removed publish failed", "err", err)
		}
	}

	return &result, nil
}

// Unmatch deactivates an active match on behalf of one participant and
// notifies the other.
func (s *Service) Unmatch(ctx context.Context, userID, matchID uint64) error {
	matches := repository.NewMatchRepository(s.appCtx.DB)

	match, err := matches.FindActiveForUser(ctx, matchID, userID)
	if err != nil {
		if svcErr.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.ErrMatchNotFound
		}
		return err
	}

	deactivated, err := matches.Deactivate(ctx, match.ID)
	if err != nil {
		return err
	}
	if !deactivated {
		// lost the race to a concurrent unmatch or undo; they notify
		return svcErr.ErrMatchNotFound
	}

	other := match.UserAID
	if other == userID {
		other = match.UserBID
	}
	if err := s.broker.Publish(ctx, realtime.NewMatchRemoved(match.ID, userID, other)); err != nil {
		s.appCtx.Logger.Warn("match.removed publish failed", "err", err)
	}
	return nil
}

// SendMessage stamps the match as having traffic and fans the message
// out to the partner. Durable message history is an external
// collaborator; this core only emits the ephemeral event.
func (s *Service) SendMessage(ctx context.Context, senderID, matchID uint64, content string) error {
	matches := repository.NewMatchRepository(s.appCtx.DB)

	match, err := matches.FindActiveForUser(ctx, matchID, senderID)
	if err != nil {
		if svcErr.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.ErrMatchNotFound
		}
		return err
	}

	sentAt := time.Now().UTC()
	if err := matches.StampMessage(ctx, match.ID, sentAt); err != nil {
		return err
	}

	other := match.UserAID
	if other == senderID {
		other = match.UserBID
	}
	return s.broker.Publish(ctx, realtime.NewMessageSent(match.ID, senderID, other, content, sentAt))
}

// MarkRead tells the partner their messages in the match were read.
func (s *Service) MarkRead(ctx context.Context, readerID, matchID uint64) error {
	matches := repository.NewMatchRepository(s.appCtx.DB)

	match, err := matches.FindActiveForUser(ctx, matchID, readerID)
	if err != nil {
		if svcErr.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.ErrMatchNotFound
		}
		return err
	}

	other := match.UserAID
	if other == readerID {
		other = match.UserBID
	}
	return s.broker.Publish(ctx, realtime.NewMessagesRead(match.ID, readerID, other))
}

// Typing relays a typing indicator to the partner. Fire-and-forget by
// contract: errors are logged and swallowed.
func (s *Service) Typing(ctx context.Context, userID, matchID uint64, typing bool) {
	matches := repository.NewMatchRepository(s.appCtx.DB)

	match, err := matches.FindActiveForUser(ctx, matchID, userID)
	if err != nil {
		return
	}

	other := match.UserAID
	if other == userID {
		other = match.UserBID
	}
	if err := s.broker.Publish(ctx, realtime.NewTyping(match.ID, userID, other, typing)); err != nil {
		s.appCtx.Logger.Debug("typing publish dropped", "err", err)
	}
}

// ListMatches returns the user's active matches, newest first, with an
// opaque cursor for the next page.
func (s *Service) ListMatches(ctx context.Context, userID uint64, paginationToken *string, limit int) ([]db.Match, *string, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > s.appCtx.Config.Matchmaking.PageLimit {
		return nil, nil, svcErr.ErrInvalidFilter
	}
	matches := repository.NewMatchRepository(s.appCtx.DB)
	return matches.ListActiveForUser(ctx, userID, paginationToken, limit)
}

// SwipeHistory returns the judge's past decisions, most recent first.
func (s *Service) SwipeHistory(ctx context.Context, judgeID uint64, limit, offset int) ([]db.Swipe, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > s.appCtx.Config.Matchmaking.PageLimit || offset < 0 {
		return nil, svcErr.ErrInvalidFilter
	}
	swipes := repository.NewSwipeRepository(s.appCtx.DB)
	return swipes.ListByJudge(ctx, judgeID, limit, offset)
}
