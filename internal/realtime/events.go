package realtime

import (
	"encoding/json"
	"time"
)

// Event types carried over the fan-out channel.
const (
	EventMatchCreated = "match.created"
	EventMatchRemoved = "match.removed"
	EventMessageSent  = "message.sent"
	EventMessagesRead = "messages.read"
	EventUserTyping   = "user.typing"
)

// Event is the transient envelope published through the broker. Nothing
// here is persisted; recipients that are offline simply miss it.
type Event struct {
	Type       string          `json:"type"`
	Recipients []uint64        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
	At         time.Time       `json:"at"`
}

// MatchCreatedPayload notifies both participants of a fresh match.
type MatchCreatedPayload struct {
	MatchID uint64 `json:"match_id"`
	UserAID uint64 `json:"user_a_id"`
	UserBID uint64 `json:"user_b_id"`
}

// MatchRemovedPayload notifies a participant that the match went away
// (unmatch, or undo of the swipe that caused it).
type MatchRemovedPayload struct {
	MatchID uint64 `json:"match_id"`
	ByUser  uint64 `json:"by_user"`
}

// MessageSentPayload mirrors the message the sender just posted.
type MessageSentPayload struct {
	MatchID  uint64    `json:"match_id"`
	SenderID uint64    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// MessagesReadPayload tells the partner their messages were read.
type MessagesReadPayload struct {
	MatchID  uint64 `json:"match_id"`
	ReaderID uint64 `json:"reader_id"`
}

// TypingPayload is the fire-and-forget typing indicator.
type TypingPayload struct {
	MatchID uint64 `json:"match_id"`
	UserID  uint64 `json:"user_id"`
	Typing  bool   `json:"typing"`
}

func newEvent(eventType string, recipients []uint64, payload interface{}) Event {
	raw, _ := json.Marshal(payload)
	return Event{
		Type:       eventType,
		Recipients: recipients,
		Payload:    raw,
		At:         time.Now().UTC(),
	}
}

// NewMatchCreated builds the match.created event for both participants.
func NewMatchCreated(matchID, userA, userB uint64) Event {
	return newEvent(EventMatchCreated, []uint64{userA, userB}, MatchCreatedPayload{
		MatchID: matchID,
		UserAID: userA,
		UserBID: userB,
	})
}

// NewMatchRemoved builds the match.removed event for the given recipients.
func NewMatchRemoved(matchID, byUser uint64, recipients ...uint64) Event {
	return newEvent(EventMatchRemoved, recipients, MatchRemovedPayload{
		MatchID: matchID,
		ByUser:  byUser,
	})
}

// NewMessageSent builds the message.sent event for the match partner.
func NewMessageSent(matchID, senderID, recipientID uint64, content string, sentAt time.Time) Event {
	return newEvent(EventMessageSent, []uint64{recipientID}, MessageSentPayload{
		MatchID:  matchID,
		SenderID: senderID,
		Content:  content,
		SentAt:   sentAt,
	})
}

// NewMessagesRead builds the messages.read event for the match partner.
func NewMessagesRead(matchID, readerID, recipientID uint64) Event {
	return newEvent(EventMessagesRead, []uint64{recipientID}, MessagesReadPayload{
		MatchID:  matchID,
		ReaderID: readerID,
	})
}

// NewTyping builds the user.typing indicator for the match partner.
func NewTyping(matchID, userID, recipientID uint64, typing bool) Event {
	return newEvent(EventUserTyping, []uint64{recipientID}, TypingPayload{
		MatchID: matchID,
		UserID:  userID,
		Typing:  typing,
	})
}
