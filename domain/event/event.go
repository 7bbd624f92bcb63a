// Package event defines the immutable domain events flowing from the
// workflow engine and the comment rooms to connected subscribers.
package event

import (
	"time"

	"blog-lab/domain"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSubmitted     Kind = "submitted"
	KindApproved      Kind = "approved"
	KindRejected      Kind = "rejected"
	KindComment       Kind = "comment"
	KindJoined        Kind = "joined"
	KindLeft          Kind = "left"
	KindHeartbeat     Kind = "heartbeat"
	KindSnapshot      Kind = "pending_snapshot"
	KindError         Kind = "error"
	KindServerClosing Kind = "server_closing"
)

type DomainEvent interface {
	EventKind() Kind
}

// PostSubmitted is produced when a draft or rejected post enters the
// pending queue. Seq is scoped to the post.
type PostSubmitted struct {
	Post     uuid.UUID `json:"post"`
	Title    string    `json:"title"`
	Author   uuid.UUID `json:"author"`
	Seq      uint64    `json:"seq"`
	Resubmit bool      `json:"resubmit,omitempty"`
	At       time.Time `json:"at"`
}

func (e PostSubmitted) EventKind() Kind { return KindSubmitted }

// PostDecided records an accepted approve/reject decision.
// Produced exactly once per won compare-and-set.
type PostDecided struct {
	Post     uuid.UUID       `json:"post"`
	Reviewer uuid.UUID       `json:"reviewer"`
	Decision domain.Decision `json:"decision"`
	Reason   string          `json:"reason,omitempty"`
	Seq      uint64          `json:"seq"`
	At       time.Time       `json:"at"`
}

func (e PostDecided) EventKind() Kind {
	if e.Decision == domain.DecisionApproved {
		return KindApproved
	}
	return KindRejected
}

// CommentPosted carries a moderated comment through a room.
// Seq is scoped to the room and defines the shared conversation order.
type CommentPosted struct {
	Post    uuid.UUID `json:"post"`
	Comment uuid.UUID `json:"comment"`
	Author  uuid.UUID `json:"author"`
	Content string    `json:"content"`
	Lang    string    `json:"lang,omitempty"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
}

func (e CommentPosted) EventKind() Kind { return KindComment }

// MemberJoined and MemberLeft announce room membership changes.
type MemberJoined struct {
	Post   uuid.UUID `json:"post"`
	Member uuid.UUID `json:"member"`
	At     time.Time `json:"at"`
}

func (e MemberJoined) EventKind() Kind { return KindJoined }

type MemberLeft struct {
	Post   uuid.UUID `json:"post"`
	Member uuid.UUID `json:"member"`
	At     time.Time `json:"at"`
}

func (e MemberLeft) EventKind() Kind { return KindLeft }

// Heartbeat is pushed periodically on every hub connection. Delivery goes
// through the same bounded queue as real events so that a stalled consumer
// fails its heartbeats and gets evicted.
type Heartbeat struct {
	At time.Time `json:"at"`
}

func (e Heartbeat) EventKind() Kind { return KindHeartbeat }

// PendingEntry is one pending post in a connect-time snapshot.
type PendingEntry struct {
	Post   uuid.UUID `json:"post"`
	Title  string    `json:"title"`
	Author uuid.UUID `json:"author"`
	Seq    uint64    `json:"seq,omitempty"`
}

// PendingSnapshot is delivered synchronously on connect, before any live
// event, so a late joiner knows the current approval queue.
type PendingSnapshot struct {
	Entries []PendingEntry `json:"entries"`
	At      time.Time      `json:"at"`
}

func (e PendingSnapshot) EventKind() Kind { return KindSnapshot }

// ErrorNotice reports a per-connection failure (typically a rejected
// comment) without breaking the stream.
type ErrorNotice struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (e ErrorNotice) EventKind() Kind { return KindError }

// ServerClosing is the terminal event sent on graceful shutdown.
type ServerClosing struct {
	At time.Time `json:"at"`
}

func (e ServerClosing) EventKind() Kind { return KindServerClosing }
