// Package workflow implements the approval state machine for posts.
// Every status change in the system goes through the Engine; it validates
// the transition against freshly fetched state, wins or loses the
// compare-and-set race, records the workflow event, and publishes it.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blog-lab/bus"
	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/google/uuid"
)

// Publisher is the slice of the event bus the engine needs.
type Publisher interface {
	Publish(topic bus.Topic, evt event.DomainEvent) int
}

type Engine struct {
	store repositories.IPostRepository
	bus   Publisher
	log   *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*postLock
}

func NewEngine(store repositories.IPostRepository, publisher Publisher, log *slog.Logger) *Engine {
	return &Engine{store: store, bus: publisher, log: log, locks: make(map[uuid.UUID]*postLock)}
}

// postLock serializes a post's transition from compare-and-set through bus
// publish. Sequence numbers are assigned by the append; without the lock a
// transition descheduled between append and publish would let a later
// transition publish a higher sequence number first. Entries are
// refcounted so the map only holds posts with an in-flight transition.
type postLock struct {
	mu   sync.Mutex
	refs int
}

func (e *Engine) lockPost(postID uuid.UUID) *postLock {
	e.mu.Lock()
	l, ok := e.locks[postID]
	if !ok {
		l = &postLock{}
		e.locks[postID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return l
}

func (e *Engine) unlockPost(postID uuid.UUID, l *postLock) {
	l.mu.Unlock()

	e.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, postID)
	}
	e.mu.Unlock()
}

// Submit moves the author's draft into the pending queue and emits a
// PostSubmitted event.
func (e *Engine) Submit(ctx context.Context, postID uuid.UUID, caller domain.Identity) (event.PostSubmitted, error) {
	return e.enterPending(ctx, postID, caller, domain.StatusDraft)
}

// Resubmit puts a rejected post back into the pending queue. Only the
// original author may resubmit.
func (e *Engine) Resubmit(ctx context.Context, postID uuid.UUID, caller domain.Identity) (event.PostSubmitted, error) {
	return e.enterPending(ctx, postID, caller, domain.StatusRejected)
}

func (e *Engine) enterPending(ctx context.Context, postID uuid.UUID, caller domain.Identity, from domain.Status) (event.PostSubmitted, error) {
	post, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return event.PostSubmitted{}, err
	}
	if post.AuthorID != caller.UserID {
		return event.PostSubmitted{}, fmt.Errorf("%w: only the author may submit post %s", errors.ErrUnauthorized, postID)
	}
	if post.Status != from {
		return event.PostSubmitted{}, fmt.Errorf("%w: post %s is %s", errors.ErrInvalidTransition, postID, post.Status)
	}

	l := e.lockPost(postID)
	defer e.unlockPost(postID, l)

	err = e.store.CompareAndSetStatus(ctx, postID, from, domain.StatusPending, func(p *domain.Post) {
		p.RejectReason = ""
	})
	if err != nil {
		return event.PostSubmitted{}, err
	}

	kind := "submitted"
	if from == domain.StatusRejected {
		kind = "resubmitted"
	}
	seq, err := e.store.AppendWorkflowEvent(ctx, repositories.WorkflowRecord{
		Post:  postID,
		Kind:  kind,
		Actor: caller.UserID,
		At:    time.Now().UTC(),
	})
	if err != nil {
		return event.PostSubmitted{}, err
	}

	evt := event.PostSubmitted{
		Post:     postID,
		Title:    post.Title,
		Author:   post.AuthorID,
		Seq:      seq,
		Resubmit: from == domain.StatusRejected,
		At:       time.Now().UTC(),
	}
	e.publish(evt, postID)
	return evt, nil
}

// Decide applies an approve/reject decision to a pending post. The caller
// must hold an approver role. Two racing deciders are broken by the store:
// exactly one compare-and-set wins, the loser receives ErrStaleState and
// must refetch.
func (e *Engine) Decide(ctx context.Context, postID uuid.UUID, reviewer domain.Identity, decision domain.Decision, reason string) (event.PostDecided, error) {
	if !reviewer.Role.CanApprove() {
		return event.PostDecided{}, fmt.Errorf("%w: role %s cannot decide posts", errors.ErrUnauthorized, reviewer.Role)
	}

	post, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return event.PostDecided{}, err
	}
	if post.Status != domain.StatusPending {
		return event.PostDecided{}, fmt.Errorf("%w: post %s is %s, only pending posts can be decided",
			errors.ErrInvalidTransition, postID, post.Status)
	}
	if decision == domain.DecisionRejected && reason == "" {
		return event.PostDecided{}, fmt.Errorf("%w: rejection requires a reason", errors.ErrInvalidInput)
	}

	l := e.lockPost(postID)
	defer e.unlockPost(postID, l)

	err = e.store.CompareAndSetStatus(ctx, postID, domain.StatusPending, decision.Status(), func(p *domain.Post) {
		if decision == domain.DecisionApproved {
			reviewerID := reviewer.UserID
			p.ApprovedBy = &reviewerID
		} else {
			p.RejectReason = reason
		}
	})
	if err != nil {
		return event.PostDecided{}, err
	}

	seq, err := e.store.AppendWorkflowEvent(ctx, repositories.WorkflowRecord{
		Post:     postID,
		Kind:     "decided",
		Actor:    reviewer.UserID,
		Decision: decision,
		Reason:   reason,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return event.PostDecided{}, err
	}

	evt := event.PostDecided{
		Post:     postID,
		Reviewer: reviewer.UserID,
		Decision: decision,
		Reason:   reason,
		Seq:      seq,
		At:       time.Now().UTC(),
	}
	e.publish(evt, postID)
	return evt, nil
}

// History returns the post's append-only workflow record, oldest first.
func (e *Engine) History(ctx context.Context, postID uuid.UUID) ([]repositories.WorkflowRecord, error) {
	return e.store.ListWorkflowEvents(ctx, postID)
}

// publish reports degraded deliveries but never fails the transition: the
// authoritative state change already committed.
func (e *Engine) publish(evt event.DomainEvent, postID uuid.UUID) {
	if dropped := e.bus.Publish(bus.TopicWorkflow, evt); dropped > 0 {
		e.log.Warn("Degraded delivery of workflow event",
			"post", postID.String(),
			"kind", string(evt.EventKind()),
			"dropped", dropped)
	}
}
