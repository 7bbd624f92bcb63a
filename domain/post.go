// Package domain contains core concepts of the blog platform.
// This file defines Post entities and the approval status graph.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Post is a blog article moving through the approval workflow.
// Status must only ever change through the workflow engine.
type Post struct {
	ID           uuid.UUID
	Title        string
	Content      string
	AuthorID     uuid.UUID
	Status       Status
	RejectReason string
	ApprovedBy   *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanTransition reports whether moving from the current status to next is
// allowed by the approval graph:
//
//	draft -> pending -> {approved, rejected}
//	rejected -> pending
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPending
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusRejected:
		return next == StatusPending
	default:
		return false
	}
}

func (d Decision) Status() Status {
	if d == DecisionApproved {
		return StatusApproved
	}
	return StatusRejected
}
