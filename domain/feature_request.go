package domain

import (
	"time"

	"github.com/google/uuid"
)

type FeatureRequestStatus string

const (
	FeatureRequestPending  FeatureRequestStatus = "pending"
	FeatureRequestAccepted FeatureRequestStatus = "accepted"
	FeatureRequestDeclined FeatureRequestStatus = "declined"
)

// FeatureRequest is a user suggestion triaged by admins.
type FeatureRequest struct {
	ID          uuid.UUID
	Title       string
	Description string
	Status      FeatureRequestStatus
	Priority    int
	UserID      uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
