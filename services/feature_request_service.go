package services

import (
	"context"
	"fmt"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/google/uuid"
)

type FeatureRequestInput struct {
	Title       string `validate:"required,min=3,max=200"`
	Description string `validate:"required,min=10,max=5000"`
}

type IFeatureRequestService interface {
	Submit(ctx context.Context, caller domain.Identity, input FeatureRequestInput) (domain.FeatureRequest, error)
	List(ctx context.Context, caller domain.Identity, limit int, cursor *string) ([]domain.FeatureRequest, *string, error)
	Triage(ctx context.Context, caller domain.Identity, id uuid.UUID, status domain.FeatureRequestStatus, priority int) (domain.FeatureRequest, error)
}

// FeatureRequestService collects user suggestions and lets admins triage
// them.
type FeatureRequestService struct {
	requests repositories.IFeatureRequestRepository
}

func NewFeatureRequestService(requests repositories.IFeatureRequestRepository) *FeatureRequestService {
	return &FeatureRequestService{requests: requests}
}

func (s *FeatureRequestService) Submit(ctx context.Context, caller domain.Identity, input FeatureRequestInput) (domain.FeatureRequest, error) {
	if err := validatePost.Struct(input); err != nil {
		return domain.FeatureRequest{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	fr := domain.FeatureRequest{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.FeatureRequestPending,
		UserID:      caller.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.requests.CreateFeatureRequest(ctx, &fr); err != nil {
		return domain.FeatureRequest{}, err
	}
	return fr, nil
}

// List shows the whole backlog to admins; regular users only see their
// own suggestions.
func (s *FeatureRequestService) List(ctx context.Context, caller domain.Identity, limit int, cursor *string) ([]domain.FeatureRequest, *string, error) {
	requests, next, err := s.requests.ListFeatureRequests(ctx, limit, cursor)
	if err != nil {
		return nil, nil, err
	}
	if caller.Role.IsAdmin() {
		return requests, next, nil
	}

	own := make([]domain.FeatureRequest, 0, len(requests))
	for _, fr := range requests {
		if fr.UserID == caller.UserID {
			own = append(own, fr)
		}
	}
	return own, next, nil
}

// Triage sets the status and priority of a suggestion. Admin only.
func (s *FeatureRequestService) Triage(ctx context.Context, caller domain.Identity, id uuid.UUID, status domain.FeatureRequestStatus, priority int) (domain.FeatureRequest, error) {
	if !caller.Role.IsAdmin() {
		return domain.FeatureRequest{}, fmt.Errorf("%w: only admins triage feature requests", errors.ErrUnauthorized)
	}
	switch status {
	case domain.FeatureRequestAccepted, domain.FeatureRequestDeclined, domain.FeatureRequestPending:
	default:
		return domain.FeatureRequest{}, fmt.Errorf("%w: unknown status %q", errors.ErrInvalidInput, status)
	}

	fr, err := s.requests.GetFeatureRequest(ctx, id)
	if err != nil {
		return domain.FeatureRequest{}, err
	}
	fr.Status = status
	fr.Priority = priority
	fr.UpdatedAt = time.Now().UTC()
	if err := s.requests.UpdateFeatureRequest(ctx, &fr); err != nil {
		return domain.FeatureRequest{}, err
	}
	return fr, nil
}
