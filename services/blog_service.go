package services

import (
	"context"
	"fmt"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var validatePost = validator.New()

type PostInput struct {
	Title   string `validate:"required,min=3,max=200"`
	Content string `validate:"required,min=10,max=50000"`
}

// PostSummary is the list-view projection of a post; full content is only
// fetched per post.
type PostSummary struct {
	ID        uuid.UUID     `json:"id"`
	Title     string        `json:"title"`
	AuthorID  uuid.UUID     `json:"author_id"`
	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type IBlogService interface {
	CreateDraft(ctx context.Context, caller domain.Identity, input PostInput) (domain.Post, error)
	GetPost(ctx context.Context, caller domain.Identity, id uuid.UUID) (domain.Post, error)
	UpdatePost(ctx context.Context, caller domain.Identity, id uuid.UUID, input PostInput) (domain.Post, error)
	DeletePost(ctx context.Context, caller domain.Identity, id uuid.UUID) error
	ListPublished(ctx context.Context, limit int, cursor *string) ([]PostSummary, *string, error)
	ListMine(ctx context.Context, caller domain.Identity, limit int, cursor *string) ([]PostSummary, *string, error)
	ListPending(ctx context.Context, caller domain.Identity, limit int, cursor *string) ([]PostSummary, *string, error)
}

type BlogService struct {
	posts repositories.IPostRepository
}

func NewBlogService(posts repositories.IPostRepository) *BlogService {
	return &BlogService{posts: posts}
}

// CreateDraft stores a new post owned by the caller. Every post is born a
// draft; publication goes through the approval workflow.
func (s *BlogService) CreateDraft(ctx context.Context, caller domain.Identity, input PostInput) (domain.Post, error) {
	if err := validatePost.Struct(input); err != nil {
		return domain.Post{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	post := domain.Post{
		ID:        uuid.New(),
		Title:     input.Title,
		Content:   input.Content,
		AuthorID:  caller.UserID,
		Status:    domain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.CreatePost(ctx, &post); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// GetPost returns the post if the caller may see it: approved posts are
// public, everything else is restricted to the author and reviewers.
func (s *BlogService) GetPost(ctx context.Context, caller domain.Identity, id uuid.UUID) (domain.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if post.Status == domain.StatusApproved {
		return post, nil
	}
	if post.AuthorID != caller.UserID && !caller.Role.CanApprove() {
		return domain.Post{}, fmt.Errorf("%w: post %s is not published", errors.ErrUnauthorized, id)
	}
	return post, nil
}

// UpdatePost edits title and content. Only the author may edit, and only
// while the post has not been approved; edits to a pending post do not
// reset the review, the reviewer always decides on fresh content.
func (s *BlogService) UpdatePost(ctx context.Context, caller domain.Identity, id uuid.UUID, input PostInput) (domain.Post, error) {
	if err := validatePost.Struct(input); err != nil {
		return domain.Post{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if post.AuthorID != caller.UserID {
		return domain.Post{}, fmt.Errorf("%w: only the author may edit post %s", errors.ErrUnauthorized, id)
	}
	if post.Status == domain.StatusApproved {
		return domain.Post{}, fmt.Errorf("%w: approved posts are immutable", errors.ErrInvalidTransition)
	}

	post.Title = input.Title
	post.Content = input.Content
	post.UpdatedAt = time.Now().UTC()
	if err := s.posts.UpdatePost(ctx, &post); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// DeletePost removes the post. Authors delete their own; admins delete
// anything.
func (s *BlogService) DeletePost(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Owns(post.AuthorID) {
		return fmt.Errorf("%w: cannot delete post %s", errors.ErrUnauthorized, id)
	}
	return s.posts.DeletePost(ctx, id)
}

func (s *BlogService) ListPublished(ctx context.Context, limit int, cursor *string) ([]PostSummary, *string, error) {
	posts, next, err := s.posts.ListByStatus(ctx, domain.StatusApproved, limit, cursor)
	if err != nil {
		return nil, nil, err
	}
	return toSummaries(posts), next, nil
}

func (s *BlogService) ListMine(ctx context.Context, caller domain.Identity, limit int, cursor *string) ([]PostSummary, *string, error) {
	posts, next, err := s.posts.ListByAuthor(ctx, caller.UserID, limit, cursor)
	if err != nil {
		return nil, nil, err
	}
	return toSummaries(posts), next, nil
}

// ListPending is the reviewer's work queue.
func (s *BlogService) ListPending(ctx context.Context, caller domain.Identity, limit int, cursor *string) ([]PostSummary, *string, error) {
	if !caller.Role.CanApprove() {
		return nil, nil, fmt.Errorf("%w: role %s cannot list the review queue", errors.ErrUnauthorized, caller.Role)
	}
	posts, next, err := s.posts.ListByStatus(ctx, domain.StatusPending, limit, cursor)
	if err != nil {
		return nil, nil, err
	}
	return toSummaries(posts), next, nil
}

func toSummaries(posts []domain.Post) []PostSummary {
	return lo.Map(posts, func(p domain.Post, _ int) PostSummary {
		return PostSummary{
			ID:        p.ID,
			Title:     p.Title,
			AuthorID:  p.AuthorID,
			Status:    p.Status,
			CreatedAt: p.CreatedAt,
		}
	})
}
