package services

import (
	"context"
	"log/slog"
	"testing"

	"blog-lab/domain"
	"blog-lab/errors"
	"blog-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newBlogFixture(t *testing.T) (*BlogService, *repositories.PostRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repositories.NewPostRepository(db, slog.Default())
	return NewBlogService(store), store
}

func author(id uuid.UUID) domain.Identity {
	return domain.Identity{UserID: id, Role: domain.RoleUser}
}

func validInput() PostInput {
	return PostInput{Title: "A fine title", Content: "Content long enough to pass validation"}
}

func TestBlogService_CreateDraft(t *testing.T) {
	req := require.New(t)
	svc, store := newBlogFixture(t)
	ctx := context.Background()
	caller := author(uuid.New())

	post, err := svc.CreateDraft(ctx, caller, validInput())
	req.NoError(err)
	req.Equal(domain.StatusDraft, post.Status)
	req.Equal(caller.UserID, post.AuthorID)

	stored, err := store.GetPost(ctx, post.ID)
	req.NoError(err)
	req.Equal(post.Title, stored.Title)

	_, err = svc.CreateDraft(ctx, caller, PostInput{Title: "x", Content: "short"})
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestBlogService_GetPost_Visibility(t *testing.T) {
	req := require.New(t)
	svc, store := newBlogFixture(t)
	ctx := context.Background()
	owner := author(uuid.New())

	draft, err := svc.CreateDraft(ctx, owner, validInput())
	req.NoError(err)

	// The author and reviewers see the draft, strangers do not.
	_, err = svc.GetPost(ctx, owner, draft.ID)
	req.NoError(err)
	_, err = svc.GetPost(ctx, domain.Identity{UserID: uuid.New(), Role: domain.RoleL1Approver}, draft.ID)
	req.NoError(err)
	_, err = svc.GetPost(ctx, author(uuid.New()), draft.ID)
	req.ErrorIs(err, errors.ErrUnauthorized)

	// Approved posts are public.
	req.NoError(store.CompareAndSetStatus(ctx, draft.ID, domain.StatusDraft, domain.StatusApproved, func(p *domain.Post) {}))
	_, err = svc.GetPost(ctx, author(uuid.New()), draft.ID)
	req.NoError(err)
}

func TestBlogService_UpdatePost(t *testing.T) {
	req := require.New(t)
	svc, store := newBlogFixture(t)
	ctx := context.Background()
	owner := author(uuid.New())

	post, err := svc.CreateDraft(ctx, owner, validInput())
	req.NoError(err)

	updated, err := svc.UpdatePost(ctx, owner, post.ID, PostInput{Title: "Edited title", Content: "Edited content with enough length"})
	req.NoError(err)
	req.Equal("Edited title", updated.Title)

	_, err = svc.UpdatePost(ctx, author(uuid.New()), post.ID, validInput())
	req.ErrorIs(err, errors.ErrUnauthorized)

	req.NoError(store.CompareAndSetStatus(ctx, post.ID, domain.StatusDraft, domain.StatusApproved, func(p *domain.Post) {}))
	_, err = svc.UpdatePost(ctx, owner, post.ID, validInput())
	req.ErrorIs(err, errors.ErrInvalidTransition)
}

func TestBlogService_DeletePost(t *testing.T) {
	req := require.New(t)
	svc, _ := newBlogFixture(t)
	ctx := context.Background()
	owner := author(uuid.New())

	post, err := svc.CreateDraft(ctx, owner, validInput())
	req.NoError(err)

	err = svc.DeletePost(ctx, author(uuid.New()), post.ID)
	req.ErrorIs(err, errors.ErrUnauthorized)

	// Admins may delete any post.
	err = svc.DeletePost(ctx, domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}, post.ID)
	req.NoError(err)

	_, err = svc.GetPost(ctx, owner, post.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestBlogService_Listings(t *testing.T) {
	req := require.New(t)
	svc, store := newBlogFixture(t)
	ctx := context.Background()
	owner := author(uuid.New())

	first, err := svc.CreateDraft(ctx, owner, validInput())
	req.NoError(err)
	_, err = svc.CreateDraft(ctx, owner, PostInput{Title: "Second draft", Content: "Some other content entirely"})
	req.NoError(err)
	req.NoError(store.CompareAndSetStatus(ctx, first.ID, domain.StatusDraft, domain.StatusPending, func(p *domain.Post) {}))

	mine, _, err := svc.ListMine(ctx, owner, 0, nil)
	req.NoError(err)
	req.Len(mine, 2)

	pending, _, err := svc.ListPending(ctx, domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}, 0, nil)
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal(first.ID, pending[0].ID)

	_, _, err = svc.ListPending(ctx, owner, 0, nil)
	req.ErrorIs(err, errors.ErrUnauthorized)

	published, _, err := svc.ListPublished(ctx, 0, nil)
	req.NoError(err)
	req.Empty(published)
}
