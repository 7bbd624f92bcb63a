package repositories

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestPost(author uuid.UUID, status domain.Status) domain.Post {
	now := time.Now().UTC()
	return domain.Post{
		ID:        uuid.New(),
		Title:     "On bounded queues",
		Content:   "Backpressure is a feature, not a bug.",
		AuthorID:  author,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func Test_Post_Create_And_Get(t *testing.T) {
	req := require.New(t)
	repo := NewPostRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	post := newTestPost(uuid.New(), domain.StatusDraft)
	req.NoError(repo.CreatePost(ctx, &post))

	fetched, err := repo.GetPost(ctx, post.ID)
	req.NoError(err)
	req.Equal(post.ID, fetched.ID)
	req.Equal(domain.StatusDraft, fetched.Status)

	_, err = repo.GetPost(ctx, uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Post_CompareAndSetStatus(t *testing.T) {
	req := require.New(t)
	repo := NewPostRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	post := newTestPost(uuid.New(), domain.StatusDraft)
	req.NoError(repo.CreatePost(ctx, &post))

	req.NoError(repo.CompareAndSetStatus(ctx, post.ID, domain.StatusDraft, domain.StatusPending, nil))

	fetched, err := repo.GetPost(ctx, post.ID)
	req.NoError(err)
	req.Equal(domain.StatusPending, fetched.Status)

	// The old expected status now fails.
	err = repo.CompareAndSetStatus(ctx, post.ID, domain.StatusDraft, domain.StatusPending, nil)
	req.ErrorIs(err, errors.ErrStaleState)
}

func Test_Post_CompareAndSetStatus_ConcurrentDeciders(t *testing.T) {
	req := require.New(t)
	repo := NewPostRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	post := newTestPost(uuid.New(), domain.StatusPending)
	req.NoError(repo.CreatePost(ctx, &post))

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, next := range []domain.Status{domain.StatusApproved, domain.StatusRejected} {
		wg.Add(1)
		go func(next domain.Status) {
			defer wg.Done()
			results <- repo.CompareAndSetStatus(ctx, post.ID, domain.StatusPending, next, nil)
		}(next)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else {
			req.ErrorIs(err, errors.ErrStaleState)
			losses++
		}
	}
	req.Equal(1, wins)
	req.Equal(1, losses)
}

func Test_Post_AppendWorkflowEvent_SequencePerPost(t *testing.T) {
	req := require.New(t)
	repo := NewPostRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	postA := uuid.New()
	postB := uuid.New()

	for i := 0; i < 3; i++ {
		seq, err := repo.AppendWorkflowEvent(ctx, WorkflowRecord{Post: postA, Kind: "submitted", At: time.Now().UTC()})
		req.NoError(err)
		req.Equal(uint64(i+1), seq)
	}
	seq, err := repo.AppendWorkflowEvent(ctx, WorkflowRecord{Post: postB, Kind: "submitted", At: time.Now().UTC()})
	req.NoError(err)
	req.Equal(uint64(1), seq, "sequence numbers are scoped per post")

	records, err := repo.ListWorkflowEvents(ctx, postA)
	req.NoError(err)
	req.Len(records, 3)
	for i, rec := range records {
		req.Equal(uint64(i+1), rec.Seq)
	}
}

func Test_Post_ListByStatus_FollowsStatusChanges(t *testing.T) {
	req := require.New(t)
	repo := NewPostRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	author := uuid.New()
	pending := newTestPost(author, domain.StatusPending)
	draft := newTestPost(author, domain.StatusDraft)
	draft.CreatedAt = pending.CreatedAt.Add(time.Second)
	req.NoError(repo.CreatePost(ctx, &pending))
	req.NoError(repo.CreatePost(ctx, &draft))

	posts, _, err := repo.ListByStatus(ctx, domain.StatusPending, 0, nil)
	req.NoError(err)
	req.Len(posts, 1)
	req.Equal(pending.ID, posts[0].ID)

	req.NoError(repo.CompareAndSetStatus(ctx, pending.ID, domain.StatusPending, domain.StatusApproved, nil))

	posts, _, err = repo.ListByStatus(ctx, domain.StatusPending, 0, nil)
	req.NoError(err)
	req.Empty(posts)

	posts, _, err = repo.ListByStatus(ctx, domain.StatusApproved, 0, nil)
	req.NoError(err)
	req.Len(posts, 1)

	byAuthor, _, err := repo.ListByAuthor(ctx, author, 0, nil)
	req.NoError(err)
	req.Len(byAuthor, 2)
}

func Test_Post_ListByStatus_CursorPagination(t *testing.T) {
	req := require.New(t)
	repo := NewPostRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	base := time.Now().UTC()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		post := newTestPost(uuid.New(), domain.StatusPending)
		post.CreatedAt = base.Add(time.Duration(i) * time.Second)
		req.NoError(repo.CreatePost(ctx, &post))
		ids = append(ids, post.ID)
	}

	firstPage, cursor, err := repo.ListByStatus(ctx, domain.StatusPending, 3, nil)
	req.NoError(err)
	req.Len(firstPage, 3)
	req.NotNil(cursor)

	secondPage, _, err := repo.ListByStatus(ctx, domain.StatusPending, 3, cursor)
	req.NoError(err)
	req.Len(secondPage, 2)

	var got []uuid.UUID
	for _, p := range append(firstPage, secondPage...) {
		got = append(got, p.ID)
	}
	req.Equal(ids, got, "pages arrive in creation order without overlap")
}
