package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"blog-lab/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Comment_Store_And_Get(t *testing.T) {
	req := require.New(t)
	repo := NewCommentRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()

	post := uuid.New()
	author := uuid.New()
	at := time.Now().UTC()
	comments := []domain.Comment{
		{ID: uuid.New(), PostID: post, AuthorID: author, Content: "first", Seq: 1, CreatedAt: at},
		{ID: uuid.New(), PostID: post, AuthorID: author, Content: "second", Seq: 2, CreatedAt: at.Add(time.Minute)},
		{ID: uuid.New(), PostID: post, AuthorID: author, Content: "third", Seq: 3, CreatedAt: at.Add(2 * time.Minute)},
	}
	for _, c := range comments {
		req.NoError(repo.StoreComment(ctx, c))
	}

	fetched, _, err := repo.GetComments(ctx, post, nil)
	req.NoError(err)
	req.Len(fetched, 3)
	// Reverse scan: newest first.
	req.Equal("third", fetched[0].Content)
	req.Equal("first", fetched[2].Content)
}

func Test_Comment_Get_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	limit := 2
	repo := NewCommentRepository(openTestDB(t), slog.Default(), &limit)
	ctx := context.Background()

	post := uuid.New()
	at := time.Now().UTC()
	for i, content := range []string{"a", "b", "c"} {
		req.NoError(repo.StoreComment(ctx, domain.Comment{
			ID: uuid.New(), PostID: post, AuthorID: uuid.New(),
			Content: content, Seq: uint64(i + 1), CreatedAt: at.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, cursor, err := repo.GetComments(ctx, post, nil)
	req.NoError(err)
	req.Len(page, limit)
	req.Equal("c", page[0].Content)
	req.NotNil(cursor)

	rest, _, err := repo.GetComments(ctx, post, cursor)
	req.NoError(err)
	req.Len(rest, 1)
	req.Equal("a", rest[0].Content)
}

func Test_Comment_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repo := NewCommentRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()

	postA, postB := uuid.New(), uuid.New()
	req.NoError(repo.StoreComment(ctx, domain.Comment{
		ID: uuid.New(), PostID: postA, AuthorID: uuid.New(),
		Content: "only in A", Seq: 1, CreatedAt: time.Now().UTC(),
	}))

	fetched, _, err := repo.GetComments(ctx, postB, nil)
	req.NoError(err)
	req.Empty(fetched)
}
