//go:generate go run go.uber.org/mock/mockgen -source=comment.go -destination=../mocks/mock_comment_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"blog-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ICommentRepository persists broadcast comments. The rooms do not depend
// on it for correctness; it exists so that history survives restarts and
// can be paged by late readers outside the replay window.
type ICommentRepository interface {
	StoreComment(ctx context.Context, comment domain.Comment) error
	GetComments(ctx context.Context, postID uuid.UUID, cursor *string) ([]domain.Comment, *string, error)
}

type CommentRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitComments *int
}

func NewCommentRepository(db *badger.DB, log *slog.Logger, limitComments *int) *CommentRepository {
	return &CommentRepository{db: db, log: log, limitComments: limitComments}
}

type diskComment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreComment persists a comment under
// "comment:{post}:{timestamp_padded}:{uuid}" so that a prefix scan yields
// chronological order, the UUID disambiguating same-nanosecond arrivals.
func (c *CommentRepository) StoreComment(_ context.Context, comment domain.Comment) error {
	key := fmt.Sprintf("comment:%s:%019d:%s",
		comment.PostID,
		comment.CreatedAt.UnixNano(),
		comment.ID,
	)
	data, err := json.Marshal(fromDomainComment(comment))
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// GetComments pages backwards from the newest comment of a post using a
// reverse cursor scan over the padded sequence keys.
func (c *CommentRepository) GetComments(_ context.Context, postID uuid.UUID, cursor *string) ([]domain.Comment, *string, error) {
	var raw [][]byte
	var lastKey string

	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("comment:%s:", postID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if c.limitComments != nil && len(raw) == *c.limitComments {
				c.log.Debug(fmt.Sprintf("Maximum of %d comments reached", *c.limitComments))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				cp := make([]byte, len(value))
				copy(cp, value)
				raw = append(raw, cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	comments := make([]domain.Comment, 0, len(raw))
	for _, b := range raw {
		var disk diskComment
		if err = json.Unmarshal(b, &disk); err != nil {
			return nil, nil, err
		}
		comments = append(comments, toDomainComment(disk))
	}
	if len(comments) == 0 {
		return comments, nil, nil
	}
	return comments, &lastKey, nil
}

func fromDomainComment(comment domain.Comment) diskComment {
	return diskComment{
		ID:        comment.ID,
		PostID:    comment.PostID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		Lang:      comment.Lang,
		Seq:       comment.Seq,
		CreatedAt: comment.CreatedAt,
	}
}

func toDomainComment(disk diskComment) domain.Comment {
	return domain.Comment{
		ID:        disk.ID,
		PostID:    disk.PostID,
		AuthorID:  disk.AuthorID,
		Content:   disk.Content,
		Lang:      disk.Lang,
		Seq:       disk.Seq,
		CreatedAt: disk.CreatedAt,
	}
}
