//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=../mocks/mock_post_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IPostRepository is the persistence collaborator for posts and their
// workflow event log. The workflow engine treats it as the source of truth
// and refetches on every transition attempt.
type IPostRepository interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	ListByStatus(ctx context.Context, status domain.Status, limit int, cursor *string) ([]domain.Post, *string, error)
	ListByAuthor(ctx context.Context, author uuid.UUID, limit int, cursor *string) ([]domain.Post, *string, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next domain.Status, mutate func(*domain.Post)) error
	AppendWorkflowEvent(ctx context.Context, record WorkflowRecord) (uint64, error)
	ListWorkflowEvents(ctx context.Context, postID uuid.UUID) ([]WorkflowRecord, error)
}

// WorkflowRecord is the immutable, append-only trace of an accepted
// transition. Seq is assigned by the repository, monotonically per post.
type WorkflowRecord struct {
	Post     uuid.UUID       `json:"post"`
	Kind     string          `json:"kind"`
	Actor    uuid.UUID       `json:"actor"`
	Decision domain.Decision `json:"decision,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Seq      uint64          `json:"seq"`
	At       time.Time       `json:"at"`
}

type PostRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPostRepository(db *badger.DB, log *slog.Logger) *PostRepository {
	return &PostRepository{db: db, log: log}
}

// diskPost is the stored representation of a post.
type diskPost struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	AuthorID     uuid.UUID     `json:"author_id"`
	Status       domain.Status `json:"status"`
	RejectReason string        `json:"reject_reason,omitempty"`
	ApprovedBy   *uuid.UUID    `json:"approved_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Key layout:
//
//	post:{uuid}                              -> diskPost
//	postseq:{uuid}                           -> last workflow seq (decimal)
//	postevt:{uuid}:{seq 19-digit padded}     -> WorkflowRecord
//	poststatus:{status}:{created 19d}:{uuid} -> post id (index)
//	postauthor:{uuid}:{created 19d}:{uuid}   -> post id (index)
//
// The 19-digit zero padding keeps prefix scans in chronological order, and
// the trailing UUID disambiguates identical timestamps.
func postKey(id uuid.UUID) []byte { return []byte("post:" + id.String()) }

func postSeqKey(id uuid.UUID) []byte { return []byte("postseq:" + id.String()) }

func postEventKey(id uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("postevt:%s:%019d", id, seq))
}

func statusIndexKey(status domain.Status, createdAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("poststatus:%s:%019d:%s", status, createdAt.UnixNano(), id))
}

func authorIndexKey(author uuid.UUID, createdAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("postauthor:%s:%019d:%s", author, createdAt.UnixNano(), id))
}

func (r *PostRepository) CreatePost(_ context.Context, post *domain.Post) error {
	data, err := json.Marshal(fromDomainPost(*post))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(postKey(post.ID)); err == nil {
			return fmt.Errorf("%w: post %s", errors.ErrInvalidInput, post.ID)
		}
		if err := txn.Set(postKey(post.ID), data); err != nil {
			return err
		}
		if err := txn.Set(statusIndexKey(post.Status, post.CreatedAt, post.ID), []byte(post.ID.String())); err != nil {
			return err
		}
		return txn.Set(authorIndexKey(post.AuthorID, post.CreatedAt, post.ID), []byte(post.ID.String()))
	})
}

func (r *PostRepository) GetPost(_ context.Context, id uuid.UUID) (domain.Post, error) {
	var disk diskPost
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(postKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Post{}, fmt.Errorf("%w: post %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Post{}, err
	}
	return toDomainPost(disk), nil
}

// UpdatePost overwrites title/content/timestamps of an existing post.
// Status is deliberately NOT updated here; status changes only flow
// through CompareAndSetStatus.
func (r *PostRepository) UpdatePost(ctx context.Context, post *domain.Post) error {
	return r.db.Update(func(txn *badger.Txn) error {
		current, err := readPost(txn, post.ID)
		if err != nil {
			return err
		}
		current.Title = post.Title
		current.Content = post.Content
		current.UpdatedAt = post.UpdatedAt
		return writePost(txn, current)
	})
}

func (r *PostRepository) DeletePost(_ context.Context, id uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		current, err := readPost(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(statusIndexKey(current.Status, current.CreatedAt, id)); err != nil {
			return err
		}
		if err := txn.Delete(authorIndexKey(current.AuthorID, current.CreatedAt, id)); err != nil {
			return err
		}
		return txn.Delete(postKey(id))
	})
}

// CompareAndSetStatus guards concurrent transitions: it re-reads the post
// inside the transaction and fails with ErrStaleState when the stored
// status no longer matches expected, or when another transaction committed
// first (badger conflict). mutate, when non-nil, stamps decision fields on
// the winning write.
func (r *PostRepository) CompareAndSetStatus(_ context.Context, id uuid.UUID, expected, next domain.Status, mutate func(*domain.Post)) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		disk, err := readPost(txn, id)
		if err != nil {
			return err
		}
		if disk.Status != expected {
			return fmt.Errorf("%w: post %s is %s, expected %s",
				errors.ErrStaleState, id, disk.Status, expected)
		}
		post := toDomainPost(disk)
		post.Status = next
		post.UpdatedAt = time.Now().UTC()
		if mutate != nil {
			mutate(&post)
		}
		if err := txn.Delete(statusIndexKey(expected, post.CreatedAt, id)); err != nil {
			return err
		}
		if err := txn.Set(statusIndexKey(next, post.CreatedAt, id), []byte(id.String())); err != nil {
			return err
		}
		return writePost(txn, fromDomainPost(post))
	})
	if stderrors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: post %s lost a concurrent transition", errors.ErrStaleState, id)
	}
	return err
}

// AppendWorkflowEvent assigns the next per-post sequence number and stores
// the record. Concurrent appends to the same post are serialized by the
// badger transaction conflict check and retried.
func (r *PostRepository) AppendWorkflowEvent(ctx context.Context, record WorkflowRecord) (uint64, error) {
	for {
		var seq uint64
		err := r.db.Update(func(txn *badger.Txn) error {
			seq = 1
			item, err := txn.Get(postSeqKey(record.Post))
			if err == nil {
				err = item.Value(func(val []byte) error {
					_, scanErr := fmt.Sscanf(string(val), "%d", &seq)
					seq++
					return scanErr
				})
			}
			if err != nil && !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			record.Seq = seq
			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := txn.Set(postSeqKey(record.Post), []byte(fmt.Sprintf("%d", seq))); err != nil {
				return err
			}
			return txn.Set(postEventKey(record.Post, seq), data)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return seq, nil
	}
}

func (r *PostRepository) ListWorkflowEvents(_ context.Context, postID uuid.UUID) ([]WorkflowRecord, error) {
	var records []WorkflowRecord
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("postevt:%s:", postID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec WorkflowRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

func (r *PostRepository) ListByStatus(ctx context.Context, status domain.Status, limit int, cursor *string) ([]domain.Post, *string, error) {
	prefix := fmt.Sprintf("poststatus:%s:", status)
	return r.listByIndex(prefix, limit, cursor)
}

func (r *PostRepository) ListByAuthor(ctx context.Context, author uuid.UUID, limit int, cursor *string) ([]domain.Post, *string, error) {
	prefix := fmt.Sprintf("postauthor:%s:", author)
	return r.listByIndex(prefix, limit, cursor)
}

// listByIndex scans an index prefix in chronological order and resolves
// post ids into full records. The cursor is the key suffix of the last
// returned entry.
func (r *PostRepository) listByIndex(prefixStr string, limit int, cursor *string) ([]domain.Post, *string, error) {
	var ids []uuid.UUID
	var lastKey string
	prefix := []byte(prefixStr)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(ids) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				id, err := uuid.Parse(string(val))
				if err != nil {
					return err
				}
				ids = append(ids, id)
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

	posts := make([]domain.Post, 0, len(ids))
	err = r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			disk, err := readPost(txn, id)
			if err != nil {
				return err
			}
			posts = append(posts, toDomainPost(disk))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(posts) == 0 {
		return posts, nil, nil
	}
	return posts, &lastKey, nil
}

func readPost(txn *badger.Txn, id uuid.UUID) (diskPost, error) {
	var disk diskPost
	item, err := txn.Get(postKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return disk, fmt.Errorf("%w: post %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return disk, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &disk)
	})
	return disk, err
}

func writePost(txn *badger.Txn, disk diskPost) error {
	data, err := json.Marshal(disk)
	if err != nil {
		return err
	}
	return txn.Set(postKey(disk.ID), data)
}

func fromDomainPost(post domain.Post) diskPost {
	return diskPost{
		ID:           post.ID,
		Title:        post.Title,
		Content:      post.Content,
		AuthorID:     post.AuthorID,
		Status:       post.Status,
		RejectReason: post.RejectReason,
		ApprovedBy:   post.ApprovedBy,
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
	}
}

func toDomainPost(disk diskPost) domain.Post {
	return domain.Post{
		ID:           disk.ID,
		Title:        disk.Title,
		Content:      disk.Content,
		AuthorID:     disk.AuthorID,
		Status:       disk.Status,
		RejectReason: disk.RejectReason,
		ApprovedBy:   disk.ApprovedBy,
		CreatedAt:    disk.CreatedAt,
		UpdatedAt:    disk.UpdatedAt,
	}
}
