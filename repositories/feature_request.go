package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IFeatureRequestRepository interface {
	CreateFeatureRequest(ctx context.Context, fr *domain.FeatureRequest) error
	GetFeatureRequest(ctx context.Context, id uuid.UUID) (domain.FeatureRequest, error)
	UpdateFeatureRequest(ctx context.Context, fr *domain.FeatureRequest) error
	ListFeatureRequests(ctx context.Context, limit int, cursor *string) ([]domain.FeatureRequest, *string, error)
}

type FeatureRequestRepository struct {
	db *badger.DB
}

func NewFeatureRequestRepository(db *badger.DB) *FeatureRequestRepository {
	return &FeatureRequestRepository{db: db}
}

func featureRequestKey(createdAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("featreq:%019d:%s", createdAt.UnixNano(), id))
}

func featureRequestIDKey(id uuid.UUID) []byte {
	return []byte("featreqid:" + id.String())
}

func (r *FeatureRequestRepository) CreateFeatureRequest(_ context.Context, fr *domain.FeatureRequest) error {
	data, err := json.Marshal(fr)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		key := featureRequestKey(fr.CreatedAt, fr.ID)
		if err := txn.Set(featureRequestIDKey(fr.ID), key); err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r *FeatureRequestRepository) GetFeatureRequest(_ context.Context, id uuid.UUID) (domain.FeatureRequest, error) {
	var fr domain.FeatureRequest
	err := r.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get(featureRequestIDKey(id))
		if err != nil {
			return err
		}
		var key []byte
		if err := ref.Value(func(val []byte) error {
			key = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fr)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.FeatureRequest{}, fmt.Errorf("%w: feature request %s", errors.ErrNotFound, id)
	}
	return fr, err
}

func (r *FeatureRequestRepository) UpdateFeatureRequest(ctx context.Context, fr *domain.FeatureRequest) error {
	data, err := json.Marshal(fr)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(featureRequestKey(fr.CreatedAt, fr.ID), data)
	})
}

func (r *FeatureRequestRepository) ListFeatureRequests(_ context.Context, limit int, cursor *string) ([]domain.FeatureRequest, *string, error) {
	var requests []domain.FeatureRequest
	var lastKey string
	prefixStr := "featreq:"
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
			if limit > 0 && len(requests) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(val []byte) error {
				var fr domain.FeatureRequest
				if err := json.Unmarshal(val, &fr); err != nil {
					return err
				}
				requests = append(requests, fr)
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
	if len(requests) == 0 {
		return requests, nil, nil
	}
	return requests, &lastKey, nil
}
