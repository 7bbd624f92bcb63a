//go:generate go run go.uber.org/mock/mockgen -source=blacklist.go -destination=../mocks/mock_blacklist_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// IBlacklistRepository stores the censored-word dictionary the moderator
// is built from. Words live in the key space only, values are empty.
type IBlacklistRepository interface {
	AddWord(ctx context.Context, word string) error
	RemoveWord(ctx context.Context, word string) error
	LoadWords(ctx context.Context) ([]string, error)
}

type BlacklistRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBlacklistRepository(db *badger.DB, log *slog.Logger) *BlacklistRepository {
	return &BlacklistRepository{db: db, log: log}
}

func blacklistKey(word string) []byte {
	return []byte(fmt.Sprintf("blacklist:%s", strings.ToLower(strings.TrimSpace(word))))
}

func (b *BlacklistRepository) AddWord(_ context.Context, word string) error {
	if strings.TrimSpace(word) == "" {
		return nil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blacklistKey(word), nil)
	})
}

func (b *BlacklistRepository) RemoveWord(_ context.Context, word string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blacklistKey(word))
	})
}

// LoadWords scans the whole dictionary. Values are never fetched since the
// words are in the keys.
func (b *BlacklistRepository) LoadWords(_ context.Context) ([]string, error) {
	var words []string
	err := b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("blacklist:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.log.Debug("Blacklist loaded", "words", len(words))
	return words, nil
}

// Seed inserts words that are not present yet. Used at startup to
// bootstrap the dictionary without clobbering operator additions.
func (b *BlacklistRepository) Seed(ctx context.Context, words []string) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, word := range words {
		if strings.TrimSpace(word) == "" {
			continue
		}
		if err := wb.Set(blacklistKey(word), nil); err != nil {
			return err
		}
	}
	return wb.Flush()
}
