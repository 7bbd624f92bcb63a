//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
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

type IUserRepository interface {
	CreateUser(ctx context.Context, email, username, hashedPassword string, role domain.Role) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

type diskUser struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"password_hash"`
	Role         domain.Role `json:"role"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
}

func userEmailKey(email string) []byte { return []byte("user:email:" + email) }

func userIDKey(id uuid.UUID) []byte { return []byte("user:id:" + id.String()) }

// CreateUser persists the user and returns the generated ID. The email key
// acts as the uniqueness guard; the id key is a secondary lookup.
func (u *UserRepository) CreateUser(_ context.Context, email, username, hashedPassword string, role domain.Role) (uuid.UUID, error) {
	newID := uuid.New()
	disk := diskUser{
		ID:           newID,
		Email:        email,
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(disk)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userEmailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userEmailKey(email), data); err != nil {
			return err
		}
		return txn.Set(userIDKey(newID), []byte(email))
	})
	if err != nil {
		return uuid.Nil, err
	}
	return newID, nil
}

func (u *UserRepository) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	var disk diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, email)
	}
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(disk), nil
}

func (u *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var email string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			email = string(val)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.User{}, err
	}
	return u.GetUserByEmail(ctx, email)
}

func toDomainUser(disk diskUser) domain.User {
	return domain.User{
		ID:           disk.ID,
		Email:        disk.Email,
		Username:     disk.Username,
		PasswordHash: disk.PasswordHash,
		Role:         disk.Role,
		Active:       disk.Active,
		CreatedAt:    disk.CreatedAt,
	}
}
