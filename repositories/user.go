//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IUserRepository interface {
	Touch(ctx context.Context, userID string, at time.Time) error
	Get(ctx context.Context, userID string) (domain.User, error)
	ListMostRecent(ctx context.Context, exclude []string, limit int) ([]domain.User, error)
}

type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

const userPrefix = "user:"

func userKey(id string) string { return userPrefix + id }

// Touch records activity, creating the user entry on first sight.
func (u *UserRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(u.db, func(txn *badger.Txn) error {
		user := domain.User{ID: userID, CreatedAt: at}
		err := getJSON(txn, userKey(userID), &user)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return err
		}
		if at.After(user.LastSeenAt) {
			user.LastSeenAt = at
		}
		return setJSON(txn, userKey(userID), user)
	})
}

func (u *UserRepository) Get(ctx context.Context, userID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(userID), &user)
	})
	return user, err
}

// ListMostRecent returns users ordered by last activity, then id.
func (u *UserRepository) ListMostRecent(ctx context.Context, exclude []string, limit int) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	excluded := lo.SliceToMap(exclude, func(id string) (string, struct{}) { return id, struct{}{} })
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user domain.User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return err
			}
			if _, skip := excluded[user.ID]; skip {
				continue
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].LastSeenAt.Equal(users[j].LastSeenAt) {
			return users[i].LastSeenAt.After(users[j].LastSeenAt)
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
