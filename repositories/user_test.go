package repositories

import (
	"context"
	"match-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_Touch(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewUserRepository(db, log)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Get(ctx, "u1")
	req.ErrorIs(err, errors.ErrNotFound)

	// When the user is seen twice, the second time earlier
	req.NoError(repo.Touch(ctx, "u1", now))
	req.NoError(repo.Touch(ctx, "u1", now.Add(-time.Hour)))

	// Then the latest activity is kept
	user, err := repo.Get(ctx, "u1")
	req.NoError(err)
	req.True(user.LastSeenAt.Equal(now))
	req.True(user.CreatedAt.Equal(now))
}

func TestUserRepository_ListMostRecent(t *testing.T) {
	req := require.New(t)
	db, log := openDB(t)
	repo := NewUserRepository(db, log)
	ctx := context.Background()
	now := time.Now().UTC()

	req.NoError(repo.Touch(ctx, "a", now.Add(-time.Minute)))
	req.NoError(repo.Touch(ctx, "b", now))
	req.NoError(repo.Touch(ctx, "c", now))
	req.NoError(repo.Touch(ctx, "me", now.Add(time.Minute)))

	users, err := repo.ListMostRecent(ctx, []string{"me"}, 2)
	req.NoError(err)
	req.Len(users, 2)
	req.Equal("b", users[0].ID)
	req.Equal("c", users[1].ID)
}
