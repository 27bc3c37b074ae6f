package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/testutil"
)

func TestUserRepository_Cache(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	mr, rdb := testutil.NewRedis(t)
	repo := NewUserRepository(db, rdb)

	user := testutil.CreateUser(t, db, "alice", model.RoleMember)

	t.Run("miss fills the cache", func(t *testing.T) {
		got, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, mr.Exists(cacheKey(user.ID)))
		cached, err := mr.Get(cacheKey(user.ID))
		require.NoError(t, err)
		assert.NotContains(t, cached, testutil.FixturePasswordHash)
	})

	t.Run("hit is served from redis", func(t *testing.T) {
		require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("role", model.RoleAdmin).Error)

		got, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleMember, got.Role)
	})

	t.Run("update evicts", func(t *testing.T) {
		fresh, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		fresh.Role = model.RoleAdmin
		require.NoError(t, repo.Update(ctx, fresh))
		assert.False(t, mr.Exists(cacheKey(user.ID)))

		got, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, got.Role)
	})

	t.Run("delete evicts", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, user.ID))
		assert.False(t, mr.Exists(cacheKey(user.ID)))

		_, err := repo.FindByID(ctx, user.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, user.ID), gorm.ErrRecordNotFound)
	})
}

func TestUserRepository_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)

	user := testutil.CreateUser(t, db, "bob", model.RoleMember)
	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, testutil.FixturePasswordHash, got.PasswordHash)
}

func TestUserRepository_Queries(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)

	admin := testutil.CreateUser(t, db, "root", model.RoleAdmin)
	a := testutil.CreateUser(t, db, "ann", model.RoleMember)
	b := testutil.CreateUser(t, db, "ben", model.RoleMember)

	t.Run("duplicate username", func(t *testing.T) {
		err := repo.Create(ctx, &model.User{Username: "ann", Role: model.RoleMember})
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("list by role", func(t *testing.T) {
		members, err := repo.ListByRole(ctx, model.RoleMember)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, a.ID, members[0].ID)
		assert.Equal(t, b.ID, members[1].ID)
	})

	t.Run("find by ids skips unknown", func(t *testing.T) {
		users, err := repo.FindByIDs(ctx, []uint{b.ID, 999, admin.ID})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, admin.ID, users[0].ID)
		assert.Equal(t, b.ID, users[1].ID)

		none, err := repo.FindByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find or create", func(t *testing.T) {
		existing, err := repo.FindOrCreateByUsername(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, a.ID, existing.ID)

		created, err := repo.FindOrCreateByUsername(ctx, "newcomer")
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, model.RoleMember, created.Role)
		assert.Empty(t, created.PasswordHash)
	})
}
