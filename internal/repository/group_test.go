package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/storage"
	"github.com/Gopher0727/ReadingRoom/internal/testutil"
)

func userIDs(users []*model.User) []uint {
	out := make([]uint, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestGroupRepository_JoinOrCreate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGroupRepository(db)

	book := testutil.CreateBook(t, db, "Dune")
	a := testutil.CreateUser(t, db, "a", model.RoleMember)
	b := testutil.CreateUser(t, db, "b", model.RoleMember)

	g1, created, err := repo.JoinOrCreate(ctx, book.ID, "G1", "two chapters a week", a.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "two chapters a week", g1.ReadingGoals)

	g2, created, err := repo.JoinOrCreate(ctx, book.ID, "G1", "ignored when joining", b.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, g1.ID, g2.ID)
	assert.Equal(t, "two chapters a week", g2.ReadingGoals)

	again, created, err := repo.JoinOrCreate(ctx, book.ID, "G1", "", a.ID)
	assert.ErrorIs(t, err, ErrMemberExists)
	assert.False(t, created)
	assert.Equal(t, g1.ID, again.ID)

	members, err := repo.ListMembers(ctx, []uint{g1.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, userIDs(members[g1.ID]))

	other := testutil.CreateBook(t, db, "Emma")
	g3, created, err := repo.JoinOrCreate(ctx, other.ID, "G1", "", a.ID)
	require.NoError(t, err)
	assert.True(t, created, "same name under another book is a different group")
	assert.NotEqual(t, g1.ID, g3.ID)
}

func testConcurrentJoin(t *testing.T, db *gorm.DB, joiners int) {
	ctx := context.Background()
	repo := NewGroupRepository(db)

	book := testutil.CreateBook(t, db, "Moby Dick")
	users := make([]*model.User, joiners)
	for i := range users {
		users[i] = testutil.CreateUser(t, db, fmt.Sprintf("reader-%d-%d", book.ID, i), model.RoleMember)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for _, u := range users {
		wg.Add(1)
		go func(u *model.User) {
			defer wg.Done()
			_, c, err := repo.JoinOrCreate(ctx, book.ID, "Bookworms", "", u.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if c {
				created++
			}
		}(u)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, created)

	groups, err := repo.ListByBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	members, err := repo.ListMembers(ctx, []uint{groups[0].ID})
	require.NoError(t, err)
	assert.Len(t, members[groups[0].ID], joiners)
}

func TestGroupRepository_ConcurrentJoin(t *testing.T) {
	testConcurrentJoin(t, testutil.NewDB(t), 8)
}

// TestGroupRepository_ConcurrentJoinPostgres exercises the unique-violation
// retry against a real server. Set READINGROOM_TEST_POSTGRES_DSN to run it.
func TestGroupRepository_ConcurrentJoinPostgres(t *testing.T) {
	dsn := os.Getenv("READINGROOM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("READINGROOM_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), storage.GormConfig(logger.Silent))
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	require.NoError(t, storage.Migrate(db))

	testConcurrentJoin(t, db, 16)
}

func TestGroupRepository_Queries(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGroupRepository(db)

	book := testutil.CreateBook(t, db, "Ulysses")
	a := testutil.CreateUser(t, db, "a", model.RoleMember)
	b := testutil.CreateUser(t, db, "b", model.RoleMember)
	c := testutil.CreateUser(t, db, "c", model.RoleMember)

	group := &model.Group{Name: "Night Owls", BookID: book.ID, ReadingGoals: "slowly"}
	require.NoError(t, repo.Create(ctx, group, []uint{a.ID, b.ID, a.ID}))
	other := testutil.CreateGroup(t, db, book, "Early Birds", c)

	t.Run("find by id preloads the book", func(t *testing.T) {
		got, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Book)
		assert.Equal(t, "Ulysses", got.Book.Title)

		_, err = repo.FindByID(ctx, 999)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("membership", func(t *testing.T) {
		ok, err := repo.IsMember(ctx, group.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.IsMember(ctx, group.ID, c.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		groups, err := repo.ListByMember(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, other.ID, groups[0].ID)
		assert.NotNil(t, groups[0].Book)
	})

	t.Run("list", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, group.ID, all[0].ID)

		byBook, err := repo.ListByBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Len(t, byBook, 2)
	})

	t.Run("duplicate name under the same book", func(t *testing.T) {
		err := repo.Create(ctx, &model.Group{Name: "Night Owls", BookID: book.ID}, nil)
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("update with members", func(t *testing.T) {
		got, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		got.ReadingGoals = "steadily"
		require.NoError(t, repo.UpdateWithMembers(ctx, got, []uint{b.ID, c.ID}))

		members, err := repo.ListMembers(ctx, []uint{group.ID, other.ID})
		require.NoError(t, err)
		assert.Equal(t, []uint{b.ID, c.ID}, userIDs(members[group.ID]))
		assert.Equal(t, []uint{c.ID}, userIDs(members[other.ID]))

		again, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "steadily", again.ReadingGoals)
	})

	t.Run("update with members rolls back on a name clash", func(t *testing.T) {
		got, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		got.Name = other.Name
		err = repo.UpdateWithMembers(ctx, got, []uint{a.ID})
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

		members, err := repo.ListMembers(ctx, []uint{group.ID})
		require.NoError(t, err)
		assert.Equal(t, []uint{b.ID, c.ID}, userIDs(members[group.ID]))

		again, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "Night Owls", again.Name)
	})

	t.Run("update", func(t *testing.T) {
		got, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		got.ReadingGoals = "faster"
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.FindByID(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, "faster", again.ReadingGoals)
	})

	t.Run("delete cascades to members and chapters", func(t *testing.T) {
		chapter := testutil.CreateChapter(t, db, group, "One", testutil.Date(2025, 1, 1), b)

		require.NoError(t, repo.Delete(ctx, group.ID))
		assert.ErrorIs(t, repo.Delete(ctx, group.ID), gorm.ErrRecordNotFound)

		var n int64
		require.NoError(t, db.Model(&model.GroupMember{}).Where("group_id = ?", group.ID).Count(&n).Error)
		assert.Zero(t, n)
		require.NoError(t, db.Model(&model.Chapter{}).Where("id = ?", chapter.ID).Count(&n).Error)
		assert.Zero(t, n)
		require.NoError(t, db.Model(&model.ChapterRead{}).Where("chapter_id = ?", chapter.ID).Count(&n).Error)
		assert.Zero(t, n)
	})
}

func TestBookRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewBookRepository(db)

	book := &model.Book{Title: "Dune", Author: "Herbert", Genre: "SF", Description: "spice"}
	require.NoError(t, repo.Create(ctx, book))
	second := testutil.CreateBook(t, db, "Emma")

	books, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, book.ID, books[0].ID)

	book.Genre = "Science Fiction"
	require.NoError(t, repo.Update(ctx, book))
	got, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Science Fiction", got.Genre)

	group := testutil.CreateGroup(t, db, second, "Janeites")
	require.NoError(t, repo.Delete(ctx, second.ID))
	assert.ErrorIs(t, repo.Delete(ctx, second.ID), gorm.ErrRecordNotFound)

	_, err = NewGroupRepository(db).FindByID(ctx, group.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "groups cascade with their book")
}
