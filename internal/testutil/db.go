// Package testutil holds fixtures shared by repository, service and api tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/storage"
)

// NewDB opens a private in-memory SQLite database with foreign keys enforced
// and the full schema migrated. One connection keeps the memory database alive
// and serializes concurrent transactions.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), storage.GormConfig(logger.Silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewRedis starts a miniredis server and a client bound to it.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// FixturePasswordHash is stored for fixture users; it matches no password.
const FixturePasswordHash = "fixture-password-hash"

func CreateUser(t testing.TB, db *gorm.DB, username string, role model.Role) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: FixturePasswordHash,
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func CreateBook(t testing.TB, db *gorm.DB, title string) *model.Book {
	t.Helper()
	book := &model.Book{Title: title, Author: "Author", Genre: "Fiction", Description: title + " description"}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("create book %s: %v", title, err)
	}
	return book
}

func CreateGroup(t testing.TB, db *gorm.DB, book *model.Book, name string, members ...*model.User) *model.Group {
	t.Helper()
	group := &model.Group{Name: name, BookID: book.ID, ReadingGoals: "finish " + book.Title}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	for _, m := range members {
		if err := db.Create(&model.GroupMember{GroupID: group.ID, UserID: m.ID}).Error; err != nil {
			t.Fatalf("add member %s: %v", m.Username, err)
		}
	}
	return group
}

// Date returns midnight UTC of the given day as a column value.
func Date(y int, m time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func CreateChapter(t testing.TB, db *gorm.DB, group *model.Group, title string, deadline datatypes.Date, readers ...*model.User) *model.Chapter {
	t.Helper()
	chapter := &model.Chapter{GroupID: group.ID, Title: title, Deadline: deadline}
	if err := db.Create(chapter).Error; err != nil {
		t.Fatalf("create chapter %s: %v", title, err)
	}
	for _, r := range readers {
		if err := db.Create(&model.ChapterRead{ChapterID: chapter.ID, UserID: r.ID}).Error; err != nil {
			t.Fatalf("mark read %s: %v", r.Username, err)
		}
	}
	return chapter
}

func CreateDiscussion(t testing.TB, db *gorm.DB, chapter *model.Chapter, author *model.User, content string, parent *model.Discussion, at time.Time) *model.Discussion {
	t.Helper()
	d := &model.Discussion{ChapterID: chapter.ID, UserID: author.ID, Content: content, CreatedAt: at}
	if parent != nil {
		d.ParentID = &parent.ID
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create discussion: %v", err)
	}
	return d
}
