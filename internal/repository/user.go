package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
)

const (
	userCacheKeyPrefix = "user:info:" // Redis String, 值是 user JSON
	userCacheTTL       = 1 * time.Hour
)

// IUserRepository defines the interface for user data operations
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindOrCreateByUsername(ctx context.Context, username string) (*model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uint) error
}

// UserRepository implements IUserRepository. A nil redis client disables caching.
type UserRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewUserRepository creates a new IUserRepository instance
func NewUserRepository(db *gorm.DB, redis *redis.Client) IUserRepository {
	return &UserRepository{db: db, redis: redis}
}

// cachedUser is what lands in redis; the password hash never does.
type cachedUser struct {
	ID       uint       `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

func cacheKey(id uint) string {
	return fmt.Sprintf("%s%d", userCacheKeyPrefix, id)
}

// Create creates a new user in the database
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID returns the user, read through the cache. The returned value
// carries no password hash when served from cache.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	if r.redis != nil {
		if val, err := r.redis.Get(ctx, cacheKey(id)).Result(); err == nil {
			var c cachedUser
			if json.Unmarshal([]byte(val), &c) == nil {
				return &model.User{ID: c.ID, Username: c.Username, Email: c.Email, Role: c.Role}, nil
			}
		}
	}

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		data, err := json.Marshal(cachedUser{ID: user.ID, Username: user.Username, Email: user.Email, Role: user.Role})
		if err == nil {
			r.redis.Set(ctx, cacheKey(id), data, userCacheTTL)
		}
	}
	return &user, nil
}

// FindByIDs returns the users that exist among ids, ordered by id
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint) ([]*model.User, error) {
	users := []*model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

// FindByUsername finds a user by username
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateByUsername returns the named user, creating a member account
// with no usable password when it does not exist yet.
func (r *UserRepository) FindOrCreateByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := r.FindByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &model.User{Username: username, Role: model.RoleMember}
	if err := r.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindByUsername(ctx, username)
		}
		return nil, err
	}
	return user, nil
}

// ListByRole lists users holding role, ordered by id
func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	users := []*model.User{}
	err := r.db.WithContext(ctx).Where("role = ?", role).Order("id").Find(&users).Error
	return users, err
}

// Update saves the user and drops its cache entry
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return err
	}
	r.evict(ctx, user.ID)
	return nil
}

// Delete removes the user and drops its cache entry
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	r.evict(ctx, id)
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) evict(ctx context.Context, id uint) {
	if r.redis != nil {
		r.redis.Del(ctx, cacheKey(id))
	}
}
