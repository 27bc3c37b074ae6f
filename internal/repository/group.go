package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/ReadingRoom/internal/model"
)

var (
	ErrMemberExists = errors.New("user is already a member of this group")
	// ErrJoinContention means every get-or-create attempt lost a uniqueness race.
	ErrJoinContention = errors.New("group join kept conflicting")
)

const joinAttempts = 5

// IGroupRepository defines the interface for group data operations
type IGroupRepository interface {
	JoinOrCreate(ctx context.Context, bookID uint, name, readingGoals string, userID uint) (*model.Group, bool, error)
	Create(ctx context.Context, group *model.Group, memberIDs []uint) error
	FindByID(ctx context.Context, id uint) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	ListByBook(ctx context.Context, bookID uint) ([]*model.Group, error)
	ListByMember(ctx context.Context, userID uint) ([]*model.Group, error)
	Update(ctx context.Context, group *model.Group) error
	UpdateWithMembers(ctx context.Context, group *model.Group, userIDs []uint) error
	Delete(ctx context.Context, id uint) error
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
	ListMembers(ctx context.Context, groupIDs []uint) (map[uint][]*model.User, error)
}

// GroupRepository implements IGroupRepository interface
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new IGroupRepository instance
func NewGroupRepository(db *gorm.DB) IGroupRepository {
	return &GroupRepository{db: db}
}

// JoinOrCreate finds the group named name for bookID, creating it with
// readingGoals when absent, and adds userID as a member, all in one
// transaction. A unique violation from a concurrent creator or joiner rolls
// the attempt back and retries, so the loser then sees the winner's row.
// It reports whether the group was created; ErrMemberExists leaves everything
// unchanged and still returns the group.
func (r *GroupRepository) JoinOrCreate(ctx context.Context, bookID uint, name, readingGoals string, userID uint) (*model.Group, bool, error) {
	for attempt := 0; attempt < joinAttempts; attempt++ {
		var (
			group   model.Group
			created bool
		)
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Where("book_id = ? AND name = ?", bookID, name).Limit(1).Find(&group)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				group = model.Group{Name: name, BookID: bookID, ReadingGoals: readingGoals}
				if err := tx.Omit(clause.Associations).Create(&group).Error; err != nil {
					return err
				}
				created = true
			}

			var count int64
			err := tx.Model(&model.GroupMember{}).
				Where("group_id = ? AND user_id = ?", group.ID, userID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrMemberExists
			}
			return tx.Omit(clause.Associations).Create(&model.GroupMember{GroupID: group.ID, UserID: userID}).Error
		})
		switch {
		case err == nil:
			return &group, created, nil
		case errors.Is(err, ErrMemberExists):
			return &group, false, err
		case errors.Is(err, gorm.ErrDuplicatedKey):
			continue
		default:
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("join %q: %w", name, ErrJoinContention)
}

// Create creates a group together with its initial members
func (r *GroupRepository) Create(ctx context.Context, group *model.Group, memberIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}
		return insertMembers(tx, group.ID, memberIDs)
	})
}

func insertMembers(tx *gorm.DB, groupID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]model.GroupMember, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, model.GroupMember{GroupID: groupID, UserID: id})
	}
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// FindByID finds a group by ID with its book
func (r *GroupRepository) FindByID(ctx context.Context, id uint) (*model.Group, error) {
	var group model.Group
	if err := r.db.WithContext(ctx).Preload("Book").First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepository) List(ctx context.Context) ([]*model.Group, error) {
	groups := []*model.Group{}
	err := r.db.WithContext(ctx).Preload("Book").Order("id").Find(&groups).Error
	return groups, err
}

func (r *GroupRepository) ListByBook(ctx context.Context, bookID uint) ([]*model.Group, error) {
	groups := []*model.Group{}
	err := r.db.WithContext(ctx).Preload("Book").
		Where("book_id = ?", bookID).
		Order("id").
		Find(&groups).Error
	return groups, err
}

// ListByMember retrieves all groups that a user is a member of
func (r *GroupRepository) ListByMember(ctx context.Context, userID uint) ([]*model.Group, error) {
	groups := []*model.Group{}
	err := r.db.WithContext(ctx).Preload("Book").
		Joins("JOIN group_members ON group_members.group_id = reading_groups.id").
		Where("group_members.user_id = ?", userID).
		Order("reading_groups.id").
		Find(&groups).Error
	return groups, err
}

// Update saves the group's own columns
func (r *GroupRepository) Update(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error
}

// UpdateWithMembers saves the group columns and makes userIDs its exact
// member set in one transaction; on error neither change is kept.
func (r *GroupRepository) UpdateWithMembers(ctx context.Context, group *model.Group, userIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(group).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&model.GroupMember{}).Error; err != nil {
			return err
		}
		return insertMembers(tx, group.ID, userIDs)
	})
}

// Delete removes the group; members, chapters and discussions cascade.
func (r *GroupRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Group{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IsMember checks if a user is a member of a group
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMembers returns the members of each group, ordered by user id
func (r *GroupRepository) ListMembers(ctx context.Context, groupIDs []uint) (map[uint][]*model.User, error) {
	out := make(map[uint][]*model.User, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}

	var rows []model.GroupMember
	err := r.db.WithContext(ctx).Preload("User").
		Where("group_id IN ?", groupIDs).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.User != nil {
			out[row.GroupID] = append(out[row.GroupID], row.User)
		}
	}
	return out, nil
}
