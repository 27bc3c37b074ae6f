package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/ReadingRoom/config"
	"github.com/Gopher0727/ReadingRoom/internal/model"
)

// Models lists every table, in dependency order, for AutoMigrate.
var Models = []any{
	&model.User{},
	&model.Book{},
	&model.Group{},
	&model.GroupMember{},
	&model.Chapter{},
	&model.ChapterRead{},
	&model.Discussion{},
}

// GormConfig is shared by production and test connections. TranslateError
// turns unique violations into gorm.ErrDuplicatedKey.
func GormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
		NowFunc:        utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// InitPostgres 初始化 PostgreSQL 连接并自动迁移
func InitPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.BuildDSN()), GormConfig(logger.Warn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
