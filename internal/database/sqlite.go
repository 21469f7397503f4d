package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/parishroll/parishroll/backend/internal/attendance"
	"github.com/parishroll/parishroll/backend/internal/booking"
	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/members"
	"github.com/parishroll/parishroll/backend/internal/notices"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&groups.Group{},
		&users.User{},
		&members.Member{},
		&attendance.Snapshot{},
		&notices.Notice{},
		&notices.Comment{},
		&booking.Place{},
		&booking.Booking{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
