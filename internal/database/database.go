package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lexpost/config"
	"lexpost/internal/domain"
	"lexpost/internal/logger"
	"lexpost/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqliteDefaults make writers on a file database queue on the write lock
// instead of failing with "database is locked".
var sqliteDefaults = [][2]string{
	{"_busy_timeout", "5000"},
	{"_txlock", "immediate"},
	{"_journal_mode", "WAL"},
}

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger.WithComponent("gorm")),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isMemory(cfg.DSN) {
		// every connection to :memory: is a fresh database
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN adds the locking defaults a file DSN does not set itself.
func sqliteDSN(dsn string) string {
	if isMemory(dsn) {
		return dsn
	}
	for _, kv := range sqliteDefaults {
		if strings.Contains(dsn, kv[0]+"=") {
			continue
		}
		sep := "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
		dsn += sep + kv[0] + "=" + kv[1]
	}
	return dsn
}

// slogWriter sends gorm's log lines to slog.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// newGormLogger logs failed and slow queries only. Missing rows are a normal
// lookup result here, so they are not reported.
func newGormLogger(log *slog.Logger) gormlogger.Interface {
	return gormlogger.New(slogWriter{log: log}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// OpenMemory returns a migrated in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := NewDB(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// SeedAdmin creates the admin profile for email, or promotes an existing one.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, fullName string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("admin email is required")
	}
	var p models.Profile
	err := db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = models.Profile{Email: email, FullName: fullName, Role: domain.RoleAdmin, SubscriptionStatus: domain.SubscriptionInactive}
		if err := db.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := db.WithContext(ctx).Model(&p).Update("role", domain.RoleAdmin).Error; err != nil {
			return nil, err
		}
		p.Role = domain.RoleAdmin
	}
	return &p, nil
}
