// Package registry persists users and download links through gorm.
// It is the only writer of those tables.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ytget/yt-link-bot/internal/config"
	"github.com/ytget/yt-link-bot/internal/model"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Columns replaced on a download link conflict
var downloadUpdateColumns = []string{"title", "extension", "status", "file_path", "updated_at"}

// Store is safe for concurrent use
type Store struct {
	db          *gorm.DB
	now         func() time.Time
	defaultLang string
}

// Open connects to the database and migrates the schema
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3", "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres, "postgresql":
		dialector = postgres.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", model.ErrInvalidInput, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", model.ErrStorageUnavailable, driver, err)
	}

	if dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
		}
		// one physical connection; sqlite serializes writers anyway
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			log.Printf("[WARN] failed to enable WAL: %v", err)
		}
	}

	return New(db)
}

// New wraps an open gorm handle and migrates the schema
func New(db *gorm.DB) (*Store, error) {
	log.Printf("[DEBUG] running auto migrate...")
	if err := db.AutoMigrate(&userRow{}, &downloadLinkRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", model.ErrStorageUnavailable, err)
	}
	return &Store{db: db, now: time.Now, defaultLang: config.DefaultLanguage}, nil
}

// SetClock replaces the time source used to stamp writes
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// SetDefaultLanguage sets the language given to new users and reported for users without one
func (s *Store) SetDefaultLanguage(lang string) {
	if lang != "" {
		s.defaultLang = lang
	}
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertUser inserts the user if absent and leaves an existing row untouched
func (s *Store) UpsertUser(ctx context.Context, userID int64, displayName string) error {
	row := &userRow{UserID: userID, DisplayName: displayName, Language: s.defaultLang}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("%w: upsert user %d: %v", model.ErrStorageUnavailable, userID, err)
	}
	return nil
}

// SetLanguage stores the language of a user, creating the user if needed
func (s *Store) SetLanguage(ctx context.Context, userID int64, lang string) error {
	if lang == "" {
		return fmt.Errorf("%w: empty language", model.ErrInvalidInput)
	}
	row := &userRow{UserID: userID, Language: lang}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"language"}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("%w: set language for %d: %v", model.ErrStorageUnavailable, userID, err)
	}
	return nil
}

// Language returns the stored language or the default one
func (s *Store) Language(ctx context.Context, userID int64) (string, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaultLang, nil
	}
	if err != nil {
		return s.defaultLang, fmt.Errorf("%w: language for %d: %v", model.ErrStorageUnavailable, userID, err)
	}
	if row.Language == "" {
		return s.defaultLang, nil
	}
	return row.Language, nil
}

// User returns a stored user
func (s *Store) User(ctx context.Context, userID int64) (*model.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: user %d: %v", model.ErrStorageUnavailable, userID, err)
	}
	u := row.toModel()
	return &u, nil
}

// UpsertDownload inserts the link or replaces every mutable field of the existing one.
// The timestamp is refreshed on every write.
func (s *Store) UpsertDownload(ctx context.Context, rec *model.DownloadRecord) error {
	if rec == nil || rec.VideoID == "" {
		return fmt.Errorf("%w: download record without video id", model.ErrInvalidInput)
	}
	if !rec.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidInput, rec.Status)
	}

	path := rec.FilePath
	if rec.Status.HasArtifact() {
		if path == "" {
			return fmt.Errorf("%w: downloaded record %s has no file path", model.ErrInvalidInput, rec.VideoID)
		}
	} else {
		path = ""
	}

	row := &downloadLinkRow{
		UserID:    rec.UserID,
		VideoID:   rec.VideoID,
		Title:     rec.Title,
		Extension: rec.Extension,
		Status:    rec.Status.String(),
		FilePath:  path,
		UpdatedAt: s.now().UTC(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
			DoUpdates: clause.AssignmentColumns(downloadUpdateColumns),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("%w: upsert download %d/%s: %v", model.ErrStorageUnavailable, rec.UserID, rec.VideoID, err)
	}

	rec.FilePath = path
	rec.UpdatedAt = row.UpdatedAt
	return nil
}

// Download returns the link of one (user, video) pair, or nil if there is none
func (s *Store) Download(ctx context.Context, userID int64, videoID string) (*model.DownloadRecord, error) {
	var row downloadLinkRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND video_id = ?", userID, videoID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: download %d/%s: %v", model.ErrStorageUnavailable, userID, videoID, err)
	}
	rec := row.toModel()
	return &rec, nil
}

// FindStale returns downloaded links last written before olderThan
func (s *Store) FindStale(ctx context.Context, olderThan time.Time) ([]model.DownloadRecord, error) {
	var rows []downloadLinkRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.RecordStatusDownloaded.String(), olderThan.UTC()).
		Order("updated_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: find stale: %v", model.ErrStorageUnavailable, err)
	}

	out := make([]model.DownloadRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// Stats returns user and link counts for admins
func (s *Store) Stats(ctx context.Context) (*model.RegistryStats, error) {
	stats := &model.RegistryStats{Downloads: make(map[model.RecordStatus]int64)}

	if err := s.db.WithContext(ctx).Model(&userRow{}).Count(&stats.Users).Error; err != nil {
		return nil, fmt.Errorf("%w: count users: %v", model.ErrStorageUnavailable, err)
	}

	var groups []struct {
		Status string
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&downloadLinkRow{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("%w: count downloads: %v", model.ErrStorageUnavailable, err)
	}
	for _, g := range groups {
		stats.Downloads[model.RecordStatus(g.Status)] = g.N
	}
	return stats, nil
}
