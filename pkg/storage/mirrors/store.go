package mirrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mirrorhooks/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config mirrors the storage configuration for the mirrors table.
type Config struct {
	Driver      string
	DSN         string
	Table       string
	AutoMigrate bool
}

// Store implements storage.MirrorStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	Domain    string    `gorm:"column:domain;size:255;not null;uniqueIndex:idx_mirror,priority:1"`
	Owner     string    `gorm:"column:owner;size:255;not null;uniqueIndex:idx_mirror,priority:2"`
	Name      string    `gorm:"column:name;size:255;not null;uniqueIndex:idx_mirror,priority:3"`
	Wiki      bool      `gorm:"column:wiki;not null;uniqueIndex:idx_mirror,priority:4"`
	Path      string    `gorm:"column:path;size:1024"`
	CloneURL  string    `gorm:"column:clone_url;size:512"`
	Operation string    `gorm:"column:operation;size:16"`
	Before    string    `gorm:"column:before_rev;size:255"`
	After     string    `gorm:"column:after_rev;size:255"`
	Ref       string    `gorm:"column:ref;size:255"`
	Status    string    `gorm:"column:status;size:32;index"`
	Error     string    `gorm:"column:error;type:text"`
	Head      string    `gorm:"column:head;size:64"`
	RefCount  int       `gorm:"column:ref_count"`
	Attempts  int       `gorm:"column:attempts"`
	JobID     string    `gorm:"column:job_id;size:64"`
	SyncedAt  time.Time `gorm:"column:synced_at"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Open creates a GORM-backed mirrors store.
func Open(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		return nil, errors.New("storage driver is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := normalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "mirror_syncs"
	}
	store := &Store{
		db:    gormDB,
		table: table,
	}
	if cfg.AutoMigrate {
		if err := store.migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertMirror inserts or updates the row for one mirror.
func (s *Store) UpsertMirror(ctx context.Context, record storage.MirrorRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.Domain == "" || record.Owner == "" || record.Name == "" {
		return errors.New("domain, owner and name are required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.SyncedAt.IsZero() {
		record.SyncedAt = now
	}
	record.UpdatedAt = now

	data := toRow(record)
	return s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "domain"}, {Name: "owner"}, {Name: "name"}, {Name: "wiki"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"path", "clone_url", "operation", "before_rev", "after_rev", "ref", "status", "error",
				"head", "ref_count", "attempts", "job_id", "synced_at", "updated_at",
			}),
		}).
		Create(&data).Error
}

// GetMirror returns nil, nil when the mirror has never been recorded.
func (s *Store) GetMirror(ctx context.Context, domain, owner, name string, wiki bool) (*storage.MirrorRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data row
	err := s.tableDB().
		WithContext(ctx).
		Where("domain = ? AND owner = ? AND name = ? AND wiki = ?", domain, owner, name, wiki).
		Take(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := fromRow(data)
	return &record, nil
}

// ListMirrors lists mirrors by filter, ordered by domain, owner and name.
func (s *Store) ListMirrors(ctx context.Context, filter storage.MirrorFilter) ([]storage.MirrorRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	query := s.tableDB().WithContext(ctx)
	if filter.Domain != "" {
		query = query.Where("domain = ?", filter.Domain)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	var data []row
	err := query.Order("domain, owner, name, wiki").Find(&data).Error
	if err != nil {
		return nil, err
	}
	records := make([]storage.MirrorRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.MirrorRecord) row {
	return row{
		Domain:    record.Domain,
		Owner:     record.Owner,
		Name:      record.Name,
		Wiki:      record.Wiki,
		Path:      record.Path,
		CloneURL:  record.CloneURL,
		Operation: record.Operation,
		Before:    record.Before,
		After:     record.After,
		Ref:       record.Ref,
		Status:    record.Status,
		Error:     record.Error,
		Head:      record.Head,
		RefCount:  record.RefCount,
		Attempts:  record.Attempts,
		JobID:     record.JobID,
		SyncedAt:  record.SyncedAt,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func fromRow(data row) storage.MirrorRecord {
	return storage.MirrorRecord{
		Domain:    data.Domain,
		Owner:     data.Owner,
		Name:      data.Name,
		Wiki:      data.Wiki,
		Path:      data.Path,
		CloneURL:  data.CloneURL,
		Operation: data.Operation,
		Before:    data.Before,
		After:     data.After,
		Ref:       data.Ref,
		Status:    data.Status,
		Error:     data.Error,
		Head:      data.Head,
		RefCount:  data.RefCount,
		Attempts:  data.Attempts,
		JobID:     data.JobID,
		SyncedAt:  data.SyncedAt,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

func normalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
