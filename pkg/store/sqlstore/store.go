package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/jobtrack/jobtrack/pkg/config"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	*Repo
	db *gorm.DB
}

func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	default:
		dialector = mysql.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db), nil
}

func gormConfig(logLevel string) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(logLevel)),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	}
}

// New wraps an already opened gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{Repo: &Repo{db: db}, db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Repository) error) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(&Repo{db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&model.Position{},
		&model.User{},
		&model.Location{},
		&model.Item{},
		&model.Project{},
		&model.ProjectDay{},
		&model.ProjectItem{},
		&model.Personnel{},
		&model.Role{},
		&model.ProjectPersonnel{},
		&model.ProjectLog{},
	)
}

// Repo implements store.Repository on a gorm handle, which is either the
// root connection pool or an open transaction.
type Repo struct {
	db   *gorm.DB
	inTx bool
}

func (r *Repo) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// locking adds FOR UPDATE to reads made inside a transaction.
func (r *Repo) locking(ctx context.Context) *gorm.DB {
	if !r.inTx {
		return r.conn(ctx)
	}
	return r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func dateOnly(t time.Time) string {
	return t.Format(model.DateLayout)
}
