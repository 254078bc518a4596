package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/habitstack/internal/apperr"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultStoreTimeout = 5 * time.Second

// Options 描述打开存储所需的连接信息。
// URL 以 postgres:// 或 postgresql:// 开头时使用 PostgreSQL，其余按 SQLite 处理。
type Options struct {
	URL     string
	Name    string
	Timeout time.Duration
	Logger  logger.Interface
}

// Store 持有数据库连接，并为每次调用附加超时。
// 启动时构造一次，关闭时调用 Close。
type Store struct {
	gdb     *gorm.DB
	timeout time.Duration
	dialect string
}

// Open 建立连接；不执行迁移，迁移由 Migrate 负责。
func Open(opts Options) (*Store, error) {
	dialector, dialect, err := dialectorFor(opts.URL, opts.Name)
	if err != nil {
		return nil, err
	}

	gormLogger := opts.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}

	if dialect == "sqlite" {
		// SQLite 只允许单写者，单连接可以避免 "database is locked"，同时让内存库在连接之间保持存活。
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewStore(gdb, opts.Timeout), nil
}

// NewStore 包装已有的 gorm 连接，供测试直接注入。
func NewStore(gdb *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Store{gdb: gdb, timeout: timeout, dialect: gdb.Dialector.Name()}
}

// Migrate 为四个集合建表并创建索引。
func (s *Store) Migrate() error {
	if err := s.gdb.AutoMigrate(
		&HabitCategory{},
		&Habit{},
		&HabitStack{},
		&ProgressData{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Session 返回带超时上下文的 gorm 会话，调用方必须执行 cancel。
func (s *Store) Session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.gdb.WithContext(ctx), cancel
}

// Ping 检查底层连接是否可用。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return apperr.Store("ping store", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.Store("ping store", err)
	}
	return nil
}

// DB exposes the underlying gorm instance for tests and migrations.
func (s *Store) DB() *gorm.DB {
	return s.gdb
}

// Dialect 返回 sqlite 或 postgres。
func (s *Store) Dialect() string {
	return s.dialect
}

// Close 释放连接池。
func (s *Store) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Classify 将 gorm 错误归入统一错误分类，entity 用于 NotFound 的提示文本。
func Classify(op, entity string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return apperr.Store(op, err)
}

func dialectorFor(rawURL, name string) (gorm.Dialector, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "habitstack"
	}

	if strings.HasPrefix(rawURL, "postgres://") || strings.HasPrefix(rawURL, "postgresql://") {
		dsn, err := postgresDSN(rawURL, name)
		if err != nil {
			return nil, "", err
		}
		return postgres.Open(dsn), "postgres", nil
	}

	path, err := sqlitePath(rawURL, name)
	if err != nil {
		return nil, "", err
	}
	return sqlite.Open(path), "sqlite", nil
}

func postgresDSN(rawURL, name string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + name
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sqlitePath(rawURL, name string) (string, error) {
	target := strings.TrimPrefix(rawURL, "sqlite://")
	switch {
	case target == ":memory:":
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil
	case target == "":
		target = filepath.Join("data", name+".db")
	case !strings.HasSuffix(target, ".db"):
		target = filepath.Join(target, name+".db")
	}

	if err := ensureParentDir(target); err != nil {
		return "", err
	}
	return target + "?_busy_timeout=5000", nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
