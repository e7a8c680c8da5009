package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/filblog/backend/internal/config"
	"github.com/emilythestrangee/filblog/backend/internal/models"
)

// Service is the relational store behind the API: gorm for the models and
// ReadStats for the analytics queries, sharing one pool.
type Service interface {
	Health() map[string]string
	Close() error
	GetDB() *gorm.DB
	Stats() *ReadStats
}

type service struct {
	db    *gorm.DB
	stats *ReadStats
	name  string
}

// New connects to PostgreSQL through the pgx stdlib driver and migrates the schema.
func New(cfg config.DB) (Service, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	svc, err := Open(postgres.New(postgres.Config{Conn: sqlDB}), defaultLogger())
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	svc.(*service).name = cfg.Name
	return svc, nil
}

// Open wraps any gorm dialector, migrates the models and prepares the
// analytics queries on the same connection pool.
func Open(dialector gorm.Dialector, gormLogger logger.Interface) (Service, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("✅ Database connected successfully")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	return &service{db: db, stats: NewReadStats(sqlDB, dialector.Name())}, nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.AuthNonce{},
		&models.Comment{},
		&models.Like{},
		&models.BlogRead{},
		&models.PostAuthor{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database migrations completed")
	return nil
}

func defaultLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

func (s *service) Stats() *ReadStats {
	return s.stats
}

// Health pings the pool and reports how busy it is.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health := map[string]string{"dialect": s.db.Dialector.Name()}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		health["status"] = "down"
		health["error"] = err.Error()
		log.Printf("❌ Database health check failed: %v", err)
		return health
	}

	pool := sqlDB.Stats()
	health["status"] = "up"
	health["open_connections"] = strconv.Itoa(pool.OpenConnections)
	health["in_use"] = strconv.Itoa(pool.InUse)
	health["idle"] = strconv.Itoa(pool.Idle)
	health["wait_count"] = strconv.FormatInt(pool.WaitCount, 10)
	return health
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if s.name != "" {
		log.Printf("🔌 Closing database %s", s.name)
	}
	return sqlDB.Close()
}

// ReadStats answers the analytics questions over blog_reads.
type ReadStats struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// BlogReadCount aggregates reads of one post.
type BlogReadCount struct {
	BlogSlug       string `db:"blog_slug" json:"blog_slug"`
	Reads          int64  `db:"reads" json:"reads"`
	QualifiedReads int64  `db:"qualified_reads" json:"qualified_reads"`
}

const qualifiedSum = "COALESCE(SUM(CASE WHEN qualified THEN 1 ELSE 0 END), 0) AS qualified_reads"

func NewReadStats(db *sql.DB, dialect string) *ReadStats {
	driver, placeholder := "pgx", sq.PlaceholderFormat(sq.Dollar)
	if dialect == "sqlite" {
		driver, placeholder = "sqlite3", sq.Question
	}
	return &ReadStats{
		db: sqlx.NewDb(db, driver),
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// TotalReads counts every stored read by wallet.
func (r *ReadStats) TotalReads(ctx context.Context, wallet string) (int64, error) {
	return r.count(ctx, sq.Eq{"wallet_address": wallet})
}

// QualifiedReads counts reads by wallet that passed the engagement check.
func (r *ReadStats) QualifiedReads(ctx context.Context, wallet string) (int64, error) {
	return r.count(ctx, sq.Eq{"wallet_address": wallet, "qualified": true})
}

func (r *ReadStats) count(ctx context.Context, where sq.Eq) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").From("blog_reads").Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count reads: %w", err)
	}
	return n, nil
}

// TopBlogs lists the most read posts, most reads first.
func (r *ReadStats) TopBlogs(ctx context.Context, limit uint64) ([]BlogReadCount, error) {
	query, args, err := r.sb.
		Select("blog_slug", "COUNT(*) AS reads", qualifiedSum).
		From("blog_reads").
		GroupBy("blog_slug").
		OrderBy("reads DESC", "blog_slug ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []BlogReadCount{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("top blogs: %w", err)
	}
	return out, nil
}

// ReadsByBlog aggregates reads of slug. Unknown slugs yield zero counts.
func (r *ReadStats) ReadsByBlog(ctx context.Context, slug string) (BlogReadCount, error) {
	query, args, err := r.sb.
		Select("COUNT(*) AS reads", qualifiedSum).
		From("blog_reads").
		Where(sq.Eq{"blog_slug": slug}).
		ToSql()
	if err != nil {
		return BlogReadCount{}, err
	}
	out := BlogReadCount{BlogSlug: slug}
	if err := r.db.GetContext(ctx, &out, query, args...); err != nil {
		return BlogReadCount{}, fmt.Errorf("reads by blog: %w", err)
	}
	out.BlogSlug = slug
	return out, nil
}
