package database

import (
	"context"
	"fmt"
	"time"

	"laporan_ramadhan/config"
	"laporan_ramadhan/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

// Connect opens the database (fatal on failure) and Redis (optional).
func Connect(cfg *config.Config) {
	connectDatabase(cfg)
	connectRedis(cfg)
}

func gormConfig(env string) *gorm.Config {
	gormLogger := logger.Default.LogMode(logger.Silent)
	if env == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	return &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	}
}

func connectDatabase(cfg *config.Config) {
	var err error
	var lastErr error

	// retry covers a database container that is still starting
	for attempt := 1; attempt <= 8; attempt++ {
		DB, err = gorm.Open(mysql.Open(cfg.GetDSN()), gormConfig(cfg.AppEnv))
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		logrus.WithError(err).WithField("attempt", attempt).Warn("Database connect attempt failed")
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if lastErr != nil {
		logrus.WithError(lastErr).Fatal("Failed to connect to database after retries")
	}

	logrus.Info("Database connected successfully")

	sqlDB, err := DB.DB()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get database instance")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(55 * time.Minute)

	if cfg.SkipMigrate {
		logrus.Info("SKIP_MIGRATE set, skipping auto migration")
		return
	}
	if err := AutoMigrate(DB); err != nil {
		logrus.WithError(err).Fatal("Auto migration failed")
	}
	logrus.Info("Database migration completed successfully")
}

// AutoMigrate creates or updates the students and sheets tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Sheet{},
	)
}

// OpenSQLite opens a migrated SQLite database at path with foreign keys enforced.
// Tests use it with a file under t.TempDir().
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), gormConfig("test"))
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// connectRedis leaves RedisClient nil when Redis is unreachable; callers fall back to
// uncached identity lookups.
func connectRedis(cfg *config.Config) {
	if cfg.RedisHost == "" {
		logrus.Info("REDIS_HOST not set, continuing without Redis")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis connection failed, continuing without student cache")
		_ = client.Close()
		return
	}

	RedisClient = client
	logrus.Info("Redis connected successfully")
}

// GetRedisClient returns the Redis client instance, or nil.
func GetRedisClient() *redis.Client {
	return RedisClient
}

// Close closes the database and Redis connections
func Close() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing Redis connection")
		}
	}
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		logrus.WithError(err).Warn("Error getting database instance")
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Warn("Error closing database connection")
		return
	}
	logrus.Info("Database connection closed")
}
