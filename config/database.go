package config

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the warehouse connection described by settings and stores it
// in DB. The pool is capped at one connection: a run holds a single
// connection for its whole duration.
func InitDB(settings *Settings) (*gorm.DB, error) {
	dialector, err := dialectorFor(settings.Database)
	if err != nil {
		return nil, err
	}

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if settings.IsProduction() && !settings.DebugSQL {
		logLevel = logger.Warn
	}

	config := &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logLevel,
				SlowThreshold:             2 * time.Second,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	DB = db
	return db, nil
}

// CloseDB closes the connection opened by InitDB.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(s DatabaseSettings) (gorm.Dialector, error) {
	switch s.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			s.User,
			s.Password,
			s.Host,
			s.Port,
			s.Name,
		)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(s.Name + "?_foreign_keys=on&_journal_mode=WAL"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", s.Driver)
	}
}
