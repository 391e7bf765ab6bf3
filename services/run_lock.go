package services

import (
	"context"
	"strings"

	"bestsellers-etl/config"

	"gorm.io/gorm"
)

// DefaultLockName is the advisory lock held for the duration of a run.
const DefaultLockName = "bestsellers_etl_run"

// RunLocker guards a run against a concurrent run on the same warehouse.
type RunLocker interface {
	Acquire(ctx context.Context, name string) (release func() error, err error)
}

// AdvisoryLock uses MySQL named locks. On other dialects it is a no-op.
type AdvisoryLock struct {
	db *gorm.DB
}

func NewAdvisoryLock(db *gorm.DB) *AdvisoryLock {
	if db == nil {
		db = config.DB
	}
	return &AdvisoryLock{db: db}
}

func (l *AdvisoryLock) Acquire(ctx context.Context, name string) (func() error, error) {
	if strings.TrimSpace(name) == "" || l.db.Dialector.Name() != "mysql" {
		return func() error { return nil }, nil
	}

	var ok int
	if err := l.db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", name).Scan(&ok).Error; err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, ErrEtlAlreadyRunning
	}

	return func() error {
		var released int
		return l.db.WithContext(persistentContext(ctx)).Raw("SELECT RELEASE_LOCK(?)", name).Scan(&released).Error
	}, nil
}
