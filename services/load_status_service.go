package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bestsellers-etl/config"
	"bestsellers-etl/models"
	"bestsellers-etl/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusTracker reads and writes per-date load status. It never enforces the
// IN_PROGRESS -> COMPLETED|FAILED transitions; callers decide what to do
// with the status they read.
type StatusTracker interface {
	LatestStatus(ctx context.Context, resolvedDate time.Time) (string, bool)
	SetStatus(ctx context.Context, requestedDate, resolvedDate time.Time, status string, errMsg *string)
}

// LoadStatusFilter narrows List results.
type LoadStatusFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// LoadStatusService persists load status rows. Failures are logged and
// swallowed: a status that cannot be read is reported as absent.
type LoadStatusService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewLoadStatusService constructs a LoadStatusService.
func NewLoadStatusService(db *gorm.DB, logger *zap.Logger) *LoadStatusService {
	if db == nil {
		db = config.DB
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoadStatusService{db: db, logger: logger, now: time.Now}
}

// LatestStatus returns the most recently updated status recorded for the
// resolved date, across all requested dates.
func (s *LoadStatusService) LatestStatus(ctx context.Context, resolvedDate time.Time) (string, bool) {
	row, err := s.latest(ctx, resolvedDate)
	if err != nil {
		s.logger.Error("error checking load status",
			zap.String("bestsellers_date", utils.FormatDate(resolvedDate)),
			zap.Error(err))
		return "", false
	}
	if row == nil {
		return "", false
	}
	return row.Status, true
}

// Latest returns the newest status row for the resolved date, nil when none exists.
func (s *LoadStatusService) Latest(ctx context.Context, resolvedDate time.Time) (*models.LoadStatus, error) {
	return s.latest(ctx, resolvedDate)
}

func (s *LoadStatusService) latest(ctx context.Context, resolvedDate time.Time) (*models.LoadStatus, error) {
	var row models.LoadStatus
	err := s.db.WithContext(ctx).
		Where("bestsellers_date = ?", utils.TruncateDay(resolvedDate)).
		Order("updated_at DESC").
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStatusTracking, err)
	}
	return &row, nil
}

// SetStatus upserts the status for (requestedDate, resolvedDate) and always
// refreshes updated_at. The write is committed on its own, outside any load
// transaction.
func (s *LoadStatusService) SetStatus(ctx context.Context, requestedDate, resolvedDate time.Time, status string, errMsg *string) {
	if errMsg != nil {
		msg := truncateMessage(*errMsg)
		errMsg = &msg
	}
	row := &models.LoadStatus{
		RequestedDate:   utils.TruncateDay(requestedDate),
		BestsellersDate: utils.TruncateDay(resolvedDate),
		Status:          status,
		ErrorMessage:    errMsg,
		UpdatedAt:       s.nextTimestamp(),
	}

	err := s.db.WithContext(persistentContext(ctx)).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "requested_date"}, {Name: "bestsellers_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error_message", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		s.logger.Error("error updating load status",
			zap.String("requested_date", utils.FormatDate(requestedDate)),
			zap.String("bestsellers_date", utils.FormatDate(resolvedDate)),
			zap.String("status", status),
			zap.Error(fmt.Errorf("%w: %v", ErrStatusTracking, err)))
	}
}

// List returns status rows ordered from most to least recently updated.
func (s *LoadStatusService) List(ctx context.Context, filter LoadStatusFilter) ([]models.LoadStatus, error) {
	query := s.db.WithContext(ctx).Model(&models.LoadStatus{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("bestsellers_date >= ?", utils.TruncateDay(*filter.From))
	}
	if filter.To != nil {
		query = query.Where("bestsellers_date <= ?", utils.TruncateDay(*filter.To))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []models.LoadStatus
	if err := query.Order("updated_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusTracking, err)
	}
	return rows, nil
}

// nextTimestamp returns the current time at microsecond precision, bumped
// past the previous value so rapid successive writes stay strictly ordered.
func (s *LoadStatusService) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}
