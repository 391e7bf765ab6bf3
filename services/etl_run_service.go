package services

import (
	"context"
	"errors"
	"time"

	"bestsellers-etl/config"
	"bestsellers-etl/models"
	"bestsellers-etl/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EtlRunService struct {
	db *gorm.DB
}

func NewEtlRunService(db *gorm.DB) *EtlRunService {
	if db == nil {
		db = config.DB
	}
	return &EtlRunService{db: db}
}

func (s *EtlRunService) Start(ctx context.Context, mode, trigger string, start, end time.Time) (*models.EtlRun, error) {
	if trigger == "" {
		trigger = "unknown"
	}
	run := &models.EtlRun{
		RunUUID:       uuid.NewString(),
		Mode:          mode,
		TriggerSource: trigger,
		Status:        models.EtlRunStatusRunning,
		RangeStart:    utils.TruncateDay(start),
		RangeEnd:      utils.TruncateDay(end),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *EtlRunService) MarkSuccess(ctx context.Context, runID uint, summary *RunSummary) error {
	return s.finish(ctx, runID, models.EtlRunStatusSuccess, summary, nil)
}

func (s *EtlRunService) MarkFailure(ctx context.Context, runID uint, summary *RunSummary, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.finish(ctx, runID, models.EtlRunStatusFailed, summary, &msg)
}

func (s *EtlRunService) finish(ctx context.Context, runID uint, status string, summary *RunSummary, errMsg *string) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now(),
	}
	if summary != nil {
		updates["dates_succeeded"] = summary.Succeeded
		updates["dates_skipped"] = summary.Skipped
		updates["dates_failed"] = summary.Failed
	}
	if errMsg != nil {
		updates["error_message"] = truncateMessage(*errMsg)
	}
	res := s.db.WithContext(persistentContext(ctx)).Model(&models.EtlRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEtlRunNotFound
	}
	return nil
}

// Recent lists the latest runs, newest first.
func (s *EtlRunService) Recent(ctx context.Context, limit int) ([]models.EtlRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var runs []models.EtlRun
	if err := s.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *EtlRunService) GetByUUID(ctx context.Context, runUUID string) (*models.EtlRun, error) {
	var run models.EtlRun
	if err := s.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEtlRunNotFound
		}
		return nil, err
	}
	return &run, nil
}
