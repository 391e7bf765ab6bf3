package services

import (
	"context"

	"bestsellers-etl/config"
	"bestsellers-etl/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApiRequestRecorder stores upstream calls in api_requests.
type ApiRequestRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewApiRequestRecorder(db *gorm.DB, logger *zap.Logger) *ApiRequestRecorder {
	if db == nil {
		db = config.DB
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApiRequestRecorder{db: db, logger: logger}
}

// RecordRequest inserts request; a failed insert is only logged.
func (r *ApiRequestRecorder) RecordRequest(ctx context.Context, request *models.ApiRequest) {
	if request == nil {
		return
	}
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		r.logger.Warn("failed to record api request",
			zap.String("endpoint", request.Endpoint),
			zap.Error(err))
	}
}
