package models

import "time"

const (
	EtlRunStatusRunning = "running"
	EtlRunStatusSuccess = "success"
	EtlRunStatusFailed  = "failed"

	EtlRunModeHistorical  = "historical"
	EtlRunModeIncremental = "incremental"
)

type EtlRun struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	RunUUID       string     `json:"run_uuid" gorm:"column:run_uuid;type:char(36);not null;uniqueIndex"`
	Mode          string     `json:"mode" gorm:"column:mode;type:varchar(16);not null"`
	TriggerSource string     `json:"trigger_source" gorm:"column:trigger_source;type:varchar(64);not null"`
	Status        string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'running'"`
	RangeStart    time.Time  `json:"range_start" gorm:"column:range_start;type:date;not null"`
	RangeEnd      time.Time  `json:"range_end" gorm:"column:range_end;type:date;not null"`
	ErrorMessage  *string    `json:"error_message" gorm:"column:error_message;type:text"`
	StartedAt     time.Time  `json:"started_at" gorm:"column:started_at;autoCreateTime"`
	FinishedAt    *time.Time `json:"finished_at" gorm:"column:finished_at"`

	DatesSucceeded uint `json:"dates_succeeded" gorm:"column:dates_succeeded;not null;default:0"`
	DatesSkipped   uint `json:"dates_skipped" gorm:"column:dates_skipped;not null;default:0"`
	DatesFailed    uint `json:"dates_failed" gorm:"column:dates_failed;not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (EtlRun) TableName() string { return "etl_runs" }
