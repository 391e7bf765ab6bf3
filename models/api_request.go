package models

import (
	"time"

	"gorm.io/datatypes"
)

// ApiRequest records one call made to the bestsellers API.
type ApiRequest struct {
	ID             uint64         `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID        *string        `json:"run_uuid,omitempty" gorm:"column:run_uuid;type:char(36);index"`
	RequestedDate  time.Time      `json:"requested_date" gorm:"column:requested_date;type:date;not null"`
	HTTPMethod     string         `json:"http_method" gorm:"column:http_method;type:varchar(8);not null"`
	Endpoint       string         `json:"endpoint" gorm:"column:endpoint;type:text;not null"`
	QueryParams    datatypes.JSON `json:"query_params,omitempty" gorm:"column:query_params"`
	ResponseStatus *int           `json:"response_status,omitempty" gorm:"column:response_status"`
	ResponseTimeMs *int           `json:"response_time_ms,omitempty" gorm:"column:response_time_ms"`
	ErrorMessage   *string        `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ApiRequest) TableName() string { return "api_requests" }
