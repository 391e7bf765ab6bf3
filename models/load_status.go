package models

import "time"

const (
	LoadStatusInProgress = "IN_PROGRESS"
	LoadStatusCompleted  = "COMPLETED"
	LoadStatusFailed     = "FAILED"
)

// LoadStatus tracks the processing state of one requested date and the date
// the upstream resolved it to.
type LoadStatus struct {
	ID              uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	RequestedDate   time.Time `json:"requested_date" gorm:"column:requested_date;type:date;not null;uniqueIndex:uk_load_status_requested_bestsellers"`
	BestsellersDate time.Time `json:"bestsellers_date" gorm:"column:bestsellers_date;type:date;not null;uniqueIndex:uk_load_status_requested_bestsellers;index:idx_load_status_bestsellers"`
	Status          string    `json:"status" gorm:"column:status;type:varchar(16);not null"`
	ErrorMessage    *string   `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"column:updated_at;precision:6;not null"`
}

func (LoadStatus) TableName() string { return "load_status" }
