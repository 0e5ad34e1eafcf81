package models

import (
	"time"
)

// NotificationType represents the rule that raised a notification
type NotificationType string

const (
	NotificationEarlyDischarge        NotificationType = "early_discharge"
	NotificationScanAfterDischarge    NotificationType = "scan_after_discharge"
	NotificationLocationInconsistency NotificationType = "location_inconsistency"
)

// Notification is a staff-facing alert about a patient.
type Notification struct {
	BaseModel
	PatientID        string           `gorm:"size:512;index;not null" json:"patientId"`
	NotificationType NotificationType `gorm:"size:40;index;not null" json:"notificationType"`
	Ward             *string          `gorm:"size:100" json:"ward"`
	Message          string           `gorm:"type:text" json:"message"`
	IsCleared        bool             `gorm:"index" json:"isCleared"`
	ClearedAt        *time.Time       `json:"clearedAt,omitempty"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "patient_notifications"
}
