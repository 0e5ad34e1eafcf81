package models

import (
	"time"
)

// ScanLog is one recorded QR scan at a ward checkpoint. Rows are append-only.
// PatientTag keeps the raw scanned string verbatim; PatientID and TagType are
// the decoded view of it at write time.
type ScanLog struct {
	BaseModel
	PatientTag    string    `gorm:"size:512;index;not null" json:"patientTag"`
	PatientID     string    `gorm:"size:512;index" json:"patientId"`
	TagType       string    `gorm:"size:20" json:"tagType"`
	Ward          string    `gorm:"size:100;index;not null" json:"ward"`
	ScannedAt     time.Time `gorm:"index;not null" json:"scannedAt"`
	ScannedBy     string    `gorm:"size:255" json:"scannedBy"`
	Authoritative bool      `json:"authoritative"`
}

// TableName specifies the table name for ScanLog
func (ScanLog) TableName() string {
	return "ward_scan_logs"
}
