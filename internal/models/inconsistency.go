package models

import (
	"time"
)

// LocationInconsistency records two wards claiming the same tag within the
// lookback window. Only a person clearing it mutates the row.
type LocationInconsistency struct {
	BaseModel
	PatientID             string     `gorm:"size:512;index;not null" json:"patientId"`
	FirstWard             string     `gorm:"size:100;not null" json:"firstWard"`
	SecondWard            string     `gorm:"size:100;not null" json:"secondWard"`
	TimeDifferenceMinutes float64    `json:"timeDifferenceMinutes"`
	DetectedAt            time.Time  `gorm:"index;not null" json:"detectedAt"`
	Cleared               bool       `gorm:"index" json:"cleared"`
	ClearedBy             string     `gorm:"size:255" json:"clearedBy,omitempty"`
	ClearedAt             *time.Time `json:"clearedAt,omitempty"`
	Notes                 string     `gorm:"type:text" json:"notes,omitempty"`
}

// TableName specifies the table name for LocationInconsistency
func (LocationInconsistency) TableName() string {
	return "patient_location_inconsistencies"
}
