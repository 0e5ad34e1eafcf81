package models

import (
	"time"

	"gorm.io/gorm"
)

// LabOutcome is the culture result of a lab test. A nil outcome means pending.
type LabOutcome string

const (
	LabPositive LabOutcome = "positive"
	LabNegative LabOutcome = "negative"
	LabResolved LabOutcome = "resolved"
)

// LabResult is a lab culture result for a patient. PatientID references patients.id.
type LabResult struct {
	BaseModel
	PatientID   string      `gorm:"size:36;index;not null" json:"patientId"`
	TestName    string      `gorm:"size:255" json:"testName"`
	Result      *LabOutcome `gorm:"size:20;index" json:"result"`
	Notes       string      `gorm:"type:text" json:"notes"`
	CollectedAt time.Time   `json:"collectedAt"`

	Patient Patient `gorm:"foreignKey:PatientID" json:"-"`
}

// TableName specifies the table name for LabResult
func (LabResult) TableName() string {
	return "lab_results"
}

// PatientLabResult is a read-only row of the patient_lab_results view.
type PatientLabResult struct {
	LabResultID     string      `json:"labResultId"`
	PatientRecordID string      `json:"patientRecordId"`
	PatientID       string      `json:"patientId"`
	FullName        string      `json:"fullName"`
	Status          string      `json:"status"`
	TestName        string      `json:"testName"`
	Result          *LabOutcome `json:"result"`
	Notes           string      `json:"notes"`
	CollectedAt     time.Time   `json:"collectedAt"`
}

// TableName specifies the view name for PatientLabResult
func (PatientLabResult) TableName() string {
	return "patient_lab_results"
}

// PatientLabResultsQuery is the definition of the patient_lab_results view.
func PatientLabResultsQuery(db *gorm.DB) *gorm.DB {
	return db.Table("lab_results").
		Select("lab_results.id AS lab_result_id, patients.id AS patient_record_id, " +
			"patients.patient_id, patients.full_name, patients.status, lab_results.test_name, " +
			"lab_results.result, lab_results.notes, lab_results.collected_at").
		Joins("JOIN patients ON patients.id = lab_results.patient_id")
}

// Outcome returns a pointer to o, for building LabResult values.
func Outcome(o LabOutcome) *LabOutcome {
	return &o
}
