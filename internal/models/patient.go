package models

import (
	"time"
)

// PatientStatus represents the admission state of a patient
type PatientStatus string

const (
	StatusAdmitted   PatientStatus = "admitted"
	StatusDischarged PatientStatus = "discharged"
)

// Patient is a registered patient. PatientID is the external identifier printed
// on the wristband; ID is the stored record identifier. Every column holding an
// external patient id is varchar(512), the width of a raw scanned tag.
type Patient struct {
	BaseModel
	PatientID        string        `gorm:"size:512;uniqueIndex;not null" json:"patientId"`
	FullName         string        `gorm:"size:255" json:"fullName"`
	RegistrationDate time.Time     `gorm:"not null" json:"registrationDate"`
	DischargeDate    *time.Time    `json:"dischargeDate,omitempty"`
	Status           PatientStatus `gorm:"size:20;default:'admitted'" json:"status"`
}

// TableName specifies the table name for Patient
func (Patient) TableName() string {
	return "patients"
}

// IsDischarged reports whether the patient has left the hospital.
func (p *Patient) IsDischarged() bool {
	return p.Status == StatusDischarged
}
