package models

import (
	"time"

	"gorm.io/datatypes"
)

// Fasting statuses accepted on a report sheet.
const (
	StatusPuasaPenuh        = "PENUH"
	StatusPuasaSetengahHari = "SETENGAH HARI"
	StatusPuasaTidak        = "TIDAK PUASA"
)

// MaxSholatFardhu is the number of obligatory daily prayers.
const MaxSholatFardhu = 5

// IsValidStatusPuasa checks if a fasting status is one of the enumerated values
func IsValidStatusPuasa(status string) bool {
	switch status {
	case StatusPuasaPenuh, StatusPuasaSetengahHari, StatusPuasaTidak:
		return true
	}
	return false
}

// Base model with common fields. No soft delete: a deleted sheet must free its (student, date) slot.
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StringList is a JSON-encoded list column.
type StringList = datatypes.JSONSlice[string]

// Student model, keyed naturally by NIS
type Student struct {
	BaseModel
	NIS      string `json:"nis" gorm:"column:nis;size:50;not null;uniqueIndex:nis_idx"`
	Fullname string `json:"fullname" gorm:"size:255;not null"`
	Rombel   string `json:"rombel" gorm:"size:100;not null;index"`

	// Relationships
	Sheets []Sheet `json:"sheets,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

// Sheet is one student's report for one calendar date
type Sheet struct {
	BaseModel
	StudentID        uint       `json:"student_id" gorm:"not null;uniqueIndex:student_date_idx,priority:1"`
	Tanggal          string     `json:"tanggal" gorm:"size:10;not null;uniqueIndex:student_date_idx,priority:2;index"`
	SholatFardhu     StringList `json:"sholat_fardhu" gorm:"not null"`
	StatusPuasa      string     `json:"status_puasa" gorm:"size:20;not null"`
	AlasanTidakPuasa *string    `json:"alasan_tidak_puasa" gorm:"type:text"`
	IbadahSunnah     StringList `json:"ibadah_sunnah" gorm:"not null"`
	Tadarus          string     `json:"tadarus" gorm:"type:text;not null"`
	Kebiasaan        StringList `json:"kebiasaan" gorm:"not null"`
}
