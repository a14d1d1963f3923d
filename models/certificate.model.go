package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	IssuanceStatusPending   = "PENDING"
	IssuanceStatusConfirmed = "CONFIRMED"
	IssuanceStatusFailed    = "FAILED"
)

// CertificateIssuance records one issuance attempt for a completed course.
// PENDING rows have a submitted transaction whose confirmation was not observed.
type CertificateIssuance struct {
	gorm.Model
	AttemptID      string         `json:"attempt_id" gorm:"uniqueIndex;size:36"`
	UserID         uint           `json:"user_id" gorm:"index;not null"`
	CourseID       uint           `json:"course_id" gorm:"index;not null"`
	CourseTitle    string         `json:"course_title"`
	StudentName    string         `json:"student_name"`
	StudentEmail   string         `json:"student_email"`
	WalletAddress  string         `json:"wallet_address"`
	CertificateID  string         `json:"certificate_id"`
	CertificateURI string         `json:"certificate_uri"`
	MetadataURI    string         `json:"metadata_uri"`
	TxHash         string         `json:"tx_hash" gorm:"index"`
	Status         string         `json:"status" gorm:"default:'PENDING'"` // PENDING, CONFIRMED, FAILED
	ErrorKind      string         `json:"error_kind"`
	GenericImage   bool           `json:"generic_image" gorm:"default:false"`
	Metadata       datatypes.JSON `json:"metadata"`
	CompletedAt    *time.Time     `json:"completed_at"`
	IsDeleted      bool           `gorm:"default:false"`
}
