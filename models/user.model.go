package models

import (
	"gorm.io/gorm"
)

// User is a student (or admin) profile. WalletAddress receives certificates.
type User struct {
	gorm.Model
	Name          string `gorm:"default:''"`
	Email         string `gorm:"unique;not null"`
	Role          string `gorm:"default:'USER'"` // USER, ADMIN
	WalletAddress string `gorm:"default:''"`
	IsDeleted     bool   `gorm:"default:false"`
}
