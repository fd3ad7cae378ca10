package models

import "time"

// User is an account that owns agents. Passwords are stored as bcrypt hashes.
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"size:256;not null;uniqueIndex"`
	PasswordHash string    `gorm:"size:128;not null"`
	Active       bool      `gorm:"default:true"`
	Admin        bool      `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
