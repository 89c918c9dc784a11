// Package model defines database models
package model

import "time"

type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	VerificationCodes []VerificationCode `gorm:"foreignKey:UserID" json:"-"`
	Shelf             []BookShelf        `gorm:"foreignKey:UserID" json:"-"`
	SearchEvents      []SearchEvent      `gorm:"foreignKey:UserID" json:"-"`
	Badges            []UserBadge        `gorm:"foreignKey:UserID" json:"-"`
}
