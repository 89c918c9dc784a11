package model

import "time"

// CodePurpose is the reason a verification code was issued
type CodePurpose string

const (
	PurposeVerifyEmail    CodePurpose = "VERIFY_EMAIL"
	PurposeResetPassword  CodePurpose = "RESET_PASSWORD"
	PurposeChangePassword CodePurpose = "CHANGE_PASSWORD"
)

// Valid reports whether p is one of the known purposes
func (p CodePurpose) Valid() bool {
	switch p {
	case PurposeVerifyEmail, PurposeResetPassword, PurposeChangePassword:
		return true
	}

	return false
}

// VerificationCode is a single-use, time boxed challenge. Only the hash of
// the code is stored. Rows are never deleted by validation, only by the
// retention job.
type VerificationCode struct {
	ID         uint        `gorm:"primaryKey;autoIncrement"`
	UserID     string      `gorm:"not null;index:idx_code_lookup,priority:1"`
	Purpose    CodePurpose `gorm:"not null;index:idx_code_lookup,priority:2"`
	Consumed   bool        `gorm:"not null;default:false;index:idx_code_lookup,priority:3"`
	CodeHash   string      `gorm:"not null"`
	ExpiresAt  time.Time   `gorm:"not null;index"`
	Attempts   int         `gorm:"not null;default:0"`
	ConsumedAt *time.Time
	CreatedAt  time.Time `gorm:"not null;index"`
}
