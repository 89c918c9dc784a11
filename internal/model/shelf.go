package model

import "time"

type ShelfStatus string

const (
	ShelfWant    ShelfStatus = "WANT"
	ShelfReading ShelfStatus = "READING"
	ShelfRead    ShelfStatus = "READ"
)

func (s ShelfStatus) Valid() bool {
	switch s {
	case ShelfWant, ShelfReading, ShelfRead:
		return true
	}

	return false
}

type BookShelf struct {
	ID      uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  string      `gorm:"not null;index" json:"-"`
	Title   string      `gorm:"not null" json:"title"`
	Author  string      `json:"author"`
	Status  ShelfStatus `gorm:"not null;default:WANT;index" json:"status"`
	AddedAt time.Time   `gorm:"not null" json:"added_at"`
}

type SearchEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"not null;index" json:"-"`
	Query     string    `gorm:"not null" json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

type UserBadge struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_user_badge" json:"-"`
	Code        string    `gorm:"not null;uniqueIndex:idx_user_badge" json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AwardedAt   time.Time `gorm:"not null" json:"awarded_at"`
}
