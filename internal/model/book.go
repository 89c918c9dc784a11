package model

import "github.com/pgvector/pgvector-go"

// Book is a row of the vector index. It lives in the retrieval database,
// which must have the pgvector extension installed.
type Book struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"`
	Title        string          `gorm:"not null;index"`
	Author       string          `gorm:"not null;default:''"`
	Difficulty   string          `gorm:"not null;default:'Intermediate'"`
	ShortSummary string          `gorm:"type:text"`
	FullSummary  string          `gorm:"type:text"`
	Embedding    pgvector.Vector `gorm:"type:vector"`
}
