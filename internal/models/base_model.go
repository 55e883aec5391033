package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IDSize is the column width of a textual UUID. A sized string column keeps
// the schema portable across sqlite, postgres and mysql, which lacks a uuid type.
const IDSize = 36

// BaseModel carries the identifier and timestamps shared by users and
// students. Rows are hard-deleted, so a removed id never resolves again.
type BaseModel struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random UUID when none was supplied.
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
