package models

import (
	"time"
)

// User is a registered credential allowed to call the roster API.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`
}
