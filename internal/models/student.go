package models

// Student is a single roster record. Identifiers come from BaseModel and are
// random UUIDs, so a deleted record's id is never handed out again.
type Student struct {
	BaseModel

	Surname string `gorm:"size:50;not null;index" json:"surname"`
	Name    string `gorm:"size:50;not null" json:"name"`
	Faculty string `gorm:"size:50;not null;index" json:"faculty"`
	Course  string `gorm:"size:50;not null;index" json:"course"`
	Grade   int    `gorm:"not null;index" json:"grade"`
}
