package models

import "time"

// User is the credential record behind a session. Profile shares its ID.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// All lists every model for migrations, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&Post{},
		&Like{},
		&Comment{},
	}
}
