// Package models defines the persisted entities and the shared error taxonomy.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is the coarse permission tier stored on a profile.
type Role string

const (
	RoleClient  Role = "client"
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a stored value onto a known role. Anything unrecognized is a client.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePartner:
		return RolePartner
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleClient
	}
}

// Scan implements sql.Scanner so unknown column values never leak into the domain.
func (r *Role) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*r = RoleClient
	case string:
		*r = ParseRole(v)
	case []byte:
		*r = ParseRole(string(v))
	default:
		return fmt.Errorf("unsupported role type %T", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	return string(ParseRole(string(r))), nil
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

// Profile holds the public, user-editable half of an account.
type Profile struct {
	ID              uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FirstName       string    `gorm:"size:100" json:"first_name"`
	LastName        string    `gorm:"size:100" json:"last_name"`
	Phone           string    `gorm:"size:40" json:"phone,omitempty"`
	Address         string    `gorm:"size:255" json:"address,omitempty"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	Role            Role      `gorm:"type:varchar(16);default:client" json:"role"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return TableProfiles }

// DisplayName joins first and last name, falling back to a placeholder.
func (p *Profile) DisplayName() string {
	if p == nil {
		return "Anonymous"
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return "Anonymous"
	}
	return name
}
