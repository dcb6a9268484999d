package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of marketplace roles.
type Role string

const (
	RoleBuyer     Role = "buyer"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleDeveloper, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is a registered marketplace participant.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Actor returns the identity used for authorization decisions.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Actor is the authenticated identity executing a request.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Is reports whether the actor holds role.
func (a Actor) Is(role Role) bool {
	return a.Role == role
}
