package models

import "time"

// User roles. Admins may manage votings and settings; regular users vote.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account of the mobile app or the admin panel.
type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"type:varchar(16);not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
