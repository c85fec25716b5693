package model

import "time"

// Roles
const (
	RoleUser   = "user"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Sign-in providers
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// ValidRole reports whether role is assignable
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleEditor || role == RoleAdmin
}

// User represents a CRM staff account
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Username  string    `json:"username" gorm:"type:varchar(100)"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Image     string    `json:"image" gorm:"type:text"`
	Phone     string    `json:"phone" gorm:"type:varchar(50);index"`
	Password  string    `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, empty for OAuth accounts
	Role      string    `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	Approved  bool      `json:"approved" gorm:"not null;default:false"`
	Provider  string    `json:"provider" gorm:"type:varchar(50);not null;default:'credentials'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the name shown on notes and activities
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
