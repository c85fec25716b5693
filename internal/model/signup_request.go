package model

import "time"

// Signup request statuses
const (
	SignupPending  = "pending"
	SignupApproved = "approved"
	SignupRejected = "rejected"
)

// SignupRequest is a request for CRM access awaiting admin approval
type SignupRequest struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Image     string    `json:"image" gorm:"type:text"`
	Provider  string    `json:"provider" gorm:"type:varchar(50);not null;default:'google'"`
	Status    string    `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
