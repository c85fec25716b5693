package model

import "time"

// Lead is a prospective customer or merchant moving through the lead pipeline.
// FormToken lets the prospect complete their own details without signing in.
type Lead struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Company          string    `json:"company" gorm:"type:varchar(255);not null"`
	ContactName      string    `json:"contact_name" gorm:"type:varchar(255);not null"`
	Email            string    `json:"email" gorm:"type:varchar(255);index"`
	Phone            string    `json:"phone" gorm:"type:varchar(50);index"`
	StatusID         uint      `json:"status_id" gorm:"not null;index"`
	SourceID         uint      `json:"source_id" gorm:"not null;index"`
	Value            float64   `json:"value" gorm:"not null;default:0"`
	BusinessSize     string    `json:"business_size" gorm:"type:varchar(100)"`
	NumberOfBranches int       `json:"number_of_branches" gorm:"not null;default:0"`
	FormToken        *string   `json:"form_token,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Status *LeadStatus `json:"status,omitempty" gorm:"foreignKey:StatusID"`
	Source *LeadSource `json:"source,omitempty" gorm:"foreignKey:SourceID"`
}
