package model

import "time"

// LeadStatus is a pipeline status a lead can be in, e.g. "New" or "Qualified"
type LeadStatus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Color     string    `json:"color" gorm:"type:varchar(100)"`
	SortOrder int       `json:"order" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadSource is where a lead came from
type LeadSource struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DealStage is a sales pipeline stage. At most one of IsWon and IsLost is set.
type DealStage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Color     string    `json:"color" gorm:"type:varchar(100)"`
	SortOrder int       `json:"order" gorm:"not null;default:0"`
	IsWon     bool      `json:"is_won" gorm:"not null;default:false"`
	IsLost    bool      `json:"is_lost" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Default lookup names used when a lead or deal is created without one
const (
	DefaultLeadStatus       = "New"
	DefaultLeadSource       = "Website"
	DefaultImportLeadSource = "CSV Import"
	DefaultDealStage        = "New"
)
