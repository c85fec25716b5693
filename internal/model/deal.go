package model

import "time"

// Deal is an opportunity in the sales pipeline
type Deal struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Company     string    `json:"company" gorm:"type:varchar(255)"`
	ContactName string    `json:"contact_name" gorm:"type:varchar(255)"`
	Value       float64   `json:"value" gorm:"not null;default:0"`
	StageID     uint      `json:"stage_id" gorm:"not null;index"`
	Probability int       `json:"probability" gorm:"not null;default:0"`
	CloseDate   time.Time `json:"close_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Stage *DealStage `json:"stage,omitempty" gorm:"foreignKey:StageID"`
}
