package model

import "time"

// Activity is an entry in the recent activity feed. Timestamp is in
// milliseconds since the epoch.
type Activity struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Icon      string    `json:"icon" gorm:"type:varchar(50)"`
	UserID    *uint     `json:"user_id,omitempty" gorm:"index"`
	UserType  string    `json:"user_type" gorm:"type:varchar(50)"`
	Timestamp int64     `json:"timestamp" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}
