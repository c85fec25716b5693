package model

import "time"

// MerchantUser is a person working for one or more merchants
type MerchantUser struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone     string    `json:"phone" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Mappings []MerchantUserMapping `json:"mappings,omitempty" gorm:"foreignKey:MerchantUserID;constraint:OnDelete:CASCADE"`
}

// MerchantUserMapping links a merchant user to a merchant with an optional role
type MerchantUserMapping struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	MerchantID     uint      `json:"merchant_id" gorm:"not null;uniqueIndex:idx_merchant_user_mapping"`
	MerchantUserID uint      `json:"merchant_user_id" gorm:"not null;uniqueIndex:idx_merchant_user_mapping;index"`
	Role           *string   `json:"role" gorm:"type:varchar(100)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations (optional for GORM to preload)
	MerchantUser *MerchantUser `json:"merchant_user,omitempty" gorm:"foreignKey:MerchantUserID"`
}
