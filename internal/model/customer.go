package model

import "time"

// Account statuses shared by customers and merchants
const (
	AccountActive      = "Active"
	AccountDeactivated = "Deactivated"
)

// Marketplace lifecycle statuses shared by customers and merchants
const (
	MarketplaceActivated   = "Activated"
	MarketplaceRetained    = "Retained"
	MarketplaceDormant     = "Dormant"
	MarketplaceChurned     = "Churned"
	MarketplaceResurrected = "Resurrected"
)

// AccountStatuses lists valid account statuses
var AccountStatuses = []string{AccountActive, AccountDeactivated}

// MarketplaceStatuses lists valid marketplace statuses
var MarketplaceStatuses = []string{
	MarketplaceActivated,
	MarketplaceRetained,
	MarketplaceDormant,
	MarketplaceChurned,
	MarketplaceResurrected,
}

// Customer is a buyer on the marketplace
type Customer struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"type:varchar(255);not null"`
	Company           string    `json:"company" gorm:"type:varchar(255);not null"`
	Email             string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone             string    `json:"phone" gorm:"type:varchar(50)"`
	AccountStatus     string    `json:"account_status" gorm:"type:varchar(50);not null;default:'Active'"`
	MarketplaceStatus string    `json:"marketplace_status" gorm:"type:varchar(50);not null;default:'Activated'"`
	JoinDate          time.Time `json:"join_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ValidAccountStatus reports whether s is a known account status
func ValidAccountStatus(s string) bool {
	return contains(AccountStatuses, s)
}

// ValidMarketplaceStatus reports whether s is a known marketplace status
func ValidMarketplaceStatus(s string) bool {
	return contains(MarketplaceStatuses, s)
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
