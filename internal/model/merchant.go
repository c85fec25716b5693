package model

import "time"

// Merchant represents a seller on the marketplace, including its SaaS
// subscription and ZATCA compliance details
type Merchant struct {
	ID                      uint       `json:"id" gorm:"primaryKey"`
	Name                    string     `json:"name" gorm:"type:varchar(255);not null"`
	BusinessName            string     `json:"business_name" gorm:"type:varchar(255);not null"`
	Category                string     `json:"category" gorm:"type:varchar(100);not null"`
	Email                   string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone                   string     `json:"phone" gorm:"type:varchar(50)"`
	AccountStatus           string     `json:"account_status" gorm:"type:varchar(50);not null;default:'Active'"`
	MarketplaceStatus       string     `json:"marketplace_status" gorm:"type:varchar(50);not null;default:'Activated'"`
	JoinDate                time.Time  `json:"join_date"`
	Plan                    string     `json:"plan" gorm:"type:varchar(100)"`
	TrialFlag               bool       `json:"trial_flag" gorm:"not null;default:false"`
	SignUpDate              *time.Time `json:"sign_up_date"`
	SaasStartDate           *time.Time `json:"saas_start_date"`
	SaasEndDate             *time.Time `json:"saas_end_date"`
	CRID                    string     `json:"cr_id" gorm:"column:cr_id;type:varchar(100)"`
	CRCertificate           string     `json:"cr_certificate" gorm:"column:cr_certificate;type:text"`
	VATID                   string     `json:"vat_id" gorm:"column:vat_id;type:varchar(100)"`
	VATCertificate          string     `json:"vat_certificate" gorm:"column:vat_certificate;type:text"`
	ZatcaIdentificationType string     `json:"zatca_identification_type" gorm:"type:varchar(100)"`
	ZatcaID                 string     `json:"zatca_id" gorm:"type:varchar(100)"`
	VerificationStatus      string     `json:"verification_status" gorm:"type:varchar(100)"`
	LastPaymentDueDate      *time.Time `json:"last_payment_due_date"`
	RetentionStatus         string     `json:"retention_status" gorm:"type:varchar(100)"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`

	// Relations
	Mappings []MerchantUserMapping `json:"mappings,omitempty" gorm:"foreignKey:MerchantID;constraint:OnDelete:CASCADE"`
}
