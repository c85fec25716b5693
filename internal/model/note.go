package model

import "time"

// Entity types a note can be attached to
const (
	NoteEntityLead     = "lead"
	NoteEntityCustomer = "customer"
	NoteEntityMerchant = "merchant"
)

// Note is a free-text comment on a lead, customer or merchant. Exactly one
// of LeadID, CustomerID and MerchantID is set, matching EntityType.
type Note struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	UserID     uint      `json:"user_id" gorm:"index"`
	UserName   string    `json:"user_name" gorm:"type:varchar(255)"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(20);not null;index"`
	LeadID     *uint     `json:"lead_id,omitempty" gorm:"index"`
	CustomerID *uint     `json:"customer_id,omitempty" gorm:"index"`
	MerchantID *uint     `json:"merchant_id,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Lead     *Lead     `json:"-" gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
	Customer *Customer `json:"-" gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	Merchant *Merchant `json:"-" gorm:"foreignKey:MerchantID;constraint:OnDelete:CASCADE"`
}

// ValidNoteEntity reports whether s is an entity type notes can attach to
func ValidNoteEntity(s string) bool {
	return s == NoteEntityLead || s == NoteEntityCustomer || s == NoteEntityMerchant
}
