package model

import "time"

// Proposal statuses
const (
	ProposalDraft    = "Draft"
	ProposalSent     = "Sent"
	ProposalViewed   = "Viewed"
	ProposalAccepted = "Accepted"
	ProposalRejected = "Rejected"
)

// ProposalStatuses lists valid proposal statuses
var ProposalStatuses = []string{
	ProposalDraft,
	ProposalSent,
	ProposalViewed,
	ProposalAccepted,
	ProposalRejected,
}

// DefaultCurrency is used when a proposal is created without a currency
const DefaultCurrency = "SAR"

// Proposal is a commercial offer sent to a client
type Proposal struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Title         string     `json:"title" gorm:"type:varchar(255);not null"`
	ClientName    string     `json:"client_name" gorm:"type:varchar(255);not null"`
	ClientCompany string     `json:"client_company" gorm:"type:varchar(255)"`
	Value         float64    `json:"value" gorm:"not null;default:0"`
	Currency      string     `json:"currency" gorm:"type:varchar(10);not null;default:'SAR'"`
	Status        string     `json:"status" gorm:"type:varchar(50);not null;default:'Draft'"`
	ValidUntil    time.Time  `json:"valid_until"`
	SentDate      *time.Time `json:"sent_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ValidProposalStatus reports whether s is a known proposal status
func ValidProposalStatus(s string) bool {
	return contains(ProposalStatuses, s)
}
