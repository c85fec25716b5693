// Package seed loads lookup tables, the first admin account and demo
// records. Every record is matched on its unique name, email or title, so
// running it twice changes nothing.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"qawafel-crm/internal/lookup"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
)

//go:embed seed.yaml
var defaultData []byte

// Lookup is a lead status or deal stage entry
type Lookup struct {
	Name   string `yaml:"name"`
	Color  string `yaml:"color"`
	Order  int    `yaml:"order"`
	IsWon  bool   `yaml:"is_won"`
	IsLost bool   `yaml:"is_lost"`
}

// Admin is the first administrator account
type Admin struct {
	Email    string `yaml:"email"`
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
}

// Customer is a demo customer
type Customer struct {
	Name              string `yaml:"name"`
	Company           string `yaml:"company"`
	Email             string `yaml:"email"`
	Phone             string `yaml:"phone"`
	AccountStatus     string `yaml:"account_status"`
	MarketplaceStatus string `yaml:"marketplace_status"`
	JoinDate          string `yaml:"join_date"`
}

// Merchant is a demo merchant
type Merchant struct {
	Name              string `yaml:"name"`
	BusinessName      string `yaml:"business_name"`
	Category          string `yaml:"category"`
	Email             string `yaml:"email"`
	Phone             string `yaml:"phone"`
	AccountStatus     string `yaml:"account_status"`
	MarketplaceStatus string `yaml:"marketplace_status"`
	JoinDate          string `yaml:"join_date"`
	SignUpDate        string `yaml:"sign_up_date"`
	Plan              string `yaml:"plan"`
	TrialFlag         bool   `yaml:"trial_flag"`
	SaasStartDate     string `yaml:"saas_start_date"`
	SaasEndDate       string `yaml:"saas_end_date"`
	RetentionStatus   string `yaml:"retention_status"`
}

// Lead is a demo lead. Status and source are lookup names.
type Lead struct {
	Company     string  `yaml:"company"`
	ContactName string  `yaml:"contact_name"`
	Email       string  `yaml:"email"`
	Phone       string  `yaml:"phone"`
	Status      string  `yaml:"status"`
	Source      string  `yaml:"source"`
	Value       float64 `yaml:"value"`
}

// Deal is a demo deal. Stage is a deal stage name.
type Deal struct {
	Title       string  `yaml:"title"`
	Company     string  `yaml:"company"`
	ContactName string  `yaml:"contact_name"`
	Stage       string  `yaml:"stage"`
	Value       float64 `yaml:"value"`
	Probability int     `yaml:"probability"`
	CloseDate   string  `yaml:"close_date"`
}

// Proposal is a demo proposal
type Proposal struct {
	Title         string  `yaml:"title"`
	ClientName    string  `yaml:"client_name"`
	ClientCompany string  `yaml:"client_company"`
	Value         float64 `yaml:"value"`
	Currency      string  `yaml:"currency"`
	Status        string  `yaml:"status"`
	ValidUntil    string  `yaml:"valid_until"`
	SentDate      string  `yaml:"sent_date"`
}

// Data is the content of a seed file
type Data struct {
	LeadStatuses []Lookup   `yaml:"lead_statuses"`
	LeadSources  []string   `yaml:"lead_sources"`
	DealStages   []Lookup   `yaml:"deal_stages"`
	Admin        Admin      `yaml:"admin"`
	Customers    []Customer `yaml:"customers"`
	Merchants    []Merchant `yaml:"merchants"`
	Leads        []Lead     `yaml:"leads"`
	Deals        []Deal     `yaml:"deals"`
	Proposals    []Proposal `yaml:"proposals"`
}

// Options control what Run writes
type Options struct {
	// AdminPassword is hashed into the admin account when it is created
	AdminPassword string
	// Demo adds the demo customers, merchants, leads, deals and proposals
	Demo bool
}

// Default returns the embedded seed data
func Default() (*Data, error) {
	return Parse(defaultData)
}

// Parse decodes seed data from YAML
func Parse(b []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return &d, nil
}

type step struct {
	name string
	fn   func(*gorm.DB) error
}

// Run writes the seed data in one transaction
func Run(ctx context.Context, db *gorm.DB, data *Data, opts Options) error {
	log := logger.FromContext(ctx)

	steps := []step{
		{"lookups", data.seedLookups},
		{"admin", func(tx *gorm.DB) error { return data.seedAdmin(tx, opts.AdminPassword) }},
	}
	if opts.Demo {
		steps = append(steps, step{"demo", data.seedDemo})
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range steps {
			if err := s.fn(tx); err != nil {
				return fmt.Errorf("seeding %s: %w", s.name, err)
			}
			log.Info("Seeded", zap.String("step", s.name))
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Seeding completed", zap.Bool("demo", opts.Demo))
	return nil
}

func (d *Data) seedLookups(tx *gorm.DB) error {
	for _, s := range d.LeadStatuses {
		status := model.LeadStatus{Name: s.Name}
		err := tx.Where("name = ?", s.Name).
			Attrs(model.LeadStatus{Color: s.Color, SortOrder: s.Order}).
			FirstOrCreate(&status).Error
		if err != nil {
			return err
		}
	}
	for _, name := range d.LeadSources {
		source := model.LeadSource{Name: name}
		if err := tx.Where("name = ?", name).FirstOrCreate(&source).Error; err != nil {
			return err
		}
	}
	for _, s := range d.DealStages {
		stage := model.DealStage{Name: s.Name}
		err := tx.Where("name = ?", s.Name).
			Attrs(model.DealStage{Color: s.Color, SortOrder: s.Order, IsWon: s.IsWon, IsLost: s.IsLost}).
			FirstOrCreate(&stage).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Data) seedAdmin(tx *gorm.DB, password string) error {
	if d.Admin.Email == "" {
		return nil
	}
	if password == "" {
		return fmt.Errorf("admin password is empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{Email: d.Admin.Email}
	return tx.Where("email = ?", d.Admin.Email).
		Attrs(model.User{
			Username: d.Admin.Username,
			Name:     d.Admin.Name,
			Password: string(hashed),
			Role:     model.RoleAdmin,
			Approved: true,
			Provider: model.ProviderCredentials,
		}).
		FirstOrCreate(&admin).Error
}

func (d *Data) seedDemo(tx *gorm.DB) error {
	for _, c := range d.Customers {
		joinDate, err := date(c.JoinDate)
		if err != nil {
			return err
		}
		customer := model.Customer{Email: c.Email}
		err = tx.Where("email = ?", c.Email).
			Attrs(model.Customer{
				Name:              c.Name,
				Company:           c.Company,
				Phone:             c.Phone,
				AccountStatus:     c.AccountStatus,
				MarketplaceStatus: c.MarketplaceStatus,
				JoinDate:          joinDate,
			}).
			FirstOrCreate(&customer).Error
		if err != nil {
			return err
		}
	}

	for _, m := range d.Merchants {
		merchant, err := m.model()
		if err != nil {
			return err
		}
		if err := tx.Where("email = ?", m.Email).Attrs(*merchant).FirstOrCreate(merchant).Error; err != nil {
			return err
		}
	}

	for _, l := range d.Leads {
		status, err := lookup.LeadStatus(tx, l.Status)
		if err != nil {
			return err
		}
		source, err := lookup.LeadSource(tx, l.Source)
		if err != nil {
			return err
		}
		lead := model.Lead{Email: l.Email}
		err = tx.Where("email = ?", l.Email).
			Attrs(model.Lead{
				Company:     l.Company,
				ContactName: l.ContactName,
				Phone:       l.Phone,
				StatusID:    status.ID,
				SourceID:    source.ID,
				Value:       l.Value,
			}).
			FirstOrCreate(&lead).Error
		if err != nil {
			return err
		}
	}

	for _, dl := range d.Deals {
		stage, err := lookup.DealStage(tx, dl.Stage)
		if err != nil {
			return err
		}
		closeDate, err := date(dl.CloseDate)
		if err != nil {
			return err
		}
		deal := model.Deal{Title: dl.Title}
		err = tx.Where("title = ?", dl.Title).
			Attrs(model.Deal{
				Company:     dl.Company,
				ContactName: dl.ContactName,
				StageID:     stage.ID,
				Value:       dl.Value,
				Probability: dl.Probability,
				CloseDate:   closeDate,
			}).
			FirstOrCreate(&deal).Error
		if err != nil {
			return err
		}
	}

	for _, p := range d.Proposals {
		validUntil, err := date(p.ValidUntil)
		if err != nil {
			return err
		}
		sentDate, err := optionalDate(p.SentDate)
		if err != nil {
			return err
		}
		proposal := model.Proposal{Title: p.Title}
		err = tx.Where("title = ?", p.Title).
			Attrs(model.Proposal{
				ClientName:    p.ClientName,
				ClientCompany: p.ClientCompany,
				Value:         p.Value,
				Currency:      p.Currency,
				Status:        p.Status,
				ValidUntil:    validUntil,
				SentDate:      sentDate,
			}).
			FirstOrCreate(&proposal).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (m Merchant) model() (*model.Merchant, error) {
	joinDate, err := date(m.JoinDate)
	if err != nil {
		return nil, err
	}
	merchant := &model.Merchant{
		Name:              m.Name,
		BusinessName:      m.BusinessName,
		Category:          m.Category,
		Email:             m.Email,
		Phone:             m.Phone,
		AccountStatus:     m.AccountStatus,
		MarketplaceStatus: m.MarketplaceStatus,
		JoinDate:          joinDate,
		Plan:              m.Plan,
		TrialFlag:         m.TrialFlag,
		RetentionStatus:   m.RetentionStatus,
	}
	if merchant.SignUpDate, err = optionalDate(m.SignUpDate); err != nil {
		return nil, err
	}
	if merchant.SaasStartDate, err = optionalDate(m.SaasStartDate); err != nil {
		return nil, err
	}
	if merchant.SaasEndDate, err = optionalDate(m.SaasEndDate); err != nil {
		return nil, err
	}
	return merchant, nil
}

func date(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return model.ParseDate(s)
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
