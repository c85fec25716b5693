package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/lookup"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// Entity is a record type that can be imported and exported
type Entity string

const (
	Leads     Entity = "leads"
	Customers Entity = "customers"
	Merchants Entity = "merchants"
)

// ErrUnknownEntity is returned for entities other than leads, customers and merchants
var ErrUnknownEntity = errors.New("unknown entity")

// ParseEntity validates an entity name from a URL
func ParseEntity(s string) (Entity, error) {
	switch e := Entity(strings.ToLower(s)); e {
	case Leads, Customers, Merchants:
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Result summarizes an import
type Result struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
	Updated  int  `json:"updated"`
	Errors   int  `json:"errors"`
}

// Importer upserts spreadsheet rows and exports records
type Importer struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates an importer on db
func New(db *gorm.DB) *Importer {
	return &Importer{db: db, now: time.Now}
}

// Import upserts every row. Each row runs in its own transaction and a
// failing row is counted without stopping the import.
func (im *Importer) Import(ctx context.Context, entity Entity, rows []Row) (*Result, error) {
	var upsert func(tx *gorm.DB, row Row) (bool, error)
	switch entity {
	case Leads:
		upsert = im.upsertLead
	case Customers:
		upsert = im.upsertCustomer
	case Merchants:
		upsert = im.upsertMerchant
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}

	log := logger.FromContext(ctx)
	res := &Result{Success: true}

	for i, row := range rows {
		var updated bool
		err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			updated, err = upsert(tx, row)
			return err
		})

		switch {
		case err != nil:
			res.Errors++
			prometheus.RecordImportRow(string(entity), "error")
			log.Warn("Failed to import row",
				zap.String("entity", string(entity)),
				zap.Int("row", i+2), // header is row 1
				zap.Error(err))
		case updated:
			res.Updated++
			prometheus.RecordImportRow(string(entity), "updated")
		default:
			res.Imported++
			prometheus.RecordImportRow(string(entity), "imported")
		}
	}

	log.Info("Import finished",
		zap.String("entity", string(entity)),
		zap.Int("imported", res.Imported),
		zap.Int("updated", res.Updated),
		zap.Int("errors", res.Errors))

	return res, nil
}

// findExisting loads the first record matching email or phone. Empty values never match.
func findExisting(tx *gorm.DB, dest interface{}, email, phone string) (bool, error) {
	var q *gorm.DB
	switch {
	case email != "" && phone != "":
		q = tx.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		q = tx.Where("email = ?", email)
	case phone != "":
		q = tx.Where("phone = ?", phone)
	default:
		return false, nil
	}

	err := q.Order("id").First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (im *Importer) upsertLead(tx *gorm.DB, row Row) (bool, error) {
	value := 0.0
	if v := row.First("value"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, fmt.Errorf("invalid value %q", v)
		}
		value = parsed
	}

	branches := 0
	if v := row.First("numberofbranches", "number_of_branches"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return false, fmt.Errorf("invalid number of branches %q", v)
		}
		branches = parsed
	}

	status, err := lookup.LeadStatus(tx, orDefault(row.First("status"), model.DefaultLeadStatus))
	if err != nil {
		return false, fmt.Errorf("failed to resolve lead status: %w", err)
	}
	source, err := lookup.LeadSource(tx, orDefault(row.First("source"), model.DefaultImportLeadSource))
	if err != nil {
		return false, fmt.Errorf("failed to resolve lead source: %w", err)
	}

	email := row.First("email")
	phone := row.First("phone")
	fields := map[string]interface{}{
		"company":      orDefault(row.First("company"), "Unknown"),
		"contact_name": orDefault(row.First("contactname", "contact_name", "name"), "Unknown"),
		"email":        email,
		"phone":        phone,
		"status_id":    status.ID,
		"source_id":    source.ID,
		"value":        value,
	}
	if size := row.First("businesssize", "business_size"); size != "" {
		fields["business_size"] = size
	}
	if branches > 0 {
		fields["number_of_branches"] = branches
	}

	var existing model.Lead
	found, err := findExisting(tx, &existing, email, phone)
	if err != nil {
		return false, err
	}
	if found {
		return true, tx.Model(&existing).Updates(fields).Error
	}

	lead := model.Lead{
		Company:          fields["company"].(string),
		ContactName:      fields["contact_name"].(string),
		Email:            email,
		Phone:            phone,
		StatusID:         status.ID,
		SourceID:         source.ID,
		Value:            value,
		BusinessSize:     row.First("businesssize", "business_size"),
		NumberOfBranches: branches,
	}
	return false, tx.Create(&lead).Error
}

func (im *Importer) joinDate(row Row) (time.Time, error) {
	raw := row.First("joindate", "join_date")
	if raw == "" {
		return im.now(), nil
	}
	return model.ParseDate(raw)
}

func (im *Importer) upsertCustomer(tx *gorm.DB, row Row) (bool, error) {
	joinDate, err := im.joinDate(row)
	if err != nil {
		return false, err
	}

	email := row.First("email")
	phone := row.First("phone")
	customer := model.Customer{
		Name:              orDefault(row.First("name"), "Unknown"),
		Company:           orDefault(row.First("company"), "Unknown"),
		Email:             email,
		Phone:             phone,
		AccountStatus:     orDefault(row.First("accountstatus", "account_status", "status"), model.AccountActive),
		MarketplaceStatus: orDefault(row.First("marketplacestatus", "marketplace_status"), model.MarketplaceActivated),
		JoinDate:          joinDate,
	}

	var existing model.Customer
	found, err := findExisting(tx, &existing, email, phone)
	if err != nil {
		return false, err
	}
	if found {
		return true, tx.Model(&existing).Updates(map[string]interface{}{
			"name":               customer.Name,
			"company":            customer.Company,
			"email":              customer.Email,
			"phone":              customer.Phone,
			"account_status":     customer.AccountStatus,
			"marketplace_status": customer.MarketplaceStatus,
			"join_date":          customer.JoinDate,
		}).Error
	}
	return false, tx.Create(&customer).Error
}

func (im *Importer) upsertMerchant(tx *gorm.DB, row Row) (bool, error) {
	joinDate, err := im.joinDate(row)
	if err != nil {
		return false, err
	}

	email := row.First("email")
	phone := row.First("phone")
	merchant := model.Merchant{
		Name:              orDefault(row.First("name"), "Unknown"),
		BusinessName:      orDefault(row.First("businessname", "business_name", "name"), "Unknown"),
		Category:          orDefault(row.First("category"), "General"),
		Email:             email,
		Phone:             phone,
		AccountStatus:     orDefault(row.First("accountstatus", "account_status", "status"), model.AccountActive),
		MarketplaceStatus: orDefault(row.First("marketplacestatus", "marketplace_status"), model.MarketplaceActivated),
		JoinDate:          joinDate,
	}

	var existing model.Merchant
	found, err := findExisting(tx, &existing, email, phone)
	if err != nil {
		return false, err
	}
	if found {
		return true, tx.Model(&existing).Updates(map[string]interface{}{
			"name":               merchant.Name,
			"business_name":      merchant.BusinessName,
			"category":           merchant.Category,
			"email":              merchant.Email,
			"phone":              merchant.Phone,
			"account_status":     merchant.AccountStatus,
			"marketplace_status": merchant.MarketplaceStatus,
			"join_date":          merchant.JoinDate,
		}).Error
	}
	return false, tx.Create(&merchant).Error
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
