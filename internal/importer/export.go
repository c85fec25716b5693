package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"qawafel-crm/internal/model"
	"qawafel-crm/prometheus"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format query value, defaulting to CSV
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Headers of exported files. They match the names Import understands.
var (
	LeadHeaders     = []string{"company", "contactname", "email", "phone", "status", "source", "value", "businesssize", "numberofbranches"}
	CustomerHeaders = []string{"name", "company", "email", "phone", "accountstatus", "marketplacestatus", "joindate"}
	MerchantHeaders = []string{"name", "businessname", "category", "email", "phone", "accountstatus", "marketplacestatus", "joindate"}
)

const dateLayout = "2006-01-02"

// Export writes every record of entity to w
func (im *Importer) Export(ctx context.Context, entity Entity, format Format, w io.Writer) error {
	records, err := im.records(ctx, entity)
	if err != nil {
		return err
	}

	switch format {
	case FormatXLSX:
		return writeXLSX(w, sheetName(entity), records)
	case FormatCSV:
		return writeCSV(w, records)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// records returns the header row followed by one row per record
func (im *Importer) records(ctx context.Context, entity Entity) ([][]string, error) {
	defer prometheus.TrackDBOperation("query")(im.now())
	db := im.db.WithContext(ctx)

	switch entity {
	case Leads:
		var leads []model.Lead
		if err := db.Preload("Status").Preload("Source").Order("id").Find(&leads).Error; err != nil {
			return nil, fmt.Errorf("failed to load leads: %w", err)
		}
		out := [][]string{LeadHeaders}
		for _, l := range leads {
			var status, source string
			if l.Status != nil {
				status = l.Status.Name
			}
			if l.Source != nil {
				source = l.Source.Name
			}
			out = append(out, []string{
				l.Company, l.ContactName, l.Email, l.Phone, status, source,
				strconv.FormatFloat(l.Value, 'f', -1, 64),
				l.BusinessSize, strconv.Itoa(l.NumberOfBranches),
			})
		}
		return out, nil

	case Customers:
		var customers []model.Customer
		if err := db.Order("id").Find(&customers).Error; err != nil {
			return nil, fmt.Errorf("failed to load customers: %w", err)
		}
		out := [][]string{CustomerHeaders}
		for _, c := range customers {
			out = append(out, []string{
				c.Name, c.Company, c.Email, c.Phone, c.AccountStatus, c.MarketplaceStatus,
				c.JoinDate.Format(dateLayout),
			})
		}
		return out, nil

	case Merchants:
		var merchants []model.Merchant
		if err := db.Order("id").Find(&merchants).Error; err != nil {
			return nil, fmt.Errorf("failed to load merchants: %w", err)
		}
		out := [][]string{MerchantHeaders}
		for _, m := range merchants {
			out = append(out, []string{
				m.Name, m.BusinessName, m.Category, m.Email, m.Phone, m.AccountStatus, m.MarketplaceStatus,
				m.JoinDate.Format(dateLayout),
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
}

func sheetName(entity Entity) string {
	s := string(entity)
	if s == "" {
		return "Sheet1"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeCSV(w io.Writer, records [][]string) error {
	if len(records) < 2 {
		// a dataframe needs at least one data row
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(records); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		return nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return fmt.Errorf("failed to build dataframe: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, sheet string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := rec
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
