// Package lookup resolves lead statuses, lead sources and deal stages by
// name, creating them on first use.
package lookup

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"qawafel-crm/internal/model"
)

// LeadStatus finds a status by case-insensitive name or creates it at the end of the pipeline
func LeadStatus(tx *gorm.DB, name string) (*model.LeadStatus, error) {
	name = strings.TrimSpace(name)
	var status model.LeadStatus
	err := tx.Where("LOWER(name) = LOWER(?)", name).First(&status).Error
	if err == nil {
		return &status, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	order, err := nextOrder(tx, &model.LeadStatus{})
	if err != nil {
		return nil, err
	}
	status = model.LeadStatus{Name: name, Color: "bg-gray-500", SortOrder: order}
	if err := tx.Create(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

// LeadSource finds a source by case-insensitive name or creates it
func LeadSource(tx *gorm.DB, name string) (*model.LeadSource, error) {
	name = strings.TrimSpace(name)
	var source model.LeadSource
	err := tx.Where("LOWER(name) = LOWER(?)", name).First(&source).Error
	if err == nil {
		return &source, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	source = model.LeadSource{Name: name}
	if err := tx.Create(&source).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

// DealStage finds a stage by case-insensitive name or creates an open stage at the end of the pipeline
func DealStage(tx *gorm.DB, name string) (*model.DealStage, error) {
	name = strings.TrimSpace(name)
	var stage model.DealStage
	err := tx.Where("LOWER(name) = LOWER(?)", name).First(&stage).Error
	if err == nil {
		return &stage, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	order, err := nextOrder(tx, &model.DealStage{})
	if err != nil {
		return nil, err
	}
	stage = model.DealStage{Name: name, Color: "bg-gray-500", SortOrder: order}
	if err := tx.Create(&stage).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

func nextOrder(tx *gorm.DB, m interface{}) (int, error) {
	var max int
	if err := tx.Model(m).Select("COALESCE(MAX(sort_order), 0)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}
