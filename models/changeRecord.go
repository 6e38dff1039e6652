package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// FieldDelta carries the remote (old) and proposed (new) value of one field.
// Values are decimal/date strings so the JSON column stays exact.
type FieldDelta struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangeRecord is one staged field-level update for one product, awaiting apply.
// Created by the diff stage, deleted by the apply stage on success, retained on
// failure for retry.
type ChangeRecord struct {
	ID              uint      `gorm:"primary_key" json:"id"`
	ImportId        string    `gorm:"index;size:64;not null" json:"import_id"`
	Minsan          string    `gorm:"size:20;not null" json:"minsan"`
	VariantId       string    `gorm:"size:64" json:"variant_id"`
	ProductId       string    `gorm:"size:64" json:"product_id"`
	InventoryItemId string    `gorm:"size:64" json:"inventory_item_id"`
	Missing         bool      `gorm:"not null;default:false" json:"missing"`
	FieldsJSON      []byte    `gorm:"type:json" json:"fields"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *ChangeRecord) Fields() map[string]FieldDelta {
	if len(c.FieldsJSON) == 0 {
		return map[string]FieldDelta{}
	}
	var fields map[string]FieldDelta
	if err := json.Unmarshal(c.FieldsJSON, &fields); err != nil {
		return map[string]FieldDelta{}
	}
	return fields
}

func (c *ChangeRecord) SetFields(fields map[string]FieldDelta) {
	b, _ := json.Marshal(fields)
	c.FieldsJSON = b
}

// ReplaceChangeRecords deletes all previous ChangeRecords for the import and
// inserts the new set. Re-running the diff stage is idempotent by construction.
func ReplaceChangeRecords(db *gorm.DB, importId string, records []ChangeRecord) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", importId).Delete(&ChangeRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 200).Error
	})
}
