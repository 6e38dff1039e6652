package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NormalizedProduct is one aggregated record per (import, Minsan), derived
// entirely from the import's RawRow set. Recomputed fully on each run.
type NormalizedProduct struct {
	ID           uint            `gorm:"primary_key" json:"id"`
	ImportId     string          `gorm:"uniqueIndex:uniq_norm_product,priority:1;size:64;not null" json:"import_id"`
	Minsan       string          `gorm:"uniqueIndex:uniq_norm_product,priority:2;size:20;not null" json:"minsan"`
	Supplier     string          `gorm:"size:100" json:"supplier"`
	Qty          int             `gorm:"not null;default:0" json:"qty"`
	AvgCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"avg_cost"`
	LastCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"last_cost"`
	LastCostDate *time.Time      `json:"last_cost_date"`
	Expiry       *time.Time      `json:"expiry"`
	ListPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"list_price"`
	VatRate      decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"vat_rate"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ReplaceNormalizedProducts deletes the import's previous normalized set and
// inserts the new one in a single transaction. Re-running normalization is
// idempotent by construction.
func ReplaceNormalizedProducts(db *gorm.DB, importId string, products []NormalizedProduct) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", importId).Delete(&NormalizedProduct{}).Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		return tx.CreateInBatches(products, 200).Error
	})
}
