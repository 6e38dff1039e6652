package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one extract row as delivered by the importer, immutable once stored.
// Several rows may share one Minsan (one per wholesaler lot).
type RawRow struct {
	ID           uint            `gorm:"primary_key" json:"id"`
	ImportId     string          `gorm:"index;size:64;not null" json:"import_id"`
	Supplier     string          `gorm:"size:100" json:"supplier"`
	Minsan       string          `gorm:"index;size:20" json:"minsan"`
	Ean          string          `gorm:"size:20" json:"ean"`
	Description  string          `gorm:"size:255" json:"description"`
	Lot          string          `gorm:"size:50" json:"lot"`
	Expiry       *time.Time      `json:"expiry"`
	Qty          int             `gorm:"not null;default:0" json:"qty"`
	BaseCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_cost"`
	AvgCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"avg_cost"`
	LastCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"last_cost"`
	LastCostDate *time.Time      `json:"last_cost_date"`
	ListPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"list_price"`
	VatRate      decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"vat_rate"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
