package catalog

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RemoteRecord is the shop catalog's current state for one variant, fetched
// per reconciliation run and never persisted beyond the diff step.
type RemoteRecord struct {
	Sku             string
	VariantId       string
	ProductId       string
	InventoryItemId string
	Qty             int
	Price           decimal.Decimal
	Cost            decimal.Decimal
	CompareAtPrice  decimal.Decimal
	Expiry          string
}

// UserError is one per-item, user-level error returned by a shop mutation.
// Any non-empty list fails the aliased operation that produced it.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type variantLookupData struct {
	ProductVariants struct {
		Edges []struct {
			Node variantNode `json:"node"`
		} `json:"edges"`
	} `json:"productVariants"`
}

type variantNode struct {
	Id                string      `json:"id"`
	Sku               string      `json:"sku"`
	Price             json.Number `json:"price"`
	CompareAtPrice    json.Number `json:"compareAtPrice"`
	InventoryQuantity int         `json:"inventoryQuantity"`
	Product           struct {
		Id string `json:"id"`
	} `json:"product"`
	InventoryItem struct {
		Id       string `json:"id"`
		UnitCost struct {
			Amount json.Number `json:"amount"`
		} `json:"unitCost"`
	} `json:"inventoryItem"`
	Metafield *struct {
		Value string `json:"value"`
	} `json:"metafield"`
}

type mutationResult struct {
	UserErrors []UserError `json:"userErrors"`
}

func decimalFromNumber(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
