package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
)

// FetchRemoteRecords retrieves the shop's current state for the given product
// identifiers in batches of MaxLookupBatch. Identifiers with no match are
// simply absent from the returned map. Any batch failure is fatal for the
// whole fetch: no partial remote state is ever used for diffing.
func FetchRemoteRecords(ctx context.Context, exec Executor, skus []string) (map[string]RemoteRecord, error) {
	records := make(map[string]RemoteRecord)
	for _, group := range utils.ChunkSlice(utils.UniqueSlice(skus), MaxLookupBatch) {
		doc, err := BuildVariantLookupQuery(group)
		if err != nil {
			return nil, err
		}
		data, err := exec.Execute(ctx, doc)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseVariantLookup(data)
		if err != nil {
			return nil, err
		}
		for _, rec := range parsed {
			records[rec.Sku] = rec
		}
	}
	return records, nil
}

// ParseVariantLookup decodes one lookup response into RemoteRecords.
func ParseVariantLookup(data json.RawMessage) ([]RemoteRecord, error) {
	var parsed variantLookupData
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode variant lookup: %w", err)
	}

	records := make([]RemoteRecord, 0, len(parsed.ProductVariants.Edges))
	for _, edge := range parsed.ProductVariants.Edges {
		node := edge.Node
		rec := RemoteRecord{
			Sku:             node.Sku,
			VariantId:       node.Id,
			ProductId:       node.Product.Id,
			InventoryItemId: node.InventoryItem.Id,
			Qty:             node.InventoryQuantity,
			Price:           decimalFromNumber(node.Price),
			Cost:            decimalFromNumber(node.InventoryItem.UnitCost.Amount),
			CompareAtPrice:  decimalFromNumber(node.CompareAtPrice),
		}
		if node.Metafield != nil {
			rec.Expiry = node.Metafield.Value
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeAliasedUserErrors maps a mutation response back to its aliased
// operations: index i corresponds to alias prefix+i. A missing alias yields an
// empty error list for that index.
func DecodeAliasedUserErrors(data json.RawMessage, prefix string, count int) ([][]UserError, error) {
	var byAlias map[string]mutationResult
	if err := json.Unmarshal(data, &byAlias); err != nil {
		return nil, fmt.Errorf("decode mutation response: %w", err)
	}

	out := make([][]UserError, count)
	for i := 0; i < count; i++ {
		out[i] = byAlias[fmt.Sprintf("%s%d", prefix, i)].UserErrors
	}
	return out, nil
}
