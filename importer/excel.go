package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Required wholesaler extract columns, matched case/whitespace-insensitively.
var requiredColumns = []string{
	"Ditta",
	"Minsan",
	"EAN",
	"Descrizione",
	"Scadenza",
	"Lotto",
	"Giacenza",
	"CostoBase",
	"CostoMedio",
	"UltimoCostoDitta",
	"DataUltimoCostoDitta",
	"PrezzoBD",
	"IVA",
}

// ValidationError reports an incomplete extract schema. The pipeline halts
// before any stage runs.
type ValidationError struct {
	MissingColumns []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("extract is missing required columns: %s", strings.Join(e.MissingColumns, ", "))
}

// ImportExtract reads a wholesaler extract (local path or gs:// object),
// validates its schema and stores the ImportBatch plus its RawRows with
// status "raw". The returned batch's import id keys the whole pipeline.
func ImportExtract(ctx context.Context, source string, triggeredBy string) (*models.ImportBatch, error) {
	var data []byte
	var err error
	if utils.IsGSPath(source) {
		data, err = utils.ReadObject(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	db := config.GetDB().WithContext(ctx)

	rows, err := ParseExtract(data)
	if err != nil {
		// An incomplete schema is a terminal failure for the whole import.
		// Record it so the run is visible in the batch history.
		var valErr *ValidationError
		if errors.As(err, &valErr) {
			failedBatch := models.ImportBatch{
				ImportId:    uuid.NewString(),
				FileName:    filepath.Base(source),
				Status:      models.ImportStatusFailed,
				TriggeredBy: triggeredBy,
			}
			if createErr := db.Create(&failedBatch).Error; createErr != nil {
				config.LogError(config.GetLogger(), "importer", "ImportExtract", "failed batch not recorded", source, createErr)
			}
		}
		return nil, err
	}

	batch := models.ImportBatch{
		ImportId:    uuid.NewString(),
		FileName:    filepath.Base(source),
		Status:      models.ImportStatusRaw,
		RowCount:    len(rows),
		TriggeredBy: triggeredBy,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].ImportId = batch.ImportId
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ParseExtract decodes xlsx bytes into RawRows (without import id).
// Unparsable numbers normalize to zero and unparsable dates to nil; no cell
// value ever aborts the parse. Only a broken workbook or a missing column does.
func ParseExtract(data []byte) ([]models.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open extract workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ValidationError{MissingColumns: requiredColumns}
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read extract sheet: %w", err)
	}
	if len(cells) == 0 {
		return nil, &ValidationError{MissingColumns: requiredColumns}
	}

	index, missing := headerIndex(cells[0])
	if len(missing) > 0 {
		return nil, &ValidationError{MissingColumns: missing}
	}

	rows := make([]models.RawRow, 0, len(cells)-1)
	for _, line := range cells[1:] {
		if isEmptyLine(line) {
			continue
		}
		cell := func(name string) string {
			i := index[normalizeHeader(name)]
			if i >= len(line) {
				return ""
			}
			return strings.TrimSpace(line[i])
		}

		qty := utils.ParseLenientDecimal(cell("Giacenza"))
		rows = append(rows, models.RawRow{
			Supplier:     cell("Ditta"),
			Minsan:       cell("Minsan"),
			Ean:          cell("EAN"),
			Description:  cell("Descrizione"),
			Lot:          cell("Lotto"),
			Expiry:       utils.ParseLenientDate(cell("Scadenza")),
			Qty:          int(qty.Round(0).IntPart()),
			BaseCost:     utils.ParseLenientDecimal(cell("CostoBase")),
			AvgCost:      utils.ParseLenientDecimal(cell("CostoMedio")),
			LastCost:     utils.ParseLenientDecimal(cell("UltimoCostoDitta")),
			LastCostDate: utils.ParseLenientDate(cell("DataUltimoCostoDitta")),
			ListPrice:    utils.ParseLenientDecimal(cell("PrezzoBD")),
			VatRate:      utils.ParseLenientDecimal(cell("IVA")),
		})
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, []string) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[normalizeHeader(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return index, missing
}

func normalizeHeader(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

func isEmptyLine(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
