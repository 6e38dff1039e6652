package importer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func fullHeader() []interface{} {
	return []interface{}{
		"Ditta", "Minsan", "EAN", "Descrizione", "Scadenza", "Lotto", "Giacenza",
		"CostoBase", "CostoMedio", "UltimoCostoDitta", "DataUltimoCostoDitta", "PrezzoBD", "IVA",
	}
}

func TestParseExtract(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		fullHeader(),
		{"ALFA", "024840074", "8001234567890", "TACHIPIRINA 500MG", "2027-05-31", "L1", "12",
			"3,90", "4,10", "4,05", "2026-03-02", "7,90", "10%"},
		// Blank line in the middle of the sheet is skipped.
		{"", "", "", "", "", "", "", "", "", "", "", "", ""},
		{"BETA", "935621793", "", "ASPIRINA", "non valida", "L2", "-3",
			"", "€ 2,50", "", "", "1.234,56", "22"},
	})

	rows, err := ParseExtract(data)
	if err != nil {
		t.Fatalf("ParseExtract() err = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.Supplier != "ALFA" || first.Minsan != "024840074" || first.Qty != 12 {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.Expiry == nil || first.Expiry.Format("2006-01-02") != "2027-05-31" {
		t.Errorf("Expiry = %v, want 2027-05-31", first.Expiry)
	}
	if first.AvgCost.StringFixed(2) != "4.10" || first.VatRate.StringFixed(0) != "10" {
		t.Errorf("money fields: AvgCost=%s VatRate=%s", first.AvgCost, first.VatRate)
	}

	second := rows[1]
	if second.Qty != -3 {
		t.Errorf("Qty = %d, want -3 (negative lots are kept raw)", second.Qty)
	}
	if second.Expiry != nil {
		t.Errorf("unparsable expiry must be nil, got %v", second.Expiry)
	}
	if second.AvgCost.StringFixed(2) != "2.50" {
		t.Errorf("euro-prefixed cost = %s, want 2.50", second.AvgCost)
	}
	if second.ListPrice.StringFixed(2) != "1234.56" {
		t.Errorf("thousand-separated price = %s, want 1234.56", second.ListPrice)
	}
	if !second.BaseCost.IsZero() {
		t.Errorf("empty cost must be zero, got %s", second.BaseCost)
	}
}

func TestParseExtractMissingColumns(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Ditta", "Minsan", "EAN", "Descrizione", "Scadenza", "Lotto", "Giacenza"},
		{"ALFA", "024840074", "", "X", "", "L1", "1"},
	})

	_, err := ParseExtract(data)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("ParseExtract() err = %v, want *ValidationError", err)
	}

	want := map[string]bool{
		"CostoBase": true, "CostoMedio": true, "UltimoCostoDitta": true,
		"DataUltimoCostoDitta": true, "PrezzoBD": true, "IVA": true,
	}
	if len(valErr.MissingColumns) != len(want) {
		t.Fatalf("MissingColumns = %v, want %d columns", valErr.MissingColumns, len(want))
	}
	for _, col := range valErr.MissingColumns {
		if !want[col] {
			t.Errorf("unexpected missing column %q", col)
		}
	}
}

func TestParseExtractHeaderMatchingIsLenient(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"ditta", "MINSAN", " EAN ", "descrizione", "SCADENZA", "lotto", "giacenza",
			"costobase", "CostoMedio", "ultimocostoditta", "dataultimocostoditta", "prezzobd", "iva"},
		{"ALFA", "024840074", "", "X", "", "L1", "4", "", "", "", "", "", ""},
	})

	rows, err := ParseExtract(data)
	if err != nil {
		t.Fatalf("ParseExtract() err = %v", err)
	}
	if len(rows) != 1 || rows[0].Qty != 4 {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestParseExtractBrokenWorkbook(t *testing.T) {
	if _, err := ParseExtract([]byte("not an xlsx")); err == nil {
		t.Fatal("broken workbook must fail the parse")
	}
}
