package export

import (
	"testing"

	"docintel/internal/docintel"
)

func floatPtr(v float64) *float64 { return &v }

func sampleResult() *docintel.NormalizedResult {
	result := docintel.EmptyResult()
	result.DocumentMetadata = docintel.DocumentMetadata{
		ModelID:       "prebuilt-layout",
		TotalPages:    1,
		FileName:      "invoice.pdf",
		FileSizeBytes: 2048,
		ContentLength: 120,
	}
	result.Tables = []docintel.Table{
		{
			RowCount:    2,
			ColumnCount: 2,
			Confidence:  floatPtr(0.9),
			Cells: []docintel.TableCell{
				{Content: "Item", RowIndex: 0, ColumnIndex: 0, RowSpan: 1, ColumnSpan: 1},
				{Content: "Price", RowIndex: 0, ColumnIndex: 1, RowSpan: 1, ColumnSpan: 1},
				{Content: "Widget", RowIndex: 1, ColumnIndex: 0, RowSpan: 1, ColumnSpan: 1},
				{Content: "9.99", RowIndex: 1, ColumnIndex: 1, RowSpan: 1, ColumnSpan: 1},
			},
		},
		{
			RowCount:    1,
			ColumnCount: 1,
			Cells: []docintel.TableCell{
				{Content: "solo", RowIndex: 0, ColumnIndex: 0, RowSpan: 1, ColumnSpan: 1},
			},
		},
	}
	result.ConfidenceScores = docintel.ConfidenceScores{
		AverageTableConfidence: floatPtr(0.9),
		MinConfidence:          floatPtr(0.9),
		MaxConfidence:          floatPtr(0.9),
	}
	return result
}

func TestTablesWorkbook(t *testing.T) {
	workbook, err := TablesWorkbook(sampleResult())
	if err != nil {
		t.Fatalf("TablesWorkbook() error = %v", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	want := []string{"Summary", "Table 1", "Table 2"}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i, name := range want {
		if sheets[i] != name {
			t.Errorf("sheets[%d] = %q, want %q", i, sheets[i], name)
		}
	}

	// Cell grid lands at its row/column coordinates, 1-based.
	got, err := workbook.GetCellValue("Table 1", "B2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "9.99" {
		t.Errorf("Table 1!B2 = %q, want 9.99", got)
	}

	got, err = workbook.GetCellValue("Table 2", "A1")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "solo" {
		t.Errorf("Table 2!A1 = %q, want solo", got)
	}

	// Summary carries the document metadata.
	got, err = workbook.GetCellValue("Summary", "B1")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "invoice.pdf" {
		t.Errorf("Summary!B1 = %q, want invoice.pdf", got)
	}
}

func TestTablesWorkbookNoTables(t *testing.T) {
	result := docintel.EmptyResult()
	result.DocumentMetadata = docintel.DocumentMetadata{FileName: "scan.png"}

	workbook, err := TablesWorkbook(result)
	if err != nil {
		t.Fatalf("TablesWorkbook() error = %v", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Summary" {
		t.Fatalf("sheets = %v, want just the summary", sheets)
	}

	// Null confidences render as n/a.
	got, err := workbook.GetCellValue("Summary", "B13")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if got != "n/a" {
		t.Errorf("Summary!B13 = %q, want n/a", got)
	}
}
