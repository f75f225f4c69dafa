// Package export renders normalized analysis results as spreadsheet
// workbooks for downstream consumption outside the JSON contract.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"docintel/internal/docintel"
)

const summarySheet = "Summary"

// TablesWorkbook builds a workbook with one sheet per detected table plus a
// summary sheet carrying document metadata and confidence scores.
func TablesWorkbook(result *docintel.NormalizedResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeSummary(f, result); err != nil {
		return nil, err
	}

	for i, table := range result.Tables {
		sheet := fmt.Sprintf("Table %d", i+1)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}
		if err := writeTable(f, sheet, table); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func writeSummary(f *excelize.File, result *docintel.NormalizedResult) error {
	meta := result.DocumentMetadata
	scores := result.ConfidenceScores

	rows := [][2]any{
		{"File Name", meta.FileName},
		{"Model ID", meta.ModelID},
		{"Total Pages", meta.TotalPages},
		{"File Size (bytes)", meta.FileSizeBytes},
		{"Content Length", meta.ContentLength},
		{"Paragraphs", len(result.Paragraphs)},
		{"Formulas", len(result.Formulas)},
		{"Tables", len(result.Tables)},
		{"Key-Value Pairs", len(result.KeyValuePairs)},
		{"Avg Paragraph Confidence", confidenceCell(scores.AverageParagraphConfidence)},
		{"Avg Table Confidence", confidenceCell(scores.AverageTableConfidence)},
		{"Avg Formula Confidence", confidenceCell(scores.AverageFormulaConfidence)},
		{"Min Confidence", confidenceCell(scores.MinConfidence)},
		{"Max Confidence", confidenceCell(scores.MaxConfidence)},
	}

	for i, row := range rows {
		labelCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, labelCell, row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, valueCell, row[1]); err != nil {
			return err
		}
	}

	return nil
}

func writeTable(f *excelize.File, sheet string, table docintel.Table) error {
	for _, cell := range table.Cells {
		name, err := excelize.CoordinatesToCellName(cell.ColumnIndex+1, cell.RowIndex+1)
		if err != nil {
			return fmt.Errorf("invalid cell position (%d,%d): %w", cell.RowIndex, cell.ColumnIndex, err)
		}
		if err := f.SetCellValue(sheet, name, cell.Content); err != nil {
			return err
		}
	}
	return nil
}

func confidenceCell(value *float64) any {
	if value == nil {
		return "n/a"
	}
	return *value
}
