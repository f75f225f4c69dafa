package gdocai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"docintel/internal/docintel"
)

func segment(start, end int64) *documentaipb.Document_TextAnchor_TextSegment {
	return &documentaipb.Document_TextAnchor_TextSegment{StartIndex: start, EndIndex: end}
}

func layoutFor(start, end int64, confidence float32) *documentaipb.Document_Page_Layout {
	return &documentaipb.Document_Page_Layout{
		TextAnchor: &documentaipb.Document_TextAnchor{
			TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{segment(start, end)},
		},
		Confidence: confidence,
		BoundingPoly: &documentaipb.BoundingPoly{
			NormalizedVertices: []*documentaipb.NormalizedVertex{
				{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.2}, {X: 0.1, Y: 0.2},
			},
		},
	}
}

func sampleDocument() *documentaipb.Document {
	//          0123456789012345678901234
	const text = "Invoice Total 10 Due Now"

	return &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{
			{
				PageNumber: 1,
				Dimension: &documentaipb.Document_Page_Dimension{
					Width: 612, Height: 792, Unit: "pixels",
				},
				Paragraphs: []*documentaipb.Document_Page_Paragraph{
					{Layout: layoutFor(0, 7, 0.95)},  // "Invoice"
					{Layout: layoutFor(8, 16, 0.85)}, // "Total 10"
				},
				Tables: []*documentaipb.Document_Page_Table{
					{
						Layout: layoutFor(0, 16, 0.9),
						HeaderRows: []*documentaipb.Document_Page_Table_TableRow{
							{
								Cells: []*documentaipb.Document_Page_Table_TableCell{
									{Layout: layoutFor(0, 7, 0.9), ColSpan: 2},
								},
							},
						},
						BodyRows: []*documentaipb.Document_Page_Table_TableRow{
							{
								Cells: []*documentaipb.Document_Page_Table_TableCell{
									{Layout: layoutFor(8, 13, 0.9)},
									{Layout: layoutFor(14, 16, 0.9)},
								},
							},
						},
					},
				},
				FormFields: []*documentaipb.Document_Page_FormField{
					{
						FieldName:  layoutFor(8, 13, 0.8),  // "Total"
						FieldValue: layoutFor(14, 16, 0.8), // "10"
					},
				},
				Lines:  make([]*documentaipb.Document_Page_Line, 2),
				Tokens: make([]*documentaipb.Document_Page_Token, 5),
			},
		},
	}
}

func TestMapDocument(t *testing.T) {
	result := MapDocument(sampleDocument(), "proc-1", docintel.FileMetadata{
		FileName:      "invoice.pdf",
		FileSizeBytes: 1024,
	})

	if len(result.Paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(result.Paragraphs))
	}
	if result.Paragraphs[0].Content != "Invoice" {
		t.Errorf("paragraph content = %q, want text sliced by the anchor", result.Paragraphs[0].Content)
	}
	if result.Paragraphs[0].Role != nil {
		t.Errorf("Document AI paragraphs carry no role, got %v", *result.Paragraphs[0].Role)
	}
	if len(result.Paragraphs[0].BoundingRegions) != 1 ||
		result.Paragraphs[0].BoundingRegions[0].PageNumber != 1 {
		t.Errorf("bounding regions = %+v", result.Paragraphs[0].BoundingRegions)
	}

	// No roles means no headers, but the key must still serialize as an object.
	if len(result.Headers) != 0 {
		t.Errorf("headers = %+v, want empty", result.Headers)
	}

	if len(result.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(result.Tables))
	}
	table := result.Tables[0]
	if table.RowCount != 2 || table.ColumnCount != 2 {
		t.Errorf("table grid = %dx%d, want 2x2", table.RowCount, table.ColumnCount)
	}
	if len(table.Cells) != 3 {
		t.Fatalf("cells = %d, want 3", len(table.Cells))
	}
	if table.Cells[0].ColumnSpan != 2 || table.Cells[0].RowIndex != 0 {
		t.Errorf("header cell = %+v", table.Cells[0])
	}
	// Body row cells advance the column index normally.
	if table.Cells[1].RowIndex != 1 || table.Cells[1].ColumnIndex != 0 {
		t.Errorf("body cell 1 = %+v", table.Cells[1])
	}
	if table.Cells[2].ColumnIndex != 1 {
		t.Errorf("body cell 2 = %+v", table.Cells[2])
	}

	if len(result.KeyValuePairs) != 1 {
		t.Fatalf("key_value_pairs = %d, want 1", len(result.KeyValuePairs))
	}
	pair := result.KeyValuePairs[0]
	if pair.Key == nil || *pair.Key != "Total" || pair.Value == nil || *pair.Value != "10" {
		t.Errorf("pair = %+v", pair)
	}

	if len(result.Pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(result.Pages))
	}
	page := result.Pages[0]
	if page.Width != 612 || page.Height != 792 || page.Unit == nil || *page.Unit != "pixels" {
		t.Errorf("page = %+v", page)
	}
	if page.LinesCount != 2 || page.WordsCount != 5 {
		t.Errorf("page counts = %d lines, %d words", page.LinesCount, page.WordsCount)
	}

	meta := result.DocumentMetadata
	if meta.ModelID != "documentai/proc-1" || meta.TotalPages != 1 ||
		meta.FileName != "invoice.pdf" || meta.FileSizeBytes != 1024 {
		t.Errorf("document_metadata = %+v", meta)
	}

	if result.ConfidenceScores.AverageParagraphConfidence == nil {
		t.Error("paragraph confidence pool should not be empty")
	}
	if len(result.BoundingBoxes) == 0 {
		t.Error("bounding boxes were not collected")
	}
}

func TestMapDocumentEmpty(t *testing.T) {
	result := MapDocument(&documentaipb.Document{}, "proc-1", docintel.FileMetadata{})

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := docintel.ValidateResultJSON(data); err != nil {
		t.Fatalf("empty Document AI result violates the contract: %v", err)
	}
}

func TestTextFromLayout(t *testing.T) {
	const text = "hello world"

	tests := []struct {
		name   string
		layout *documentaipb.Document_Page_Layout
		want   string
	}{
		{"nil layout", nil, ""},
		{
			"explicit content wins",
			&documentaipb.Document_Page_Layout{
				TextAnchor: &documentaipb.Document_TextAnchor{Content: "override"},
			},
			"override",
		},
		{
			"segment slice",
			&documentaipb.Document_Page_Layout{
				TextAnchor: &documentaipb.Document_TextAnchor{
					TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{segment(6, 11)},
				},
			},
			"world",
		},
		{
			"out of range segment skipped",
			&documentaipb.Document_Page_Layout{
				TextAnchor: &documentaipb.Document_TextAnchor{
					TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{segment(6, 100)},
				},
			},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textFromLayout(text, tt.layout); got != tt.want {
				t.Errorf("textFromLayout() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresProjectID(t *testing.T) {
	_, err := New(context.Background(), Config{Location: "eu", ProcessorID: "proc"})
	if err == nil {
		t.Fatal("New() must fail without a project ID")
	}
	if !errors.Is(err, docintel.ErrAnalysisFailed) {
		t.Errorf("New() error = %v, want %v", err, docintel.ErrAnalysisFailed)
	}
}

func TestProcessorName(t *testing.T) {
	analyzer := NewWithClient(Config{
		ProjectID:   "proj",
		Location:    "eu",
		ProcessorID: "proc",
	}, nil)
	if got := analyzer.processorName(); got != "projects/proj/locations/eu/processors/proc" {
		t.Errorf("processorName() = %q", got)
	}

	analyzer.config.ProcessorVersion = "v2"
	want := "projects/proj/locations/eu/processors/proc/processorVersions/v2"
	if got := analyzer.processorName(); got != want {
		t.Errorf("processorName() = %q, want %q", got, want)
	}
}
