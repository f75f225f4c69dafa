// Package gdocai provides document layout analysis using Google Document AI
// as an alternate provider behind the same normalized result contract.
//
// Project, location and processor come from the caller's Config (the config
// package maps GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION,
// DOCUMENT_AI_PROCESSOR_ID and DOCUMENT_AI_PROCESSOR_VERSION). Credentials
// are resolved from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path).
//
// Document AI has no counterpart for paragraph roles or formula detection, so
// normalized results from this provider carry empty headers and formulas;
// every contract key is still present.
package gdocai

import (
	"context"
	"fmt"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docintel/internal/docintel"
	"docintel/internal/logger"
)

// Config holds configuration for Google Document AI processing.
type Config struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the Document AI processor ID.
	ProcessorID string

	// ProcessorVersion specifies a particular processor version.
	// If empty, uses the default version.
	ProcessorVersion string

	// Timeout is the maximum time to wait for processing.
	// Default: 60 seconds.
	Timeout time.Duration

	// AcceptedTypes restricts which document types pass validation.
	// Default: docintel.AllDocumentTypes.
	AcceptedTypes docintel.AcceptedTypes
}

// Analyzer implements docintel.Analyzer using Google Document AI.
type Analyzer struct {
	client *documentai.DocumentProcessorClient
	config Config
	log    zerolog.Logger
}

// New creates an analyzer for the given configuration, resolving credentials
// from the environment.
func New(ctx context.Context, config Config) (*Analyzer, error) {
	const op = "NewDocumentAIAnalyzer"

	if config.ProjectID == "" {
		return nil, docintel.NewAnalysisError(op, docintel.ErrAnalysisFailed, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, docintel.WrapAnalysisError(op, err,
			fmt.Sprintf("failed to create Document AI client for location %s", config.Location))
	}

	return NewWithClient(config, client), nil
}

// NewWithClient creates an analyzer with an explicit config and client (for testing).
func NewWithClient(config Config, client *documentai.DocumentProcessorClient) *Analyzer {
	return &Analyzer{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// Analyze validates the document, runs Document AI processing and maps the
// response into the normalized result contract.
func (a *Analyzer) Analyze(ctx context.Context, doc docintel.UploadedDocument) (*docintel.NormalizedResult, error) {
	const op = "Analyze"

	if err := docintel.ValidateUpload(doc, a.config.AcceptedTypes); err != nil {
		return nil, err
	}

	timeout := a.config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = docintel.ContentTypeForFilename(doc.Filename)
	}

	req := &documentaipb.ProcessRequest{
		Name: a.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: contentType,
			},
		},
	}

	a.log.Info().
		Str("file", doc.Filename).
		Str("processor", a.config.ProcessorID).
		Msg("Starting Document AI analysis")

	resp, err := a.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, docintel.NewAnalysisError(op, docintel.ErrAnalysisFailed, err.Error())
	}
	if resp.Document == nil {
		return nil, docintel.NewAnalysisError(op, docintel.ErrInvalidResponse, "no document in response")
	}

	result := MapDocument(resp.Document, a.config.ProcessorID, docintel.FileMetadata{
		FileName:      doc.Filename,
		FileSizeBytes: len(doc.Data),
	})

	a.log.Info().
		Str("file", doc.Filename).
		Int("paragraphs", len(result.Paragraphs)).
		Int("tables", len(result.Tables)).
		Msg("Document AI analysis completed")

	return result, nil
}

// Close closes the underlying Document AI client.
func (a *Analyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// processorName constructs the full processor resource name.
func (a *Analyzer) processorName() string {
	if a.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			a.config.ProjectID, a.config.Location, a.config.ProcessorID, a.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		a.config.ProjectID, a.config.Location, a.config.ProcessorID)
}

// MapDocument converts a Document AI document into the normalized result
// contract. Pure mapping, no network calls.
func MapDocument(doc *documentaipb.Document, processorID string, meta docintel.FileMetadata) *docintel.NormalizedResult {
	result := docintel.EmptyResult()

	for _, page := range doc.GetPages() {
		pageNumber := int(page.GetPageNumber())

		for _, paragraph := range page.GetParagraphs() {
			layout := paragraph.GetLayout()
			result.Paragraphs = append(result.Paragraphs, docintel.Paragraph{
				Content:         textFromLayout(doc.GetText(), layout),
				Role:            nil, // Document AI has no paragraph roles
				Confidence:      layoutConfidence(layout),
				BoundingRegions: layoutRegions(layout, pageNumber),
			})
		}

		for _, table := range page.GetTables() {
			result.Tables = append(result.Tables, mapTable(doc.GetText(), table, pageNumber))
		}

		for _, field := range page.GetFormFields() {
			pair := docintel.KeyValuePair{
				Confidence: layoutConfidence(field.GetFieldName()),
			}
			if field.GetFieldName() != nil {
				key := textFromLayout(doc.GetText(), field.GetFieldName())
				pair.Key = &key
			}
			if field.GetFieldValue() != nil {
				value := textFromLayout(doc.GetText(), field.GetFieldValue())
				pair.Value = &value
			}
			result.KeyValuePairs = append(result.KeyValuePairs, pair)
		}

		pageEntry := docintel.Page{
			PageNumber: pageNumber,
			LinesCount: len(page.GetLines()),
			WordsCount: len(page.GetTokens()),
		}
		if dim := page.GetDimension(); dim != nil {
			pageEntry.Width = float64(dim.GetWidth())
			pageEntry.Height = float64(dim.GetHeight())
			if unit := dim.GetUnit(); unit != "" {
				pageEntry.Unit = &unit
			}
		}
		result.Pages = append(result.Pages, pageEntry)
	}

	result.Headers = docintel.GroupHeaders(result.Paragraphs)
	result.BoundingBoxes = docintel.CollectBoundingBoxes(result)
	result.DocumentMetadata = docintel.DocumentMetadata{
		ModelID:       fmt.Sprintf("documentai/%s", processorID),
		TotalPages:    len(doc.GetPages()),
		FileName:      meta.FileName,
		FileSizeBytes: meta.FileSizeBytes,
		ContentLength: len(doc.GetText()),
	}
	result.ConfidenceScores = docintel.AggregateConfidence(result)

	return result
}

func mapTable(text string, table *documentaipb.Document_Page_Table, pageNumber int) docintel.Table {
	mapped := docintel.Table{
		Confidence:      layoutConfidence(table.GetLayout()),
		BoundingRegions: layoutRegions(table.GetLayout(), pageNumber),
		Cells:           []docintel.TableCell{},
	}

	rowIndex := 0
	columnCount := 0
	appendRows := func(rows []*documentaipb.Document_Page_Table_TableRow) {
		for _, row := range rows {
			columnIndex := 0
			for _, cell := range row.GetCells() {
				rowSpan := int(cell.GetRowSpan())
				if rowSpan < 1 {
					rowSpan = 1
				}
				colSpan := int(cell.GetColSpan())
				if colSpan < 1 {
					colSpan = 1
				}
				mapped.Cells = append(mapped.Cells, docintel.TableCell{
					Content:     textFromLayout(text, cell.GetLayout()),
					RowIndex:    rowIndex,
					ColumnIndex: columnIndex,
					RowSpan:     rowSpan,
					ColumnSpan:  colSpan,
					Confidence:  layoutConfidence(cell.GetLayout()),
				})
				columnIndex += colSpan
			}
			if columnIndex > columnCount {
				columnCount = columnIndex
			}
			rowIndex++
		}
	}
	appendRows(table.GetHeaderRows())
	appendRows(table.GetBodyRows())

	mapped.RowCount = rowIndex
	mapped.ColumnCount = columnCount

	return mapped
}

// textFromLayout slices the document text covered by a layout's text anchor.
func textFromLayout(text string, layout *documentaipb.Document_Page_Layout) string {
	anchor := layout.GetTextAnchor()
	if anchor == nil {
		return ""
	}
	if content := anchor.GetContent(); content != "" {
		return content
	}

	out := ""
	for _, segment := range anchor.GetTextSegments() {
		start := int(segment.GetStartIndex())
		end := int(segment.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		out += text[start:end]
	}
	return out
}

func layoutConfidence(layout *documentaipb.Document_Page_Layout) *float64 {
	if layout == nil {
		return nil
	}
	confidence := float64(layout.GetConfidence())
	return &confidence
}

// layoutRegions converts a layout bounding poly into a single-page bounding
// region list. Normalized vertices are preferred when present.
func layoutRegions(layout *documentaipb.Document_Page_Layout, pageNumber int) []docintel.BoundingRegion {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return []docintel.BoundingRegion{}
	}

	points := []docintel.Point{}
	if normalized := poly.GetNormalizedVertices(); len(normalized) > 0 {
		for _, v := range normalized {
			points = append(points, docintel.Point{float64(v.GetX()), float64(v.GetY())})
		}
	} else {
		for _, v := range poly.GetVertices() {
			points = append(points, docintel.Point{float64(v.GetX()), float64(v.GetY())})
		}
	}
	if len(points) == 0 {
		return []docintel.BoundingRegion{}
	}

	return []docintel.BoundingRegion{{PageNumber: pageNumber, Polygon: points}}
}
