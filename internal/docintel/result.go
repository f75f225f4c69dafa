package docintel

// NormalizedResult is the fixed output contract of the analyzer. All nine
// top-level keys are always present, even when the corresponding upstream
// list was empty: sequences serialize as empty arrays, the headers mapping as
// an empty object, and absent numeric aggregates as null.
type NormalizedResult struct {
	Paragraphs       []Paragraph         `json:"paragraphs"`
	Headers          map[string][]Header `json:"headers"`
	Formulas         []Formula           `json:"formulas"`
	Tables           []Table             `json:"tables"`
	KeyValuePairs    []KeyValuePair      `json:"key_value_pairs"`
	BoundingBoxes    []BoundingBox       `json:"bounding_boxes"`
	Pages            []Page              `json:"pages"`
	DocumentMetadata DocumentMetadata    `json:"document_metadata"`
	ConfidenceScores ConfidenceScores    `json:"confidence_scores"`

	// Error and RawContent are populated only on a degraded result, when the
	// transformation itself failed and the response could not be fully mapped.
	Error      string `json:"error,omitempty"`
	RawContent string `json:"raw_content,omitempty"`
}

// EmptyResult returns a NormalizedResult with all nine keys initialized so
// that serialization never drops a key.
func EmptyResult() *NormalizedResult {
	return &NormalizedResult{
		Paragraphs:    []Paragraph{},
		Headers:       map[string][]Header{},
		Formulas:      []Formula{},
		Tables:        []Table{},
		KeyValuePairs: []KeyValuePair{},
		BoundingBoxes: []BoundingBox{},
		Pages:         []Page{},
	}
}

// Point is an (x, y) coordinate in the service's unit, serialized as a
// two-element array.
type Point [2]float64

// BoundingRegion locates an element on a page: 1-based page number plus an
// ordered polygon.
type BoundingRegion struct {
	PageNumber int     `json:"page_number"`
	Polygon    []Point `json:"polygon"`
}

// Paragraph is a block of document text with its upstream role passed through
// verbatim.
type Paragraph struct {
	Content         string           `json:"content"`
	Role            *string          `json:"role"`
	Confidence      *float64         `json:"confidence"`
	BoundingRegions []BoundingRegion `json:"bounding_regions"`
}

// Header is a paragraph classified as a title or section heading, grouped
// under its level tag (h1..h6).
type Header struct {
	Content         string           `json:"content"`
	Confidence      *float64         `json:"confidence"`
	BoundingRegions []BoundingRegion `json:"bounding_regions"`
}

// Formula is a detected mathematical expression.
type Formula struct {
	Content         string           `json:"content"`
	Confidence      *float64         `json:"confidence"`
	Kind            *string          `json:"kind"`
	BoundingRegions []BoundingRegion `json:"bounding_regions"`
}

// Table is a detected table with its cell grid. Bounding regions are attached
// at the table level only, never per cell.
type Table struct {
	RowCount        int              `json:"row_count"`
	ColumnCount     int              `json:"column_count"`
	Confidence      *float64         `json:"confidence"`
	BoundingRegions []BoundingRegion `json:"bounding_regions"`
	Cells           []TableCell      `json:"cells"`
}

// TableCell is a single cell within a table. Spans default to 1.
type TableCell struct {
	Content     string   `json:"content"`
	RowIndex    int      `json:"row_index"`
	ColumnIndex int      `json:"column_index"`
	RowSpan     int      `json:"row_span"`
	ColumnSpan  int      `json:"column_span"`
	Confidence  *float64 `json:"confidence"`
	Kind        *string  `json:"kind"`
}

// KeyValuePair is a detected form field. Key or value may be null when the
// service found only one side.
type KeyValuePair struct {
	Key        *string  `json:"key"`
	Value      *string  `json:"value"`
	Confidence *float64 `json:"confidence"`
}

// BoundingBox is one flattened entry per bounding region found on any
// paragraph, table or formula, tagged with the owning element.
type BoundingBox struct {
	PageNumber  int      `json:"page_number"`
	Polygon     []Point  `json:"polygon"`
	Content     string   `json:"content"`
	ElementType string   `json:"element_type"`
	Confidence  *float64 `json:"confidence"`
}

// Page carries per-page dimensions and content counts.
type Page struct {
	PageNumber int      `json:"page_number"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Unit       *string  `json:"unit"`
	Angle      *float64 `json:"angle"`
	LinesCount int      `json:"lines_count"`
	WordsCount int      `json:"words_count"`
}

// DocumentMetadata describes the analyzed document as a whole.
type DocumentMetadata struct {
	ModelID       string `json:"model_id"`
	TotalPages    int    `json:"total_pages"`
	FileName      string `json:"file_name"`
	FileSizeBytes int    `json:"file_size_bytes"`
	ContentLength int    `json:"content_length"`
}

// ConfidenceScores aggregates per-element confidences collected across
// paragraphs, tables and formulas. Fields are null when the corresponding
// pool is empty.
type ConfidenceScores struct {
	AverageParagraphConfidence *float64 `json:"average_paragraph_confidence"`
	AverageTableConfidence     *float64 `json:"average_table_confidence"`
	AverageFormulaConfidence   *float64 `json:"average_formula_confidence"`
	MinConfidence              *float64 `json:"min_confidence"`
	MaxConfidence              *float64 `json:"max_confidence"`
}

// FileMetadata is what the caller knows about the uploaded file, threaded
// into the result's document metadata.
type FileMetadata struct {
	FileName      string
	FileSizeBytes int
}
