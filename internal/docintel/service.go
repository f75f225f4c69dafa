// Package docintel provides document layout analysis using the Azure AI
// Document Intelligence service.
//
// The package validates uploaded documents, submits them to the service's
// prebuilt layout model with formula detection enabled, waits for the
// long-running analysis to complete, and normalizes the response into a fixed
// nine-key result contract (paragraphs, headers, formulas, tables, key-value
// pairs, bounding boxes, pages, document metadata, confidence scores). Every
// key is present in every result, even when the corresponding upstream list
// is empty.
//
// Required Environment Variables:
//   - DOCUMENT_INTELLIGENCE_ENDPOINT: Azure Document Intelligence endpoint URL
//     (unless an explicit endpoint is configured)
//   - DOCUMENT_INTELLIGENCE_KEY: API key (only for key-based auth)
//
// Service Limitations:
//   - Maximum file size: 500MB
//   - Supported formats: PDF, JPEG, PNG, BMP, TIFF, HEIF, DOCX, XLSX, PPTX, HTML
//   - Analysis is long-running: submit returns an operation that is polled
//     until completion
package docintel

import (
	"context"
	"time"
)

const (
	// MaxUploadBytes is the maximum accepted document size (500MB).
	MaxUploadBytes = 500 * 1024 * 1024

	// DefaultModelID is the layout model used for analysis.
	DefaultModelID = "prebuilt-layout"

	// DefaultCacheTTL is how long normalized results are memoized per document.
	DefaultCacheTTL = time.Hour
)

// UploadedDocument is a request-scoped uploaded file: raw bytes plus the
// metadata the uploader declared. Nothing here is persisted.
type UploadedDocument struct {
	// Data is the raw file content.
	Data []byte

	// Filename is the declared file name, used for extension checks and
	// result metadata.
	Filename string

	// ContentType is the declared MIME type. May be empty.
	ContentType string
}

// Analyzer defines the interface for document layout analysis services.
type Analyzer interface {
	// Analyze validates the document, submits it for layout analysis and
	// returns the normalized result. The call blocks until the upstream
	// analysis completes or ctx is canceled.
	Analyze(ctx context.Context, doc UploadedDocument) (*NormalizedResult, error)
}

// ResultCache memoizes normalized results keyed by document identity.
// It is an optional collaborator; the analyzer works without one.
type ResultCache interface {
	GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error)
}

// AnalyzerConfig holds configuration for the layout analyzer.
type AnalyzerConfig struct {
	// Endpoint is the service endpoint URL. Falls back to
	// DOCUMENT_INTELLIGENCE_ENDPOINT when empty.
	Endpoint string

	// AuthMode selects the credential: "key" or "managed_identity".
	AuthMode string

	// APIKey is the explicit API key for key-based auth. Falls back to
	// DOCUMENT_INTELLIGENCE_KEY when empty.
	APIKey string

	// TenantID and ClientID configure the interactive browser fallback
	// credential used when no managed identity is available.
	TenantID string
	ClientID string

	// ModelID is the analysis model. Default: prebuilt-layout.
	ModelID string

	// AcceptedTypes restricts which document types pass validation.
	// Default: AllDocumentTypes.
	AcceptedTypes AcceptedTypes

	// MaxRetries is how many times a transient submission failure is retried
	// after the initial attempt. Default: 3.
	MaxRetries uint

	// RetryBaseDelay is the first backoff delay; it doubles per retry.
	// Default: 2 seconds.
	RetryBaseDelay time.Duration

	// PollInterval is the default wait between status polls when the service
	// does not send Retry-After. Default: 2 seconds.
	PollInterval time.Duration

	// CacheTTL is the memoization window when a ResultCache is attached.
	// Default: 1 hour.
	CacheTTL time.Duration
}

// DefaultAnalyzerConfig returns an AnalyzerConfig with sensible defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		AuthMode:       "managed_identity",
		ModelID:        DefaultModelID,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		PollInterval:   2 * time.Second,
		CacheTTL:       DefaultCacheTTL,
	}
}
