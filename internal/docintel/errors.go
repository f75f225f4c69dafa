package docintel

import (
	"errors"
	"fmt"
)

// Common document analysis errors
var (
	// ErrEmptyInput is returned when no document was provided at all.
	ErrEmptyInput = errors.New("no document provided")

	// ErrUnsupportedType is returned when the filename extension or declared
	// MIME type is not in the accepted document type set.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrEmptyFile is returned when the document contains zero bytes.
	ErrEmptyFile = errors.New("document is empty")

	// ErrFileTooLarge is returned when the document exceeds the upload size limit.
	ErrFileTooLarge = errors.New("document exceeds the maximum size limit (500MB)")

	// ErrMissingEndpoint is returned when no service endpoint is configured.
	ErrMissingEndpoint = errors.New("document intelligence endpoint not provided: set DOCUMENT_INTELLIGENCE_ENDPOINT or pass an explicit endpoint")

	// ErrAnalysisFailed is returned when the upstream call exhausted its
	// retries or returned a non-retryable client error.
	ErrAnalysisFailed = errors.New("document analysis failed")

	// ErrInvalidResponse is returned when the service reply cannot be decoded
	// or is missing required fields.
	ErrInvalidResponse = errors.New("invalid response from document intelligence service")
)

// AnalysisError wraps errors with additional context about the analysis failure.
type AnalysisError struct {
	// Op is the operation that failed (e.g., "Analyze", "SubmitDocument").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("docintel: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("docintel: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *AnalysisError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAnalysisError creates a new AnalysisError with the specified operation and underlying error.
func NewAnalysisError(op string, err error, details string) *AnalysisError {
	return &AnalysisError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapAnalysisError wraps an error as an AnalysisError if it isn't already one.
func WrapAnalysisError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return err // Already wrapped
	}

	return NewAnalysisError(op, err, details)
}
