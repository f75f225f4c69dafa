package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docintel/internal/azauth"
	"docintel/internal/logger"
)

const (
	apiVersion = "2024-11-30"

	// formulasFeature enables formula detection on the layout model.
	formulasFeature = "formulas"
)

// ServiceError is a non-2xx reply from the document intelligence service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("service error %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether an error is worth retrying. Service replies in
// the 4xx class are permanent, with 408 and 429 carved out because the
// service uses them for transient throttling. Credential and context errors
// are never retried. Everything else (5xx, transport, decode) is transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, azauth.ErrMissingCredential) || errors.Is(err, azauth.ErrCredentialUnavailable) {
		return false
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		switch {
		case svcErr.StatusCode == http.StatusRequestTimeout, svcErr.StatusCode == http.StatusTooManyRequests:
			return true
		case svcErr.StatusCode >= 400 && svcErr.StatusCode < 500:
			return false
		}
		return true
	}
	return true
}

// AnalyzeResult is the service's layout analysis payload.
type AnalyzeResult struct {
	ModelID       string            `json:"modelId"`
	Content       string            `json:"content"`
	Paragraphs    []RawParagraph    `json:"paragraphs"`
	Tables        []RawTable        `json:"tables"`
	Formulas      []RawFormula      `json:"formulas"`
	KeyValuePairs []RawKeyValuePair `json:"keyValuePairs"`
	Pages         []RawPage         `json:"pages"`
}

// RawBoundingRegion is a service bounding region: page number plus a flat
// x1,y1,x2,y2,... polygon.
type RawBoundingRegion struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon"`
}

type RawParagraph struct {
	Content         string              `json:"content"`
	Role            *string             `json:"role"`
	Confidence      *float64            `json:"confidence"`
	BoundingRegions []RawBoundingRegion `json:"boundingRegions"`
}

type RawFormula struct {
	Value           string              `json:"value"`
	Kind            *string             `json:"kind"`
	Confidence      *float64            `json:"confidence"`
	BoundingRegions []RawBoundingRegion `json:"boundingRegions"`
}

type RawTable struct {
	RowCount        int                 `json:"rowCount"`
	ColumnCount     int                 `json:"columnCount"`
	Confidence      *float64            `json:"confidence"`
	BoundingRegions []RawBoundingRegion `json:"boundingRegions"`
	Cells           []RawTableCell      `json:"cells"`
}

type RawTableCell struct {
	Kind        *string  `json:"kind"`
	Content     string   `json:"content"`
	RowIndex    int      `json:"rowIndex"`
	ColumnIndex int      `json:"columnIndex"`
	RowSpan     *int     `json:"rowSpan"`
	ColumnSpan  *int     `json:"columnSpan"`
	Confidence  *float64 `json:"confidence"`
}

type RawKVElement struct {
	Content string `json:"content"`
}

type RawKeyValuePair struct {
	Key        *RawKVElement `json:"key"`
	Value      *RawKVElement `json:"value"`
	Confidence *float64      `json:"confidence"`
}

type RawPage struct {
	PageNumber int               `json:"pageNumber"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Unit       *string           `json:"unit"`
	Angle      *float64          `json:"angle"`
	Lines      []json.RawMessage `json:"lines"`
	Words      []json.RawMessage `json:"words"`
}

// operationStatus is the polled long-running operation envelope.
type operationStatus struct {
	Status        string            `json:"status"`
	Error         *serviceErrorBody `json:"error"`
	AnalyzeResult *AnalyzeResult    `json:"analyzeResult"`
}

type serviceErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is a typed REST client for the document intelligence service's
// analyze operation: submit the document, then poll the returned operation
// URL until the analysis succeeds or fails.
type Client struct {
	endpoint     string
	modelID      string
	auth         azauth.RequestAuthorizer
	httpClient   *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
}

// NewClient creates a client for the given endpoint and authorizer.
func NewClient(endpoint, modelID string, auth azauth.RequestAuthorizer, pollInterval time.Duration) *Client {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		modelID:      modelID,
		auth:         auth,
		httpClient:   &http.Client{},
		pollInterval: pollInterval,
		log:          logger.WithComponent("docintel-client"),
	}
}

// Analyze submits the document and blocks until the analysis completes.
func (c *Client) Analyze(ctx context.Context, content []byte, contentType string) (*AnalyzeResult, error) {
	opURL, err := c.submit(ctx, content, contentType)
	if err != nil {
		return nil, err
	}
	return c.pollUntilDone(ctx, opURL)
}

// submit posts the document bytes with formula detection enabled and returns
// the operation URL to poll.
func (c *Client) submit(ctx context.Context, content []byte, contentType string) (string, error) {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	query.Set("features", formulasFeature)

	analyzeURL := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s",
		c.endpoint, c.modelID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.auth.Authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", c.serviceError(resp)
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("%w: missing Operation-Location header", ErrInvalidResponse)
	}

	c.log.Debug().
		Str("model_id", c.modelID).
		Int("size_bytes", len(content)).
		Msg("Document submitted for analysis")

	return opURL, nil
}

// pollUntilDone polls the operation URL until the analysis reaches a terminal
// status, honoring Retry-After and context cancellation.
func (c *Client) pollUntilDone(ctx context.Context, opURL string) (*AnalyzeResult, error) {
	for {
		status, wait, err := c.pollOnce(ctx, opURL)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "succeeded":
			if status.AnalyzeResult == nil {
				return nil, fmt.Errorf("%w: succeeded without analyzeResult", ErrInvalidResponse)
			}
			return status.AnalyzeResult, nil
		case "failed":
			svcErr := &ServiceError{StatusCode: http.StatusOK}
			if status.Error != nil {
				svcErr.Code = status.Error.Code
				svcErr.Message = status.Error.Message
			}
			return nil, svcErr
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, opURL string) (*operationStatus, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if err := c.auth.Authorize(ctx, req); err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, c.serviceError(resp)
	}

	var status operationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	wait := c.pollInterval
	if after := resp.Header.Get("Retry-After"); after != "" {
		if seconds, err := strconv.Atoi(after); err == nil && seconds >= 0 {
			wait = time.Duration(seconds) * time.Second
		}
	}

	return &status, wait, nil
}

// serviceError decodes an error reply body into a *ServiceError.
func (c *Client) serviceError(resp *http.Response) error {
	svcErr := &ServiceError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(body) > 0 {
		var envelope struct {
			Error *serviceErrorBody `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			svcErr.Code = envelope.Error.Code
			svcErr.Message = envelope.Error.Message
		} else {
			svcErr.Message = strings.TrimSpace(string(body))
		}
	}
	if svcErr.Message == "" {
		svcErr.Message = http.StatusText(resp.StatusCode)
	}

	return svcErr
}
