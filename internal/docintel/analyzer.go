package docintel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"docintel/internal/azauth"
	"docintel/internal/logger"
)

// LayoutAnalyzer implements Analyzer against the Azure Document Intelligence
// layout model.
type LayoutAnalyzer struct {
	cfg   AnalyzerConfig
	cache ResultCache
	log   zerolog.Logger

	// newClient is swapped out in tests.
	newClient func(endpoint, modelID string, auth azauth.RequestAuthorizer, pollInterval time.Duration) *Client
}

// NewLayoutAnalyzer creates an analyzer with the given configuration,
// applying defaults for unset fields.
func NewLayoutAnalyzer(cfg AnalyzerConfig) *LayoutAnalyzer {
	defaults := DefaultAnalyzerConfig()
	if cfg.AuthMode == "" {
		cfg.AuthMode = defaults.AuthMode
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaults.ModelID
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	return &LayoutAnalyzer{
		cfg:       cfg,
		log:       logger.WithComponent("layout-analyzer"),
		newClient: NewClient,
	}
}

// WithCache attaches a result cache keyed by document content digest.
func (a *LayoutAnalyzer) WithCache(cache ResultCache) *LayoutAnalyzer {
	a.cache = cache
	return a
}

// Analyze validates the document, resolves credentials, submits the document
// with bounded retries and returns the normalized result. The call blocks
// until the upstream analysis completes, a permanent error occurs, retries
// are exhausted, or ctx is canceled.
func (a *LayoutAnalyzer) Analyze(ctx context.Context, doc UploadedDocument) (*NormalizedResult, error) {
	const op = "Analyze"

	if err := ValidateUpload(doc, a.cfg.AcceptedTypes); err != nil {
		return nil, err
	}

	if a.cache == nil {
		return a.analyze(ctx, doc)
	}

	key := contentDigest(doc.Data)
	cached, err := a.cache.GetOrCompute(key, a.cfg.CacheTTL, func() (any, error) {
		return a.analyze(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	result, ok := cached.(*NormalizedResult)
	if !ok {
		return nil, NewAnalysisError(op, ErrInvalidResponse, fmt.Sprintf("unexpected cache entry type %T", cached))
	}
	return result, nil
}

func (a *LayoutAnalyzer) analyze(ctx context.Context, doc UploadedDocument) (*NormalizedResult, error) {
	const op = "Analyze"

	endpoint := a.cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("DOCUMENT_INTELLIGENCE_ENDPOINT")
	}
	if endpoint == "" {
		return nil, NewAnalysisError(op, ErrMissingEndpoint, "")
	}

	// Credentials are resolved once per call, never cached across calls.
	auth, err := a.resolveAuthorizer()
	if err != nil {
		return nil, err
	}

	client := a.newClient(endpoint, a.cfg.ModelID, auth, a.cfg.PollInterval)
	contentType := doc.ContentType
	if contentType == "" {
		contentType = ContentTypeForFilename(doc.Filename)
	}

	a.log.Info().
		Str("file", doc.Filename).
		Str("model_id", a.cfg.ModelID).
		Msg("Starting document analysis")

	started := time.Now()
	attempt := 0
	raw, err := retry.DoWithData(
		func() (*AnalyzeResult, error) {
			attempt++
			result, err := client.Analyze(ctx, doc.Data, contentType)
			if err != nil {
				a.log.Warn().
					Err(err).
					Int("attempt", attempt).
					Bool("transient", IsTransient(err)).
					Msg("Document submission failed")
			}
			return result, err
		},
		retry.Context(ctx),
		retry.Attempts(a.cfg.MaxRetries+1),
		retry.Delay(a.cfg.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, azauth.ErrMissingCredential) || errors.Is(err, azauth.ErrCredentialUnavailable) {
			return nil, WrapAnalysisError(op, err, "credential resolution failed")
		}
		return nil, NewAnalysisError(op, ErrAnalysisFailed, err.Error())
	}

	result := Normalize(raw, FileMetadata{
		FileName:      doc.Filename,
		FileSizeBytes: len(doc.Data),
	})

	a.log.Info().
		Str("file", doc.Filename).
		Dur("duration", time.Since(started)).
		Int("attempts", attempt).
		Msg("Document analysis completed")

	return result, nil
}

// resolveAuthorizer picks the credential for this call. Key-based and
// ambient auth are mutually exclusive: key mode never falls through to the
// identity chain.
func (a *LayoutAnalyzer) resolveAuthorizer() (azauth.RequestAuthorizer, error) {
	const op = "ResolveCredential"

	if a.cfg.AuthMode == "key" {
		key := a.cfg.APIKey
		if key == "" {
			key = os.Getenv("DOCUMENT_INTELLIGENCE_KEY")
		}
		if key == "" {
			return nil, WrapAnalysisError(op, azauth.ErrMissingCredential, "")
		}
		a.log.Debug().Msg("Using API key authentication")
		return azauth.KeyAuthorizer{Key: key}, nil
	}

	a.log.Debug().Msg("Using managed identity/interactive authentication")
	return azauth.NewBearerAuthorizer(
		azauth.NewDefaultCredential(a.cfg.TenantID, a.cfg.ClientID),
		azauth.DefaultScope,
	), nil
}

// contentDigest keys the result cache by document identity.
func contentDigest(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
