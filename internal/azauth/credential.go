// Package azauth resolves credentials for the Azure Document Intelligence service.
//
// Three credential modes are supported:
//   - Static API key (Ocp-Apim-Subscription-Key header), read from an explicit
//     parameter or the DOCUMENT_INTELLIGENCE_KEY environment variable.
//   - Managed identity, resolved from the Azure instance metadata service (IMDS)
//     available to VMs, App Service and container workloads.
//   - Interactive browser login as a local-development fallback when no
//     managed identity is available.
//
// Credentials are resolved per call and never cached across calls: each
// analyze call builds a fresh authorizer, which acquires its token on first
// use and reuses it for every request in that call until the token expires.
package azauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"docintel/internal/logger"
)

// DefaultScope is the OAuth2 scope for the Cognitive Services resource.
const DefaultScope = "https://cognitiveservices.azure.com/.default"

// Common credential errors
var (
	// ErrMissingCredential is returned when key-based auth is requested but no
	// API key is supplied via parameter or environment.
	ErrMissingCredential = errors.New("missing API key: set DOCUMENT_INTELLIGENCE_KEY or pass an explicit key")

	// ErrCredentialUnavailable is returned when every credential source in the
	// ambient chain (managed identity, interactive browser) failed.
	ErrCredentialUnavailable = errors.New("failed to acquire Azure credentials: no managed identity available and interactive login failed")
)

// Token is an access token with its expiry.
type Token struct {
	Value     string
	ExpiresOn time.Time
}

// TokenCredential acquires access tokens for a resource scope.
type TokenCredential interface {
	GetToken(ctx context.Context, scope string) (Token, error)
}

// RequestAuthorizer attaches authentication material to an outgoing request.
type RequestAuthorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// KeyAuthorizer authenticates requests with a static subscription key.
type KeyAuthorizer struct {
	Key string
}

// Authorize sets the subscription key header.
func (a KeyAuthorizer) Authorize(_ context.Context, req *http.Request) error {
	if a.Key == "" {
		return ErrMissingCredential
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.Key)
	return nil
}

// BearerAuthorizer authenticates requests with a bearer token from a
// TokenCredential. The token is acquired on first use and reused for the
// authorizer's lifetime, refreshing only once ExpiresOn has passed, so an
// analyze call that polls a long-running operation evaluates its credential
// chain a single time.
type BearerAuthorizer struct {
	credential TokenCredential
	scope      string

	mu    sync.Mutex
	token Token
}

// NewBearerAuthorizer creates a bearer authorizer over the given credential.
// An empty scope defaults to DefaultScope.
func NewBearerAuthorizer(credential TokenCredential, scope string) *BearerAuthorizer {
	if scope == "" {
		scope = DefaultScope
	}
	return &BearerAuthorizer{credential: credential, scope: scope}
}

// Authorize sets the Authorization header, acquiring a token only when none
// is held or the held one has expired.
func (a *BearerAuthorizer) Authorize(ctx context.Context, req *http.Request) error {
	token, err := a.currentToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	return nil
}

func (a *BearerAuthorizer) currentToken(ctx context.Context) (Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token.Value != "" && (a.token.ExpiresOn.IsZero() || time.Now().Before(a.token.ExpiresOn)) {
		return a.token, nil
	}

	token, err := a.credential.GetToken(ctx, a.scope)
	if err != nil {
		return Token{}, err
	}
	a.token = token
	return token, nil
}

// ChainedCredential tries each credential source in order and returns the
// first token acquired.
type ChainedCredential struct {
	sources []TokenCredential
	log     zerolog.Logger
}

// NewChainedCredential builds a chain over the given sources.
func NewChainedCredential(sources ...TokenCredential) *ChainedCredential {
	return &ChainedCredential{
		sources: sources,
		log:     logger.WithComponent("azauth"),
	}
}

// NewDefaultCredential returns the standard ambient chain: managed identity
// first, interactive browser login as the local-development fallback.
func NewDefaultCredential(tenantID, clientID string) *ChainedCredential {
	return NewChainedCredential(
		NewManagedIdentityCredential(ManagedIdentityOptions{ClientID: clientID}),
		NewInteractiveBrowserCredential(BrowserOptions{TenantID: tenantID, ClientID: clientID}),
	)
}

// GetToken tries each source in order, returning the first token acquired.
// If every source fails the result wraps ErrCredentialUnavailable.
func (c *ChainedCredential) GetToken(ctx context.Context, scope string) (Token, error) {
	var errs []error
	for _, source := range c.sources {
		token, err := source.GetToken(ctx, scope)
		if err == nil {
			return token, nil
		}
		c.log.Warn().
			Err(err).
			Str("source", fmt.Sprintf("%T", source)).
			Msg("Credential source failed, trying next")
		errs = append(errs, err)
	}
	return Token{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, errors.Join(errs...))
}
