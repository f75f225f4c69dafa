package azauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docintel/internal/logger"
)

const (
	// imdsEndpoint is the Azure instance metadata service token endpoint,
	// reachable only from inside an Azure-hosted workload.
	imdsEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"

	imdsAPIVersion = "2018-02-01"

	// imdsProbeTimeout bounds the IMDS round trip so the credential chain
	// falls through quickly outside Azure.
	imdsProbeTimeout = 3 * time.Second
)

// ManagedIdentityOptions configures a ManagedIdentityCredential.
type ManagedIdentityOptions struct {
	// ClientID selects a user-assigned identity. Empty uses the
	// system-assigned identity.
	ClientID string

	// Endpoint overrides the IMDS endpoint (used in tests).
	Endpoint string
}

// ManagedIdentityCredential acquires tokens from the Azure instance metadata
// service without any configured secret.
type ManagedIdentityCredential struct {
	opts       ManagedIdentityOptions
	httpClient *http.Client
	log        zerolog.Logger
}

// NewManagedIdentityCredential creates a managed identity credential.
func NewManagedIdentityCredential(opts ManagedIdentityOptions) *ManagedIdentityCredential {
	if opts.Endpoint == "" {
		opts.Endpoint = imdsEndpoint
	}
	return &ManagedIdentityCredential{
		opts:       opts,
		httpClient: &http.Client{Timeout: imdsProbeTimeout},
		log:        logger.WithComponent("managed-identity"),
	}
}

// GetToken requests a token from IMDS for the given scope.
func (c *ManagedIdentityCredential) GetToken(ctx context.Context, scope string) (Token, error) {
	query := url.Values{}
	query.Set("api-version", imdsAPIVersion)
	query.Set("resource", resourceFromScope(scope))
	if c.opts.ClientID != "" {
		query.Set("client_id", c.opts.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Metadata", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("IMDS unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("IMDS token request failed with status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresOn   string `json:"expires_on"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("invalid IMDS token response: %w", err)
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("IMDS returned an empty access token")
	}

	token := Token{Value: body.AccessToken}
	if epoch, err := strconv.ParseInt(body.ExpiresOn, 10, 64); err == nil {
		token.ExpiresOn = time.Unix(epoch, 0)
	}

	c.log.Debug().
		Time("expires_on", token.ExpiresOn).
		Msg("Acquired token from managed identity")

	return token, nil
}

// resourceFromScope converts an OAuth2 scope to the IMDS resource form by
// stripping the "/.default" suffix.
func resourceFromScope(scope string) string {
	return strings.TrimSuffix(scope, "/.default")
}
