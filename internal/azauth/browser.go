package azauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"docintel/internal/logger"
)

const (
	// defaultTenant allows any work or school account to sign in.
	defaultTenant = "organizations"

	// loginTimeout bounds how long we wait for the user to complete the
	// browser sign-in before the credential chain gives up.
	loginTimeout = 2 * time.Minute
)

// BrowserOptions configures an InteractiveBrowserCredential.
type BrowserOptions struct {
	// TenantID is the Azure AD tenant. Defaults to "organizations".
	TenantID string

	// ClientID is the application registration used for the sign-in.
	ClientID string

	// RedirectPort fixes the localhost callback port. Zero picks a free port.
	RedirectPort int
}

// InteractiveBrowserCredential acquires tokens by opening the system browser
// and completing an OAuth2 authorization-code flow against a localhost
// callback listener. Intended for local development only.
type InteractiveBrowserCredential struct {
	opts BrowserOptions
	log  zerolog.Logger

	// openBrowser is swapped out in tests.
	openBrowser func(url string) error
}

// NewInteractiveBrowserCredential creates an interactive browser credential.
func NewInteractiveBrowserCredential(opts BrowserOptions) *InteractiveBrowserCredential {
	if opts.TenantID == "" {
		opts.TenantID = defaultTenant
	}
	return &InteractiveBrowserCredential{
		opts:        opts,
		log:         logger.WithComponent("browser-credential"),
		openBrowser: openSystemBrowser,
	}
}

// GetToken runs the authorization-code flow and returns the resulting token.
func (c *InteractiveBrowserCredential) GetToken(ctx context.Context, scope string) (Token, error) {
	if c.opts.ClientID == "" {
		return Token{}, fmt.Errorf("interactive browser login requires AZURE_CLIENT_ID")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", c.opts.RedirectPort))
	if err != nil {
		return Token{}, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer listener.Close()

	authority := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0", c.opts.TenantID)
	conf := &oauth2.Config{
		ClientID: c.opts.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authority + "/authorize",
			TokenURL: authority + "/token",
		},
		RedirectURL: fmt.Sprintf("http://%s/callback", listener.Addr().String()),
		Scopes:      []string{scope},
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization response state mismatch")
			return
		}
		if errCode := r.URL.Query().Get("error"); errCode != "" {
			http.Error(w, errCode, http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization failed: %s", errCode)
			return
		}
		fmt.Fprintln(w, "Sign-in complete. You can close this window.")
		codeCh <- r.URL.Query().Get("code")
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Close()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.log.Info().Str("url", authURL).Msg("Opening browser for interactive sign-in")
	if err := c.openBrowser(authURL); err != nil {
		return Token{}, fmt.Errorf("failed to open browser: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return Token{}, err
	case <-waitCtx.Done():
		return Token{}, fmt.Errorf("interactive sign-in timed out: %w", waitCtx.Err())
	}

	oauthToken, err := conf.Exchange(ctx, code)
	if err != nil {
		return Token{}, fmt.Errorf("token exchange failed: %w", err)
	}

	return Token{Value: oauthToken.AccessToken, ExpiresOn: oauthToken.Expiry}, nil
}

// openSystemBrowser launches the platform default browser.
func openSystemBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
