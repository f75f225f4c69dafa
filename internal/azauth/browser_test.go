package azauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestInteractiveBrowserCredentialRequiresClientID(t *testing.T) {
	cred := NewInteractiveBrowserCredential(BrowserOptions{})
	if _, err := cred.GetToken(context.Background(), DefaultScope); err == nil {
		t.Fatal("GetToken() must fail without a client ID")
	}
}

func TestInteractiveBrowserCredentialAuthURL(t *testing.T) {
	cred := NewInteractiveBrowserCredential(BrowserOptions{ClientID: "app-123"})

	var captured string
	cred.openBrowser = func(authURL string) error {
		captured = authURL

		// Simulate the identity provider redirecting back with a forged state,
		// which must abort the flow.
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirect := parsed.Query().Get("redirect_uri")
		go http.Get(redirect + "?state=forged&code=abc")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := cred.GetToken(ctx, DefaultScope)
	if err == nil || !strings.Contains(err.Error(), "state mismatch") {
		t.Fatalf("GetToken() error = %v, want a state mismatch", err)
	}

	parsed, parseErr := url.Parse(captured)
	if parseErr != nil {
		t.Fatalf("auth URL did not parse: %v", parseErr)
	}
	if !strings.HasPrefix(captured, "https://login.microsoftonline.com/organizations/oauth2/v2.0/authorize") {
		t.Errorf("auth URL = %q, want the default tenant authority", captured)
	}
	query := parsed.Query()
	if query.Get("client_id") != "app-123" {
		t.Errorf("client_id = %q", query.Get("client_id"))
	}
	if !strings.HasPrefix(query.Get("redirect_uri"), "http://127.0.0.1:") {
		t.Errorf("redirect_uri = %q, want a localhost callback", query.Get("redirect_uri"))
	}
	if query.Get("state") == "" {
		t.Error("auth URL is missing the state parameter")
	}
	if query.Get("scope") != DefaultScope {
		t.Errorf("scope = %q", query.Get("scope"))
	}
}

func TestInteractiveBrowserCredentialDeniedSignIn(t *testing.T) {
	cred := NewInteractiveBrowserCredential(BrowserOptions{ClientID: "app-123", TenantID: "contoso"})
	cred.openBrowser = func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirect := parsed.Query().Get("redirect_uri")
		state := parsed.Query().Get("state")
		go http.Get(redirect + "?state=" + state + "&error=access_denied")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := cred.GetToken(ctx, DefaultScope)
	if err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Fatalf("GetToken() error = %v, want the provider's denial", err)
	}
}

func TestInteractiveBrowserCredentialTimesOut(t *testing.T) {
	cred := NewInteractiveBrowserCredential(BrowserOptions{ClientID: "app-123"})
	cred.openBrowser = func(string) error { return nil } // user never completes sign-in

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cred.GetToken(ctx, DefaultScope)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("GetToken() error = %v, want a sign-in timeout", err)
	}
}
