package azauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubCredential struct {
	token Token
	err   error
}

func (s stubCredential) GetToken(context.Context, string) (Token, error) {
	return s.token, s.err
}

func TestKeyAuthorizer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.test/analyze", nil)

	if err := (KeyAuthorizer{Key: "secret"}).Authorize(context.Background(), req); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if got := req.Header.Get("Ocp-Apim-Subscription-Key"); got != "secret" {
		t.Errorf("subscription key header = %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("key auth must not set Authorization, got %q", got)
	}
}

func TestKeyAuthorizerEmptyKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.test/analyze", nil)
	err := KeyAuthorizer{}.Authorize(context.Background(), req)
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Authorize() error = %v, want %v", err, ErrMissingCredential)
	}
}

func TestBearerAuthorizer(t *testing.T) {
	cred := stubCredential{token: Token{Value: "tok-123"}}
	req := httptest.NewRequest(http.MethodGet, "http://example.test/op", nil)

	if err := NewBearerAuthorizer(cred, "").Authorize(context.Background(), req); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestBearerAuthorizerPropagatesFailure(t *testing.T) {
	cred := stubCredential{err: fmt.Errorf("no token for you")}
	req := httptest.NewRequest(http.MethodGet, "http://example.test/op", nil)

	if err := NewBearerAuthorizer(cred, "").Authorize(context.Background(), req); err == nil {
		t.Fatal("Authorize() must fail when the credential fails")
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("failed auth must not set a header, got %q", got)
	}
}

// countingCredential records how many tokens were minted.
type countingCredential struct {
	calls int
	token Token
}

func (c *countingCredential) GetToken(context.Context, string) (Token, error) {
	c.calls++
	c.token.Value = fmt.Sprintf("tok-%d", c.calls)
	return c.token, nil
}

func TestBearerAuthorizerReusesToken(t *testing.T) {
	cred := &countingCredential{token: Token{ExpiresOn: time.Now().Add(time.Hour)}}
	auth := NewBearerAuthorizer(cred, "")

	// Submit plus several polls of the same call.
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://example.test/op", nil)
		if err := auth.Authorize(context.Background(), req); err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want the first token reused", got)
		}
	}
	if cred.calls != 1 {
		t.Errorf("GetToken ran %d times, want 1", cred.calls)
	}
}

func TestBearerAuthorizerRefreshesExpiredToken(t *testing.T) {
	cred := &countingCredential{token: Token{ExpiresOn: time.Now().Add(-time.Minute)}}
	auth := NewBearerAuthorizer(cred, "")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://example.test/op", nil)
		if err := auth.Authorize(context.Background(), req); err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
	}
	if cred.calls != 2 {
		t.Errorf("GetToken ran %d times, want 2 (expired token must be replaced)", cred.calls)
	}
}

func TestChainedCredentialFirstSuccessWins(t *testing.T) {
	chain := NewChainedCredential(
		stubCredential{err: errors.New("source one down")},
		stubCredential{token: Token{Value: "from-two"}},
		stubCredential{token: Token{Value: "from-three"}},
	)

	token, err := chain.GetToken(context.Background(), DefaultScope)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if token.Value != "from-two" {
		t.Errorf("token = %q, want the first successful source", token.Value)
	}
}

func TestChainedCredentialAllSourcesFail(t *testing.T) {
	first := errors.New("imds unreachable")
	second := errors.New("browser login timed out")
	chain := NewChainedCredential(stubCredential{err: first}, stubCredential{err: second})

	_, err := chain.GetToken(context.Background(), DefaultScope)
	if !errors.Is(err, ErrCredentialUnavailable) {
		t.Fatalf("GetToken() error = %v, want %v", err, ErrCredentialUnavailable)
	}
	// Both source failures stay inspectable.
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("joined error lost a source failure: %v", err)
	}
}

func TestManagedIdentityCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Metadata"); got != "true" {
			t.Errorf("Metadata header = %q, want true", got)
		}
		if got := r.URL.Query().Get("api-version"); got != "2018-02-01" {
			t.Errorf("api-version = %q", got)
		}
		if got := r.URL.Query().Get("resource"); got != "https://cognitiveservices.azure.com" {
			t.Errorf("resource = %q, scope suffix must be stripped", got)
		}
		if got := r.URL.Query().Get("client_id"); got != "user-assigned" {
			t.Errorf("client_id = %q", got)
		}
		fmt.Fprintf(w, `{"access_token":"imds-token","expires_on":"%d"}`, time.Now().Add(time.Hour).Unix())
	}))
	defer server.Close()

	cred := NewManagedIdentityCredential(ManagedIdentityOptions{
		ClientID: "user-assigned",
		Endpoint: server.URL,
	})
	token, err := cred.GetToken(context.Background(), DefaultScope)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if token.Value != "imds-token" {
		t.Errorf("token = %q", token.Value)
	}
	if token.ExpiresOn.IsZero() {
		t.Errorf("expiry not parsed")
	}
}

func TestManagedIdentityCredentialRejectedByIMDS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	cred := NewManagedIdentityCredential(ManagedIdentityOptions{Endpoint: server.URL})
	if _, err := cred.GetToken(context.Background(), DefaultScope); err == nil {
		t.Fatal("GetToken() must fail on a non-200 IMDS reply")
	}
}

func TestManagedIdentityCredentialEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"access_token":""}`)
	}))
	defer server.Close()

	cred := NewManagedIdentityCredential(ManagedIdentityOptions{Endpoint: server.URL})
	if _, err := cred.GetToken(context.Background(), DefaultScope); err == nil {
		t.Fatal("GetToken() must reject an empty access token")
	}
}
