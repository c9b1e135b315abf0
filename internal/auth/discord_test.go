package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// fakeDiscord stands in for the provider API: token endpoint, user
// endpoint, revocation endpoint.
func fakeDiscord(t *testing.T, failExchange, failFetch bool) (*httptest.Server, *[]string) {
	t.Helper()
	var revoked []string

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if failExchange {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if failFetch {
			http.Error(w, `{"message":"401: Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") != "Bearer access-123" {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"42","username":"gamer","avatar":"abc123"}`)
	})
	mux.HandleFunc("/oauth2/token/revoke", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		revoked = append(revoked, r.FormValue("token"))
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &revoked
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := NewProvider("client-id", "client-secret", "http://localhost:8080/auth/callback", DefaultAPIBase)

	url := p.AuthCodeURL("state-nonce")
	for _, want := range []string{"client-id", "state-nonce", "identify", "oauth2/authorize"} {
		if !strings.Contains(url, want) {
			t.Errorf("Expected auth URL to contain %q, got %s", want, url)
		}
	}
}

func TestProvider_ExchangeAndFetch(t *testing.T) {
	server, _ := fakeDiscord(t, false, false)
	p := NewProvider("client-id", "client-secret", "http://localhost/cb", server.URL)
	ctx := context.Background()

	token, err := p.Exchange(ctx, "good-code")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if token.AccessToken != "access-123" {
		t.Errorf("Expected access-123, got %s", token.AccessToken)
	}

	user, err := p.FetchIdentity(ctx, token)
	if err != nil {
		t.Fatalf("FetchIdentity failed: %v", err)
	}
	if user.ID != "42" || user.Username != "gamer" || user.Avatar != "abc123" {
		t.Errorf("Identity mismatch: %+v", user)
	}
	if user.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestProvider_ExchangeRejected(t *testing.T) {
	server, _ := fakeDiscord(t, true, false)
	p := NewProvider("client-id", "client-secret", "http://localhost/cb", server.URL)

	_, err := p.Exchange(context.Background(), "bad-code")
	if !errors.Is(err, ErrExchangeFailed) {
		t.Errorf("Expected ErrExchangeFailed, got %v", err)
	}
}

func TestProvider_FetchRejected(t *testing.T) {
	server, _ := fakeDiscord(t, false, true)
	p := NewProvider("client-id", "client-secret", "http://localhost/cb", server.URL)

	_, err := p.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "access-123"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
}

func TestProvider_RevokeToken(t *testing.T) {
	server, revoked := fakeDiscord(t, false, false)
	p := NewProvider("client-id", "client-secret", "http://localhost/cb", server.URL)

	if err := p.RevokeToken(context.Background(), "access-123"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if len(*revoked) != 1 || (*revoked)[0] != "access-123" {
		t.Errorf("Expected revocation of access-123, got %v", *revoked)
	}
}
