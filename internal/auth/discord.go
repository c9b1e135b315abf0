package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lithiumhub/lithium/backend/internal/model"
	"golang.org/x/oauth2"
)

// DefaultAPIBase is the Discord API root used outside of tests.
const DefaultAPIBase = "https://discord.com/api"

var (
	// ErrExchangeFailed is returned when the provider rejects the
	// authorization code or the token endpoint answers non-2xx.
	ErrExchangeFailed = errors.New("identity exchange failed")

	// ErrFetchFailed is returned when the identity lookup with a freshly
	// exchanged token answers non-2xx.
	ErrFetchFailed = errors.New("identity fetch failed")
)

// Provider exchanges authorization codes for Discord identities.
// It only requests the "identify" scope; nothing beyond the minimal
// profile (id, username, avatar hash) ever leaves this package.
type Provider struct {
	config  *oauth2.Config
	apiBase string
	client  *http.Client
}

// NewProvider creates a Provider. apiBase is the Discord API root and is
// parameterized so tests can point the provider at an httptest server;
// pass DefaultAPIBase in production wiring.
func NewProvider(clientID, clientSecret, redirectURL, apiBase string) *Provider {
	apiBase = strings.TrimSuffix(apiBase, "/")
	return &Provider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiBase + "/oauth2/authorize",
				TokenURL:  apiBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase: apiBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL returns the URL to redirect the user to for Discord login.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for an access token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

// discordUser is the subset of GET /users/@me we care about.
type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// FetchIdentity retrieves the authenticated user's minimal profile.
func (p *Provider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	token.SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchFailed, resp.StatusCode, string(body))
	}

	var du discordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}
	if du.ID == "" {
		return nil, fmt.Errorf("%w: empty user id in response", ErrFetchFailed)
	}

	return &model.User{
		ID:        du.ID,
		Username:  du.Username,
		Avatar:    du.Avatar,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// RevokeToken asks Discord to revoke an access token. Logout proceeds even
// if this fails, so callers treat the error as advisory.
func (p *Provider) RevokeToken(ctx context.Context, accessToken string) error {
	form := url.Values{
		"token":           {accessToken},
		"token_type_hint": {"access_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/oauth2/token/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revoke token: status %d", resp.StatusCode)
	}
	return nil
}
