package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/lithiumhub/lithium/backend/internal/auth"
	"github.com/lithiumhub/lithium/backend/internal/session"
)

// stateCookie carries the OAuth CSRF nonce between login and callback.
const stateCookie = "lithium_state"

// AuthHandler handles the login flow against the identity provider.
type AuthHandler struct {
	provider    *auth.Provider
	users       *auth.UserStore
	sessions    *session.Manager
	frontendURL string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(provider *auth.Provider, users *auth.UserStore, sessions *session.Manager, frontendURL string) *AuthHandler {
	return &AuthHandler{provider: provider, users: users, sessions: sessions, frontendURL: frontendURL}
}

func cookieSameSite() string {
	if os.Getenv("DEV_MODE") == "true" {
		return "Lax"
	}
	return "None"
}

// Login redirects to the provider's authorization page with a fresh state
// nonce bound to a short-lived cookie.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	state := uuid.New().String()
	cookie := fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=600; SameSite=%s; Secure", stateCookie, state, cookieSameSite())

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": h.provider.AuthCodeURL(state),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie},
		},
	}, nil
}

// Callback completes the login: exchanges the code, fetches the identity,
// caches it (first write wins), and issues the session credential.
// Provider failures redirect to the frontend error state; they never
// crash the process.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	if code == "" {
		return h.redirectError("no_code"), nil
	}

	if state := req.QueryStringParameters["state"]; state == "" || state != cookieValue(req, stateCookie) {
		return h.redirectError("state_mismatch"), nil
	}

	token, err := h.provider.Exchange(ctx, code)
	if err != nil {
		fmt.Printf("Exchange error: %v\n", err)
		return h.redirectError("token_failed"), nil
	}

	user, err := h.provider.FetchIdentity(ctx, token)
	if err != nil {
		fmt.Printf("FetchIdentity error: %v\n", err)
		return h.redirectError("user_failed"), nil
	}

	// Cache failure is not fatal: the session claims carry the identity.
	if err := h.users.PutIfAbsent(ctx, user); err != nil {
		fmt.Printf("PutIfAbsent error: %v\n", err)
	}

	credential, err := h.sessions.Issue(ctx, user, token.AccessToken)
	if err != nil {
		fmt.Printf("Issue error: %v\n", err)
		return h.redirectError("session_failed"), nil
	}

	sessionCookie := fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=86400; SameSite=%s; Secure", SessionCookie, credential, cookieSameSite())
	clearState := fmt.Sprintf("%s=; HttpOnly; Path=/; Max-Age=0; SameSite=%s; Secure", stateCookie, cookieSameSite())

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?logged=true", h.frontendURL),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {sessionCookie, clearState},
		},
	}, nil
}

// Logout revokes the session and clears the cookie. Idempotent.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if err := h.sessions.Revoke(ctx, credentialFromRequest(req)); err != nil {
		fmt.Printf("Revoke error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "logout_error"), nil
	}

	cookie := fmt.Sprintf("%s=; HttpOnly; Path=/; Max-Age=0; SameSite=%s; Secure", SessionCookie, cookieSameSite())
	resp := jsonResponse(http.StatusOK, map[string]bool{"success": true})
	resp.MultiValueHeaders = map[string][]string{
		"Set-Cookie": {cookie},
	}
	return resp, nil
}

// User returns the logged-in identity, or {"user":null} for anonymous
// requests (never a 401: the frontend polls this on every page).
func (h *AuthHandler) User(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user := currentUser(ctx, req, h.sessions)
	if user == nil {
		return jsonResponse(http.StatusOK, map[string]interface{}{"user": nil}), nil
	}

	// Prefer the cached identity: it carries the original CreatedAt.
	if cached, err := h.users.Get(ctx, user.ID); err == nil {
		user = cached
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"user": user}), nil
}

func (h *AuthHandler) redirectError(code string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?error=%s", h.frontendURL, code),
		},
	}
}
