package handler

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/lithiumhub/lithium/backend/internal/model"
	"github.com/lithiumhub/lithium/backend/internal/session"
)

// SessionCookie is the cookie carrying the session credential.
const SessionCookie = "lithium_session"

// getHeader does a case-insensitive header lookup.
func getHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// cookieValue extracts a cookie value from the Cookie header.
func cookieValue(req events.APIGatewayProxyRequest, name string) string {
	for _, part := range strings.Split(getHeader(req, "Cookie"), ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, name+"=") {
			return strings.TrimPrefix(part, name+"=")
		}
	}
	return ""
}

// credentialFromRequest extracts the raw credential from the Authorization
// header (Bearer <token>) or the session cookie.
func credentialFromRequest(req events.APIGatewayProxyRequest) string {
	if authHeader := getHeader(req, "Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return cookieValue(req, SessionCookie)
}

// currentUser resolves the request's session credential to an identity,
// or nil for anonymous/invalid requests.
func currentUser(ctx context.Context, req events.APIGatewayProxyRequest, sessions *session.Manager) *model.User {
	return sessions.Validate(ctx, credentialFromRequest(req))
}

// jsonResponse marshals v as the response body.
func jsonResponse(status int, v interface{}) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(v)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// errorResponse renders the structured error shape the frontend expects.
func errorResponse(status int, code string) events.APIGatewayProxyResponse {
	return jsonResponse(status, map[string]string{"error": code})
}
