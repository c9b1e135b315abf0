package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/lithiumhub/lithium/backend/internal/catalog"
	"github.com/lithiumhub/lithium/backend/internal/model"
	"github.com/lithiumhub/lithium/backend/internal/session"
)

// CatalogHandler handles catalog reads and writes.
type CatalogHandler struct {
	store    *catalog.Store
	sessions *session.Manager
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store *catalog.Store, sessions *session.Manager) *CatalogHandler {
	return &CatalogHandler{store: store, sessions: sessions}
}

// List returns the public catalog. With ?mine=1 and a valid session it
// returns only the caller's entries (the management view).
func (h *CatalogHandler) List(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ownerID := ""
	if req.QueryStringParameters["mine"] == "1" {
		user := currentUser(ctx, req, h.sessions)
		if user == nil {
			return errorResponse(http.StatusUnauthorized, "not_authenticated"), nil
		}
		ownerID = user.ID
	}

	entries, err := h.store.List(ctx, ownerID)
	if err != nil {
		fmt.Printf("List error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "db_error"), nil
	}
	if entries == nil {
		entries = []model.Download{}
	}
	return jsonResponse(http.StatusOK, entries), nil
}

// Create stores a new entry owned by the caller.
func (h *CatalogHandler) Create(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user := currentUser(ctx, req, h.sessions)
	if user == nil {
		return errorResponse(http.StatusUnauthorized, "not_authenticated"), nil
	}

	var body struct {
		Item *model.Download `json:"item"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || body.Item == nil {
		return errorResponse(http.StatusBadRequest, "invalid_item"), nil
	}

	stored, err := h.store.Add(ctx, user.ID, body.Item)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidEntry) {
			return errorResponse(http.StatusBadRequest, "invalid_item"), nil
		}
		fmt.Printf("Add error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "db_error"), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"success": true,
		"item":    stored,
	}), nil
}

// Remove deletes one of the caller's entries by id. An id belonging to
// another owner is a silent success.
func (h *CatalogHandler) Remove(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user := currentUser(ctx, req, h.sessions)
	if user == nil {
		return errorResponse(http.StatusUnauthorized, "not_authenticated"), nil
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || body.ID == "" {
		return errorResponse(http.StatusBadRequest, "invalid_item"), nil
	}

	if err := h.store.Remove(ctx, user.ID, body.ID); err != nil {
		fmt.Printf("Remove error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "db_error"), nil
	}
	return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
}

// Clear deletes all of the caller's entries.
func (h *CatalogHandler) Clear(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user := currentUser(ctx, req, h.sessions)
	if user == nil {
		return errorResponse(http.StatusUnauthorized, "not_authenticated"), nil
	}

	if err := h.store.Clear(ctx, user.ID); err != nil {
		fmt.Printf("Clear error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "db_error"), nil
	}
	return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
}
