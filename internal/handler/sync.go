package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/lithiumhub/lithium/backend/internal/mirror"
	"github.com/lithiumhub/lithium/backend/internal/remote"
	"github.com/lithiumhub/lithium/backend/internal/session"
)

// SyncHandler triggers a mirror of the catalog to the remote store.
type SyncHandler struct {
	syncer   *mirror.Syncer
	sessions *session.Manager

	// mirrorAll publishes the full catalog instead of the caller's slice.
	mirrorAll bool
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncer *mirror.Syncer, sessions *session.Manager, mirrorAll bool) *SyncHandler {
	return &SyncHandler{syncer: syncer, sessions: sessions, mirrorAll: mirrorAll}
}

// Trigger runs one sync. A losing race against a concurrent sync comes
// back as 409 sync_conflict and the caller may simply re-trigger; remote
// failures come back as 502 with the provider's diagnostic.
func (h *SyncHandler) Trigger(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user := currentUser(ctx, req, h.sessions)
	if user == nil {
		return errorResponse(http.StatusUnauthorized, "not_authenticated"), nil
	}

	ownerID := user.ID
	if h.mirrorAll {
		ownerID = ""
	}

	err := h.syncer.Sync(ctx, ownerID)
	if err == nil {
		return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
	}

	if errors.Is(err, mirror.ErrConflict) {
		return errorResponse(http.StatusConflict, "sync_conflict"), nil
	}

	var te *remote.TransportError
	if errors.As(err, &te) {
		fmt.Printf("Sync transport error: %v\n", te)
		return jsonResponse(http.StatusBadGateway, map[string]string{
			"error":   "github_error",
			"details": te.Error(),
		}), nil
	}

	fmt.Printf("Sync error: %v\n", err)
	return errorResponse(http.StatusInternalServerError, "db_error"), nil
}
