package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lithiumhub/lithium/backend/internal/model"
)

func TestUserStore_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(nil, "")

	first := &model.User{ID: "42", Username: "gamer", Avatar: "old", CreatedAt: time.Now()}
	if err := s.PutIfAbsent(ctx, first); err != nil {
		t.Fatalf("PutIfAbsent failed: %v", err)
	}

	// A later login with a renamed account must not overwrite the cache.
	renamed := &model.User{ID: "42", Username: "renamed", Avatar: "new"}
	if err := s.PutIfAbsent(ctx, renamed); err != nil {
		t.Fatalf("Second PutIfAbsent should be a silent no-op, got %v", err)
	}

	cached, err := s.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cached.Username != "gamer" || cached.Avatar != "old" {
		t.Errorf("Cache was overwritten: %+v", cached)
	}
}

func TestUserStore_GetUnknown(t *testing.T) {
	s := NewUserStore(nil, "")

	_, err := s.Get(context.Background(), "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
