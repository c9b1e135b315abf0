package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lithiumhub/lithium/backend/internal/crypto"
	"github.com/lithiumhub/lithium/backend/internal/model"
)

type fakeRevoker struct {
	revoked []string
}

func (f *fakeRevoker) RevokeToken(ctx context.Context, accessToken string) error {
	f.revoked = append(f.revoked, accessToken)
	return nil
}

func testUser() *model.User {
	return &model.User{ID: "u1", Username: "gamer", Avatar: "abc123"}
}

func TestManager_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	credential, err := m.Issue(ctx, testUser(), "provider-token")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	user := m.Validate(ctx, credential)
	if user == nil {
		t.Fatal("Expected a user from a fresh credential")
	}
	if user.ID != "u1" || user.Username != "gamer" || user.Avatar != "abc123" {
		t.Errorf("Identity mismatch: %+v", user)
	}
}

func TestManager_ValidateGarbage(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	for _, credential := range []string{
		"",
		"not-a-jwt",
		"aaaa.bbbb.cccc",
	} {
		if user := m.Validate(ctx, credential); user != nil {
			t.Errorf("Expected nil for %q, got %+v", credential, user)
		}
	}
}

func TestManager_ValidateWrongSignature(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := forged.SignedString([]byte("attacker-secret"))

	if user := m.Validate(ctx, signed); user != nil {
		t.Errorf("Expected nil for forged credential, got %+v", user)
	}
}

func TestManager_ValidateExpired(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, _ := expired.SignedString([]byte("test-secret"))

	if user := m.Validate(ctx, signed); user != nil {
		t.Errorf("Expected nil for expired credential, got %+v", user)
	}
}

func TestManager_SelfContainedCredential(t *testing.T) {
	// A credential without a session id (no jti) validates on signature
	// alone, so both credential forms resolve to the same identity shape.
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u1",
		"name": "gamer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte("test-secret"))

	user := m.Validate(ctx, signed)
	if user == nil || user.ID != "u1" || user.Username != "gamer" {
		t.Fatalf("Expected identity from self-contained credential, got %+v", user)
	}
}

func TestManager_RevokeInvalidatesCredential(t *testing.T) {
	ctx := context.Background()
	revoker := &fakeRevoker{}
	m := NewManager(nil, "", crypto.NewMockEncryptor(), revoker, "test-secret")

	credential, _ := m.Issue(ctx, testUser(), "provider-token")
	if m.Validate(ctx, credential) == nil {
		t.Fatal("Credential should validate before revocation")
	}

	if err := m.Revoke(ctx, credential); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if user := m.Validate(ctx, credential); user != nil {
		t.Errorf("Expected nil after revoke, got %+v", user)
	}

	// The provider token was decrypted and revoked upstream.
	if len(revoker.revoked) != 1 || revoker.revoked[0] != "provider-token" {
		t.Errorf("Expected upstream revocation of provider-token, got %v", revoker.revoked)
	}
}

func TestManager_RevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	credential, _ := m.Issue(ctx, testUser(), "provider-token")
	if err := m.Revoke(ctx, credential); err != nil {
		t.Fatalf("First revoke failed: %v", err)
	}
	if err := m.Revoke(ctx, credential); err != nil {
		t.Errorf("Second revoke should be a no-op, got %v", err)
	}
	if err := m.Revoke(ctx, "garbage"); err != nil {
		t.Errorf("Revoking garbage should be a no-op, got %v", err)
	}
}

func TestManager_ProviderTokenEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, "", crypto.NewMockEncryptor(), nil, "test-secret")

	credential, _ := m.Issue(ctx, testUser(), "provider-token")
	_, sessionID := m.parse(credential)
	if sessionID == "" {
		t.Fatal("Expected a session id claim")
	}

	record, err := m.getRecord(ctx, sessionID)
	if err != nil || record == nil {
		t.Fatalf("Expected a session record, got %v, %v", record, err)
	}
	if record.EncryptedProviderToken != "mock:provider-token" {
		t.Errorf("Provider token not encrypted at rest: %q", record.EncryptedProviderToken)
	}
}
