package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lithiumhub/lithium/backend/internal/crypto"
	"github.com/lithiumhub/lithium/backend/internal/model"
)

// DefaultTTL is how long an issued credential stays valid.
const DefaultTTL = 24 * time.Hour

// TokenRevoker revokes a provider access token. Satisfied by
// *auth.Provider; optional.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, accessToken string) error
}

// Manager issues and validates session credentials. A credential is a
// signed HS256 JWT carrying the identity claims plus a session id; the
// session id references a server-side record (DynamoDB with TTL, or an
// in-memory map when client is nil) so logout actually revokes the
// credential instead of waiting out the expiry. The provider access token
// is encrypted before it touches the table.
type Manager struct {
	client    *dynamodb.Client
	tableName string
	encryptor crypto.Encryptor
	revoker   TokenRevoker
	jwtSecret string
	ttl       time.Duration

	records map[string]model.SessionRecord
	mu      sync.RWMutex
}

// NewManager creates a Manager. client may be nil for the in-memory
// fallback; revoker may be nil if provider-side revocation is not wanted.
func NewManager(client *dynamodb.Client, tableName string, encryptor crypto.Encryptor, revoker TokenRevoker, jwtSecret string) *Manager {
	return &Manager{
		client:    client,
		tableName: tableName,
		encryptor: encryptor,
		revoker:   revoker,
		jwtSecret: jwtSecret,
		ttl:       DefaultTTL,
		records:   make(map[string]model.SessionRecord),
	}
}

// Issue creates a credential bound to the given identity and persists the
// matching session record. providerToken is the provider access token; it
// is stored encrypted so logout can revoke it upstream.
func (m *Manager) Issue(ctx context.Context, user *model.User, providerToken string) (string, error) {
	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(m.ttl)

	encrypted := ""
	if providerToken != "" {
		var err error
		encrypted, err = m.encryptor.Encrypt(ctx, providerToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt provider token: %w", err)
		}
	}

	record := model.SessionRecord{
		SessionID:              sessionID,
		UserID:                 user.ID,
		EncryptedProviderToken: encrypted,
		ExpiresAt:              expiresAt.Unix(),
	}

	if err := m.putRecord(ctx, record); err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub":    user.ID,
		"name":   user.Username,
		"avatar": user.Avatar,
		"jti":    sessionID,
		"exp":    expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate resolves a credential to its identity. It never surfaces an
// error: a missing, malformed, expired, or revoked credential is simply
// no user.
func (m *Manager) Validate(ctx context.Context, credential string) *model.User {
	user, sessionID := m.parse(credential)
	if user == nil {
		return nil
	}

	// Credentials without a session id are the self-contained form (no
	// server-side record to consult).
	if sessionID == "" {
		return user
	}

	record, err := m.getRecord(ctx, sessionID)
	if err != nil || record == nil {
		return nil
	}
	if record.UserID != user.ID || record.ExpiresAt < time.Now().Unix() {
		return nil
	}
	return user
}

// Revoke invalidates a credential. It is idempotent: an unknown or
// already-revoked credential is a success. Provider-side token revocation
// is best effort.
func (m *Manager) Revoke(ctx context.Context, credential string) error {
	user, sessionID := m.parse(credential)
	if user == nil || sessionID == "" {
		return nil
	}

	record, err := m.getRecord(ctx, sessionID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	if m.revoker != nil && record.EncryptedProviderToken != "" {
		if providerToken, err := m.encryptor.Decrypt(ctx, record.EncryptedProviderToken); err == nil {
			if err := m.revoker.RevokeToken(ctx, providerToken); err != nil {
				fmt.Printf("provider token revocation failed: %v\n", err)
			}
		}
	}

	return m.deleteRecord(ctx, sessionID)
}

// parse verifies the JWT signature and expiry and extracts the identity
// claims. Returns nil on any verification failure.
func (m *Manager) parse(credential string) (*model.User, string) {
	if credential == "" {
		return nil, ""
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ""
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ""
	}

	user := &model.User{ID: sub}
	if name, ok := claims["name"].(string); ok {
		user.Username = name
	}
	if avatar, ok := claims["avatar"].(string); ok {
		user.Avatar = avatar
	}
	sessionID, _ := claims["jti"].(string)
	return user, sessionID
}

func (m *Manager) putRecord(ctx context.Context, record model.SessionRecord) error {
	if m.client == nil {
		m.mu.Lock()
		m.records[record.SessionID] = record
		m.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}

func (m *Manager) getRecord(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	if m.client == nil {
		m.mu.RLock()
		record, ok := m.records[sessionID]
		m.mu.RUnlock()
		if !ok {
			return nil, nil
		}
		return &record, nil
	}

	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var record model.SessionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &record, nil
}

func (m *Manager) deleteRecord(ctx context.Context, sessionID string) error {
	if m.client == nil {
		m.mu.Lock()
		delete(m.records, sessionID)
		m.mu.Unlock()
		return nil
	}

	_, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}
