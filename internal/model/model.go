package model

import "time"

// User is the external identity verified by the OAuth provider.
// Once cached locally it is never updated: name and avatar drift on the
// provider side is accepted (first write wins).
type User struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Username  string    `json:"username" dynamodbav:"username"`
	Avatar    string    `json:"avatar,omitempty" dynamodbav:"avatar"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// SessionRecord is the server-side half of a session credential, stored in
// DynamoDB with a TTL. Deleting the record revokes the credential even
// though the JWT itself stays valid until expiry.
type SessionRecord struct {
	SessionID              string `json:"session_id" dynamodbav:"session_id"`
	UserID                 string `json:"user_id" dynamodbav:"user_id"`
	EncryptedProviderToken string `json:"-" dynamodbav:"encrypted_provider_token"`
	ExpiresAt              int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}

// Download kinds.
const (
	KindFile = "file"
	KindLink = "link"
)

// Download is a single catalog entry. Entries are immutable once stored:
// created by one add, destroyed by an owner-scoped remove or clear. File
// and image payloads are carried as opaque encoded blobs (data URLs
// produced by the browser) and never decoded server-side.
type Download struct {
	ID           string    `json:"id" dynamodbav:"id"`
	OwnerID      string    `json:"owner_id" dynamodbav:"owner_id"`
	Title        string    `json:"title" dynamodbav:"title"`
	Description  string    `json:"description,omitempty" dynamodbav:"description"`
	Kind         string    `json:"kind" dynamodbav:"kind"`
	ExternalLink string    `json:"external_link,omitempty" dynamodbav:"external_link"`
	FileBlob     string    `json:"file_blob,omitempty" dynamodbav:"file_blob"`
	FileName     string    `json:"file_name,omitempty" dynamodbav:"file_name"`
	ImageBlob    string    `json:"image_blob,omitempty" dynamodbav:"image_blob"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`

	// Seq is the store-assigned insertion sequence. It is authoritative for
	// newest-first ordering (timestamps may tie) and is not part of the
	// public JSON shape.
	Seq int64 `json:"-" dynamodbav:"seq"`
}
