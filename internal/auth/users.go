package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lithiumhub/lithium/backend/internal/model"
)

// ErrUserNotFound is returned by Get for an unknown user id.
var ErrUserNotFound = errors.New("user not found")

// UserStore caches provider identities in DynamoDB, keyed by the provider
// user id. Inserts are conditional: an identity that already exists is
// never overwritten, so the first observed username/avatar sticks. With a
// nil client the store keeps everything in memory (tests, dev mode).
type UserStore struct {
	client    *dynamodb.Client
	tableName string

	users map[string]model.User
	mu    sync.RWMutex
}

// NewUserStore creates a UserStore. client may be nil for the in-memory
// fallback.
func NewUserStore(client *dynamodb.Client, tableName string) *UserStore {
	return &UserStore{
		client:    client,
		tableName: tableName,
		users:     make(map[string]model.User),
	}
}

// PutIfAbsent inserts the identity unless one with the same id already
// exists. The "already exists" case is a successful no-op, not an error:
// this is deliberately an insert-if-absent, never an upsert.
func (s *UserStore) PutIfAbsent(ctx context.Context, user *model.User) error {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.users[user.ID]; !ok {
			s.users[user.ID] = *user
		}
		return nil
	}

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// Get retrieves a cached identity by id.
func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if u, ok := s.users[id]; ok {
			return &u, nil
		}
		return nil, ErrUserNotFound
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if out.Item == nil {
		return nil, ErrUserNotFound
	}

	var user model.User
	if err := attributevalue.UnmarshalMap(out.Item, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}
