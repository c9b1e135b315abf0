// Package catalog is the authoritative local store of download entries,
// keyed by owner identity.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lithiumhub/lithium/backend/internal/model"
)

var (
	// ErrInvalidEntry is returned when an entry violates the catalog
	// invariants (empty title, missing payload, size limits).
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrStorageUnavailable is returned when the persistence layer fails.
	// Retryable: the client should re-issue the request.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Entry limits. Blobs ride inside DynamoDB items, which cap at 400KB, so
// the file and image payloads are bounded well under that.
const (
	maxTitleLength   = 255
	maxFileBlobSize  = 256 * 1024
	maxImageBlobSize = 128 * 1024
	maxOwnerEntries  = 500
)

// seqCounterID is the reserved item id holding the atomic insertion
// counter. It has no owner_id attribute, so list scans never see it.
const seqCounterID = "_seq_counter"

// Store holds download entries in DynamoDB. With a nil client it keeps
// everything in an in-memory slice (tests, dev mode). Entries are under
// the store's exclusive custody: every accessor returns copies.
type Store struct {
	client    *dynamodb.Client
	tableName string

	entries []model.Download
	nextSeq int64
	mu      sync.RWMutex
}

// NewStore creates a Store. client may be nil for the in-memory fallback.
func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// validate checks the entry invariants shared by both backends.
func validate(entry *model.Download) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEntry)
	}
	if entry.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	}
	if len(entry.Title) > maxTitleLength {
		return fmt.Errorf("%w: title too long", ErrInvalidEntry)
	}
	switch entry.Kind {
	case model.KindLink:
		if entry.ExternalLink == "" {
			return fmt.Errorf("%w: link entry requires external_link", ErrInvalidEntry)
		}
	case model.KindFile:
		if entry.FileBlob == "" {
			return fmt.Errorf("%w: file entry requires file_blob", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, entry.Kind)
	}
	if len(entry.FileBlob) > maxFileBlobSize {
		return fmt.Errorf("%w: file too large", ErrInvalidEntry)
	}
	if len(entry.ImageBlob) > maxImageBlobSize {
		return fmt.Errorf("%w: image too large", ErrInvalidEntry)
	}
	return nil
}

// Add validates and stores a new entry for ownerID, assigning its
// insertion sequence and creation time. The stored entry is returned.
func (s *Store) Add(ctx context.Context, ownerID string, entry *model.Download) (*model.Download, error) {
	if err := validate(entry); err != nil {
		return nil, err
	}

	count, err := s.countOwnerEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if count >= maxOwnerEntries {
		return nil, fmt.Errorf("%w: entry limit reached", ErrInvalidEntry)
	}

	stored := *entry
	stored.OwnerID = ownerID
	stored.CreatedAt = time.Now().UTC()

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextSeq++
		stored.Seq = s.nextSeq
		s.entries = append(s.entries, stored)
		return &stored, nil
	}

	seq, err := s.allocateSeq(ctx)
	if err != nil {
		return nil, err
	}
	stored.Seq = seq

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put entry: %v", ErrStorageUnavailable, err)
	}
	return &stored, nil
}

// List returns entries newest-first. An empty ownerID returns the full
// public catalog across all owners.
func (s *Store) List(ctx context.Context, ownerID string) ([]model.Download, error) {
	var entries []model.Download

	if s.client == nil {
		s.mu.RLock()
		for _, e := range s.entries {
			if ownerID == "" || e.OwnerID == ownerID {
				entries = append(entries, e)
			}
		}
		s.mu.RUnlock()
	} else {
		input := &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("attribute_exists(owner_id)"),
		}
		if ownerID != "" {
			input.FilterExpression = aws.String("owner_id = :uid")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: ownerID},
			}
		}

		paginator := dynamodb.NewScanPaginator(s.client, input)
		for paginator.HasMorePages() {
			out, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: scan entries: %v", ErrStorageUnavailable, err)
			}
			var page []model.Download
			if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entries: %w", err)
			}
			entries = append(entries, page...)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Seq > entries[j].Seq
	})
	return entries, nil
}

// Remove deletes the entry only if it belongs to ownerID. A missing entry
// or an owner mismatch is a silent no-op so callers cannot probe for other
// owners' entry ids.
func (s *Store) Remove(ctx context.Context, ownerID, entryID string) error {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.entries {
			if e.ID == entryID && e.OwnerID == ownerID {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				return nil
			}
		}
		return nil
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: entryID},
		},
		ConditionExpression: aws.String("owner_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("%w: delete entry: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Clear removes every entry owned by ownerID and nothing else.
func (s *Store) Clear(ctx context.Context, ownerID string) error {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.OwnerID != ownerID {
				kept = append(kept, e)
			}
		}
		s.entries = kept
		return nil
	}

	owned, err := s.List(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, e := range owned {
		if err := s.Remove(ctx, ownerID, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) countOwnerEntries(ctx context.Context, ownerID string) (int, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		n := 0
		for _, e := range s.entries {
			if e.OwnerID == ownerID {
				n++
			}
		}
		return n, nil
	}

	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("owner_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: ownerID},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count entries: %v", ErrStorageUnavailable, err)
	}
	return int(out.Count), nil
}

// allocateSeq increments the atomic insertion counter and returns the new
// value. Insertion order, not timestamps, is authoritative for ordering.
func (s *Store) allocateSeq(ctx context.Context) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: seqCounterID},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: allocate sequence: %v", ErrStorageUnavailable, err)
	}

	attr, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("%w: counter item has no seq attribute", ErrStorageUnavailable)
	}
	seq, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse sequence value: %w", err)
	}
	return seq, nil
}
