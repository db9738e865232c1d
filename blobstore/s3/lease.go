package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// ErrLeaseHeld is returned when the lease is held by another owner.
var ErrLeaseHeld = errors.New("lease held by another owner")

// LeaseClient is the subset of the DynamoDB API the lease store uses.
// *dynamodb.Client satisfies it; tests substitute a mock.
type LeaseClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// LeaseStore grants exclusive operation leases via DynamoDB conditional
// writes. S3 offers no compare-and-swap, so backup jobs on different
// machines sharing a bucket use a lease to exclude each other before
// mutating the same backup root.
//
// A lease carries a TTL; a crashed holder stops blocking others once its
// lease expires.
//
// Table schema:
//   - Partition key: lease_key (string) - scope plus the guarded name
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name vecback-leases \
//	  --attribute-definitions AttributeName=lease_key,AttributeType=S \
//	  --key-schema AttributeName=lease_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type LeaseStore struct {
	client LeaseClient
	table  string
	scope  string // key prefix, e.g. "bucket/prefix"
	owner  string
	ttl    time.Duration
}

// LeaseOption customizes a LeaseStore.
type LeaseOption func(*LeaseStore)

// WithLeaseTTL overrides how long an unreleased lease blocks other owners.
func WithLeaseTTL(ttl time.Duration) LeaseOption {
	return func(s *LeaseStore) { s.ttl = ttl }
}

// WithLeaseOwner pins the owner id instead of generating one. Two stores
// with the same owner id can take over each other's leases.
func WithLeaseOwner(owner string) LeaseOption {
	return func(s *LeaseStore) { s.owner = owner }
}

// NewLeaseStore creates a lease store writing to the given table. The scope
// namespaces lease keys, so independent backup roots don't contend.
func NewLeaseStore(client LeaseClient, table, scope string, optFns ...LeaseOption) *LeaseStore {
	s := &LeaseStore{
		client: client,
		table:  table,
		scope:  scope,
		owner:  uuid.NewString(),
		ttl:    15 * time.Minute,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Lease is a held lease. Release it when the guarded operation finishes.
type Lease struct {
	store *LeaseStore
	key   string
}

// Key returns the full lease key, including the scope.
func (l *Lease) Key() string { return l.key }

// Acquire takes the lease for name. It succeeds when no lease exists, when
// the existing lease has expired, or when the caller already owns it;
// otherwise it returns ErrLeaseHeld.
func (s *LeaseStore) Acquire(ctx context.Context, name string) (*Lease, error) {
	key := path.Join(s.scope, name)
	now := time.Now().Unix()

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"lease_key":  &types.AttributeValueMemberS{Value: key},
			"owner":      &types.AttributeValueMemberS{Value: s.owner},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(now+int64(s.ttl.Seconds()), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(lease_key) OR expires_at < :now OR #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			":owner": &types.AttributeValueMemberS{Value: s.owner},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("lease %s: %w", key, ErrLeaseHeld)
		}
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}

	return &Lease{store: s, key: key}, nil
}

// Release gives the lease back. It fails with ErrLeaseHeld when the lease
// expired and another owner took it in the meantime.
func (l *Lease) Release(ctx context.Context) error {
	s := l.store

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"lease_key": &types.AttributeValueMemberS{Value: l.key},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: s.owner},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("lease %s lost: %w", l.key, ErrLeaseHeld)
		}
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
