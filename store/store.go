package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
)

// Options configures the collaborators of a Store.
type Options struct {
	// Logger receives operation logs. Default: zerolog.Nop().
	Logger *zerolog.Logger

	// Tenancy resolves tenancy modes.
	// Default: SharedTenants(config.SharedTenants...).
	Tenancy TenancyResolver

	// Schema describes field capabilities. Default: object.DefaultSchema().
	Schema object.Schema

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// NewID generates object ids. Default: random UUIDs.
	NewID func() string
}

// Store maps tenant-scoped objects onto DynamoDB rows.
// It holds no mutable state and is safe for concurrent use.
type Store struct {
	client  Client
	config  Config
	codec   *Codec
	tenancy TenancyResolver
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	return NewWithOptions(client, config, Options{})
}

// NewWithOptions creates a new Store instance with explicit collaborators.
func NewWithOptions(client Client, config Config, opts Options) *Store {
	config.validate()

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	tenancy := opts.Tenancy
	if tenancy == nil {
		tenancy = SharedTenants(config.SharedTenants...)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Store{
		client:  client,
		config:  config,
		codec:   NewCodec(opts.Schema, logger),
		tenancy: tenancy,
		logger:  logger,
		now:     now,
		newID:   newID,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Codec returns the store's row codec.
func (s *Store) Codec() *Codec {
	return s.codec
}

// timestamp returns the current time in Unix milliseconds.
func (s *Store) timestamp() int64 {
	return s.now().UnixMilli()
}

// prepareCreate assigns id and timestamp if absent and stamps the tenant.
// An assigned timestamp is always greater than after.
func (s *Store) prepareCreate(tenant string, o *object.Object, after int64) {
	if strings.TrimSpace(o.ID) == "" {
		o.ID = s.newID()
	}
	if o.Timestamp == 0 {
		o.Timestamp = max(s.timestamp(), after+1)
	}
	o.AppID = tenant
}

// createRow encodes the object with its composite key.
func (s *Store) createRow(tenant string, o *object.Object) Row {
	row := s.codec.Encode(o, false)
	s.codec.setRowKey(row, keys.Composite(tenant, o.ID))
	return row
}

// Create stores a new object and returns its id.
// The id and timestamp are assigned if absent; the tenant is always stamped.
// A nil object or blank tenant is a no-op returning "".
func (s *Store) Create(ctx context.Context, tenant string, o *object.Object) (string, error) {
	if o == nil || strings.TrimSpace(tenant) == "" {
		return "", nil
	}
	s.prepareCreate(tenant, o, 0)
	target := s.targetFor(tenant)

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(target.Table),
		Item:      s.createRow(tenant, o),
	})
	if err != nil {
		return "", classify("create", err)
	}

	s.logger.Debug().Str("tenant", tenant).Str("id", o.ID).Msg("created object")
	return o.ID, nil
}

// Read fetches an object by id. Returns ErrNotFound if the row doesn't exist
// or the inputs are blank.
func (s *Store) Read(ctx context.Context, tenant, id string) (*object.Object, error) {
	if strings.TrimSpace(tenant) == "" || strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	target := s.targetFor(tenant)

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(target.Table),
		Key:       keyOf(keys.Composite(tenant, id)),
	})
	if err != nil {
		return nil, classify("read", err)
	}
	o := s.codec.Decode(result.Item)
	if o == nil {
		return nil, ErrNotFound
	}

	s.logger.Debug().Str("tenant", tenant).Str("id", id).Msg("read object")
	return o, nil
}

// Update overwrites the object's mutable fields and refreshes its updated time.
// Fields absent from the object are left untouched in the store.
// A nil object or blank id is a no-op.
func (s *Store) Update(ctx context.Context, tenant string, o *object.Object) error {
	if o == nil || strings.TrimSpace(o.ID) == "" || strings.TrimSpace(tenant) == "" {
		return nil
	}
	o.Updated = s.timestamp()
	row := s.codec.Encode(o, true)
	if len(row) == 0 {
		return nil
	}
	target := s.targetFor(tenant)

	// Stable placeholder order keeps the expression deterministic.
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)

	var setClauses []string
	exprNames := make(map[string]string, len(row))
	exprValues := make(map[string]types.AttributeValue, len(row))
	for i, k := range names {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = row[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(target.Table),
		Key:                       keyOf(keys.Composite(tenant, o.ID)),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return classify("update", err)
	}

	s.logger.Debug().Str("tenant", tenant).Str("id", o.ID).Int("fields", len(row)).Msg("updated object")
	return nil
}

// Delete removes the object's row permanently. Deleting a missing row is not an error.
// A nil object or blank id is a no-op.
func (s *Store) Delete(ctx context.Context, tenant string, o *object.Object) error {
	if o == nil || strings.TrimSpace(o.ID) == "" || strings.TrimSpace(tenant) == "" {
		return nil
	}
	target := s.targetFor(tenant)

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(target.Table),
		Key:       keyOf(keys.Composite(tenant, o.ID)),
	})
	if err != nil {
		return classify("delete", err)
	}

	s.logger.Debug().Str("tenant", tenant).Str("id", o.ID).Msg("deleted object")
	return nil
}
