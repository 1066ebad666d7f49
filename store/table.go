package store

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
)

// CreateTable creates the dedicated table of a tenant, keyed by the composite key.
// Shared tenants use the shared table; see CreateSharedTable.
func (s *Store) CreateTable(ctx context.Context, tenant string) error {
	target := s.targetFor(tenant)
	if target.Mode == Shared {
		return s.CreateSharedTable(ctx)
	}

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(target.Table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(KeyField), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(KeyField), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: s.throughput(),
	})
	if err != nil {
		return classify("create table", err)
	}

	s.logger.Info().Str("tenant", tenant).Str("table", target.Table).Msg("created table")
	return nil
}

// CreateSharedTable creates the shared table with its (appid, timestamp) index.
func (s *Store) CreateSharedTable(ctx context.Context) error {
	table := keys.TableName(s.config.TablePrefix, s.config.SharedTable)

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(KeyField), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(object.FieldAppID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(object.FieldTimestamp), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(KeyField), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(s.config.SharedIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(object.FieldAppID), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(object.FieldTimestamp), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: s.throughput(),
			},
		},
		ProvisionedThroughput: s.throughput(),
	})
	if err != nil {
		return classify("create shared table", err)
	}

	s.logger.Info().Str("table", table).Str("index", s.config.SharedIndex).Msg("created shared table")
	return nil
}

// TableExists reports whether the table holding the tenant's rows exists.
func (s *Store) TableExists(ctx context.Context, tenant string) (bool, error) {
	target := s.targetFor(tenant)

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(target.Table),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, classify("describe table", err)
	}
	return true, nil
}

// DeleteTable deletes the dedicated table of a tenant. The shared table is
// never deleted through a tenant.
func (s *Store) DeleteTable(ctx context.Context, tenant string) error {
	target := s.targetFor(tenant)
	if target.Mode == Shared {
		return nil
	}

	_, err := s.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(target.Table),
	})
	if err != nil {
		return classify("delete table", err)
	}

	s.logger.Info().Str("tenant", tenant).Str("table", target.Table).Msg("deleted table")
	return nil
}

// WaitForTable blocks until the tenant's table is active or maxWait elapses.
func (s *Store) WaitForTable(ctx context.Context, tenant string, maxWait time.Duration) error {
	target := s.targetFor(tenant)
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(target.Table)}, maxWait); err != nil {
		return classify("wait table", err)
	}
	return nil
}

func (s *Store) throughput() *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(s.config.ReadCapacity),
		WriteCapacityUnits: aws.Int64(s.config.WriteCapacity),
	}
}
