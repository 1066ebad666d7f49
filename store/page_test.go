package store_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
	"github.com/jacentio/dynadao/store"
)

func ids(objs []*object.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.ID
	}
	return out
}

func TestReadPage_DedicatedWalkTerminates(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAll(ctx, "app", makeUsers(7)))

	p := store.NewPager(3)

	page, err := s.ReadPage(ctx, "app", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj-01", "obj-02", "obj-03"}, ids(page))
	assert.Equal(t, "obj-03", p.LastKey)
	assert.Equal(t, 3, p.Count)

	page, err = s.ReadPage(ctx, "app", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj-04", "obj-05", "obj-06"}, ids(page))
	assert.Equal(t, 6, p.Count)

	// Last page: no continuation key, the cursor becomes the last id.
	page, err = s.ReadPage(ctx, "app", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj-07"}, ids(page))
	assert.Equal(t, "obj-07", p.LastKey)
	assert.Equal(t, 7, p.Count)

	page, err = s.ReadPage(ctx, "app", p)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, 7, p.Count, "count never decreases")

	scans := fake.Calls("Scan")
	require.Len(t, scans, 4)
	first := scans[0].Input.(*dynamodb.ScanInput)
	assert.Nil(t, first.ExclusiveStartKey)
	assert.Equal(t, int32(3), aws.ToInt32(first.Limit))

	second := scans[1].Input.(*dynamodb.ScanInput)
	start := second.ExclusiveStartKey[store.KeyField].(*types.AttributeValueMemberS)
	assert.Equal(t, keys.Composite("app", "obj-03"), start.Value)
}

func TestReadPage_DedicatedEndsWithIDsSortingBeforeKeys(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	objs := []*object.Object{{ID: "10"}, {ID: "11"}, {ID: "12"}}
	require.NoError(t, s.CreateAll(ctx, "app", objs))

	p := store.NewPager(5)
	page, err := s.ReadPage(ctx, "app", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11", "12"}, ids(page))
	assert.Equal(t, "12", p.LastKey)

	for i := 0; i < 3; i++ {
		page, err = s.ReadPage(ctx, "app", p)
		require.NoError(t, err)
		assert.Empty(t, page)
		assert.Equal(t, "12", p.LastKey)
		assert.Equal(t, 3, p.Count)
	}

	scans := fake.Calls("Scan")
	require.Len(t, scans, 4)
	start := scans[1].Input.(*dynamodb.ScanInput).ExclusiveStartKey[store.KeyField].(*types.AttributeValueMemberS)
	assert.Equal(t, keys.Composite("app", "12"), start.Value)
}

func TestReadPage_SharedBatchWithinOneMillisecond(t *testing.T) {
	s, _ := newFixedClockStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSharedTable(ctx))

	objs := makeUsers(5)
	require.NoError(t, s.CreateAll(ctx, "shared-app", objs))
	for i, o := range objs {
		assert.Equal(t, testEpoch.UnixMilli()+int64(i), o.Timestamp)
	}

	p := store.NewPager(2)
	var seen []string
	for i := 0; i < 10; i++ {
		page, err := s.ReadPage(ctx, "shared-app", p)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		seen = append(seen, ids(page)...)
	}

	assert.Equal(t, ids(objs), seen)
	assert.Equal(t, 5, p.Count)
}

func TestReadPage_DefaultLimit(t *testing.T) {
	s, fake := newTestStore(t)

	_, err := s.ReadPage(context.Background(), "app", &store.Pager{})
	require.NoError(t, err)

	scans := fake.Calls("Scan")
	require.Len(t, scans, 1)
	assert.Equal(t, int32(store.DefaultPageLimit), aws.ToInt32(scans[0].Input.(*dynamodb.ScanInput).Limit))
}

func TestReadPage_SharedUsesIndex(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSharedTable(ctx))
	mine := makeUsers(5)
	require.NoError(t, s.CreateAll(ctx, "shared-app", mine))
	require.NoError(t, s.CreateAll(ctx, "other-shared", makeUsers(4)))

	p := store.NewPager(2)
	var seen []string
	for i := 0; i < 10; i++ {
		page, err := s.ReadPage(ctx, "shared-app", p)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, o := range page {
			assert.Equal(t, "shared-app", o.AppID)
		}
		seen = append(seen, ids(page)...)
		assert.Equal(t, strconv.FormatInt(page[len(page)-1].Timestamp, 10), p.LastKey)
	}

	assert.Equal(t, ids(mine), seen)
	assert.Equal(t, 5, p.Count)

	queries := fake.Calls("Query")
	require.NotEmpty(t, queries)
	assert.Empty(t, fake.Calls("Scan"))

	first := queries[0].Input.(*dynamodb.QueryInput)
	assert.Equal(t, "appid_timestamp", aws.ToString(first.IndexName))
	assert.Equal(t, "#appid = :aid", aws.ToString(first.KeyConditionExpression))

	next := queries[1].Input.(*dynamodb.QueryInput)
	assert.Equal(t, "#appid = :aid AND #stamp > :ts", aws.ToString(next.KeyConditionExpression))
	assert.Equal(t, "timestamp", next.ExpressionAttributeNames["#stamp"])
}

func TestReadPage_EmptyPageKeepsCursor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSharedTable(ctx))

	p := &store.Pager{Limit: 5, LastKey: "999", Count: 4}
	page, err := s.ReadPage(ctx, "shared-app", p)
	require.NoError(t, err)

	assert.Empty(t, page)
	assert.Equal(t, "999", p.LastKey)
	assert.Equal(t, 4, p.Count)
}

func TestReadPage_ErrorLeavesPagerUnchanged(t *testing.T) {
	s, fake := newTestStore(t)
	fake.FailNext("Scan", &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")})

	p := &store.Pager{Limit: 2, LastKey: "cursor", Count: 6}
	page, err := s.ReadPage(context.Background(), "app", p)

	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStoreUnavailable))
	assert.Empty(t, page)
	assert.Equal(t, store.Pager{Limit: 2, LastKey: "cursor", Count: 6}, *p)
}

func TestReadPage_BlankTenant(t *testing.T) {
	s, fake := newTestStore(t)

	page, err := s.ReadPage(context.Background(), " ", store.NewPager(3))
	assert.NoError(t, err)
	assert.Nil(t, page)
	assert.Empty(t, fake.Calls(""))
}
