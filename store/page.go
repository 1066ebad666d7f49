package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
)

// Pager is the cursor state of a paginated read. The same Pager is passed to
// successive ReadPage calls; it must not be shared between concurrent reads.
type Pager struct {
	// Limit is the maximum number of objects per page (<= 0 means DefaultPageLimit).
	Limit int

	// LastKey is the opaque cursor of the next page; empty starts from the beginning.
	LastKey string

	// Count is the running total of objects returned with this Pager.
	Count int
}

// NewPager returns a fresh pager with the given page size.
func NewPager(limit int) *Pager {
	return &Pager{Limit: limit}
}

func (p *Pager) limit() int32 {
	if p.Limit <= 0 {
		return DefaultPageLimit
	}
	return int32(p.Limit)
}

// ReadPage returns the next page of the tenant's objects and advances the pager.
//
// Dedicated tenants are scanned; the next cursor is the id of the last object
// read, taken from the store's continuation key when it reports one. Shared tenants are
// queried through the (appid, timestamp) index; the next cursor is the timestamp
// of the last object. On error the pager is left unchanged.
func (s *Store) ReadPage(ctx context.Context, tenant string, p *Pager) ([]*object.Object, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, nil
	}
	if p == nil {
		p = &Pager{}
	}
	target := s.targetFor(tenant)

	var (
		results []*object.Object
		lastKey string
		err     error
	)
	if target.Mode == Shared {
		results, lastKey, err = s.queryPage(ctx, tenant, target, p)
	} else {
		results, lastKey, err = s.scanPage(ctx, tenant, target, p)
	}
	if err != nil {
		return results, err
	}

	if lastKey != "" {
		p.LastKey = lastKey
	} else if len(results) > 0 {
		// End reached: mark it with the last object's id.
		p.LastKey = results[len(results)-1].ID
	}
	p.Count += len(results)

	s.logger.Debug().
		Str("tenant", tenant).
		Str("mode", target.Mode.String()).
		Int("results", len(results)).
		Str("lastKey", p.LastKey).
		Msg("read page")
	return results, nil
}

// scanPage reads one page of a dedicated table.
// The cursor is an object id; it is resolved to the tenant's row key.
func (s *Store) scanPage(ctx context.Context, tenant string, target Target, p *Pager) ([]*object.Object, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(target.Table),
		Limit:     aws.Int32(p.limit()),
	}
	if p.LastKey != "" {
		input.ExclusiveStartKey = keyOf(keys.Composite(tenant, p.LastKey))
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, "", classify("scan", err)
	}

	results := make([]*object.Object, 0, len(out.Items))
	for _, item := range out.Items {
		if o := s.codec.Decode(item); o != nil {
			results = append(results, o)
		}
	}
	var lastKey string
	if k := stringAttr(out.LastEvaluatedKey, KeyField); k != "" {
		lastKey = idFromKey(k)
	}
	return results, lastKey, nil
}

// queryPage reads one page of a shared tenant through the index.
func (s *Store) queryPage(ctx context.Context, tenant string, target Target, p *Pager) ([]*object.Object, string, error) {
	keyCond := "#appid = :aid"
	exprNames := map[string]string{"#appid": object.FieldAppID}
	exprValues := map[string]types.AttributeValue{
		":aid": &types.AttributeValueMemberS{Value: tenant},
	}
	if p.LastKey != "" {
		keyCond += " AND #stamp > :ts"
		exprNames["#stamp"] = object.FieldTimestamp
		exprValues[":ts"] = &types.AttributeValueMemberS{Value: p.LastKey}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(target.Table),
		IndexName:                 aws.String(target.Index),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		Limit:                     aws.Int32(p.limit()),
	})
	if err != nil {
		return nil, "", classify("query", err)
	}

	results := make([]*object.Object, 0, len(out.Items))
	for _, item := range out.Items {
		if o := s.codec.Decode(item); o != nil {
			results = append(results, o)
		}
	}
	var lastKey string
	if len(results) > 0 {
		if ts := results[len(results)-1].Timestamp; ts != 0 {
			lastKey = strconv.FormatInt(ts, 10)
		}
	}
	return results, lastKey, nil
}
