// Package ddbtest provides an in-memory DynamoDB double for unit tests.
//
// It implements the single-item, batch, scan, query and table operations used by
// the store, records every call, enforces the batch size and duplicate-key limits
// of the real service, and can report chosen items as unprocessed.
package ddbtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/emirpasic/gods/maps/treemap"
)

// Service limits enforced by the fake.
const (
	MaxBatchWrite = 25
	MaxBatchGet   = 100
)

// Item is a stored row.
type Item = map[string]types.AttributeValue

// Call records one request made to the fake.
type Call struct {
	Op    string
	Table string

	// Size is the number of items or keys in a batch request.
	Size int

	// Input is the request as received.
	Input any
}

// WriteFilter picks the write requests to report as unprocessed for the n-th
// BatchWriteItem call (starting at 0). Picked requests are not applied.
type WriteFilter func(n int, reqs []types.WriteRequest) []types.WriteRequest

// KeyFilter picks the keys to report as unprocessed for the n-th BatchGetItem call.
type KeyFilter func(n int, keys []Item) []Item

type index struct {
	hash, rng string
}

type table struct {
	items   *treemap.Map
	indexes map[string]index
	created bool
}

// Fake is an in-memory DynamoDB. The zero value is not usable; use New.
type Fake struct {
	mu sync.Mutex

	keyAttr string
	tables  map[string]*table
	calls   []Call
	fail    map[string]error

	writes int
	reads  int

	// UnprocessedWrites, if set, withholds write requests from batch writes.
	UnprocessedWrites WriteFilter

	// UnprocessedKeys, if set, withholds keys from batch reads.
	UnprocessedKeys KeyFilter
}

// New creates a fake whose tables are keyed by the string attribute keyAttr.
// Tables are created on first use; CreateTable registers indexes and makes
// DescribeTable succeed.
func New(keyAttr string) *Fake {
	return &Fake{
		keyAttr: keyAttr,
		tables:  make(map[string]*table),
		fail:    make(map[string]error),
	}
}

// FailNext makes the next call of op (e.g. "BatchWriteItem") return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// AddIndex registers a secondary index on table.
func (f *Fake) AddIndex(tableName, indexName, hashAttr, rangeAttr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(tableName).indexes[indexName] = index{hash: hashAttr, rng: rangeAttr}
}

// Calls returns the recorded calls of op, or all calls if op is empty.
func (f *Fake) Calls(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Item returns the stored row with the given key.
func (f *Fake) Item(tableName, key string) (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableName]
	if !ok {
		return nil, false
	}
	v, ok := t.items.Get(key)
	if !ok {
		return nil, false
	}
	return copyItem(v.(Item)), true
}

// Len returns the number of rows in a table.
func (f *Fake) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return t.items.Size()
	}
	return 0
}

// Put stores a row directly, bypassing call recording.
func (f *Fake) Put(tableName string, item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(tableName).items.Put(f.keyOf(item), copyItem(item))
}

func (f *Fake) table(name string) *table {
	t, ok := f.tables[name]
	if !ok {
		t = &table{items: treemap.NewWithStringComparator(), indexes: make(map[string]index)}
		f.tables[name] = t
	}
	return t
}

func (f *Fake) record(op, tableName string, size int, input any) error {
	f.calls = append(f.calls, Call{Op: op, Table: tableName, Size: size, Input: input})
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *Fake) keyOf(item Item) string {
	if v, ok := item[f.keyAttr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func validation(format string, args ...any) error {
	return &smithy.GenericAPIError{Code: "ValidationException", Message: fmt.Sprintf(format, args...)}
}

func (f *Fake) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("GetItem", name, 1, params); err != nil {
		return nil, err
	}
	key := f.keyOf(params.Key)
	if key == "" {
		return nil, validation("missing key attribute %q", f.keyAttr)
	}
	out := &dynamodb.GetItemOutput{}
	if v, ok := f.table(name).items.Get(key); ok {
		out.Item = copyItem(v.(Item))
	}
	return out, nil
}

func (f *Fake) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("PutItem", name, 1, params); err != nil {
		return nil, err
	}
	key := f.keyOf(params.Item)
	if key == "" {
		return nil, validation("missing key attribute %q", f.keyAttr)
	}
	f.table(name).items.Put(key, copyItem(params.Item))
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem supports update expressions of the form "SET #a = :a, #b = :b".
func (f *Fake) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("UpdateItem", name, 1, params); err != nil {
		return nil, err
	}
	key := f.keyOf(params.Key)
	if key == "" {
		return nil, validation("missing key attribute %q", f.keyAttr)
	}
	expr := strings.TrimSpace(aws.ToString(params.UpdateExpression))
	if !strings.HasPrefix(expr, "SET ") {
		return nil, validation("unsupported update expression %q", expr)
	}

	t := f.table(name)
	item := Item{}
	if v, ok := t.items.Get(key); ok {
		item = copyItem(v.(Item))
	}
	for k, v := range params.Key {
		item[k] = v
	}
	for _, clause := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return nil, validation("malformed clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
		val, ok := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, validation("missing value %q", parts[1])
		}
		item[attr] = val
	}
	t.items.Put(key, item)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *Fake) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("DeleteItem", name, 1, params); err != nil {
		return nil, err
	}
	key := f.keyOf(params.Key)
	if key == "" {
		return nil, validation("missing key attribute %q", f.keyAttr)
	}
	f.table(name).items.Remove(key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *Fake) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &dynamodb.BatchGetItemOutput{
		Responses:       make(map[string][]Item),
		UnprocessedKeys: make(map[string]types.KeysAndAttributes),
	}
	n := f.reads
	f.reads++

	for name, kaa := range params.RequestItems {
		if err := f.record("BatchGetItem", name, len(kaa.Keys), params); err != nil {
			return nil, err
		}
		if len(kaa.Keys) > MaxBatchGet {
			return nil, validation("too many keys: %d", len(kaa.Keys))
		}
		seen := make(map[string]bool, len(kaa.Keys))
		for _, k := range kaa.Keys {
			key := f.keyOf(k)
			if seen[key] {
				return nil, validation("provided list of item keys contains duplicates")
			}
			seen[key] = true
		}

		withheld := map[string]bool{}
		if f.UnprocessedKeys != nil {
			var keep []Item
			for _, k := range f.UnprocessedKeys(n, kaa.Keys) {
				withheld[f.keyOf(k)] = true
				keep = append(keep, k)
			}
			if len(keep) > 0 {
				out.UnprocessedKeys[name] = types.KeysAndAttributes{
					Keys:                     keep,
					ProjectionExpression:     kaa.ProjectionExpression,
					ExpressionAttributeNames: kaa.ExpressionAttributeNames,
				}
			}
		}

		projection := projectionOf(kaa)
		t := f.table(name)
		for _, k := range kaa.Keys {
			key := f.keyOf(k)
			if withheld[key] {
				continue
			}
			if v, ok := t.items.Get(key); ok {
				out.Responses[name] = append(out.Responses[name], project(v.(Item), projection))
			}
		}
	}
	return out, nil
}

func (f *Fake) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: make(map[string][]types.WriteRequest)}
	n := f.writes
	f.writes++

	for name, reqs := range params.RequestItems {
		if err := f.record("BatchWriteItem", name, len(reqs), params); err != nil {
			return nil, err
		}
		if len(reqs) > MaxBatchWrite {
			return nil, validation("too many write requests: %d", len(reqs))
		}
		seen := make(map[string]bool, len(reqs))
		for _, r := range reqs {
			key := f.writeKey(r)
			if seen[key] {
				return nil, validation("provided list of item keys contains duplicates")
			}
			seen[key] = true
		}

		withheld := map[string]bool{}
		if f.UnprocessedWrites != nil {
			for _, r := range f.UnprocessedWrites(n, reqs) {
				withheld[f.writeKey(r)] = true
				out.UnprocessedItems[name] = append(out.UnprocessedItems[name], r)
			}
		}

		t := f.table(name)
		for _, r := range reqs {
			key := f.writeKey(r)
			if withheld[key] {
				continue
			}
			switch {
			case r.PutRequest != nil:
				t.items.Put(key, copyItem(r.PutRequest.Item))
			case r.DeleteRequest != nil:
				t.items.Remove(key)
			}
		}
	}
	return out, nil
}

func (f *Fake) writeKey(r types.WriteRequest) string {
	switch {
	case r.PutRequest != nil:
		return f.keyOf(r.PutRequest.Item)
	case r.DeleteRequest != nil:
		return f.keyOf(r.DeleteRequest.Key)
	}
	return ""
}

// Scan returns items in key order. LastEvaluatedKey is set only when more items remain.
func (f *Fake) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("Scan", name, 0, params); err != nil {
		return nil, err
	}

	start := ""
	hasStart := params.ExclusiveStartKey != nil
	if hasStart {
		start = f.keyOf(params.ExclusiveStartKey)
	}
	limit := int(aws.ToInt32(params.Limit))

	out := &dynamodb.ScanOutput{}
	it := f.table(name).items.Iterator()
	for it.Next() {
		key := it.Key().(string)
		if hasStart && key <= start {
			continue
		}
		if limit > 0 && len(out.Items) == limit {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = Item{f.keyAttr: last[f.keyAttr]}
			break
		}
		out.Items = append(out.Items, copyItem(it.Value().(Item)))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// Query supports key conditions of the form "#h = :h" optionally followed by
// " AND #r > :r" against a registered index, returning items in range order.
func (f *Fake) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("Query", name, 0, params); err != nil {
		return nil, err
	}

	t := f.table(name)
	idx, ok := t.indexes[aws.ToString(params.IndexName)]
	if !ok {
		return nil, validation("index %q not found on %q", aws.ToString(params.IndexName), name)
	}

	var hashVal, lowerBound string
	hasLower := false
	for _, cond := range strings.Split(aws.ToString(params.KeyConditionExpression), " AND ") {
		var op string
		switch {
		case strings.Contains(cond, " = "):
			op = " = "
		case strings.Contains(cond, " > "):
			op = " > "
		default:
			return nil, validation("unsupported key condition %q", cond)
		}
		parts := strings.SplitN(cond, op, 2)
		attr := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
		av, ok := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberS)
		if !ok {
			return nil, validation("missing string value for %q", parts[1])
		}
		switch {
		case attr == idx.hash && op == " = ":
			hashVal = av.Value
		case attr == idx.rng && op == " > ":
			lowerBound, hasLower = av.Value, true
		default:
			return nil, validation("condition %q does not match index", cond)
		}
	}

	var matched []Item
	it := t.items.Iterator()
	for it.Next() {
		item := it.Value().(Item)
		h, _ := item[idx.hash].(*types.AttributeValueMemberS)
		r, _ := item[idx.rng].(*types.AttributeValueMemberS)
		if h == nil || r == nil || h.Value != hashVal {
			continue
		}
		if hasLower && r.Value <= lowerBound {
			continue
		}
		matched = append(matched, item)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i][idx.rng].(*types.AttributeValueMemberS).Value <
			matched[j][idx.rng].(*types.AttributeValueMemberS).Value
	})

	out := &dynamodb.QueryOutput{}
	limit := int(aws.ToInt32(params.Limit))
	for i, item := range matched {
		if limit > 0 && i == limit {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = Item{
				f.keyAttr: last[f.keyAttr],
				idx.hash:  last[idx.hash],
				idx.rng:   last[idx.rng],
			}
			break
		}
		out.Items = append(out.Items, copyItem(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *Fake) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("CreateTable", name, 0, params); err != nil {
		return nil, err
	}
	t := f.table(name)
	if t.created {
		return nil, &types.ResourceInUseException{Message: aws.String("table already exists: " + name)}
	}
	t.created = true
	for _, gsi := range params.GlobalSecondaryIndexes {
		var idx index
		for _, ks := range gsi.KeySchema {
			switch ks.KeyType {
			case types.KeyTypeHash:
				idx.hash = aws.ToString(ks.AttributeName)
			case types.KeyTypeRange:
				idx.rng = aws.ToString(ks.AttributeName)
			}
		}
		t.indexes[aws.ToString(gsi.IndexName)] = idx
	}
	return &dynamodb.CreateTableOutput{
		TableDescription: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func (f *Fake) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("DescribeTable", name, 0, params); err != nil {
		return nil, err
	}
	t, ok := f.tables[name]
	if !ok || !t.created {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
			ItemCount:   aws.Int64(int64(t.items.Size())),
		},
	}, nil
}

func (f *Fake) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	if err := f.record("DeleteTable", name, 0, params); err != nil {
		return nil, err
	}
	if t, ok := f.tables[name]; !ok || !t.created {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	delete(f.tables, name)
	return &dynamodb.DeleteTableOutput{}, nil
}

func resolveName(s string, names map[string]string) string {
	if strings.HasPrefix(s, "#") {
		if n, ok := names[s]; ok {
			return n
		}
	}
	return s
}

func projectionOf(kaa types.KeysAndAttributes) []string {
	expr := aws.ToString(kaa.ProjectionExpression)
	if expr == "" {
		return nil
	}
	var attrs []string
	for _, p := range strings.Split(expr, ",") {
		attrs = append(attrs, resolveName(strings.TrimSpace(p), kaa.ExpressionAttributeNames))
	}
	return attrs
}

func project(item Item, attrs []string) Item {
	if attrs == nil {
		return copyItem(item)
	}
	out := make(Item, len(attrs))
	for _, a := range attrs {
		if v, ok := item[a]; ok {
			out[a] = v
		}
	}
	return out
}

func copyItem(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
