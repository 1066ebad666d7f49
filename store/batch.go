package store

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithytime "github.com/aws/smithy-go/time"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
)

// CreateAll stores new objects with batch writes of at most WriteChunkLimit items.
// Chunks are written sequentially; the first failing chunk stops the operation.
// Nil objects are skipped. Ids are assigned as in Create; assigned timestamps
// strictly increase across the batch.
// When an id repeats, the last object with it is written.
func (s *Store) CreateAll(ctx context.Context, tenant string, objs []*object.Object) error {
	if len(objs) == 0 || strings.TrimSpace(tenant) == "" {
		return nil
	}
	target := s.targetFor(tenant)

	byID := linkedhashmap.New()
	given := 0
	var stamped int64
	for _, o := range objs {
		if o == nil {
			continue
		}
		given++
		assign := o.Timestamp == 0
		s.prepareCreate(tenant, o, stamped)
		if assign {
			stamped = o.Timestamp
		}
		byID.Put(o.ID, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: s.createRow(tenant, o)},
		})
	}
	reqs := s.writeRequests(tenant, "create", given, byID)

	for _, chunk := range chunks(reqs, s.config.WriteChunkLimit) {
		if err := s.batchWrite(ctx, "create", tenant, target.Table, chunk); err != nil {
			return err
		}
	}

	s.logger.Debug().Str("tenant", tenant).Int("count", len(reqs)).Msg("created objects")
	return nil
}

// UpdateAll updates objects one at a time; the store has no batch update.
// Every object is attempted; failures are joined into the returned error.
func (s *Store) UpdateAll(ctx context.Context, tenant string, objs []*object.Object) error {
	var errs []error
	for _, o := range objs {
		if err := s.Update(ctx, tenant, o); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Debug().Str("tenant", tenant).Int("count", len(objs)).Msg("updated objects")
	return errors.Join(errs...)
}

// DeleteAll removes objects with batch writes of at most WriteChunkLimit items.
// Nil objects and objects without an id are skipped.
func (s *Store) DeleteAll(ctx context.Context, tenant string, objs []*object.Object) error {
	if len(objs) == 0 || strings.TrimSpace(tenant) == "" {
		return nil
	}
	target := s.targetFor(tenant)

	byID := linkedhashmap.New()
	given := 0
	for _, o := range objs {
		if o == nil || strings.TrimSpace(o.ID) == "" {
			continue
		}
		given++
		byID.Put(o.ID, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: keyOf(keys.Composite(tenant, o.ID))},
		})
	}
	reqs := s.writeRequests(tenant, "delete", given, byID)

	for _, chunk := range chunks(reqs, s.config.WriteChunkLimit) {
		if err := s.batchWrite(ctx, "delete", tenant, target.Table, chunk); err != nil {
			return err
		}
	}

	s.logger.Debug().Str("tenant", tenant).Int("count", len(reqs)).Msg("deleted objects")
	return nil
}

// writeRequests flattens requests keyed by object id, one per id in
// first-occurrence order. The store rejects batches touching a key twice.
func (s *Store) writeRequests(tenant, op string, given int, byID *linkedhashmap.Map) []types.WriteRequest {
	if byID.Size() < given {
		s.logger.Warn().
			Str("op", op).
			Str("tenant", tenant).
			Int("requested", given).
			Int("distinct", byID.Size()).
			Msg("duplicate keys in batch write")
	}
	reqs := make([]types.WriteRequest, 0, byID.Size())
	it := byID.Iterator()
	for it.Next() {
		reqs = append(reqs, it.Value().(types.WriteRequest))
	}
	return reqs
}

// ReadAll fetches objects by id with batch reads of at most ReadChunkLimit keys.
// Duplicate ids are collapsed; the result holds one entry per distinct id in
// first-occurrence order, with no object for ids that were not retrieved.
// Unless allColumns is set only the key and type attributes are fetched, so the
// objects carry just their id and type.
// On error the entries retrieved so far are returned with it.
func (s *Store) ReadAll(ctx context.Context, tenant string, ids []string, allColumns bool) (*Results, error) {
	if len(ids) == 0 || strings.TrimSpace(tenant) == "" {
		return newResults(nil), nil
	}
	target := s.targetFor(tenant)

	// The store rejects batches requesting the same key twice.
	set := linkedhashset.New()
	given := 0
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		given++
		set.Add(id)
	}
	distinct := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		distinct = append(distinct, v.(string))
	}
	if len(distinct) < given {
		s.logger.Warn().
			Str("tenant", tenant).
			Int("requested", given).
			Int("distinct", len(distinct)).
			Msg("duplicate keys in batch read")
	}

	results := newResults(distinct)
	for _, chunk := range chunks(distinct, s.config.ReadChunkLimit) {
		kaa := types.KeysAndAttributes{
			Keys: make([]map[string]types.AttributeValue, 0, len(chunk)),
		}
		for _, id := range chunk {
			kaa.Keys = append(kaa.Keys, keyOf(keys.Composite(tenant, id)))
		}
		if !allColumns {
			kaa.ProjectionExpression = aws.String("#k, #t")
			kaa.ExpressionAttributeNames = map[string]string{
				"#k": KeyField,
				"#t": TypeField,
			}
		}
		if err := s.batchGet(ctx, tenant, target.Table, kaa, results); err != nil {
			return results, err
		}
	}

	s.logger.Debug().
		Str("tenant", tenant).
		Int("keys", results.Len()).
		Int("found", len(results.Objects())).
		Msg("read objects")
	return results, nil
}

// batchWrite issues one batch write and resubmits the unprocessed subset with
// exponential backoff until it drains or the retry budget is spent.
func (s *Store) batchWrite(ctx context.Context, op, tenant, table string, reqs []types.WriteRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	backoff := retry.NewExponentialJitterBackoff(s.config.MaxRetryBackoff)
	pending := reqs

	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: pending},
		})
		if err != nil {
			return &BatchError{Op: op, Tenant: tenant, Unprocessed: writeIDs(pending), Err: classify("batch "+op, err)}
		}

		unprocessed := out.UnprocessedItems[table]
		if len(unprocessed) == 0 {
			s.logger.Debug().Str("tenant", tenant).Str("op", op).Int("total", len(pending)).Msg("batch write")
			return nil
		}
		if attempt >= s.config.MaxRetryAttempts {
			return &BatchError{Op: op, Tenant: tenant, Unprocessed: writeIDs(unprocessed), Err: ErrRetryExhausted}
		}

		delay, _ := backoff.BackoffDelay(attempt+1, nil)
		s.logger.Warn().
			Str("tenant", tenant).
			Str("op", op).
			Int("unprocessed", len(unprocessed)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("resubmitting unprocessed batch items")
		if err := smithytime.SleepWithContext(ctx, delay); err != nil {
			return &BatchError{Op: op, Tenant: tenant, Unprocessed: writeIDs(unprocessed), Err: err}
		}
		pending = unprocessed
	}
}

// batchGet issues one batch read, collecting decoded objects into results, and
// resubmits unprocessed keys like batchWrite.
func (s *Store) batchGet(ctx context.Context, tenant, table string, kaa types.KeysAndAttributes, results *Results) error {
	if len(kaa.Keys) == 0 {
		return nil
	}
	backoff := retry.NewExponentialJitterBackoff(s.config.MaxRetryBackoff)
	pending := kaa

	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{table: pending},
		})
		if err != nil {
			return &BatchError{Op: "read", Tenant: tenant, Unprocessed: keyIDs(pending.Keys), Err: classify("batch read", err)}
		}

		for _, item := range out.Responses[table] {
			if o := s.codec.Decode(item); o != nil {
				results.put(o.ID, o)
			}
		}

		unprocessed := out.UnprocessedKeys[table].Keys
		if len(unprocessed) == 0 {
			s.logger.Debug().Str("tenant", tenant).Int("total", len(out.Responses[table])).Msg("batch read")
			return nil
		}
		if attempt >= s.config.MaxRetryAttempts {
			return &BatchError{Op: "read", Tenant: tenant, Unprocessed: keyIDs(unprocessed), Err: ErrRetryExhausted}
		}

		delay, _ := backoff.BackoffDelay(attempt+1, nil)
		s.logger.Warn().
			Str("tenant", tenant).
			Int("unprocessed", len(unprocessed)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("resubmitting unprocessed batch keys")
		if err := smithytime.SleepWithContext(ctx, delay); err != nil {
			return &BatchError{Op: "read", Tenant: tenant, Unprocessed: keyIDs(unprocessed), Err: err}
		}
		pending = types.KeysAndAttributes{
			Keys:                     unprocessed,
			ProjectionExpression:     kaa.ProjectionExpression,
			ExpressionAttributeNames: kaa.ExpressionAttributeNames,
		}
	}
}

// chunks splits items into consecutive groups of at most size elements.
func chunks[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// writeIDs extracts object ids from write requests.
func writeIDs(reqs []types.WriteRequest) []string {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		switch {
		case r.PutRequest != nil:
			ids = append(ids, idFromKey(stringAttr(r.PutRequest.Item, KeyField)))
		case r.DeleteRequest != nil:
			ids = append(ids, idFromKey(stringAttr(r.DeleteRequest.Key, KeyField)))
		}
	}
	return ids
}

// keyIDs extracts object ids from primary keys.
func keyIDs(ks []map[string]types.AttributeValue) []string {
	ids := make([]string, 0, len(ks))
	for _, k := range ks {
		ids = append(ids, idFromKey(stringAttr(k, KeyField)))
	}
	return ids
}

func idFromKey(key string) string {
	if _, id, ok := keys.Split(key); ok {
		return id
	}
	return key
}

// Results is the ordered outcome of ReadAll: one entry per distinct requested id.
type Results struct {
	m *linkedhashmap.Map
}

func newResults(ids []string) *Results {
	m := linkedhashmap.New()
	for _, id := range ids {
		m.Put(id, (*object.Object)(nil))
	}
	return &Results{m: m}
}

// put records a retrieved object. Ids that were not requested are ignored.
func (r *Results) put(id string, o *object.Object) {
	if _, ok := r.m.Get(id); ok {
		r.m.Put(id, o)
	}
}

// Len returns the number of distinct ids requested.
func (r *Results) Len() int {
	return r.m.Size()
}

// Get returns the object retrieved for id, if any.
func (r *Results) Get(id string) (*object.Object, bool) {
	v, ok := r.m.Get(id)
	if !ok {
		return nil, false
	}
	o, _ := v.(*object.Object)
	return o, o != nil
}

// Keys returns the distinct requested ids in order.
func (r *Results) Keys() []string {
	out := make([]string, 0, r.m.Size())
	for _, k := range r.m.Keys() {
		out = append(out, k.(string))
	}
	return out
}

// Objects returns the retrieved objects in id order.
func (r *Results) Objects() []*object.Object {
	var out []*object.Object
	it := r.m.Iterator()
	for it.Next() {
		if o, _ := it.Value().(*object.Object); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Missing returns the ids for which no object was retrieved.
func (r *Results) Missing() []string {
	var out []string
	it := r.m.Iterator()
	for it.Next() {
		if o, _ := it.Value().(*object.Object); o == nil {
			out = append(out, it.Key().(string))
		}
	}
	return out
}

// Map returns the retrieved objects keyed by id.
func (r *Results) Map() map[string]*object.Object {
	out := make(map[string]*object.Object, r.m.Size())
	it := r.m.Iterator()
	for it.Next() {
		if o, _ := it.Value().(*object.Object); o != nil {
			out[it.Key().(string)] = o
		}
	}
	return out
}
