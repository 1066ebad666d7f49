// Package store provides a multi-tenant DynamoDB persistence layer for generic objects.
//
// Objects of every tenant are stored as flat rows of string attributes, keyed by a
// composite of tenant and object id. A tenant is either dedicated (its own table,
// paged with a scan) or shared (rows co-located in one table, paged through an
// (appid, timestamp) index).
//
// # Operations
//
// [Store] exposes single-item and batch CRUD plus cursor pagination with explicit
// errors:
//
//	s := store.New(dynamodb.NewFromConfig(cfg), store.DefaultConfig())
//	id, err := s.Create(ctx, "myapp", obj)
//	obj, err = s.Read(ctx, "myapp", id)
//	res, err := s.ReadAll(ctx, "myapp", ids, true)
//
//	p := store.NewPager(50)
//	for {
//	    page, err := s.ReadPage(ctx, "myapp", p)
//	    if err != nil || len(page) == 0 {
//	        break
//	    }
//	}
//
// [DAO] wraps a Store with the best-effort contract: failures are logged and the
// call returns its empty value. [DAO.Tenant] and [DAO.Default] bind a tenant.
//
// # Batches
//
// Batch writes are split into chunks of Config.WriteChunkLimit requests and batch
// reads into chunks of Config.ReadChunkLimit keys. Items the store reports as
// unprocessed are resubmitted with exponential backoff, at most
// Config.MaxRetryAttempts times.
//
// # Errors
//
//   - [ErrNotFound] - row doesn't exist
//   - [ErrRetryExhausted] - unprocessed batch items remained (see [BatchError])
//   - [ErrStoreUnavailable] - throttling or server-side failure
//   - [ErrInvalidRequest] - request rejected (validation, missing table)
package store
