package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jacentio/dynadao/object"
)

// DAO is a best-effort front end to a Store: failures are logged and swallowed,
// and every call returns its "nothing happened" value instead.
// Use the Store directly to observe errors.
type DAO struct {
	store  *Store
	logger zerolog.Logger
}

// NewDAO wraps a Store.
func NewDAO(s *Store) *DAO {
	return &DAO{store: s, logger: s.logger}
}

// Store returns the underlying Store.
func (d *DAO) Store() *Store {
	return d.store
}

// Tenant returns the operations bound to a tenant.
func (d *DAO) Tenant(tenant string) *TenantDAO {
	return &TenantDAO{dao: d, tenant: tenant}
}

// Default returns the operations bound to the configured default tenant.
func (d *DAO) Default() *TenantDAO {
	return d.Tenant(d.store.config.DefaultTenant)
}

func (d *DAO) fail(op, tenant string, err error) {
	evt := d.logger.Error().Err(err).Str("op", op).Str("tenant", tenant)
	var be *BatchError
	if errors.As(err, &be) {
		evt = evt.Strs("unprocessed", be.Unprocessed)
	}
	evt.Msg("store operation failed")
}

// Create stores o and returns its id, or "" on failure.
func (d *DAO) Create(ctx context.Context, tenant string, o *object.Object) string {
	id, err := d.store.Create(ctx, tenant, o)
	if err != nil {
		d.fail("create", tenant, err)
		return ""
	}
	return id
}

// Read returns the object or nil if it is missing or the read failed.
func (d *DAO) Read(ctx context.Context, tenant, id string) *object.Object {
	o, err := d.store.Read(ctx, tenant, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			d.fail("read", tenant, err)
		}
		return nil
	}
	return o
}

// Update overwrites the mutable fields of o.
func (d *DAO) Update(ctx context.Context, tenant string, o *object.Object) {
	if err := d.store.Update(ctx, tenant, o); err != nil {
		d.fail("update", tenant, err)
	}
}

// Delete removes o.
func (d *DAO) Delete(ctx context.Context, tenant string, o *object.Object) {
	if err := d.store.Delete(ctx, tenant, o); err != nil {
		d.fail("delete", tenant, err)
	}
}

// CreateAll stores objs.
func (d *DAO) CreateAll(ctx context.Context, tenant string, objs []*object.Object) {
	if err := d.store.CreateAll(ctx, tenant, objs); err != nil {
		d.fail("createAll", tenant, err)
	}
}

// ReadAll returns the retrieved objects; ids that failed or are missing have no entry
// in Map but keep their place in Keys.
func (d *DAO) ReadAll(ctx context.Context, tenant string, ids []string, allColumns bool) *Results {
	res, err := d.store.ReadAll(ctx, tenant, ids, allColumns)
	if err != nil {
		d.fail("readAll", tenant, err)
	}
	return res
}

// UpdateAll updates objs one by one.
func (d *DAO) UpdateAll(ctx context.Context, tenant string, objs []*object.Object) {
	if err := d.store.UpdateAll(ctx, tenant, objs); err != nil {
		d.fail("updateAll", tenant, err)
	}
}

// DeleteAll removes objs.
func (d *DAO) DeleteAll(ctx context.Context, tenant string, objs []*object.Object) {
	if err := d.store.DeleteAll(ctx, tenant, objs); err != nil {
		d.fail("deleteAll", tenant, err)
	}
}

// ReadPage returns the next page; on failure it returns what was decoded (possibly nothing).
func (d *DAO) ReadPage(ctx context.Context, tenant string, p *Pager) []*object.Object {
	res, err := d.store.ReadPage(ctx, tenant, p)
	if err != nil {
		d.fail("readPage", tenant, err)
	}
	return res
}

// TenantDAO is a DAO bound to one tenant.
type TenantDAO struct {
	dao    *DAO
	tenant string
}

// ID returns the bound tenant.
func (t *TenantDAO) ID() string { return t.tenant }

// Create stores a new object for the bound tenant and returns its id.
func (t *TenantDAO) Create(ctx context.Context, o *object.Object) string {
	return t.dao.Create(ctx, t.tenant, o)
}

// Read returns the bound tenant's object, or nil.
func (t *TenantDAO) Read(ctx context.Context, id string) *object.Object {
	return t.dao.Read(ctx, t.tenant, id)
}

// Update writes the mutable fields of o.
func (t *TenantDAO) Update(ctx context.Context, o *object.Object) {
	t.dao.Update(ctx, t.tenant, o)
}

// Delete removes o.
func (t *TenantDAO) Delete(ctx context.Context, o *object.Object) {
	t.dao.Delete(ctx, t.tenant, o)
}

// CreateAll stores new objects with batch writes.
func (t *TenantDAO) CreateAll(ctx context.Context, objs []*object.Object) {
	t.dao.CreateAll(ctx, t.tenant, objs)
}

// ReadAll fetches objects by id with batch reads.
func (t *TenantDAO) ReadAll(ctx context.Context, ids []string, allColumns bool) *Results {
	return t.dao.ReadAll(ctx, t.tenant, ids, allColumns)
}

// UpdateAll updates each object in turn.
func (t *TenantDAO) UpdateAll(ctx context.Context, objs []*object.Object) {
	t.dao.UpdateAll(ctx, t.tenant, objs)
}

// DeleteAll removes objects with batch writes.
func (t *TenantDAO) DeleteAll(ctx context.Context, objs []*object.Object) {
	t.dao.DeleteAll(ctx, t.tenant, objs)
}

// ReadPage returns the next page of the bound tenant's objects.
func (t *TenantDAO) ReadPage(ctx context.Context, p *Pager) []*object.Object {
	return t.dao.ReadPage(ctx, t.tenant, p)
}
