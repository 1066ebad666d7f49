package store

import "github.com/jacentio/dynadao/internal/keys"

// TenancyMode tells where a tenant's rows live.
type TenancyMode int

const (
	// Dedicated tenants own a table and are paged with a full scan.
	Dedicated TenancyMode = iota

	// Shared tenants live in the shared table and are paged through the
	// (appid, timestamp) index.
	Shared
)

func (m TenancyMode) String() string {
	if m == Shared {
		return "shared"
	}
	return "dedicated"
}

// TenancyResolver resolves the tenancy mode of a tenant.
type TenancyResolver interface {
	Mode(tenant string) TenancyMode
}

// TenancyFunc adapts a function to a TenancyResolver.
type TenancyFunc func(tenant string) TenancyMode

// Mode implements TenancyResolver.
func (f TenancyFunc) Mode(tenant string) TenancyMode { return f(tenant) }

// SharedTenants returns a resolver treating the named tenants as shared and all
// others as dedicated. The set is fixed at construction.
func SharedTenants(names ...string) TenancyResolver {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return TenancyFunc(func(tenant string) TenancyMode {
		if _, ok := set[tenant]; ok {
			return Shared
		}
		return Dedicated
	})
}

// Target is the physical location of a tenant's rows.
type Target struct {
	// Table is the physical table name.
	Table string

	// Index is the (appid, timestamp) index name; empty for dedicated tenants.
	Index string

	// Mode is the resolved tenancy mode.
	Mode TenancyMode
}

// targetFor resolves the table and index holding the tenant's rows.
func (s *Store) targetFor(tenant string) Target {
	if s.tenancy.Mode(tenant) == Shared {
		return Target{
			Table: keys.TableName(s.config.TablePrefix, s.config.SharedTable),
			Index: s.config.SharedIndex,
			Mode:  Shared,
		}
	}
	return Target{
		Table: keys.TableName(s.config.TablePrefix, tenant),
		Mode:  Dedicated,
	}
}

// TargetFor returns the table and index holding the tenant's rows.
func (s *Store) TargetFor(tenant string) Target {
	return s.targetFor(tenant)
}
