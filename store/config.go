package store

import "time"

// DefaultPageLimit is the page size used when a Pager has no limit.
const DefaultPageLimit = 30

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to every physical table name.
	// Dedicated tenants get the table TablePrefix + tenant.
	// Default: ""
	TablePrefix string `koanf:"table_prefix"`

	// SharedTable is the table holding the rows of all shared tenants.
	// Default: "shared"
	SharedTable string `koanf:"shared_table"`

	// SharedIndex is the global secondary index on (appid, timestamp) of SharedTable.
	// Default: "appid_timestamp"
	SharedIndex string `koanf:"shared_index"`

	// SharedTenants lists tenants whose rows live in SharedTable.
	// Used by the default TenancyResolver.
	SharedTenants []string `koanf:"shared_tenants"`

	// DefaultTenant is the tenant used by the default-tenant surface.
	// Default: "para"
	DefaultTenant string `koanf:"default_tenant"`

	// WriteChunkLimit is the maximum number of write requests per batch write.
	// Default: 10
	// Max: 25 (store limit)
	WriteChunkLimit int `koanf:"write_chunk_limit"`

	// ReadChunkLimit is the maximum number of keys per batch read.
	// Default: 100
	// Max: 100 (store limit)
	ReadChunkLimit int `koanf:"read_chunk_limit"`

	// MaxRetryAttempts is the number of times an unprocessed subset is resubmitted
	// before the batch fails with ErrRetryExhausted.
	// Default: 8
	MaxRetryAttempts int `koanf:"max_retry_attempts"`

	// MaxRetryBackoff caps the exponential backoff between resubmissions.
	// Default: 5s
	MaxRetryBackoff time.Duration `koanf:"max_retry_backoff"`

	// ReadCapacity and WriteCapacity are the provisioned throughput used by table setup.
	// Default: 2 and 1
	ReadCapacity  int64 `koanf:"read_capacity"`
	WriteCapacity int64 `koanf:"write_capacity"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SharedTable:      "shared",
		SharedIndex:      "appid_timestamp",
		DefaultTenant:    "para",
		WriteChunkLimit:  10,
		ReadChunkLimit:   100,
		MaxRetryAttempts: 8,
		MaxRetryBackoff:  5 * time.Second,
		ReadCapacity:     2,
		WriteCapacity:    1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.SharedTable == "" {
		c.SharedTable = "shared"
	}
	if c.SharedIndex == "" {
		c.SharedIndex = "appid_timestamp"
	}
	if c.DefaultTenant == "" {
		c.DefaultTenant = "para"
	}
	if c.WriteChunkLimit < 1 {
		c.WriteChunkLimit = 10
	}
	if c.WriteChunkLimit > 25 {
		c.WriteChunkLimit = 25
	}
	if c.ReadChunkLimit < 1 {
		c.ReadChunkLimit = 100
	}
	if c.ReadChunkLimit > 100 {
		c.ReadChunkLimit = 100
	}
	if c.MaxRetryAttempts < 0 {
		c.MaxRetryAttempts = 0
	}
	if c.MaxRetryBackoff <= 0 {
		c.MaxRetryBackoff = 5 * time.Second
	}
	if c.ReadCapacity < 1 {
		c.ReadCapacity = 2
	}
	if c.WriteCapacity < 1 {
		c.WriteCapacity = 1
	}
}
