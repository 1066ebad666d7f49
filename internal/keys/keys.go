// Package keys derives primary keys and table names for tenant-scoped rows.
package keys

import (
	"strconv"
	"strings"
)

// Composite combines a tenant and an object id into the row's primary key.
// The tenant is length-prefixed ("<len>:<tenant>:<id>") so that no two distinct
// (tenant, id) pairs map to the same key, whatever characters they contain.
func Composite(tenant, id string) string {
	var b strings.Builder
	b.Grow(len(tenant) + len(id) + 6)
	b.WriteString(strconv.Itoa(len(tenant)))
	b.WriteByte(':')
	b.WriteString(tenant)
	b.WriteByte(':')
	b.WriteString(id)
	return b.String()
}

// Split is the inverse of Composite. ok is false if key was not produced by Composite.
func Split(key string) (tenant, id string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 {
		return "", "", false
	}
	n, err := strconv.Atoi(key[:i])
	if err != nil || n < 0 {
		return "", "", false
	}
	rest := key[i+1:]
	if len(rest) < n+1 || rest[n] != ':' {
		return "", "", false
	}
	return rest[:n], rest[n+1:], true
}

// TableName returns the physical table name for a logical name under prefix.
func TableName(prefix, name string) string {
	return prefix + name
}
