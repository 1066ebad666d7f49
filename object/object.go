// Package object defines the domain object persisted by the store and the field
// capability descriptor used to enumerate and rehydrate it.
package object

import (
	"strconv"
	"strings"
)

// Stored field names of the core object attributes.
const (
	FieldID        = "id"
	FieldAppID     = "appid"
	FieldType      = "type"
	FieldName      = "name"
	FieldCreatorID = "creatorid"
	FieldParentID  = "parentid"
	FieldTimestamp = "timestamp"
	FieldUpdated   = "updated"
)

// Object is a tenant-scoped domain object.
type Object struct {
	// ID is unique within a tenant.
	ID string

	// AppID is the owning tenant.
	AppID string

	// Type is the object's type discriminator (e.g., "user").
	Type string

	Name      string
	CreatorID string
	ParentID  string

	// Timestamp is the creation time in Unix milliseconds. Set once.
	Timestamp int64

	// Updated is the last modification time in Unix milliseconds.
	Updated int64

	// Properties holds the open set of additional scalar fields.
	Properties map[string]string
}

// New returns an object of the given type.
func New(typ string) *Object {
	return &Object{Type: typ}
}

// Set sets a custom property. Core field names are routed to their struct fields.
func (o *Object) Set(name, value string) {
	switch name {
	case FieldID:
		o.ID = value
	case FieldAppID:
		o.AppID = value
	case FieldType:
		o.Type = value
	case FieldName:
		o.Name = value
	case FieldCreatorID:
		o.CreatorID = value
	case FieldParentID:
		o.ParentID = value
	case FieldTimestamp:
		o.Timestamp = parseMillis(value)
	case FieldUpdated:
		o.Updated = parseMillis(value)
	default:
		if o.Properties == nil {
			o.Properties = make(map[string]string)
		}
		o.Properties[name] = value
	}
}

// Get returns the string form of a field, core or custom, and whether it is set.
func (o *Object) Get(name string) (string, bool) {
	var v string
	switch name {
	case FieldID:
		v = o.ID
	case FieldAppID:
		v = o.AppID
	case FieldType:
		v = o.Type
	case FieldName:
		v = o.Name
	case FieldCreatorID:
		v = o.CreatorID
	case FieldParentID:
		v = o.ParentID
	case FieldTimestamp:
		v = formatMillis(o.Timestamp)
	case FieldUpdated:
		v = formatMillis(o.Updated)
	default:
		p, ok := o.Properties[name]
		return p, ok
	}
	return v, v != ""
}

// FromFields rehydrates an object from a name to value mapping.
// Numeric fields that fail to parse are left at zero. Returns nil for an empty mapping.
func FromFields(fields map[string]string) *Object {
	if len(fields) == 0 {
		return nil
	}
	o := &Object{}
	for name, value := range fields {
		o.Set(name, value)
	}
	return o
}

func parseMillis(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatMillis(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}
