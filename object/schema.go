package object

// Capability describes whether a field may be overwritten after creation.
type Capability int

const (
	// Mutable fields are written on create and on every update.
	Mutable Capability = iota

	// Immutable fields are written on create only.
	Immutable
)

// Schema maps field names to their capability. Names not present are mutable.
type Schema map[string]Capability

// DefaultSchema returns the schema of the core object fields.
func DefaultSchema() Schema {
	return Schema{
		FieldID:        Immutable,
		FieldAppID:     Immutable,
		FieldType:      Immutable,
		FieldTimestamp: Immutable,
		FieldCreatorID: Immutable,
		FieldName:      Mutable,
		FieldParentID:  Mutable,
		FieldUpdated:   Mutable,
	}
}

// WithImmutable returns a copy of the schema with the given fields marked immutable.
func (s Schema) WithImmutable(names ...string) Schema {
	out := make(Schema, len(s)+len(names))
	for k, v := range s {
		out[k] = v
	}
	for _, n := range names {
		out[n] = Immutable
	}
	return out
}

// IsImmutable reports whether the named field is write-once.
func (s Schema) IsImmutable(name string) bool {
	return s[name] == Immutable
}

// Fields enumerates the object's set fields as strings.
// When skipImmutable is true, fields marked immutable are left out.
func (s Schema) Fields(o *Object, skipImmutable bool) map[string]string {
	if o == nil {
		return map[string]string{}
	}
	fields := make(map[string]string, 8+len(o.Properties))
	for _, name := range coreFields {
		if v, ok := o.Get(name); ok {
			fields[name] = v
		}
	}
	for name, v := range o.Properties {
		fields[name] = v
	}
	if skipImmutable {
		for name := range fields {
			if s.IsImmutable(name) {
				delete(fields, name)
			}
		}
	}
	return fields
}

var coreFields = []string{
	FieldID,
	FieldAppID,
	FieldType,
	FieldName,
	FieldCreatorID,
	FieldParentID,
	FieldTimestamp,
	FieldUpdated,
}
