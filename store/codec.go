package store

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
)

const (
	// KeyField is the reserved attribute holding the composite primary key.
	// The object layer must never supply a field with this name.
	KeyField = "key"

	// TypeField is the object type attribute, kept in partial projections.
	TypeField = object.FieldType
)

// Row is a stored item. All values are string attributes.
type Row map[string]types.AttributeValue

// Codec converts objects to rows and back.
type Codec struct {
	schema object.Schema
	logger zerolog.Logger
}

// NewCodec creates a codec for the given schema. A nil schema uses object.DefaultSchema.
func NewCodec(schema object.Schema, logger zerolog.Logger) *Codec {
	if schema == nil {
		schema = object.DefaultSchema()
	}
	return &Codec{schema: schema, logger: logger}
}

// Schema returns the codec's field capability descriptor.
func (c *Codec) Schema() object.Schema {
	return c.schema
}

// Encode converts an object to a row. Blank values are dropped and the reserved
// key field is never emitted; callers add it with setRowKey.
// With skipImmutable, fields the schema marks immutable are left out.
func (c *Codec) Encode(o *object.Object, skipImmutable bool) Row {
	row := Row{}
	if o == nil {
		return row
	}
	for name, value := range c.schema.Fields(o, skipImmutable) {
		if name == KeyField {
			c.logger.Warn().
				Str("field", KeyField).
				Str("id", o.ID).
				Msg("attribute name conflict: reserved key field dropped from object")
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			continue
		}
		row[name] = av
	}
	return row
}

// Decode converts a row to an object, or nil for an empty row.
// Numbers keep their decimal form, other non-string attributes are skipped,
// so the result may be partial.
// A missing id is recovered from the composite key.
func (c *Codec) Decode(row map[string]types.AttributeValue) *object.Object {
	if len(row) == 0 {
		return nil
	}
	fields := make(map[string]string, len(row))
	for name, av := range row {
		if n, ok := av.(*types.AttributeValueMemberN); ok {
			fields[name] = n.Value
			continue
		}
		var s string
		if err := attributevalue.Unmarshal(av, &s); err != nil {
			continue
		}
		fields[name] = s
	}
	key, hasKey := fields[KeyField]
	delete(fields, KeyField)
	if _, ok := fields[object.FieldID]; !ok && hasKey {
		if _, id, ok := keys.Split(key); ok && id != "" {
			fields[object.FieldID] = id
		}
	}
	return object.FromFields(fields)
}

// setRowKey stores the composite key in the row's reserved key field.
// A field already using the reserved name is overwritten.
func (c *Codec) setRowKey(row Row, key string) {
	if _, ok := row[KeyField]; ok {
		c.logger.Warn().
			Str("field", KeyField).
			Msg("attribute name conflict: reserved key field will be overwritten")
	}
	row[KeyField] = &types.AttributeValueMemberS{Value: key}
}

// keyOf returns the primary key attribute map for a composite key.
func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		KeyField: &types.AttributeValueMemberS{Value: key},
	}
}

// stringAttr returns the string value of an attribute, or "" if absent or not a string.
func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
