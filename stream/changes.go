// Package stream turns DynamoDB stream records of store tables into object changes.
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/jacentio/dynadao/internal/keys"
	"github.com/jacentio/dynadao/object"
	"github.com/jacentio/dynadao/store"
)

// Kind is the type of change a record describes.
type Kind int

const (
	Created Kind = iota
	Updated
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Change is one decoded stream record.
type Change struct {
	Kind   Kind
	Tenant string

	// Object is the new image for creates and updates, the old image for deletes.
	Object *object.Object
}

// Sink receives changes in stream order.
type Sink interface {
	Apply(ctx context.Context, c Change) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, c Change) error

// Apply implements Sink.
func (f SinkFunc) Apply(ctx context.Context, c Change) error { return f(ctx, c) }

// Handler processes DynamoDB stream events of store tables.
type Handler struct {
	codec  *store.Codec
	sink   Sink
	logger zerolog.Logger
}

// NewHandler creates a new stream handler. A nil codec uses the default schema.
func NewHandler(codec *store.Codec, sink Sink, logger zerolog.Logger) *Handler {
	if codec == nil {
		codec = store.NewCodec(nil, logger)
	}
	return &Handler{
		codec:  codec,
		sink:   sink,
		logger: logger,
	}
}

// HandleChanges processes a batch of stream records.
// This function is designed to be used as an AWS Lambda handler: a sink error
// stops the batch and is returned so the records are redelivered.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error().
				Err(err).
				Str("eventID", record.EventID).
				Msg("failed to process record")
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	var (
		kind  Kind
		image map[string]events.DynamoDBAttributeValue
	)
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert:
		kind, image = Created, record.Change.NewImage
	case events.DynamoDBOperationTypeModify:
		kind, image = Updated, record.Change.NewImage
	case events.DynamoDBOperationTypeRemove:
		kind, image = Deleted, record.Change.OldImage
		if len(image) == 0 {
			// KEYS_ONLY streams carry no old image.
			image = record.Change.Keys
		}
	default:
		return nil
	}

	o := h.codec.Decode(ConvertStreamImage(image))
	if o == nil {
		h.logger.Warn().
			Str("eventID", record.EventID).
			Str("event", record.EventName).
			Msg("skipping record without a decodable image")
		return nil
	}

	tenant := o.AppID
	if tenant == "" {
		tenant, _, _ = keys.Split(getStringAttr(image, store.KeyField))
	}

	h.logger.Debug().
		Str("kind", kind.String()).
		Str("tenant", tenant).
		Str("id", o.ID).
		Msg("applying change")

	if err := h.sink.Apply(ctx, Change{Kind: kind, Tenant: tenant, Object: o}); err != nil {
		return fmt.Errorf("apply %s %s/%s: %w", kind, tenant, o.ID, err)
	}
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// ConvertStreamImage converts a DynamoDB stream image to a store row.
// Null attributes are dropped.
func ConvertStreamImage(image map[string]events.DynamoDBAttributeValue) store.Row {
	row := make(store.Row, len(image))
	for k, v := range image {
		if av := convertValue(v); av != nil {
			row[k] = av
		}
	}
	return row
}

func convertValue(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeList:
		list := make([]types.AttributeValue, 0, len(v.List()))
		for _, item := range v.List() {
			if av := convertValue(item); av != nil {
				list = append(list, av)
			}
		}
		return &types.AttributeValueMemberL{Value: list}
	case events.DataTypeMap:
		m := make(map[string]types.AttributeValue, len(v.Map()))
		for k, item := range v.Map() {
			if av := convertValue(item); av != nil {
				m[k] = av
			}
		}
		return &types.AttributeValueMemberM{Value: m}
	}
	return nil
}
