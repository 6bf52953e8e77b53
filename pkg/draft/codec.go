package draft

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

// GeoPoint is a picked coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the point carries no coordinates.
func (p GeoPoint) Zero() bool { return p.Lat == 0 && p.Lng == 0 }

// EncodeStringList serializes a multi-select or image-list value. The JSON
// encoding is reversible: order and every element survive the round trip.
func EncodeStringList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

// DecodeStringList reverses EncodeStringList. A corrupt encoding yields an
// empty list rather than an error: a partially-written draft must remain
// usable.
func DecodeStringList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return []string{}
	}
	return items
}

// EncodeGeoPoint serializes a coordinate pair.
func EncodeGeoPoint(p GeoPoint) string {
	data, _ := json.Marshal(p)
	return string(data)
}

// DecodeGeoPoint reverses EncodeGeoPoint, yielding the zero point on a
// corrupt encoding.
func DecodeGeoPoint(raw string) GeoPoint {
	var p GeoPoint
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return GeoPoint{}
	}
	return p
}

// Codec converts a stage's in-memory values to and from their stored/wire
// representations. It is the only place, together with the sync client's
// multipart writer, where boolean encodings and collection serializations
// are applied.
type Codec struct {
	stage schema.StageDefinition
}

// NewCodec returns a codec bound to one stage definition.
func NewCodec(stage schema.StageDefinition) Codec {
	return Codec{stage: stage}
}

// EncodeValue converts one in-memory value to its boundary representation.
// Unknown keys pass through untouched so server-echoed extras survive.
func (c Codec) EncodeValue(key string, value any) (any, error) {
	field, ok := c.stage.Field(key)
	if !ok {
		return value, nil
	}
	switch field.Type {
	case schema.TypeTripleState:
		v, err := triplestate.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("draft: field %q: %w", key, err)
		}
		return triplestate.Encode(v, field.BoolEncoding)
	case schema.TypeMultiSelect, schema.TypeImageList:
		items, err := asStringList(value)
		if err != nil {
			return nil, fmt.Errorf("draft: field %q: %w", key, err)
		}
		return EncodeStringList(items), nil
	case schema.TypeGeoPoint:
		point, err := asGeoPoint(value)
		if err != nil {
			return nil, fmt.Errorf("draft: field %q: %w", key, err)
		}
		return EncodeGeoPoint(point), nil
	default:
		return value, nil
	}
}

// DecodeValue converts one stored/wire value back to its in-memory form.
func (c Codec) DecodeValue(key string, raw any) (any, error) {
	field, ok := c.stage.Field(key)
	if !ok {
		return raw, nil
	}
	switch field.Type {
	case schema.TypeTripleState:
		v, err := triplestate.Decode(raw, field.BoolEncoding)
		if err != nil {
			return nil, fmt.Errorf("draft: field %q: %w", key, err)
		}
		if v == triplestate.Unset {
			return nil, nil
		}
		return string(v), nil
	case schema.TypeMultiSelect, schema.TypeImageList:
		return DecodeStringList(asString(raw)), nil
	case schema.TypeGeoPoint:
		return DecodeGeoPoint(asString(raw)), nil
	default:
		if raw == nil {
			return nil, nil
		}
		return asString(raw), nil
	}
}

// EncodeRecord applies EncodeValue across a value map, dropping nil results
// so unanswered fields stay absent.
func (c Codec) EncodeRecord(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		enc, err := c.EncodeValue(k, v)
		if err != nil {
			return nil, err
		}
		if enc == nil {
			continue
		}
		out[k] = enc
	}
	return out, nil
}

// DecodeRecord applies DecodeValue across a raw record, skipping nils.
// Decode failures on Yes/No fields are tolerated as unanswered rather than
// failing the whole record; a remote row with one bad flag must still
// hydrate the rest of the stage.
func (c Codec) DecodeRecord(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		dec, err := c.DecodeValue(k, v)
		if err != nil || dec == nil {
			continue
		}
		out[k] = dec
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}

func asStringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("draft: list element %T is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return DecodeStringList(t), nil
	default:
		return nil, fmt.Errorf("draft: %T is not a string list", v)
	}
}

func asGeoPoint(v any) (GeoPoint, error) {
	switch t := v.(type) {
	case nil:
		return GeoPoint{}, nil
	case GeoPoint:
		return t, nil
	case *GeoPoint:
		if t == nil {
			return GeoPoint{}, nil
		}
		return *t, nil
	case string:
		return DecodeGeoPoint(t), nil
	case map[string]any:
		var p GeoPoint
		if lat, ok := t["lat"].(float64); ok {
			p.Lat = lat
		}
		if lng, ok := t["lng"].(float64); ok {
			p.Lng = lng
		}
		return p, nil
	default:
		return GeoPoint{}, fmt.Errorf("draft: %T is not a geo point", v)
	}
}
