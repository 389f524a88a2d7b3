package protocol

import (
	"encoding/base64"
	"fmt"

	"github.com/green-labs/aws-api/pkg/api"
)

// BuildJSONValue converts a caller-supplied value into its JSON wire form,
// directed by the shape: structures map member names to wire names, blobs
// become base64 strings, timestamps follow tsDefault unless a trait
// overrides it. Members located outside the body (uri, querystring, header,
// statusCode) are skipped; rest codecs bind those separately. Absent
// optional members are omitted; absent required members fail.
func BuildJSONValue(reg *api.Registry, ref *api.ShapeRef, value any, opName, path, tsDefault string) (any, error) {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return nil, &api.MarshalError{Operation: opName, Member: path, Reason: err.Error(), Cause: err}
	}

	switch shape.Type {
	case api.TypeStructure:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, marshalErr(opName, path, fmt.Sprintf("expected map, got %T", value))
		}
		out := make(map[string]any, len(m))
		for _, name := range shape.MemberNames() {
			memberRef := shape.Members[name]
			v, present := m[name]
			if !present || v == nil {
				if shape.IsRequired(name) {
					return nil, api.MissingRequiredParameter(opName, joinPath(path, name))
				}
				continue
			}
			if memberRef.Location != "" {
				continue
			}
			built, err := BuildJSONValue(reg, memberRef, v, opName, joinPath(path, name), tsDefault)
			if err != nil {
				return nil, err
			}
			out[memberRef.WireName(name)] = built
		}
		return out, nil

	case api.TypeList:
		items, ok := value.([]any)
		if !ok {
			return nil, marshalErr(opName, path, fmt.Sprintf("expected list, got %T", value))
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			built, err := BuildJSONValue(reg, shape.Member, item,
				opName, fmt.Sprintf("%s[%d]", path, i), tsDefault)
			if err != nil {
				return nil, err
			}
			out = append(out, built)
		}
		return out, nil

	case api.TypeMap:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, marshalErr(opName, path, fmt.Sprintf("expected map, got %T", value))
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			built, err := BuildJSONValue(reg, shape.Value, v,
				opName, fmt.Sprintf("%s[%s]", path, k), tsDefault)
			if err != nil {
				return nil, err
			}
			out[k] = built
		}
		return out, nil

	case api.TypeBlob:
		raw, err := ToBytes(value)
		if err != nil {
			return nil, marshalErr(opName, path, err.Error())
		}
		return base64.StdEncoding.EncodeToString(raw), nil

	case api.TypeTimestamp:
		format := TimestampFor(ref, shape, tsDefault)
		t, err := ToTime(value, format)
		if err != nil {
			return nil, marshalErr(opName, path, err.Error())
		}
		if format == TSUnixTimestamp {
			// JSON carries epoch timestamps as numbers, not strings.
			secs := float64(t.UTC().UnixNano()) / 1e9
			return secs, nil
		}
		return FormatTimestamp(t, format), nil

	case api.TypeInteger, api.TypeLong:
		n, err := toInt64(value)
		if err != nil {
			return nil, marshalErr(opName, path, err.Error())
		}
		return n, nil

	case api.TypeFloat, api.TypeDouble:
		f, err := toFloat64(value)
		if err != nil {
			return nil, marshalErr(opName, path, err.Error())
		}
		return f, nil

	case api.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, marshalErr(opName, path, fmt.Sprintf("expected boolean, got %T", value))
		}
		return b, nil

	default: // string
		s, err := toString(value)
		if err != nil {
			return nil, marshalErr(opName, path, err.Error())
		}
		return s, nil
	}
}

// ParseJSONValue converts decoded JSON back into result values directed by
// the shape: integer members become int64, blobs decode from base64 to
// []byte, timestamps become time.Time. Unknown keys in the payload are
// dropped; absent members stay absent.
func ParseJSONValue(reg *api.Registry, ref *api.ShapeRef, raw any, tsDefault string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	shape, err := reg.Resolve(ref)
	if err != nil {
		return nil, err
	}

	switch shape.Type {
	case api.TypeStructure:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected JSON object for shape %s, got %T", shape.Name, raw)
		}
		out := make(map[string]any)
		for _, name := range shape.MemberNames() {
			memberRef := shape.Members[name]
			if memberRef.Location != "" {
				continue
			}
			wire, present := m[memberRef.WireName(name)]
			if !present || wire == nil {
				continue
			}
			parsed, err := ParseJSONValue(reg, memberRef, wire, tsDefault)
			if err != nil {
				return nil, err
			}
			out[name] = parsed
		}
		return out, nil

	case api.TypeList:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected JSON array for shape %s, got %T", shape.Name, raw)
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			parsed, err := ParseJSONValue(reg, shape.Member, item, tsDefault)
			if err != nil {
				return nil, err
			}
			out = append(out, parsed)
		}
		return out, nil

	case api.TypeMap:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected JSON object for shape %s, got %T", shape.Name, raw)
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			parsed, err := ParseJSONValue(reg, shape.Value, v, tsDefault)
			if err != nil {
				return nil, err
			}
			out[k] = parsed
		}
		return out, nil

	case api.TypeBlob:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected base64 string for shape %s, got %T", shape.Name, raw)
		}
		return base64.StdEncoding.DecodeString(s)

	case api.TypeTimestamp:
		format := TimestampFor(ref, shape, tsDefault)
		switch v := raw.(type) {
		case float64:
			return EpochSeconds(v), nil
		case string:
			return ParseTimestamp(v, format)
		default:
			return nil, fmt.Errorf("expected timestamp for shape %s, got %T", shape.Name, raw)
		}

	case api.TypeInteger, api.TypeLong:
		return toInt64(raw)

	case api.TypeFloat, api.TypeDouble:
		return toFloat64(raw)

	case api.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean for shape %s, got %T", shape.Name, raw)
		}
		return b, nil

	default: // string
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for shape %s, got %T", shape.Name, raw)
		}
		return s, nil
	}
}

func marshalErr(op, path, reason string) *api.MarshalError {
	return &api.MarshalError{Operation: op, Member: path, Reason: reason}
}

func joinPath(path, member string) string {
	if path == "" {
		return member
	}
	return path + "." + member
}
