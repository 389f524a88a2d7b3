// Package queryutil serializes parameter maps into the form-encoded pair
// naming the query and ec2 protocols put in request bodies: nested member
// paths joined with dots, 1-based list indexes, and entry.N.key/value pairs
// for maps.
package queryutil

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/pkg/api"
)

// Build walks an input shape and adds each serialized member to values.
// EC2 mode applies the ec2 protocol's naming rules: queryName traits win,
// names are initial-uppercased, and lists are always flat.
func Build(values url.Values, reg *api.Registry, ref *api.ShapeRef, params map[string]any, opName string, ec2 bool) error {
	if ref == nil {
		if len(params) > 0 {
			return &api.MarshalError{Operation: opName, Reason: "operation takes no input"}
		}
		return nil
	}
	return buildValue(values, reg, ref, params, opName, "", ec2)
}

func buildValue(values url.Values, reg *api.Registry, ref *api.ShapeRef, value any, opName, prefix string, ec2 bool) error {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: prefix, Reason: err.Error(), Cause: err}
	}

	switch shape.Type {
	case api.TypeStructure:
		return buildStructure(values, reg, shape, value, opName, prefix, ec2)
	case api.TypeList:
		return buildList(values, reg, ref, shape, value, opName, prefix, ec2)
	case api.TypeMap:
		return buildMap(values, reg, shape, value, opName, prefix, ec2)
	default:
		format := protocol.TimestampFor(ref, shape, protocol.TSISO8601)
		text, err := protocol.FormatScalar(shape, value, format)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: prefix, Reason: err.Error(), Cause: err}
		}
		values.Set(prefix, text)
		return nil
	}
}

func buildStructure(values url.Values, reg *api.Registry, shape *api.ShapeSpec, value any, opName, prefix string, ec2 bool) error {
	m, ok := value.(map[string]any)
	if !ok {
		return &api.MarshalError{
			Operation: opName, Member: prefix,
			Reason: fmt.Sprintf("expected map, got %T", value),
		}
	}

	for _, name := range shape.MemberNames() {
		memberRef := shape.Members[name]
		v, present := m[name]
		if !present || v == nil {
			if shape.IsRequired(name) {
				return api.MissingRequiredParameter(opName, joinPrefix(prefix, name))
			}
			continue
		}
		wire := memberName(memberRef, name, ec2)
		if err := buildValue(values, reg, memberRef, v, opName, joinPrefix(prefix, wire), ec2); err != nil {
			return err
		}
	}
	return nil
}

func buildList(values url.Values, reg *api.Registry, ref *api.ShapeRef, shape *api.ShapeSpec, value any, opName, prefix string, ec2 bool) error {
	items, ok := value.([]any)
	if !ok {
		return &api.MarshalError{
			Operation: opName, Member: prefix,
			Reason: fmt.Sprintf("expected list, got %T", value),
		}
	}

	// An explicitly empty list still serializes its bare name.
	if len(items) == 0 {
		values.Set(prefix, "")
		return nil
	}

	flat := ec2 || shape.Flattened || ref.Flattened
	elemPrefix := prefix
	if flat {
		// A member locationName on a flattened list renames the final
		// path segment.
		if shape.Member != nil && shape.Member.LocationName != "" && !ec2 {
			elemPrefix = replaceLastSegment(prefix, shape.Member.LocationName)
		}
	} else {
		name := "member"
		if shape.Member != nil && shape.Member.LocationName != "" {
			name = shape.Member.LocationName
		}
		elemPrefix = prefix + "." + name
	}

	for i, item := range items {
		key := elemPrefix + "." + strconv.Itoa(i+1)
		if err := buildValue(values, reg, shape.Member, item, opName, key, ec2); err != nil {
			return err
		}
	}
	return nil
}

func buildMap(values url.Values, reg *api.Registry, shape *api.ShapeSpec, value any, opName, prefix string, ec2 bool) error {
	m, ok := value.(map[string]any)
	if !ok {
		return &api.MarshalError{
			Operation: opName, Member: prefix,
			Reason: fmt.Sprintf("expected map, got %T", value),
		}
	}

	entryPrefix := prefix
	if !shape.Flattened {
		entryPrefix = prefix + ".entry"
	}
	keyName := "key"
	if shape.Key != nil && shape.Key.LocationName != "" {
		keyName = shape.Key.LocationName
	}
	valueName := "value"
	if shape.Value != nil && shape.Value.LocationName != "" {
		valueName = shape.Value.LocationName
	}

	// Sorted keys keep the serialized form deterministic.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		base := entryPrefix + "." + strconv.Itoa(i+1)
		keyShape, err := reg.Resolve(shape.Key)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: prefix, Reason: err.Error(), Cause: err}
		}
		keyText, err := protocol.FormatScalar(keyShape, k, protocol.TSISO8601)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: prefix, Reason: err.Error(), Cause: err}
		}
		values.Set(base+"."+keyName, keyText)
		if err := buildValue(values, reg, shape.Value, m[k], opName, base+"."+valueName, ec2); err != nil {
			return err
		}
	}
	return nil
}

// memberName picks the serialized name for a structure member. The ec2
// protocol prefers queryName, then an initial-uppercased locationName;
// the query protocol prefers locationName as-is.
func memberName(ref *api.ShapeRef, fallback string, ec2 bool) string {
	if ec2 {
		if ref.QueryName != "" {
			return ref.QueryName
		}
		if ref.LocationName != "" {
			return upperFirst(ref.LocationName)
		}
		return upperFirst(fallback)
	}
	return ref.WireName(fallback)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func joinPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func replaceLastSegment(prefix, name string) string {
	idx := strings.LastIndex(prefix, ".")
	if idx < 0 {
		return name
	}
	return prefix[:idx+1] + name
}
