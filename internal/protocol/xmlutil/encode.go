package xmlutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/pkg/api"
)

// Encode serializes a value as an XML element tree rooted at rootName,
// directed by the shape. Members located outside the body are skipped.
// Absent optional members are omitted; absent required members fail.
func Encode(reg *api.Registry, ref *api.ShapeRef, value any, rootName, opName, tsDefault string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, reg, ref, value, rootName, opName, "", tsDefault); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, reg *api.Registry, ref *api.ShapeRef, value any, elemName, opName, path, tsDefault string) error {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: path, Reason: err.Error(), Cause: err}
	}

	switch shape.Type {
	case api.TypeStructure:
		m, ok := value.(map[string]any)
		if !ok {
			return &api.MarshalError{
				Operation: opName, Member: path,
				Reason: fmt.Sprintf("expected map, got %T", value),
			}
		}
		openTag(buf, elemName)
		for _, name := range shape.MemberNames() {
			memberRef := shape.Members[name]
			v, present := m[name]
			if !present || v == nil {
				if shape.IsRequired(name) {
					return api.MissingRequiredParameter(opName, childPath(path, name))
				}
				continue
			}
			if memberRef.Location != "" {
				continue
			}
			if err := encodeMember(buf, reg, memberRef, v, name, opName, childPath(path, name), tsDefault); err != nil {
				return err
			}
		}
		closeTag(buf, elemName)
		return nil

	case api.TypeList, api.TypeMap:
		// Lists and maps are encoded through encodeMember, which knows the
		// wrapping rules; a bare top-level list/map body does not occur.
		wrapper := &api.ShapeRef{Shape: ref.Shape}
		return encodeMember(buf, reg, wrapper, value, elemName, opName, path, tsDefault)

	default:
		format := protocol.TimestampFor(ref, shape, tsDefault)
		text, err := protocol.FormatScalar(shape, value, format)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: path, Reason: err.Error(), Cause: err}
		}
		openTag(buf, elemName)
		xml.EscapeText(buf, []byte(text))
		closeTag(buf, elemName)
		return nil
	}
}

func encodeMember(buf *bytes.Buffer, reg *api.Registry, ref *api.ShapeRef, value any, memberName, opName, path, tsDefault string) error {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: path, Reason: err.Error(), Cause: err}
	}
	wire := ref.WireName(memberName)

	switch shape.Type {
	case api.TypeList:
		items, ok := value.([]any)
		if !ok {
			return &api.MarshalError{
				Operation: opName, Member: path,
				Reason: fmt.Sprintf("expected list, got %T", value),
			}
		}
		flat := shape.Flattened || ref.Flattened
		elemName := "member"
		if shape.Member != nil && shape.Member.LocationName != "" {
			elemName = shape.Member.LocationName
		}
		if flat {
			// Flattened lists repeat the member element with no wrapper.
			name := wire
			if shape.Member != nil && shape.Member.LocationName != "" {
				name = shape.Member.LocationName
			}
			for i, item := range items {
				if err := encodeValue(buf, reg, shape.Member, item, name, opName,
					fmt.Sprintf("%s[%d]", path, i), tsDefault); err != nil {
					return err
				}
			}
			return nil
		}
		openTag(buf, wire)
		for i, item := range items {
			if err := encodeValue(buf, reg, shape.Member, item, elemName, opName,
				fmt.Sprintf("%s[%d]", path, i), tsDefault); err != nil {
				return err
			}
		}
		closeTag(buf, wire)
		return nil

	case api.TypeMap:
		m, ok := value.(map[string]any)
		if !ok {
			return &api.MarshalError{
				Operation: opName, Member: path,
				Reason: fmt.Sprintf("expected map, got %T", value),
			}
		}
		keyName := "key"
		if shape.Key != nil && shape.Key.LocationName != "" {
			keyName = shape.Key.LocationName
		}
		valueName := "value"
		if shape.Value != nil && shape.Value.LocationName != "" {
			valueName = shape.Value.LocationName
		}
		keys := sortedKeys(m)

		if !shape.Flattened {
			openTag(buf, wire)
		}
		for _, k := range keys {
			entryName := "entry"
			if shape.Flattened {
				entryName = wire
			}
			openTag(buf, entryName)
			openTag(buf, keyName)
			xml.EscapeText(buf, []byte(k))
			closeTag(buf, keyName)
			if err := encodeValue(buf, reg, shape.Value, m[k], valueName, opName,
				fmt.Sprintf("%s[%s]", path, k), tsDefault); err != nil {
				return err
			}
			closeTag(buf, entryName)
		}
		if !shape.Flattened {
			closeTag(buf, wire)
		}
		return nil

	default:
		return encodeValue(buf, reg, ref, value, wire, opName, path, tsDefault)
	}
}

func childPath(path, member string) string {
	if path == "" {
		return member
	}
	return path + "." + member
}

func openTag(buf *bytes.Buffer, name string) {
	buf.WriteByte('<')
	buf.WriteString(name)
	buf.WriteByte('>')
}

func closeTag(buf *bytes.Buffer, name string) {
	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
