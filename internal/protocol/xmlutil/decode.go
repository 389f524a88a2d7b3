package xmlutil

import (
	"fmt"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/pkg/api"
)

// NodeToValue decodes a parsed element against a shape reference. Structure
// members located outside the body (headers, statusCode) are skipped here
// and bound from the response envelope by the codec.
func NodeToValue(reg *api.Registry, ref *api.ShapeRef, node *Node, tsDefault string) (any, error) {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return nil, err
	}

	switch shape.Type {
	case api.TypeStructure:
		return decodeStructure(reg, shape, node, tsDefault)
	case api.TypeList:
		// A lone list node at this level is a wrapped (non-flattened) list.
		return decodeWrappedList(reg, shape, node, tsDefault)
	case api.TypeMap:
		return decodeMap(reg, shape, entryNodes(shape, node), tsDefault)
	default:
		format := protocol.TimestampFor(ref, shape, tsDefault)
		return protocol.ParseScalar(shape, node.Text, format)
	}
}

func decodeStructure(reg *api.Registry, shape *api.ShapeSpec, node *Node, tsDefault string) (any, error) {
	out := make(map[string]any)
	for _, name := range shape.MemberNames() {
		memberRef := shape.Members[name]
		if memberRef.Location != "" {
			continue
		}
		wire := memberRef.WireName(name)

		memberShape, err := reg.Resolve(memberRef)
		if err != nil {
			return nil, err
		}

		switch memberShape.Type {
		case api.TypeList:
			flat := memberShape.Flattened || memberRef.Flattened
			if flat {
				// Flattened lists repeat the member element at this level.
				elemName := wire
				if memberShape.Member != nil && memberShape.Member.LocationName != "" {
					elemName = memberShape.Member.LocationName
				}
				kids := node.Children[elemName]
				if len(kids) == 0 {
					continue
				}
				items, err := decodeListItems(reg, memberShape, kids, tsDefault)
				if err != nil {
					return nil, err
				}
				out[name] = items
			} else {
				child := node.Child(wire)
				if child == nil {
					continue
				}
				items, err := decodeWrappedList(reg, memberShape, child, tsDefault)
				if err != nil {
					return nil, err
				}
				out[name] = items
			}

		case api.TypeMap:
			flat := memberShape.Flattened || memberRef.Flattened
			var entries []*Node
			if flat {
				entries = node.Children[wire]
			} else if child := node.Child(wire); child != nil {
				entries = child.Children["entry"]
			}
			if entries == nil {
				continue
			}
			m, err := decodeMap(reg, memberShape, entries, tsDefault)
			if err != nil {
				return nil, err
			}
			out[name] = m

		default:
			child := node.Child(wire)
			if child == nil {
				continue
			}
			v, err := NodeToValue(reg, memberRef, child, tsDefault)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", name, err)
			}
			out[name] = v
		}
	}
	return out, nil
}

func decodeWrappedList(reg *api.Registry, shape *api.ShapeSpec, node *Node, tsDefault string) ([]any, error) {
	elemName := "member"
	if shape.Member != nil && shape.Member.LocationName != "" {
		elemName = shape.Member.LocationName
	}
	return decodeListItems(reg, shape, node.Children[elemName], tsDefault)
}

func decodeListItems(reg *api.Registry, shape *api.ShapeSpec, items []*Node, tsDefault string) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := NodeToValue(reg, shape.Member, item, tsDefault)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func entryNodes(shape *api.ShapeSpec, node *Node) []*Node {
	if shape.Flattened {
		return []*Node{node}
	}
	return node.Children["entry"]
}

func decodeMap(reg *api.Registry, shape *api.ShapeSpec, entries []*Node, tsDefault string) (map[string]any, error) {
	keyName := "key"
	if shape.Key != nil && shape.Key.LocationName != "" {
		keyName = shape.Key.LocationName
	}
	valueName := "value"
	if shape.Value != nil && shape.Value.LocationName != "" {
		valueName = shape.Value.LocationName
	}

	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		keyNode := entry.Child(keyName)
		valueNode := entry.Child(valueName)
		if keyNode == nil || valueNode == nil {
			return nil, fmt.Errorf("map entry missing %s or %s element", keyName, valueName)
		}
		v, err := NodeToValue(reg, shape.Value, valueNode, tsDefault)
		if err != nil {
			return nil, err
		}
		out[keyNode.Text] = v
	}
	return out, nil
}
