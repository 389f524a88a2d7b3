// Package xmlutil converts between XML documents and shape-directed values.
// Decoding goes through an intermediate node tree so that flattened lists,
// wrapped lists, and maps can all be walked uniformly against the shape;
// encoding writes elements directly from the value.
package xmlutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one parsed XML element: its text content and its child elements
// grouped by local name in document order.
type Node struct {
	Name     string
	Text     string
	Children map[string][]*Node
}

// Child returns the first child with the given name.
func (n *Node) Child(name string) *Node {
	kids := n.Children[name]
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

// FindPath descends through first children by name.
func (n *Node) FindPath(names ...string) *Node {
	cur := n
	for _, name := range names {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// Parse reads an XML document into its root node. Character data directly
// inside an element becomes its Text; nested elements become Children.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("empty XML document")
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return parseElement(dec, start)
		}
	}
}

func parseElement(dec *xml.Decoder, start xml.StartElement) (*Node, error) {
	node := &Node{
		Name:     start.Name.Local,
		Children: map[string][]*Node{},
	}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed XML inside <%s>: %w", node.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			node.Children[child.Name] = append(node.Children[child.Name], child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			node.Text = strings.TrimSpace(text.String())
			return node, nil
		}
	}
}
