// Package rest binds shape members located outside the body: uri path
// placeholders, query string parameters, headers, header maps, and the
// response status code. The rest-json and rest-xml codecs build and read
// their envelopes through it.
package rest

import (
	"fmt"
	"strings"

	"github.com/green-labs/aws-api/internal/protocol"
	"github.com/green-labs/aws-api/internal/transport"
	"github.com/green-labs/aws-api/pkg/api"
)

// Build applies the operation's request URI template and binds every
// located input member onto the request skeleton. Body members are left to
// the caller.
func Build(req *transport.Request, reg *api.Registry, op *api.OperationSpec, params map[string]any) error {
	path, query := splitURI(op.RequestURI)
	for _, pair := range query {
		req.Query.Add(pair[0], pair[1])
	}

	if op.Input == nil {
		req.Path = path
		return nil
	}
	shape, err := reg.Resolve(op.Input)
	if err != nil {
		return &api.MarshalError{Operation: op.Name, Reason: err.Error(), Cause: err}
	}

	for _, name := range shape.MemberNames() {
		memberRef := shape.Members[name]
		value, present := params[name]
		if !present || value == nil {
			if shape.IsRequired(name) && memberRef.Location != "" {
				return api.MissingRequiredParameter(op.Name, name)
			}
			continue
		}

		switch memberRef.Location {
		case api.LocationURI:
			path, err = bindURI(path, reg, memberRef, name, value, op.Name)
		case api.LocationQueryString:
			err = bindQuery(req, reg, memberRef, name, value, op.Name)
		case api.LocationHeader:
			err = bindHeader(req, reg, memberRef, name, value, op.Name)
		case api.LocationHeaderMap:
			err = bindHeaderMap(req, reg, memberRef, name, value, op.Name)
		}
		if err != nil {
			return err
		}
	}

	req.Path = path
	return nil
}

func bindURI(path string, reg *api.Registry, ref *api.ShapeRef, name string, value any, opName string) (string, error) {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return "", &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	text, err := protocol.FormatScalar(shape, value, protocol.TimestampFor(ref, shape, protocol.TSISO8601))
	if err != nil {
		return "", &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	if text == "" {
		return "", &api.MarshalError{Operation: opName, Member: name, Reason: "uri parameter must not be empty"}
	}

	label := ref.WireName(name)
	greedy := "{" + label + "+}"
	plain := "{" + label + "}"
	switch {
	case strings.Contains(path, greedy):
		return strings.ReplaceAll(path, greedy, EscapePath(text, false)), nil
	case strings.Contains(path, plain):
		return strings.ReplaceAll(path, plain, EscapePath(text, true)), nil
	default:
		return "", &api.MarshalError{
			Operation: opName, Member: name,
			Reason: fmt.Sprintf("no %s placeholder in request URI %q", plain, path),
		}
	}
}

func bindQuery(req *transport.Request, reg *api.Registry, ref *api.ShapeRef, name string, value any, opName string) error {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	key := ref.WireName(name)

	switch shape.Type {
	case api.TypeList:
		items, ok := value.([]any)
		if !ok {
			return &api.MarshalError{
				Operation: opName, Member: name,
				Reason: fmt.Sprintf("expected list, got %T", value),
			}
		}
		memberShape, err := reg.Resolve(shape.Member)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
		}
		tsFormat := protocol.TimestampFor(shape.Member, memberShape, protocol.TSISO8601)
		for _, item := range items {
			text, err := protocol.FormatScalar(memberShape, item, tsFormat)
			if err != nil {
				return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
			}
			req.Query.Add(key, text)
		}
		return nil

	case api.TypeMap:
		m, ok := value.(map[string]any)
		if !ok {
			return &api.MarshalError{
				Operation: opName, Member: name,
				Reason: fmt.Sprintf("expected map, got %T", value),
			}
		}
		valueShape, err := reg.Resolve(shape.Value)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
		}
		for k, v := range m {
			text, err := protocol.FormatScalar(valueShape, v, protocol.TSISO8601)
			if err != nil {
				return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
			}
			req.Query.Add(k, text)
		}
		return nil

	default:
		text, err := protocol.FormatScalar(shape, value, protocol.TimestampFor(ref, shape, protocol.TSISO8601))
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
		}
		req.Query.Set(key, text)
		return nil
	}
}

func bindHeader(req *transport.Request, reg *api.Registry, ref *api.ShapeRef, name string, value any, opName string) error {
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	// Headers default to the rfc822 timestamp form.
	text, err := protocol.FormatScalar(shape, value, protocol.TimestampFor(ref, shape, protocol.TSRFC822))
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	req.Headers.Set(ref.WireName(name), text)
	return nil
}

func bindHeaderMap(req *transport.Request, reg *api.Registry, ref *api.ShapeRef, name string, value any, opName string) error {
	m, ok := value.(map[string]any)
	if !ok {
		return &api.MarshalError{
			Operation: opName, Member: name,
			Reason: fmt.Sprintf("expected map, got %T", value),
		}
	}
	shape, err := reg.Resolve(ref)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	valueShape, err := reg.Resolve(shape.Value)
	if err != nil {
		return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
	}
	prefix := ref.LocationName
	for k, v := range m {
		text, err := protocol.FormatScalar(valueShape, v, protocol.TSRFC822)
		if err != nil {
			return &api.MarshalError{Operation: opName, Member: name, Reason: err.Error(), Cause: err}
		}
		req.Headers.Set(prefix+k, text)
	}
	return nil
}

// UnmarshalEnvelope binds header-located and statusCode-located output
// members from the response envelope into the result map.
func UnmarshalEnvelope(result map[string]any, reg *api.Registry, outputRef *api.ShapeRef, resp *transport.Response) error {
	if outputRef == nil {
		return nil
	}
	shape, err := reg.Resolve(outputRef)
	if err != nil {
		return err
	}

	for _, name := range shape.MemberNames() {
		memberRef := shape.Members[name]
		switch memberRef.Location {
		case api.LocationStatusCode:
			result[name] = int64(resp.StatusCode)

		case api.LocationHeader:
			raw := resp.Headers.Get(memberRef.WireName(name))
			if raw == "" {
				continue
			}
			memberShape, err := reg.Resolve(memberRef)
			if err != nil {
				return err
			}
			v, err := protocol.ParseScalar(memberShape, raw, protocol.TimestampFor(memberRef, memberShape, protocol.TSRFC822))
			if err != nil {
				return fmt.Errorf("header member %s: %w", name, err)
			}
			result[name] = v

		case api.LocationHeaderMap:
			prefix := memberRef.LocationName
			collected := map[string]any{}
			for header, values := range resp.Headers {
				if len(values) == 0 {
					continue
				}
				if prefix == "" || strings.HasPrefix(strings.ToLower(header), strings.ToLower(prefix)) {
					collected[header[len(prefix):]] = values[0]
				}
			}
			if len(collected) > 0 {
				result[name] = collected
			}
		}
	}
	return nil
}

// splitURI separates a request URI template into its path and any baked-in
// query pairs (e.g. "/bucket?list-type=2").
func splitURI(uri string) (string, [][2]string) {
	idx := strings.Index(uri, "?")
	if idx < 0 {
		return uri, nil
	}
	path := uri[:idx]
	var pairs [][2]string
	for _, part := range strings.Split(uri[idx+1:], "&") {
		if part == "" {
			continue
		}
		if eq := strings.Index(part, "="); eq >= 0 {
			pairs = append(pairs, [2]string{part[:eq], part[eq+1:]})
		} else {
			pairs = append(pairs, [2]string{part, ""})
		}
	}
	return path, pairs
}

// EscapePath percent-encodes a path value. Unreserved characters pass
// through; encodeSep controls whether "/" is encoded (plain placeholders)
// or preserved (greedy placeholders).
func EscapePath(s string, encodeSep bool) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			out.WriteByte(c)
		case c == '/' && !encodeSep:
			out.WriteByte(c)
		default:
			fmt.Fprintf(&out, "%%%02X", c)
		}
	}
	return out.String()
}
