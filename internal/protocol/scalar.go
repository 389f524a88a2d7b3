package protocol

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/green-labs/aws-api/pkg/api"
)

// Timestamp format trait values.
const (
	TSISO8601       = "iso8601"
	TSUnixTimestamp = "unixTimestamp"
	TSRFC822        = "rfc822"
)

const (
	iso8601Layout      = "2006-01-02T15:04:05Z"
	iso8601MilliLayout = "2006-01-02T15:04:05.999Z"
	rfc822Layout       = "Mon, 2 Jan 2006 15:04:05 GMT"
)

// TimestampFor picks the timestamp format for a member: the member trait
// wins, then the shape trait, then the supplied protocol default.
func TimestampFor(ref *api.ShapeRef, shape *api.ShapeSpec, fallback string) string {
	if ref != nil && ref.TimestampFormat != "" {
		return ref.TimestampFormat
	}
	if shape != nil && shape.TimestampFormat != "" {
		return shape.TimestampFormat
	}
	return fallback
}

// FormatTimestamp renders a time value in the given wire format.
func FormatTimestamp(t time.Time, format string) string {
	t = t.UTC()
	switch format {
	case TSUnixTimestamp:
		// Whole seconds serialize without a fraction.
		secs := float64(t.UnixNano()) / float64(time.Second)
		if secs == math.Trunc(secs) {
			return strconv.FormatInt(int64(secs), 10)
		}
		return strconv.FormatFloat(secs, 'f', -1, 64)
	case TSRFC822:
		return t.Format(rfc1123GMTLayout)
	default:
		return t.Format(iso8601Layout)
	}
}

// Same layout as net/http's TimeFormat.
const rfc1123GMTLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// ParseTimestamp parses a wire timestamp in the given format. The iso8601
// path tolerates fractional seconds and offsets; rfc822 tolerates both
// one- and two-digit days.
func ParseTimestamp(s string, format string) (time.Time, error) {
	switch format {
	case TSUnixTimestamp:
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %q: %w", s, err)
		}
		return EpochSeconds(secs), nil
	case TSRFC822:
		for _, layout := range []string{rfc1123GMTLayout, rfc822Layout} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid rfc822 timestamp %q", s)
	default:
		for _, layout := range []string{time.RFC3339Nano, iso8601Layout, iso8601MilliLayout} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid iso8601 timestamp %q", s)
	}
}

// EpochSeconds converts possibly-fractional epoch seconds to a time.
func EpochSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
}

// ToTime coerces a caller-supplied timestamp value. Accepted forms: a
// time.Time, epoch seconds as a number, or an iso8601 string.
func ToTime(value any, format string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		return EpochSeconds(v), nil
	case string:
		return ParseTimestamp(v, format)
	default:
		return time.Time{}, fmt.Errorf("cannot interpret %T as timestamp", value)
	}
}

// ToBytes coerces a caller-supplied blob value. Strings pass through as
// their raw bytes, readers are drained; base64 encoding happens at
// serialization.
func ToBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return io.ReadAll(v)
	default:
		return nil, fmt.Errorf("cannot interpret %T as blob", value)
	}
}

// FormatScalar renders a scalar value as its text wire form for the given
// shape: query parameters, form bodies, headers, XML text.
func FormatScalar(shape *api.ShapeSpec, value any, tsFormat string) (string, error) {
	switch shape.Type {
	case api.TypeString:
		s, err := toString(value)
		if err != nil {
			return "", err
		}
		return s, nil
	case api.TypeInteger, api.TypeLong:
		n, err := toInt64(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case api.TypeFloat, api.TypeDouble:
		f, err := toFloat64(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case api.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("cannot interpret %T as boolean", value)
		}
		return strconv.FormatBool(b), nil
	case api.TypeBlob:
		raw, err := ToBytes(value)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	case api.TypeTimestamp:
		t, err := ToTime(value, tsFormat)
		if err != nil {
			return "", err
		}
		return FormatTimestamp(t, tsFormat), nil
	default:
		return "", fmt.Errorf("shape %s (%s) is not a scalar", shape.Name, shape.Type)
	}
}

// ParseScalar decodes a text wire form into the structured value for the
// given shape: int64 for integer/long, float64 for float/double, []byte for
// blob, time.Time for timestamp.
func ParseScalar(shape *api.ShapeSpec, text string, tsFormat string) (any, error) {
	switch shape.Type {
	case api.TypeString:
		return text, nil
	case api.TypeInteger, api.TypeLong:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", text, err)
		}
		return n, nil
	case api.TypeFloat, api.TypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", text, err)
		}
		return f, nil
	case api.TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q: %w", text, err)
		}
		return b, nil
	case api.TypeBlob:
		raw, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 blob: %w", err)
		}
		return raw, nil
	case api.TypeTimestamp:
		return ParseTimestamp(text, tsFormat)
	default:
		return nil, fmt.Errorf("shape %s (%s) is not a scalar", shape.Name, shape.Type)
	}
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("cannot interpret %T as string", value)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("cannot interpret fractional %v as integer", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot interpret %T as integer", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("cannot interpret %T as number", value)
	}
}
