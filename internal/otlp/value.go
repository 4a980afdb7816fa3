package otlp

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
)

// Value is the wire protocol's discriminated value union. Exactly one variant
// is populated on well-formed input; Decode checks variants in a fixed
// priority order (string, bool, int, double, array, kvlist, bytes) which
// doubles as the tie-break when a malformed producer populates more than one.
type Value struct {
	StringValue *string     `json:"stringValue"`
	BoolValue   *bool       `json:"boolValue"`
	IntValue    *wireInt    `json:"intValue"`
	DoubleValue *float64    `json:"doubleValue"`
	ArrayValue  *arrayValue `json:"arrayValue"`
	KvlistValue *kvlist     `json:"kvlistValue"`
	BytesValue  *string     `json:"bytesValue"`
}

type arrayValue struct {
	Values []Value `json:"values"`
}

type kvlist struct {
	Values []KeyValue `json:"values"`
}

// KeyValue is one entry of a wire attribute list.
type KeyValue struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// wireInt carries a 64-bit integer that arrives as a decimal string on the
// wire, tolerating bare JSON numbers from sloppy producers.
type wireInt string

func (w *wireInt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = wireInt(s)
		return nil
	}
	*w = wireInt(data)
	return nil
}

// Decode collapses a wire value into a native Go value, recursing into nested
// arrays and maps. The variant priority order must be preserved exactly.
func (v Value) Decode() any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.BoolValue != nil:
		return *v.BoolValue
	case v.IntValue != nil:
		return v.IntValue.decode()
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.ArrayValue != nil:
		out := make([]any, 0, len(v.ArrayValue.Values))
		for _, item := range v.ArrayValue.Values {
			out = append(out, item.Decode())
		}
		return out
	case v.KvlistValue != nil:
		return decodeAttributes(v.KvlistValue.Values)
	case v.BytesValue != nil:
		if raw, err := base64.StdEncoding.DecodeString(*v.BytesValue); err == nil {
			return raw
		}
		return *v.BytesValue
	default:
		return nil
	}
}

// decode parses the decimal string into an int64 when it is exactly
// representable; otherwise it preserves the original string so values beyond
// the native range lose no precision.
func (w wireInt) decode() any {
	if n, err := strconv.ParseInt(string(w), 10, 64); err == nil {
		return n
	}
	return string(w)
}

// decodeAttributes flattens a wire attribute list into a map. Later
// duplicates win, matching the wire format's last-writer semantics.
func decodeAttributes(kvs []KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value.Decode()
	}
	return out
}
