package otlp

import "strconv"

// Ordered alternate-key tables for fields that producers spell differently.
// Lookup is first-match-wins over a static table, never dynamic probing.
var (
	serviceNameKeys = []string{"service.name", "service", "app"}
	sourceFileKeys  = []string{"code.filepath", "code.file.path", "source.file", "file"}
	lineNumberKeys  = []string{"code.lineno", "code.line.number", "line"}
	requestIDKeys   = []string{"request_id", "request.id", "http.request_id"}
	userIDKeys      = []string{"user_id", "user.id", "enduser.id"}
	clientAddrKeys  = []string{"client.address", "net.peer.ip", "http.client_ip"}
)

// firstString returns the first non-empty string value found under the given
// keys, in table order.
func firstString(attrs map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if v, ok := attrs[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// firstInt returns the first value under the given keys that looks like an
// integer: native ints, doubles with no fractional part, or numeric strings.
func firstInt(attrs map[string]any, keys []string) (int, bool) {
	for _, key := range keys {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return int(n), true
		case float64:
			if n == float64(int64(n)) {
				return int(n), true
			}
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
