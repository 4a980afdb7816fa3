// Package normalizer validates simple-ingestion payloads (the SDK wire
// format) into canonical log records. The batch path validates every record
// independently and reports per-record errors; the strict path validates one
// record against the full schema and fails on the first error.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/logwell-systems/logwell/internal/models"
)

// ErrInvalidPayload marks a request body that is not a logs envelope, a
// single record object, or an array of record objects.
var ErrInvalidPayload = errors.New("payload must be a log object, an array of log objects, or {\"logs\": [...]}")

var (
	traceIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	spanIDPattern  = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)
)

// BatchResult is the outcome of the tolerant batch path: valid records are
// kept, each invalid record contributes one human-readable error string in
// input order.
type BatchResult struct {
	Records []*models.LogRecord
	Errors  []string
}

// Accepted returns the count of valid records.
func (r *BatchResult) Accepted() int { return len(r.Records) }

// Rejected returns the count of invalid records.
func (r *BatchResult) Rejected() int { return len(r.Errors) }

type inboundRecord struct {
	Level      *string         `json:"level"`
	Message    *string         `json:"message"`
	Timestamp  json.RawMessage `json:"timestamp"`
	Service    *string         `json:"service"`
	Metadata   map[string]any  `json:"metadata"`
	SourceFile *string         `json:"source_file"`
	LineNumber *int            `json:"line_number"`
	RequestID  *string         `json:"request_id"`
	TraceID    *string         `json:"trace_id"`
	SpanID     *string         `json:"span_id"`
	UserID     *string         `json:"user_id"`
}

// ParseBatch decodes a tolerant batch request. Validation is independent per
// record: one bad record never blocks its siblings.
func ParseBatch(body []byte) (*BatchResult, error) {
	raws, err := splitRecords(body)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for i, raw := range raws {
		record, err := parseRecord(raw, false)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

// ParseStrict decodes a single record, failing the whole request on the
// first schema violation. Unlike the batch path, an unparseable timestamp or
// malformed correlation id is an error here rather than a soft fallback.
func ParseStrict(body []byte) (*models.LogRecord, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 || raw[0] != '{' {
		return nil, ErrInvalidPayload
	}
	return parseRecord(raw, true)
}

// splitRecords accepts {"logs":[...]}, a bare array, or one bare object.
func splitRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, ErrInvalidPayload
	}

	switch trimmed[0] {
	case '{':
		var envelope struct {
			Logs []json.RawMessage `json:"logs"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, ErrInvalidPayload
		}
		if envelope.Logs != nil {
			return envelope.Logs, nil
		}
		return []json.RawMessage{json.RawMessage(body)}, nil
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, ErrInvalidPayload
		}
		return raws, nil
	default:
		return nil, ErrInvalidPayload
	}
}

func parseRecord(raw json.RawMessage, strict bool) (*models.LogRecord, error) {
	var in inboundRecord
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.New("not a valid log object")
	}

	if in.Level == nil || *in.Level == "" {
		return nil, errors.New("missing required field: level")
	}
	level, err := models.ParseLevel(*in.Level)
	if err != nil {
		return nil, err
	}

	if in.Message == nil {
		return nil, errors.New("missing required field: message")
	}
	if strings.TrimSpace(*in.Message) == "" {
		return nil, errors.New("message must not be empty")
	}

	timestamp, err := parseTimestamp(in.Timestamp)
	if err != nil {
		if strict {
			return nil, err
		}
		// Tolerant path: an invalid timestamp is never an error.
		timestamp = time.Now().UTC()
	}

	record := &models.LogRecord{
		Level:      level,
		Message:    *in.Message,
		Timestamp:  timestamp,
		Attributes: in.Metadata,
	}

	if in.Service != nil && *in.Service != "" {
		record.ServiceName = in.Service
	}
	if in.SourceFile != nil && *in.SourceFile != "" {
		record.SourceFile = in.SourceFile
	}
	if in.LineNumber != nil {
		if *in.LineNumber < 0 {
			if strict {
				return nil, errors.New("line_number must not be negative")
			}
		} else {
			record.LineNumber = in.LineNumber
		}
	}
	if in.RequestID != nil && *in.RequestID != "" {
		record.RequestID = in.RequestID
	}
	if in.UserID != nil && *in.UserID != "" {
		record.UserID = in.UserID
	}

	record.TraceID, err = parseHexID(in.TraceID, traceIDPattern, "trace_id", strict)
	if err != nil {
		return nil, err
	}
	record.SpanID, err = parseHexID(in.SpanID, spanIDPattern, "span_id", strict)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// parseTimestamp accepts RFC3339(Nano) strings or epoch milliseconds. A
// missing timestamp resolves to now without error; a present but unparseable
// one returns an error for the caller to soften or surface.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Now().UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC(), nil
	}

	return time.Time{}, errors.New("invalid timestamp")
}

func parseHexID(id *string, pattern *regexp.Regexp, field string, strict bool) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	if !pattern.MatchString(*id) {
		if strict {
			return nil, fmt.Errorf("invalid %s: must be %d hexadecimal characters", field, patternLength(pattern))
		}
		return nil, nil
	}
	normalized := strings.ToLower(*id)
	return &normalized, nil
}

func patternLength(pattern *regexp.Regexp) int {
	if pattern == traceIDPattern {
		return 32
	}
	return 16
}
