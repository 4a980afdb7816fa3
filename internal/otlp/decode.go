// Package otlp decodes OTLP-shaped structured log export documents into
// canonical log records. Decoding is lenient below the top level: a malformed
// record is counted and skipped, never aborting the batch, while a document
// whose top-level shape is not a list of resource groups fails the whole
// request.
package otlp

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/logwell-systems/logwell/internal/models"
)

// ErrInvalidDocument marks a hard request-shape failure: the document is not
// an object carrying a resourceLogs array.
var ErrInvalidDocument = errors.New("document must contain a resourceLogs array")

var (
	traceIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	spanIDPattern  = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)
)

// Alternate attribute keys holding the message when the body is not a string.
var messageKeys = []string{"message", "msg"}

// Result is the outcome of decoding one export document.
type Result struct {
	Records  []*models.LogRecord
	Rejected int
}

type exportDocument struct {
	ResourceLogs []json.RawMessage `json:"resourceLogs"`
}

type resourceGroup struct {
	Resource struct {
		Attributes []KeyValue `json:"attributes"`
	} `json:"resource"`
	ScopeLogs []json.RawMessage `json:"scopeLogs"`
}

type scopeGroup struct {
	LogRecords []json.RawMessage `json:"logRecords"`
}

type wireRecord struct {
	TimeUnixNano         wireInt    `json:"timeUnixNano"`
	ObservedTimeUnixNano wireInt    `json:"observedTimeUnixNano"`
	SeverityNumber       int        `json:"severityNumber"`
	SeverityText         string     `json:"severityText"`
	Body                 *Value     `json:"body"`
	Attributes           []KeyValue `json:"attributes"`
	TraceID              string     `json:"traceId"`
	SpanID               string     `json:"spanId"`
}

// Decode parses an export document into canonical log records plus a count of
// rejected records. Resource and scope groups that are not well-formed
// objects contribute no records; individual malformed log records increment
// the rejected counter.
func Decode(body []byte) (*Result, error) {
	var doc struct {
		ResourceLogs json.RawMessage `json:"resourceLogs"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, ErrInvalidDocument
	}

	var resources []json.RawMessage
	if doc.ResourceLogs == nil || string(doc.ResourceLogs) == "null" {
		return nil, ErrInvalidDocument
	}
	if err := json.Unmarshal(doc.ResourceLogs, &resources); err != nil {
		return nil, ErrInvalidDocument
	}

	result := &Result{}
	for _, rawResource := range resources {
		var resource resourceGroup
		if err := json.Unmarshal(rawResource, &resource); err != nil {
			continue
		}
		resourceAttrs := decodeAttributes(resource.Resource.Attributes)

		for _, rawScope := range resource.ScopeLogs {
			var scope scopeGroup
			if err := json.Unmarshal(rawScope, &scope); err != nil {
				continue
			}
			for _, rawRecord := range scope.LogRecords {
				record, ok := decodeRecord(rawRecord, resourceAttrs)
				if !ok {
					result.Rejected++
					continue
				}
				result.Records = append(result.Records, record)
			}
		}
	}

	return result, nil
}

func decodeRecord(raw json.RawMessage, resourceAttrs map[string]any) (*models.LogRecord, bool) {
	var wire wireRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false
	}

	var decodedBody any
	if wire.Body != nil {
		decodedBody = wire.Body.Decode()
	}
	attrs := decodeAttributes(wire.Attributes)

	record := &models.LogRecord{
		Level:      resolveLevel(wire.SeverityNumber, wire.SeverityText),
		Message:    resolveMessage(decodedBody, attrs),
		Timestamp:  resolveTimestamp(wire.TimeUnixNano, wire.ObservedTimeUnixNano),
		Attributes: attrs,
	}

	if service, ok := firstString(resourceAttrs, serviceNameKeys); ok {
		record.ServiceName = &service
	}
	if file, ok := firstString(attrs, sourceFileKeys); ok {
		record.SourceFile = &file
	}
	if line, ok := firstInt(attrs, lineNumberKeys); ok {
		record.LineNumber = &line
	}
	if requestID, ok := firstString(attrs, requestIDKeys); ok {
		record.RequestID = &requestID
	}
	if userID, ok := firstString(attrs, userIDKeys); ok {
		record.UserID = &userID
	}
	if addr, ok := firstString(attrs, clientAddrKeys); ok {
		record.ClientAddr = &addr
	}
	record.TraceID = normalizeHexID(wire.TraceID, traceIDPattern)
	record.SpanID = normalizeHexID(wire.SpanID, spanIDPattern)

	return record, true
}

// resolveLevel maps the numeric severity by range when present and positive,
// falling back to case-insensitive substring matching on the severity text in
// priority order, and finally to info.
func resolveLevel(number int, text string) models.Level {
	if number > 0 {
		switch {
		case number <= 8:
			return models.LevelDebug
		case number <= 12:
			return models.LevelInfo
		case number <= 16:
			return models.LevelWarn
		case number <= 20:
			return models.LevelError
		default:
			return models.LevelFatal
		}
	}

	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "fatal") || strings.Contains(t, "critical"):
		return models.LevelFatal
	case strings.Contains(t, "error"):
		return models.LevelError
	case strings.Contains(t, "warn"):
		return models.LevelWarn
	case strings.Contains(t, "info"):
		return models.LevelInfo
	case strings.Contains(t, "debug") || strings.Contains(t, "trace"):
		return models.LevelDebug
	default:
		return models.LevelInfo
	}
}

// resolveTimestamp prefers the primary event time, falls back to the observed
// time, and uses the current time when neither parses. Nanosecond inputs are
// reduced to millisecond precision by integer division. A missing timestamp
// is never an error.
func resolveTimestamp(primary, observed wireInt) time.Time {
	for _, candidate := range []wireInt{primary, observed} {
		if candidate == "" {
			continue
		}
		nanos, err := strconv.ParseInt(string(candidate), 10, 64)
		if err != nil || nanos <= 0 {
			continue
		}
		return time.UnixMilli(nanos / int64(time.Millisecond)).UTC()
	}
	return time.Now().UTC()
}

// resolveMessage extracts the record message: a string body wins, then the
// message attribute under its alternate keys, then the JSON-serialized body.
// An absent body yields an empty string.
func resolveMessage(body any, attrs map[string]any) string {
	if s, ok := body.(string); ok {
		return s
	}
	if msg, ok := firstString(attrs, messageKeys); ok {
		return msg
	}
	if body == nil {
		return ""
	}
	serialized, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(serialized)
}

// normalizeHexID accepts only identifiers matching the strict hexadecimal
// pattern of exact length and lowercases them; anything else is discarded as
// null rather than rejected.
func normalizeHexID(id string, pattern *regexp.Regexp) *string {
	if !pattern.MatchString(id) {
		return nil
	}
	normalized := strings.ToLower(id)
	return &normalized
}
