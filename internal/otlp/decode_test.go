package otlp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logwell-systems/logwell/internal/models"
)

func decodeOne(t *testing.T, record string) *models.LogRecord {
	t.Helper()
	body := `{"resourceLogs":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"checkout"}}]},"scopeLogs":[{"logRecords":[` + record + `]}]}]}`
	result, err := Decode([]byte(body))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	return result.Records[0]
}

func TestDecodeRejectsMalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing resourceLogs", `{}`},
		{"resourceLogs not an array", `{"resourceLogs":{"a":1}}`},
		{"top-level array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestDecodeSkipsMalformedRecords(t *testing.T) {
	body := `{"resourceLogs":[{"scopeLogs":[{"logRecords":[
		{"body":{"stringValue":"ok"}},
		42,
		"nope",
		{"body":{"stringValue":"also ok"}}
	]}]}]}`

	result, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Rejected)
}

func TestDecodeSkipsMalformedGroups(t *testing.T) {
	body := `{"resourceLogs":[17,{"scopeLogs":["bad",{"logRecords":[{"body":{"stringValue":"ok"}}]}]}]}`

	result, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 0, result.Rejected)
}

func TestDecodeValuePriorityOrder(t *testing.T) {
	// A malformed producer populating several variants: string wins over
	// bool, bool over int, int over double.
	record := decodeOne(t, `{"body":{"stringValue":"s","boolValue":true,"intValue":"7"}}`)
	assert.Equal(t, "s", record.Message)

	// A fresh Value per document: json.Unmarshal leaves fields absent from
	// the new document untouched.
	var boolOverInt Value
	require.NoError(t, json.Unmarshal([]byte(`{"boolValue":true,"intValue":"7","doubleValue":1.5}`), &boolOverInt))
	assert.Equal(t, true, boolOverInt.Decode())

	var intOverDouble Value
	require.NoError(t, json.Unmarshal([]byte(`{"intValue":"7","doubleValue":1.5}`), &intOverDouble))
	assert.Equal(t, int64(7), intOverDouble.Decode())
}

func TestDecodeIntValuePrecision(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"intValue":"9007199254740993"}`), &v))
	assert.Equal(t, int64(9007199254740993), v.Decode())

	// Beyond int64: the original decimal string is preserved.
	require.NoError(t, json.Unmarshal([]byte(`{"intValue":"92233720368547758089"}`), &v))
	assert.Equal(t, "92233720368547758089", v.Decode())

	// Bare JSON number on the wire is tolerated.
	require.NoError(t, json.Unmarshal([]byte(`{"intValue":123}`), &v))
	assert.Equal(t, int64(123), v.Decode())
}

func TestDecodeNestedValues(t *testing.T) {
	var v Value
	raw := `{"kvlistValue":{"values":[
		{"key":"items","value":{"arrayValue":{"values":[{"intValue":"1"},{"stringValue":"x"}]}}},
		{"key":"flag","value":{"boolValue":false}}
	]}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &v))

	decoded, ok := v.Decode().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), "x"}, decoded["items"])
	assert.Equal(t, false, decoded["flag"])
}

func TestResolveTimestamp(t *testing.T) {
	// 2024-01-15T10:30:00Z in nanoseconds, plus sub-millisecond noise that
	// integer division must drop.
	record := decodeOne(t, `{"timeUnixNano":"1705314600000123456","body":{"stringValue":"x"}}`)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), record.Timestamp)

	// Observed time fallback, sent as a bare number.
	record = decodeOne(t, `{"observedTimeUnixNano":1705314600000000000,"body":{"stringValue":"x"}}`)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), record.Timestamp)

	// Neither present nor parseable: falls back to now, never errors.
	record = decodeOne(t, `{"timeUnixNano":"garbage","body":{"stringValue":"x"}}`)
	assert.WithinDuration(t, time.Now().UTC(), record.Timestamp, 5*time.Second)
}

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name     string
		record   string
		expected models.Level
	}{
		{"severity number 1 is debug", `{"severityNumber":1}`, models.LevelDebug},
		{"severity number 8 is debug", `{"severityNumber":8}`, models.LevelDebug},
		{"severity number 9 is info", `{"severityNumber":9}`, models.LevelInfo},
		{"severity number 13 is warn", `{"severityNumber":13}`, models.LevelWarn},
		{"severity number 17 is error", `{"severityNumber":17}`, models.LevelError},
		{"severity number 21 is fatal", `{"severityNumber":21}`, models.LevelFatal},
		{"severity number 24 is fatal", `{"severityNumber":24}`, models.LevelFatal},
		{"text critical is fatal", `{"severityText":"CRITICAL"}`, models.LevelFatal},
		{"text error substring", `{"severityText":"MyError"}`, models.LevelError},
		{"text warning", `{"severityText":"warning"}`, models.LevelWarn},
		{"text trace is debug", `{"severityText":"Trace"}`, models.LevelDebug},
		{"number beats text", `{"severityNumber":17,"severityText":"debug"}`, models.LevelError},
		{"nothing defaults to info", `{}`, models.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeOne(t, tt.record).Level)
		})
	}
}

func TestResolveMessage(t *testing.T) {
	record := decodeOne(t, `{"body":{"stringValue":"plain"}}`)
	assert.Equal(t, "plain", record.Message)

	record = decodeOne(t, `{"attributes":[{"key":"msg","value":{"stringValue":"from attribute"}}]}`)
	assert.Equal(t, "from attribute", record.Message)

	record = decodeOne(t, `{"body":{"kvlistValue":{"values":[{"key":"a","value":{"intValue":"1"}}]}}}`)
	assert.JSONEq(t, `{"a":1}`, record.Message)

	record = decodeOne(t, `{}`)
	assert.Equal(t, "", record.Message)
}

func TestTraceAndSpanIDs(t *testing.T) {
	record := decodeOne(t, `{"traceId":"0AF7651916CD43DD8448EB211C80319C","spanId":"b7ad6b7169203331"}`)
	require.NotNil(t, record.TraceID)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", *record.TraceID)
	require.NotNil(t, record.SpanID)
	assert.Equal(t, "b7ad6b7169203331", *record.SpanID)

	// Wrong length or non-hex: dropped, never an error.
	record = decodeOne(t, `{"traceId":"abc","spanId":"zzzzzzzzzzzzzzzz"}`)
	assert.Nil(t, record.TraceID)
	assert.Nil(t, record.SpanID)
}

func TestDerivedAttributeFields(t *testing.T) {
	record := decodeOne(t, `{"attributes":[
		{"key":"code.filepath","value":{"stringValue":"api/users.go"}},
		{"key":"code.lineno","value":{"intValue":"88"}},
		{"key":"request.id","value":{"stringValue":"req-1"}},
		{"key":"enduser.id","value":{"stringValue":"u-9"}},
		{"key":"client.address","value":{"stringValue":"10.1.2.3"}}
	]}`)

	require.NotNil(t, record.ServiceName)
	assert.Equal(t, "checkout", *record.ServiceName)
	require.NotNil(t, record.SourceFile)
	assert.Equal(t, "api/users.go", *record.SourceFile)
	require.NotNil(t, record.LineNumber)
	assert.Equal(t, 88, *record.LineNumber)
	require.NotNil(t, record.RequestID)
	assert.Equal(t, "req-1", *record.RequestID)
	require.NotNil(t, record.UserID)
	assert.Equal(t, "u-9", *record.UserID)
	require.NotNil(t, record.ClientAddr)
	assert.Equal(t, "10.1.2.3", *record.ClientAddr)
}

func TestAlternateKeysFirstMatchWins(t *testing.T) {
	record := decodeOne(t, `{"attributes":[
		{"key":"file","value":{"stringValue":"fallback.go"}},
		{"key":"code.filepath","value":{"stringValue":"primary.go"}}
	]}`)

	require.NotNil(t, record.SourceFile)
	assert.Equal(t, "primary.go", *record.SourceFile)
}
