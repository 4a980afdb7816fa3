package normalizer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logwell-systems/logwell/internal/models"
)

func TestParseBatchPartialSuccess(t *testing.T) {
	body := `{"logs":[
		{"level":"error","message":"boom"},
		{"message":"no level"},
		{"level":"silly","message":"bad level"},
		{"level":"info","message":"   "},
		{"level":"warn","message":"fine"}
	]}`

	result, err := ParseBatch([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted())
	assert.Equal(t, 3, result.Rejected())
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "record 1: missing required field: level", result.Errors[0])
	assert.Equal(t, `record 2: invalid level "silly": must be one of debug, info, warn, error, fatal`, result.Errors[1])
	assert.Equal(t, "record 3: message must not be empty", result.Errors[2])
}

func TestParseBatchCountsMatch(t *testing.T) {
	// N records with k invalid entries: accepted == N-k, rejected == k.
	body := `[
		{"level":"error","message":"a"},
		{"level":"error"},
		{"level":"fatal","message":"b"},
		{"message":"c"}
	]`

	result, err := ParseBatch([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted())
	assert.Equal(t, 2, result.Rejected())
	assert.Len(t, result.Errors, 2)
}

func TestParseBatchInvalidLevelListsValidSet(t *testing.T) {
	result, err := ParseBatch([]byte(`[{"level":"verbose","message":"x"}]`))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "must be one of debug, info, warn, error, fatal")
}

func TestParseBatchSingleObject(t *testing.T) {
	result, err := ParseBatch([]byte(`{"level":"info","message":"solo"}`))
	require.NoError(t, err)
	require.Equal(t, 1, result.Accepted())
	assert.Equal(t, "solo", result.Records[0].Message)
}

func TestParseBatchRejectsMalformedPayload(t *testing.T) {
	for _, body := range []string{"", "42", `"hello"`, "{broken"} {
		_, err := ParseBatch([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidPayload, fmt.Sprintf("body %q", body))
	}
}

func TestParseBatchTimestampFallback(t *testing.T) {
	result, err := ParseBatch([]byte(`[{"level":"info","message":"x","timestamp":"not-a-time"}]`))
	require.NoError(t, err)
	require.Equal(t, 1, result.Accepted(), "an invalid timestamp must not reject the record")
	assert.WithinDuration(t, time.Now().UTC(), result.Records[0].Timestamp, 5*time.Second)
}

func TestParseBatchTimestampFormats(t *testing.T) {
	result, err := ParseBatch([]byte(`[
		{"level":"info","message":"a","timestamp":"2024-01-15T10:30:00Z"},
		{"level":"info","message":"b","timestamp":1705314600000}
	]`))
	require.NoError(t, err)
	require.Equal(t, 2, result.Accepted())

	expected := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, expected, result.Records[0].Timestamp)
	assert.Equal(t, expected, result.Records[1].Timestamp)
}

func TestParseBatchOptionalFields(t *testing.T) {
	body := `[{"level":"error","message":"x","service":"api","source_file":"h.go","line_number":12,
		"request_id":"r1","trace_id":"0AF7651916CD43DD8448EB211C80319C","span_id":"nope","metadata":{"k":"v"}}]`

	result, err := ParseBatch([]byte(body))
	require.NoError(t, err)
	require.Equal(t, 1, result.Accepted())

	record := result.Records[0]
	assert.Equal(t, "api", *record.ServiceName)
	assert.Equal(t, "h.go", *record.SourceFile)
	assert.Equal(t, 12, *record.LineNumber)
	assert.Equal(t, "r1", *record.RequestID)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", *record.TraceID)
	assert.Nil(t, record.SpanID, "invalid span id is dropped, not an error")
	assert.Equal(t, map[string]any{"k": "v"}, record.Attributes)
}

func TestParseStrict(t *testing.T) {
	record, err := ParseStrict([]byte(`{"level":"error","message":"boom","timestamp":"2024-01-15T10:30:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, models.LevelError, record.Level)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing level", `{"message":"x"}`, "missing required field: level"},
		{"missing message", `{"level":"info"}`, "missing required field: message"},
		{"bad timestamp fails fast", `{"level":"info","message":"x","timestamp":"garbage"}`, "invalid timestamp"},
		{"bad trace id fails fast", `{"level":"info","message":"x","trace_id":"abc"}`, "invalid trace_id"},
		{"negative line number", `{"level":"info","message":"x","line_number":-1}`, "line_number must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStrict([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err = ParseStrict([]byte(`[{"level":"info","message":"x"}]`))
	assert.ErrorIs(t, err, ErrInvalidPayload, "strict path accepts a single object only")
}
