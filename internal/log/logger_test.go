package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLoggerAttachesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentLedger)

	logger.Info("recorded", FieldMemberID, "M-001")

	rec := decodeLine(t, &buf)
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
	assert.Equal(t, "M-001", rec[FieldMemberID])
	assert.Equal(t, "recorded", rec["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, "unknown", logger.Component())
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf}).With(FieldRequestID, "req-1")

	ctx := WithLogger(context.Background(), base)
	FromContext(ctx).InfoContext(ctx, "inside")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "req-1", rec[FieldRequestID])
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf, Component: ComponentHTTP}))

	sl.LogError(context.Background(), "Request failed", errors.New("disk full"), "POST /api/transactions",
		NewFields().WithErrorType(ErrorTypeInternal).WithHTTPRequest(http.MethodPost, "/api/transactions", "", "curl/8"))

	rec := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "disk full", rec[FieldError])
	assert.Equal(t, "POST /api/transactions", rec[FieldOperation])
	assert.Equal(t, ErrorTypeInternal, rec[FieldErrorType])
	assert.Equal(t, "/api/transactions", rec[FieldPath])
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf, Component: ComponentHTTP}))

	sl.LogHTTPEnd(context.Background(), httptest.NewRequest(http.MethodPost, "/api/transactions", nil), 503, 12, "10.0.0.1")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, float64(503), rec[FieldStatusCode])
	assert.Equal(t, ComponentHTTP, rec[FieldComponent])
}
