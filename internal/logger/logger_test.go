package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := l.WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-1")
	ctx = SetEntryPoint(ctx, "search")

	With(Fields{FieldCount: 3}).WithDuration(12).Info(ctx, "search done for %q", "cyber")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, "search", line[FieldEntryPoint])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 12, line[FieldDurationMs])
	assert.Equal(t, `search done for "cyber"`, line["message"])
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Same(t, GetDefault(), FromContext(nil)) //nolint:staticcheck
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Output: &buf})
	ctx := l.WithContext(context.Background())

	CtxInfo(ctx, "hidden")
	assert.Zero(t, buf.Len())

	CtxWarn(ctx, "shown")
	assert.Contains(t, buf.String(), "shown")
}
