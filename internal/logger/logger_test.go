package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_AddsRequestAndUser(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("production", &buf)
	t.Cleanup(func() { InitWithWriter("test", &bytes.Buffer{}) })

	ctx := WithActor(WithRequestID(context.Background(), "req-1"), "user-1", "agency")
	CtxInfo(ctx, "order created", "order_number", "MMH-2026-000001")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "agency", entry["role"])
	assert.Equal(t, "MMH-2026-000001", entry["order_number"])
	assert.Equal(t, "mmh_backend", entry["service"])
}

func TestFromContext_Empty(t *testing.T) {
	assert.Same(t, GetLogger(), FromContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))

	ctx := WithRequestID(WithActor(context.Background(), "user-1", "media"), "req-2")
	assert.Equal(t, "req-2", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx), "request id keeps the actor")
}

func TestWorkerLog_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("production", &buf)
	t.Cleanup(func() { InitWithWriter("test", &bytes.Buffer{}) })

	WorkerLog("offer_expiry", "archive_expired", assert.AnError)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "offer_expiry", entry["worker"])
}
