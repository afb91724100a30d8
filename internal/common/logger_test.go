package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCompany(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewHandler(&buf, slog.LevelDebug, "json"))

	ctx := WithLogger(context.Background(), base)
	ctx = WithCompany(ctx, "acme")

	LogError(ctx, errors.New("boom"), "feedback failed", Fields{"transaction_id": "tx-1"})

	out := buf.String()
	assert.Contains(t, out, `"company_id":"acme"`)
	assert.Contains(t, out, `"transaction_id":"tx-1"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestLogger_DefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, slog.Default(), Logger(context.Background()))
}

func TestLogDebug_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(NewHandler(&buf, slog.LevelInfo, "text")))

	LogDebug(ctx, "hidden", nil)
	LogInfo(ctx, "shown", Fields{"n": 1})

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
