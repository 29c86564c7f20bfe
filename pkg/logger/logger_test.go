package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-relay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseEnv(t *testing.T) {
	cases := map[string]logger.Env{
		"":           logger.EnvDev,
		"dev":        logger.EnvDev,
		"stage":      logger.EnvStage,
		"preprod":    logger.EnvStage,
		"production": logger.EnvProd,
		" PROD ":     logger.EnvProd,
	}
	for raw, want := range cases {
		assert.Equal(t, want, logger.ParseEnv(raw), "raw=%q", raw)
	}
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	require.Equal(t, logger.EnvDev, logger.DetectEnv())

	t.Setenv("APP_ENV", "stage")
	require.Equal(t, logger.EnvStage, logger.DetectEnv())
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})
	slog.Info("hello world")

	out := buf.String()
	require.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "expected text output, got %s", out)
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "service=demo")
	assert.Contains(t, out, "env=dev")
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		InstanceID:       "node-1",
		Output:           &buf,
	})
	slog.Info("booted", slog.String("k", "v"))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "expected JSON line, got %s", buf.String())

	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "demo", m["service"])
	assert.Equal(t, "prod", m["env"])
	assert.Equal(t, "1.2.3", m["version"])
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "v", m["k"])
	assert.Equal(t, "node-1", logger.InstanceID())
}

func TestInit_BackendFollowsEnv(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})
	slog.Info("prod default")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "expected zap JSON, got %s", buf.String())
	assert.Equal(t, "prod default", m["msg"])

	buf.Reset()
	logger.Init(logger.Config{Service: "demo", Env: logger.EnvDev, Output: &buf})
	slog.Info("dev default")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"), "expected text output, got %s", buf.String())
}

func TestAttrsFromCtx(t *testing.T) {
	require.Empty(t, logger.AttrsFromCtx(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	ctx = logger.WithConnID(ctx, "conn-42")

	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})
	slog.InfoContext(ctx, "with trace", logger.Args(ctx)...)

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "expected JSON, got %s", buf.String())
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.NotEmpty(t, m["span_id"])
	assert.Equal(t, "conn-42", m["conn_id"])
	assert.Equal(t, "with trace", m["msg"])
}
