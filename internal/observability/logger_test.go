package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil")
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("not-a-level")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("expected nil logger for invalid level")
	}
}

func TestCorrelationID_ContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := WithCorrelationID(context.Background(), "cid-123")
	correlationID, ok := CorrelationIDFromContext(ctx)
	if !ok {
		t.Fatal("expected correlation id to exist")
	}
	if correlationID != "cid-123" {
		t.Fatalf("correlation id=%q, want=%q", correlationID, "cid-123")
	}
}

func TestEnsureCorrelationID(t *testing.T) {
	t.Parallel()

	ctx, id := EnsureCorrelationID(context.Background())
	if id == "" {
		t.Fatal("expected generated correlation id")
	}
	if got, _ := CorrelationIDFromContext(ctx); got != id {
		t.Fatalf("context correlation id=%q, want=%q", got, id)
	}

	_, kept := EnsureCorrelationID(WithCorrelationID(context.Background(), "cid-456"))
	if kept != "cid-456" {
		t.Fatalf("correlation id=%q, want existing %q", kept, "cid-456")
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(CorrelationMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := CorrelationIDFromContext(c.UserContext())
		return c.SendString(id)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderCorrelationID, "cid-abc")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "cid-abc" {
		t.Fatalf("body=%q, want=%q", body, "cid-abc")
	}
	if got := resp.Header.Get(HeaderCorrelationID); got != "cid-abc" {
		t.Fatalf("response header=%q, want=%q", got, "cid-abc")
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.Header.Get(HeaderCorrelationID) == "" {
		t.Fatal("expected generated correlation id header")
	}
}

func TestCorrelationID_MissingValue(t *testing.T) {
	t.Parallel()

	_, ok := CorrelationIDFromContext(context.Background())
	if ok {
		t.Fatal("expected correlation id to be missing")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithCorrelationID(context.Background(), "cid-789")
	loggerWithContext := WithContextLogger(baseLogger, ctx)
	loggerWithContext.Info("message with correlation")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if got := entries[0].ContextMap()["correlationId"]; got != "cid-789" {
		t.Fatalf("correlationId=%v, want=%q", got, "cid-789")
	}
}

func TestWithContextLogger_NoCorrelationID(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	loggerWithContext := WithContextLogger(baseLogger, context.Background())
	loggerWithContext.Info("message without correlation")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if _, ok := entries[0].ContextMap()["correlationId"]; ok {
		t.Fatal("expected correlationId field to be absent")
	}
}

func TestWithContextLogger_NilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger")
	}
}
