package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewNop().With(zap.String("request_id", "abc"))
	ctx := ContextWithLogger(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Error("expected the stored logger back")
	}
}

func TestFromContext_MissingLoggerFallsBackToNop(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Fatal("expected a usable fallback logger, got nil")
	}
}
