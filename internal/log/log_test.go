package log

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNamedUsesGlobalLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	defer Set(nil)

	Named("odom").Info("calibrated", zap.Int("attempt", 1))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "odom" {
		t.Errorf("expected logger name odom, got %q", entries[0].LoggerName)
	}
}
