package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestMultiHandlerFansOutToAll(t *testing.T) {
	var bufA, bufB bytes.Buffer
	ha := slog.NewTextHandler(&bufA, nil)
	hb := slog.NewJSONHandler(&bufB, nil)
	mh := NewMultiHandler(ha, hb)

	logger := slog.New(mh)
	logger.Info("hello", "k", "v")

	if bufA.Len() == 0 {
		t.Error("expected text handler to receive the record")
	}
	if bufB.Len() == 0 {
		t.Error("expected json handler to receive the record")
	}
}

func TestMultiHandlerEnabledIfAnyEnabled(t *testing.T) {
	var buf bytes.Buffer
	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	errorHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})
	mh := NewMultiHandler(debugHandler, errorHandler)

	if !mh.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected Enabled(Debug) = true since debugHandler accepts it")
	}
}

func TestSetupOpensFileAndReturnsLogger(t *testing.T) {
	dir := t.TempDir()
	logger, f, err := Setup(dir+"/test.log", slog.LevelInfo)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("test message")
}
