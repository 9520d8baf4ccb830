package imgcodec

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestLoggerDefaultsSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger should discard everything")
	}
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("decode", "format", "bmp")
	if buf.Len() == 0 {
		t.Fatal("configured logger produced no output")
	}

	// nil restores the silent default.
	SetLogger(nil)
	buf.Reset()
	Logger().Info("decode")
	if buf.Len() != 0 {
		t.Fatal("SetLogger(nil) did not silence output")
	}
}

func TestBadHeaderLogsWarning(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	// An unknown info header size triggers a warning but still parses.
	h := infoV1Header(1, 1, 24, bmpCompressionNone, 0)
	h = append(h, 0, 0, 0, 0)
	h[0] = 44
	file := bmpFile(h, nil, []byte{1, 2, 3, 0})
	if _, err := NewCodec(NewBytesStream(file)); err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("unknown bmp header")) {
		t.Fatalf("no warning logged: %q", buf.String())
	}
}
