package tmatch

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// captureLogs routes package logging into a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

func TestDefaultLoggerIsSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger enabled for %v", level)
		}
	}

	var h slog.Handler = nopHandler{}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("method", "sqdiff")}).(nopHandler); !ok {
		t.Error("WithAttrs left the nop handler")
	}
	if _, ok := h.WithGroup("engine").(nopHandler); !ok {
		t.Error("WithGroup left the nop handler")
	}
}

func TestSetLoggerNilRestoresSilence(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) left a nil logger")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should produce a disabled logger")
	}
}

func TestEngineLogsThroughSetLogger(t *testing.T) {
	buf := captureLogs(t)

	e := NewEngine(NewSoftwareBackend(1))
	if err := e.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !strings.Contains(buf.String(), SoftwareBackendName) {
		t.Errorf("engine close not logged with the backend name, got: %s", buf.String())
	}
}

func TestMatchLoggedAtDebug(t *testing.T) {
	buf := captureLogs(t)

	e := NewEngine(NewSoftwareBackend(1))
	defer e.Close()

	img := noiseImage(16, 12, 3)
	tmpl := img.SubImage(image.Rect(4, 3, 9, 7))
	if _, err := e.MatchTemplate(img, tmpl, SumOfSquaredDifference, false); err != nil {
		t.Fatalf("MatchTemplate: %v", err)
	}
	if !strings.Contains(buf.String(), "method=sqdiff") {
		t.Errorf("match not logged with its method, got: %s", buf.String())
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for range 64 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Logger().Debug("surface ready", "width", 8, "height", 8)
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("dispatch", "method", "ccoeff_normed", "x", 8, "y", 8)
	}
}
