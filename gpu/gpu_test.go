//go:build !nogpu

package gpu

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/tmatch"
)

func noopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func TestOptions(t *testing.T) {
	var o options
	logger := slog.Default()
	for _, opt := range []Option{
		WithReadbackTimeout(3 * time.Second),
		WithZeroFillOnReadbackFailure(),
		WithSPIRV(),
		WithLogger(logger),
	} {
		opt(&o)
	}
	if o.cfg.ReadbackTimeout != 3*time.Second {
		t.Errorf("ReadbackTimeout = %v", o.cfg.ReadbackTimeout)
	}
	if !o.cfg.ZeroFillOnReadbackFailure || !o.cfg.SPIRV {
		t.Errorf("cfg = %+v", o.cfg)
	}
	if o.logger != logger {
		t.Error("WithLogger not applied")
	}
}

func TestNewBackend_WithDevice(t *testing.T) {
	device, queue := noopDevice(t)

	b, err := NewBackend(WithDevice(device, queue), WithReadbackTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	if b.Name() != Name {
		t.Errorf("Name() = %q, want %q", b.Name(), Name)
	}
	stats, ok := BackendStats(b)
	if !ok {
		t.Fatal("BackendStats reported a non-GPU backend")
	}
	if stats.Dispatches != 0 {
		t.Errorf("fresh backend Dispatches = %d", stats.Dispatches)
	}
}

func TestBackendStats_Software(t *testing.T) {
	b := tmatch.NewSoftwareBackend(1)
	defer b.Close()
	if _, ok := BackendStats(b); ok {
		t.Error("BackendStats accepted the software backend")
	}
}

func TestRegistered(t *testing.T) {
	if !slices.Contains(tmatch.BackendNames(), Name) {
		t.Errorf("BackendNames() = %v, want %q registered", tmatch.BackendNames(), Name)
	}
}

func TestWithLogger_ScopedToBackend(t *testing.T) {
	var scoped, shared bytes.Buffer
	orig := tmatch.Logger()
	tmatch.SetLogger(slog.New(slog.NewTextHandler(&shared, nil)))
	t.Cleanup(func() { tmatch.SetLogger(orig) })

	device, queue := noopDevice(t)
	first, err := NewBackend(WithDevice(device, queue), WithLogger(slog.New(slog.NewTextHandler(&scoped, nil))))
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer first.Close()

	device2, queue2 := noopDevice(t)
	second, err := NewBackend(WithDevice(device2, queue2))
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer second.Close()

	if got := strings.Count(scoped.String(), "matching backend ready"); got != 1 {
		t.Errorf("scoped logger saw %d ready messages, want 1", got)
	}
	if got := strings.Count(shared.String(), "matching backend ready"); got != 1 {
		t.Errorf("shared logger saw %d ready messages, want 1", got)
	}
}
