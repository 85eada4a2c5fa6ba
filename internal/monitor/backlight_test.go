package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// writeBacklight creates a fake sysfs backlight device under dir.
func writeBacklight(t *testing.T, dir, name string, brightness, maxBrightness int) string {
	t.Helper()
	dev := filepath.Join(dir, name)
	if err := os.MkdirAll(dev, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]int{
		"brightness":        brightness,
		"actual_brightness": brightness,
		"max_brightness":    maxBrightness,
	}
	for file, v := range files {
		if err := os.WriteFile(filepath.Join(dev, file), []byte(strconv.Itoa(v)+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dev
}

func TestBacklightSource_Enumerate(t *testing.T) {
	dir := t.TempDir()
	writeBacklight(t, dir, "intel_backlight", 600, 1200)
	// Not a backlight device: no max_brightness.
	if err := os.MkdirAll(filepath.Join(dir, "junk"), 0o755); err != nil {
		t.Fatal(err)
	}

	handles, err := NewBacklightSource(dir).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("Enumerate() returned %d handles, want 1", len(handles))
	}

	h := handles[0]
	if h.DeviceInstanceID() != "backlight:intel_backlight" {
		t.Errorf("DeviceInstanceID() = %q", h.DeviceInstanceID())
	}
	if h.Description() != "intel_backlight" {
		t.Errorf("Description() = %q", h.Description())
	}

	got, err := h.GetBrightness(context.Background())
	if err != nil {
		t.Fatalf("GetBrightness() error = %v", err)
	}
	if got != 50 {
		t.Errorf("GetBrightness() = %d, want 50", got)
	}
}

func TestBacklightSource_MissingDir(t *testing.T) {
	handles, err := NewBacklightSource(filepath.Join(t.TempDir(), "absent")).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v, want nil for missing dir", err)
	}
	if len(handles) != 0 {
		t.Errorf("Enumerate() = %d handles, want 0", len(handles))
	}
}

func TestBacklightHandle_SetBrightness(t *testing.T) {
	dir := t.TempDir()
	dev := writeBacklight(t, dir, "acpi_video0", 0, 255)
	h := &backlightHandle{name: "acpi_video0", path: dev}

	if err := h.SetBrightness(context.Background(), 40); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dev, "brightness"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "102" {
		t.Errorf("raw brightness = %s, want 102", got)
	}

	if err := h.SetBrightness(context.Background(), 120); err == nil {
		t.Error("SetBrightness(120) expected error")
	}
}

func TestBacklightHandle_ZeroMax(t *testing.T) {
	dir := t.TempDir()
	dev := writeBacklight(t, dir, "broken", 5, 0)
	h := &backlightHandle{name: "broken", path: dev}

	if _, err := h.GetBrightness(context.Background()); err == nil {
		t.Error("GetBrightness() expected error for max_brightness 0")
	}
}

func TestPercentConversion(t *testing.T) {
	tests := []struct {
		raw, maxRaw, pct int
	}{
		{0, 255, 0},
		{255, 255, 100},
		{128, 255, 50},
		{937, 937, 100},
		{1000, 937, 100},
	}
	for _, tt := range tests {
		if got := rawToPercent(tt.raw, tt.maxRaw); got != tt.pct {
			t.Errorf("rawToPercent(%d, %d) = %d, want %d", tt.raw, tt.maxRaw, got, tt.pct)
		}
	}

	if got := percentToRaw(50, 1200); got != 600 {
		t.Errorf("percentToRaw(50, 1200) = %d, want 600", got)
	}
}
