package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultBacklightDir is where the kernel exposes backlight devices.
const DefaultBacklightDir = "/sys/class/backlight"

// backlightIDPrefix namespaces backlight ids from DDC ids.
const backlightIDPrefix = "backlight:"

// BacklightSource enumerates kernel backlight devices (laptop panels and
// other internal displays) under a sysfs directory.
type BacklightSource struct {
	dir string
}

// NewBacklightSource creates a source reading dir. An empty dir selects
// DefaultBacklightDir.
func NewBacklightSource(dir string) *BacklightSource {
	if dir == "" {
		dir = DefaultBacklightDir
	}
	return &BacklightSource{dir: dir}
}

// Enumerate lists every backlight device. A missing directory means no
// backlight devices, not an error.
func (s *BacklightSource) Enumerate(ctx context.Context) ([]Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.dir, err)
	}

	handles := make([]Handle, 0, len(dirEntries))
	for _, de := range dirEntries {
		path := filepath.Join(s.dir, de.Name())
		// Entries are usually symlinks into /sys/devices.
		if _, err := os.Stat(filepath.Join(path, "max_brightness")); err != nil {
			continue
		}
		handles = append(handles, &backlightHandle{
			name: de.Name(),
			path: path,
		})
	}
	return handles, nil
}

type backlightHandle struct {
	name string
	path string
}

func (h *backlightHandle) DeviceInstanceID() string { return backlightIDPrefix + h.name }

func (h *backlightHandle) Description() string { return h.name }

func (h *backlightHandle) GetBrightness(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	maxRaw, err := readSysfsInt(filepath.Join(h.path, "max_brightness"))
	if err != nil {
		return 0, err
	}
	if maxRaw <= 0 {
		return 0, fmt.Errorf("%w: max_brightness is %d", ErrBrightnessUnavailable, maxRaw)
	}

	// actual_brightness reflects the hardware; brightness is the last request.
	raw, err := readSysfsInt(filepath.Join(h.path, "actual_brightness"))
	if err != nil {
		raw, err = readSysfsInt(filepath.Join(h.path, "brightness"))
		if err != nil {
			return 0, err
		}
	}

	return rawToPercent(raw, maxRaw), nil
}

func (h *backlightHandle) SetBrightness(ctx context.Context, value int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateBrightness(value); err != nil {
		return err
	}

	maxRaw, err := readSysfsInt(filepath.Join(h.path, "max_brightness"))
	if err != nil {
		return err
	}

	raw := percentToRaw(value, maxRaw)
	path := filepath.Join(h.path, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(raw)), 0); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (h *backlightHandle) Close() error { return nil }

func readSysfsInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v, nil
}

func rawToPercent(raw, maxRaw int) int {
	pct := int(math.Round(float64(raw) * MaxBrightness / float64(maxRaw)))
	return min(max(pct, MinBrightness), MaxBrightness)
}

func percentToRaw(pct, maxRaw int) int {
	return int(math.Round(float64(pct) * float64(maxRaw) / MaxBrightness))
}
