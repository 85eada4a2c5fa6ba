package monitor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Defaults for the ddcutil helper.
const (
	DefaultDDCUtilBinary  = "/usr/bin/ddcutil"
	DefaultDDCUtilTimeout = 10 * time.Second

	// vcpBrightness is the MCCS feature code for luminance.
	vcpBrightness = "10"

	ddcIDPrefix = "ddc:"
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs commands with os/exec.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w: %s",
			ErrCommandFailed, name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// DDCSource enumerates external monitors over DDC/CI using ddcutil.
type DDCSource struct {
	binary  string
	timeout time.Duration
	run     CommandRunner
}

// DDCOption configures a DDCSource.
type DDCOption func(*DDCSource)

// WithCommandRunner replaces os/exec, for tests.
func WithCommandRunner(run CommandRunner) DDCOption {
	return func(s *DDCSource) {
		s.run = run
	}
}

// NewDDCSource creates a source driving binary. Each ddcutil invocation is
// bounded by timeout; zero values select the defaults.
func NewDDCSource(binary string, timeout time.Duration, opts ...DDCOption) *DDCSource {
	if binary == "" {
		binary = DefaultDDCUtilBinary
	}
	if timeout <= 0 {
		timeout = DefaultDDCUtilTimeout
	}
	s := &DDCSource{
		binary:  binary,
		timeout: timeout,
		run:     execRunner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether the ddcutil binary can be found.
func (s *DDCSource) Available() bool {
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// Enumerate runs "ddcutil detect --terse" and returns one handle per
// usable display.
func (s *DDCSource) Enumerate(ctx context.Context) ([]Handle, error) {
	out, err := s.exec(ctx, "detect", "--terse")
	if err != nil {
		return nil, err
	}

	displays := parseDetect(out)
	handles := make([]Handle, 0, len(displays))
	for _, d := range displays {
		handles = append(handles, &ddcHandle{source: s, display: d})
	}
	return handles, nil
}

func (s *DDCSource) exec(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.run(ctx, s.binary, args...)
}

// ddcDisplay is one "Display N" block of ddcutil detect output.
type ddcDisplay struct {
	bus     int
	monitor string // MFG:model:serial
}

// parseDetect parses terse detect output:
//
//	Display 1
//	   I2C bus:  /dev/i2c-4
//	   Monitor:  DEL:DELL U2415:7MT0167B2YNL
//
// "Invalid display" blocks and blocks without a bus or monitor are skipped.
func parseDetect(out []byte) []ddcDisplay {
	var (
		displays []ddcDisplay
		cur      *ddcDisplay
	)
	flush := func() {
		if cur != nil && cur.bus >= 0 && cur.monitor != "" {
			displays = append(displays, *cur)
		}
		cur = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Display "):
			flush()
			cur = &ddcDisplay{bus: -1}
		case strings.HasPrefix(line, "Invalid display"):
			flush()
		case cur == nil:
		case strings.HasPrefix(line, "I2C bus:"):
			dev := strings.TrimSpace(strings.TrimPrefix(line, "I2C bus:"))
			if n, err := strconv.Atoi(strings.TrimPrefix(dev, "/dev/i2c-")); err == nil {
				cur.bus = n
			}
		case strings.HasPrefix(line, "Monitor:"):
			cur.monitor = strings.TrimSpace(strings.TrimPrefix(line, "Monitor:"))
		}
	}
	flush()
	return displays
}

// parseGetVCP parses "VCP 10 C 70 100" into a percentage.
func parseGetVCP(out []byte) (int, error) {
	current, maxValue, err := parseVCPRaw(out)
	if err != nil {
		return 0, err
	}
	return rawToPercent(current, maxValue), nil
}

// parseVCPRaw returns the raw current and maximum values of a continuous
// VCP feature.
func parseVCPRaw(out []byte) (current, maxValue int, err error) {
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 5 || fields[0] != "VCP" || fields[2] != "C" {
		return 0, 0, fmt.Errorf("%w: unexpected getvcp output %q", ErrCommandFailed, strings.TrimSpace(string(out)))
	}

	current, err = strconv.Atoi(fields[3])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: parsing current value: %w", ErrCommandFailed, err)
	}
	maxValue, err = strconv.Atoi(fields[4])
	if err != nil || maxValue <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid max value %q", ErrBrightnessUnavailable, fields[4])
	}
	return current, maxValue, nil
}

type ddcHandle struct {
	source  *DDCSource
	display ddcDisplay
}

func (h *ddcHandle) DeviceInstanceID() string { return ddcIDPrefix + h.display.monitor }

// Description returns the model part of MFG:model:serial.
func (h *ddcHandle) Description() string {
	parts := strings.Split(h.display.monitor, ":")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return h.display.monitor
}

func (h *ddcHandle) busArg() string { return strconv.Itoa(h.display.bus) }

func (h *ddcHandle) GetBrightness(ctx context.Context) (int, error) {
	out, err := h.getVCP(ctx)
	if err != nil {
		return 0, err
	}
	return parseGetVCP(out)
}

func (h *ddcHandle) getVCP(ctx context.Context) ([]byte, error) {
	return h.source.exec(ctx, "--bus", h.busArg(), "getvcp", vcpBrightness, "--terse")
}

// SetBrightness scales value to the monitor's VCP maximum, which is read
// first since it is not always 100.
func (h *ddcHandle) SetBrightness(ctx context.Context, value int) error {
	if err := ValidateBrightness(value); err != nil {
		return err
	}

	out, err := h.getVCP(ctx)
	if err != nil {
		return err
	}
	_, maxValue, err := parseVCPRaw(out)
	if err != nil {
		return err
	}

	raw := percentToRaw(value, maxValue)
	_, err = h.source.exec(ctx, "--bus", h.busArg(), "setvcp", vcpBrightness, strconv.Itoa(raw))
	return err
}

func (h *ddcHandle) Close() error { return nil }
