package monitor

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const detectOutput = `Display 1
   I2C bus:  /dev/i2c-4
   Monitor:  DEL:DELL U2415:7MT0167B2YNL

Display 2
   I2C bus:  /dev/i2c-6
   Monitor:  GSM:LG HDR 4K:0x0001a2b3

Invalid display
   I2C bus:  /dev/i2c-7
   Monitor:  ACR::
`

// scriptedRunner answers ddcutil invocations from a table keyed by the
// joined argument list.
type scriptedRunner struct {
	mu      sync.Mutex
	replies map[string]string
	calls   [][]string
}

func (r *scriptedRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)

	key := strings.Join(args, " ")
	reply, ok := r.replies[key]
	if !ok {
		return nil, errors.Join(ErrCommandFailed, errors.New("no reply for "+key))
	}
	return []byte(reply), nil
}

func TestParseDetect(t *testing.T) {
	displays := parseDetect([]byte(detectOutput))

	want := []ddcDisplay{
		{bus: 4, monitor: "DEL:DELL U2415:7MT0167B2YNL"},
		{bus: 6, monitor: "GSM:LG HDR 4K:0x0001a2b3"},
	}
	if !slices.Equal(displays, want) {
		t.Errorf("parseDetect() = %+v, want %+v", displays, want)
	}
}

func TestParseDetect_Empty(t *testing.T) {
	if got := parseDetect([]byte("No displays found.\n")); len(got) != 0 {
		t.Errorf("parseDetect() = %+v, want none", got)
	}
}

func TestParseGetVCP(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    int
		wantErr bool
	}{
		{"percent scale", "VCP 10 C 70 100\n", 70, false},
		{"custom max", "VCP 10 C 50 200", 25, false},
		{"not continuous", "VCP 10 SNC x01", 0, true},
		{"garbage", "Display not found", 0, true},
		{"zero max", "VCP 10 C 5 0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGetVCP([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseGetVCP() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseGetVCP() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDDCSource_EnumerateAndIO(t *testing.T) {
	runner := &scriptedRunner{replies: map[string]string{
		"detect --terse":            detectOutput,
		"--bus 4 getvcp 10 --terse": "VCP 10 C 35 100",
		"--bus 6 setvcp 10 80":      "",
		"--bus 6 getvcp 10 --terse": "VCP 10 C 80 100",
	}}
	src := NewDDCSource("ddcutil", time.Second, WithCommandRunner(runner.run))
	ctx := context.Background()

	handles, err := src.Enumerate(ctx)
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("Enumerate() = %d handles, want 2", len(handles))
	}

	dell, lg := handles[0], handles[1]
	if dell.DeviceInstanceID() != "ddc:DEL:DELL U2415:7MT0167B2YNL" {
		t.Errorf("DeviceInstanceID() = %q", dell.DeviceInstanceID())
	}
	if dell.Description() != "DELL U2415" {
		t.Errorf("Description() = %q, want DELL U2415", dell.Description())
	}

	if got, err := dell.GetBrightness(ctx); err != nil || got != 35 {
		t.Errorf("GetBrightness() = %d, %v; want 35, nil", got, err)
	}
	if err := lg.SetBrightness(ctx, 80); err != nil {
		t.Errorf("SetBrightness() error = %v", err)
	}
	if err := lg.SetBrightness(ctx, 150); !errors.Is(err, ErrInvalidBrightness) {
		t.Errorf("SetBrightness(150) error = %v, want ErrInvalidBrightness", err)
	}
}

func TestDDCSource_EnumerateFailure(t *testing.T) {
	runner := &scriptedRunner{replies: map[string]string{}}
	src := NewDDCSource("", 0, WithCommandRunner(runner.run))

	if _, err := src.Enumerate(context.Background()); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("Enumerate() error = %v, want ErrCommandFailed", err)
	}
	if src.binary != DefaultDDCUtilBinary || src.timeout != DefaultDDCUtilTimeout {
		t.Errorf("defaults = %q/%v, want %q/%v", src.binary, src.timeout, DefaultDDCUtilBinary, DefaultDDCUtilTimeout)
	}
}

// panelRunner simulates one monitor whose VCP brightness ranges 0..max.
type panelRunner struct {
	mu     sync.Mutex
	raw    int
	max    int
	writes []string
}

func (r *panelRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case len(args) == 2 && args[0] == "detect":
		return []byte("Display 1\n   I2C bus:  /dev/i2c-3\n   Monitor:  BNQ:BenQ GW2780:ET1234\n"), nil
	case len(args) >= 4 && args[2] == "getvcp":
		return []byte("VCP 10 C " + strconv.Itoa(r.raw) + " " + strconv.Itoa(r.max)), nil
	case len(args) == 5 && args[2] == "setvcp":
		v, err := strconv.Atoi(args[4])
		if err != nil {
			return nil, err
		}
		r.raw = v
		r.writes = append(r.writes, args[4])
		return nil, nil
	}
	return nil, errors.Join(ErrCommandFailed, errors.New("unexpected "+strings.Join(args, " ")))
}

func TestDDCHandle_SetScalesToVCPMax(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		set     int
		wantRaw string
	}{
		{name: "max 200", max: 200, set: 50, wantRaw: "100"},
		{name: "max 100", max: 100, set: 50, wantRaw: "50"},
		{name: "max 255 full", max: 255, set: 100, wantRaw: "255"},
		{name: "max 200 zero", max: 200, set: 0, wantRaw: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &panelRunner{raw: 10, max: tt.max}
			src := NewDDCSource("ddcutil", time.Second, WithCommandRunner(runner.run))
			ctx := context.Background()

			handles, err := src.Enumerate(ctx)
			if err != nil || len(handles) != 1 {
				t.Fatalf("Enumerate() = %d handles, %v; want 1", len(handles), err)
			}
			h := handles[0]

			if err := h.SetBrightness(ctx, tt.set); err != nil {
				t.Fatalf("SetBrightness(%d) error = %v", tt.set, err)
			}
			if !slices.Equal(runner.writes, []string{tt.wantRaw}) {
				t.Errorf("raw writes = %v, want [%s]", runner.writes, tt.wantRaw)
			}

			got, err := h.GetBrightness(ctx)
			if err != nil {
				t.Fatalf("GetBrightness() error = %v", err)
			}
			if got != tt.set {
				t.Errorf("GetBrightness() after SetBrightness(%d) = %d", tt.set, got)
			}
		})
	}
}

func TestDDCHandle_SetFailsWithoutMax(t *testing.T) {
	runner := &panelRunner{raw: 10, max: 0}
	src := NewDDCSource("ddcutil", time.Second, WithCommandRunner(runner.run))
	ctx := context.Background()

	handles, err := src.Enumerate(ctx)
	if err != nil || len(handles) != 1 {
		t.Fatalf("Enumerate() = %d handles, %v; want 1", len(handles), err)
	}
	if err := handles[0].SetBrightness(ctx, 40); !errors.Is(err, ErrBrightnessUnavailable) {
		t.Errorf("SetBrightness() error = %v, want ErrBrightnessUnavailable", err)
	}
	if len(runner.writes) != 0 {
		t.Errorf("raw writes = %v, want none", runner.writes)
	}
}
