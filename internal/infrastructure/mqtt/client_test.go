package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/brightsync/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "brightsync-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient returns a Client that never dialled a broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"MonitorsState", topics.MonitorsState(), "brightsync/state/monitors"},
		{"MonitorState", topics.MonitorState("backlight:intel_backlight"), "brightsync/state/monitor/backlight:intel_backlight"},
		{"ScanningState", topics.ScanningState(), "brightsync/state/scanning"},
		{"PowerEvent", topics.PowerEvent(), "brightsync/event/power"},
		{"BrightnessEvent", topics.BrightnessEvent(), "brightsync/event/brightness"},
		{"SystemStatus", topics.SystemStatus(), "brightsync/system/status"},
		{"AllEvents", topics.AllEvents(), "brightsync/event/+"},
		{"AllTopics", topics.AllTopics(), "brightsync/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestMonitorState_EscapesIDLevel(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"ddc:DEL:U2415/B:7MT0186", "brightsync/state/monitor/ddc:DEL:U2415%2FB:7MT0186"},
		{"ddc:ACM:Pro+#1:", "brightsync/state/monitor/ddc:ACM:Pro%2B%231:"},
		{"ddc:XYZ:100%:", "brightsync/state/monitor/ddc:XYZ:100%25:"},
		{`DISPLAY\DEL4321\1`, `brightsync/state/monitor/DISPLAY\DEL4321\1`},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := Topics{}.MonitorState(tt.id)
			if got != tt.want {
				t.Fatalf("MonitorState(%q) = %q, want %q", tt.id, got, tt.want)
			}
			level := strings.TrimPrefix(got, "brightsync/state/monitor/")
			if strings.ContainsAny(level, "/+#") {
				t.Errorf("level %q still contains a separator or wildcard", level)
			}
			back, err := url.PathUnescape(level)
			if err != nil || back != tt.id {
				t.Errorf("PathUnescape(%q) = %q, %v, want %q", level, back, err, tt.id)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "user"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "brightsync-test" {
		t.Errorf("ClientID = %q, want brightsync-test", opts.ClientID)
	}
	if opts.Username != "user" {
		t.Errorf("Username = %q, want user", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS1.2", opts.TLSConfig)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "brightsync-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatalf("will enabled=%v retained=%v, want both true", opts.WillEnabled, opts.WillRetained)
	}
	wantTopic := Topics{}.SystemStatus()
	if opts.WillTopic != wantTopic {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, wantTopic)
	}

	var payload StatusPayload
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload.Status != "offline" || payload.Reason != reasonUnexpectedDisconnect {
		t.Errorf("will payload = %+v, want offline/%s", payload, reasonUnexpectedDisconnect)
	}
}

func TestStatusPayload_OmitsEmptyReason(t *testing.T) {
	data := statusPayload("online", "brightsync-test", "")
	if strings.Contains(string(data), "reason") {
		t.Errorf("payload = %s, want no reason field", data)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "brightsync/test", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "brightsync/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "brightsync/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	c := disconnectedClient()

	err := c.PublishJSON("brightsync/test", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("brightsync/test", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("brightsync/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("brightsync/test", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("brightsync/test") {
		t.Error("HasSubscription() = true for rejected subscription")
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("brightsync/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "brightsync/event/power", nil)

	if len(logger.errors) != 1 {
		t.Errorf("logged errors = %v, want one panic record", logger.errors)
	}
}

func TestDispatch_LogsHandlerError(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "brightsync/event/brightness", nil)

	if len(logger.warns) != 1 {
		t.Errorf("logged warnings = %v, want one handler error", logger.warns)
	}
}

func TestHandleDisconnect_InvokesCallback(t *testing.T) {
	c := disconnectedClient()
	c.setConnected(true)

	var got error
	c.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("connection reset")
	c.handleDisconnect(lost)

	if !errors.Is(got, lost) {
		t.Errorf("callback error = %v, want %v", got, lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := disconnectedClient()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() cancelled error = %v, want context.Canceled", err)
	}
}
