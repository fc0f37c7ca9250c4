package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/config"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/logging"
)

func testWebhookSettings(url string) *config.WebhookSettings {
	return &config.WebhookSettings{
		Enabled:  true,
		URL:      url,
		RetryMax: 1,
	}
}

func TestNewWebhookForwarder_Disabled(t *testing.T) {
	if _, err := NewWebhookForwarder(&config.WebhookSettings{Enabled: false}, logging.NewDefaultLogger()); err == nil {
		t.Error("Disabled webhook should not construct a forwarder")
	}
	if _, err := NewWebhookForwarder(&config.WebhookSettings{Enabled: true}, logging.NewDefaultLogger()); err == nil {
		t.Error("Missing URL should not construct a forwarder")
	}
}

func TestWebhookForwarder_DeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var received []webhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p webhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("Invalid payload JSON: %v", err)
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	fwd, err := NewWebhookForwarder(testWebhookSettings(server.URL), logging.NewDefaultLogger())
	if err != nil {
		t.Fatalf("NewWebhookForwarder failed: %v", err)
	}

	bus := events.NewBus(16)
	fwd.Start(bus.SubscribeAll())

	bus.PublishResourceBlocked("table", "import", "data-widgets")
	bus.PublishOperationEnded("import", []string{"table"}, []string{"data-widgets"})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("Timeout: received %d of 2 events", count)
		case <-time.After(10 * time.Millisecond):
		}
	}

	bus.Close()
	fwd.Stop()

	mu.Lock()
	defer mu.Unlock()
	if received[0].Type != "resource_blocked" || received[0].Resource != "table" {
		t.Errorf("Unexpected first payload: %+v", received[0])
	}
	if received[0].Group != "data-widgets" {
		t.Errorf("Expected group in payload, got %+v", received[0])
	}
	if received[1].Type != "operation_ended" || len(received[1].Resources) != 1 {
		t.Errorf("Unexpected second payload: %+v", received[1])
	}
}

func TestWebhookForwarder_StopWithoutEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fwd, err := NewWebhookForwarder(testWebhookSettings(server.URL), logging.NewDefaultLogger())
	if err != nil {
		t.Fatalf("NewWebhookForwarder failed: %v", err)
	}

	bus := events.NewBus(16)
	fwd.Start(bus.SubscribeAll())
	fwd.Stop() // must not hang or panic
	bus.Close()
}

func TestBuildPayload_StateChanged(t *testing.T) {
	ev := &events.StateChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventBlockingStateChanged,
			Time:      time.Now(),
		},
		ResourceID: "table",
		Operation:  "validate",
		Blocked:    true,
	}

	p := buildPayload(ev)
	if p.Type != "blocking_state_changed" || p.Resource != "table" {
		t.Errorf("Unexpected payload: %+v", p)
	}
	if p.Blocked == nil || !*p.Blocked {
		t.Error("Blocked flag should be set for state change payloads")
	}
}
