package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/config"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/constants"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/logging"
)

// webhookPayload is the JSON document posted per event.
type webhookPayload struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Resource  string   `json:"resource,omitempty"`
	Operation string   `json:"operation,omitempty"`
	Group     string   `json:"group,omitempty"`
	Blocked   *bool    `json:"blocked,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Groups    []string `json:"groups,omitempty"`
}

// WebhookForwarder posts every blocking event to an HTTP endpoint as JSON.
// Delivery uses retryablehttp with exponential backoff; failures are logged
// and dropped, never propagated back to the coordinator.
type WebhookForwarder struct {
	url    string
	client *retryablehttp.Client
	logger *logging.Logger

	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// NewWebhookForwarder creates a forwarder for the given settings.
// Returns an error if the webhook is disabled or has no URL.
func NewWebhookForwarder(cfg *config.WebhookSettings, logger *logging.Logger) (*WebhookForwarder, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("webhook forwarding is disabled")
	}
	if cfg.URL == "" {
		return nil, config.ErrMissingWebhookURL
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = constants.WebhookRetryWaitMin
	client.RetryWaitMax = constants.WebhookRetryWaitMax
	client.HTTPClient.Timeout = constants.WebhookRequestTimeout
	client.Logger = nil // delivery errors are logged once, below

	return &WebhookForwarder{
		url:     cfg.URL,
		client:  client,
		logger:  logger,
		stopped: make(chan struct{}),
	}, nil
}

// Start drains the event channel in a goroutine until the channel closes or
// Stop is called.
func (w *WebhookForwarder) Start(ch <-chan events.Event) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				w.deliver(ev)
			case <-w.stopped:
				// Deliver anything already queued before exiting.
				for {
					select {
					case ev, ok := <-ch:
						if !ok {
							return
						}
						w.deliver(ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop terminates the forwarding goroutine and waits for in-flight delivery.
func (w *WebhookForwarder) Stop() {
	w.once.Do(func() { close(w.stopped) })
	w.wg.Wait()
}

// deliver posts one event, retrying per client policy.
func (w *WebhookForwarder) deliver(ev events.Event) {
	payload := buildPayload(ev)

	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error().Err(err).Str("type", string(ev.Type())).
			Msg("Failed to encode webhook payload")
		return
	}

	req, err := retryablehttp.NewRequest("POST", w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn().Err(err).Str("type", string(ev.Type())).
			Msg("Webhook delivery failed, event dropped")
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn().Int("status", resp.StatusCode).Str("type", string(ev.Type())).
			Msg("Webhook endpoint rejected event")
	}
}

// buildPayload flattens a bus event into the wire document.
func buildPayload(ev events.Event) webhookPayload {
	payload := webhookPayload{
		Type:      string(ev.Type()),
		Timestamp: ev.Timestamp(),
	}

	switch e := ev.(type) {
	case *events.ResourceEvent:
		payload.Resource = e.ResourceID
		payload.Operation = e.Operation
		payload.Group = e.Group
	case *events.OperationEvent:
		payload.Operation = e.Operation
		payload.Resources = e.ResourceIDs
		payload.Groups = e.Groups
	case *events.StateChangedEvent:
		payload.Resource = e.ResourceID
		payload.Operation = e.Operation
		blocked := e.Blocked
		payload.Blocked = &blocked
	}
	return payload
}
