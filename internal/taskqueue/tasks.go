package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"hubbridge/internal/store"

	"github.com/hibiken/asynq"
)

// Task types handled by the forwarding workers.
const (
	TypeForwardEvent       = "event:forward"
	TypeForwardZigbeeEvent = "event:forward_zigbee"
)

// Global instances, initialized by the main application.
var documentStore *store.Store

// SetGlobalInstances sets the document store used by the workers.
func SetGlobalInstances(s *store.Store) {
	documentStore = s
}

// ForwardEventPayload carries one state-change event to the durable log.
type ForwardEventPayload struct {
	HubID   string          `json:"hubId"`
	Payload json.RawMessage `json:"payload"`
	// DeviceID and State are set for switch state changes so the worker can
	// merge the device's current state into the hub document.
	DeviceID string          `json:"deviceId,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
}

// ForwardZigbeePayload carries one zigbee event to the secondary log.
type ForwardZigbeePayload struct {
	HubID   string          `json:"hubId"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueForward enqueues a state-change event for cloud forwarding.
// Retries are disabled: forwarding is at-most-once, and a retried delivery
// would break the event log's source ordering.
func EnqueueForward(p ForwardEventPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeForwardEvent, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(0), asynq.Timeout(10*time.Second))
	if err != nil {
		return err
	}
	log.Printf("TASKQUEUE: enqueued %s task %s for hub %s", TypeForwardEvent, info.ID, p.HubID)
	return nil
}

// EnqueueForwardZigbee enqueues a zigbee event for cloud forwarding.
func EnqueueForwardZigbee(p ForwardZigbeePayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeForwardZigbeeEvent, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(0), asynq.Timeout(10*time.Second))
	if err != nil {
		return err
	}
	log.Printf("TASKQUEUE: enqueued %s task %s for hub %s", TypeForwardZigbeeEvent, info.ID, p.HubID)
	return nil
}

// forwardEventTask appends the event to hub_events and merges the device
// state into the hub document. A failure here is terminal for this event.
func forwardEventTask(ctx context.Context, t *asynq.Task) error {
	if documentStore == nil {
		return fmt.Errorf("document store not initialized")
	}
	var p ForwardEventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := documentStore.AppendEvent(ctx, p.HubID, p.Payload); err != nil {
		return err
	}
	if p.DeviceID != "" {
		if err := documentStore.MergeDeviceState(ctx, p.HubID, p.DeviceID, p.State); err != nil {
			log.Printf("TASKQUEUE: merge device state for %s failed: %v", p.DeviceID, err)
		}
	}
	return nil
}

// forwardZigbeeEventTask appends the event to hub_zigbee_events.
func forwardZigbeeEventTask(ctx context.Context, t *asynq.Task) error {
	if documentStore == nil {
		return fmt.Errorf("document store not initialized")
	}
	var p ForwardZigbeePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	return documentStore.AppendZigbeeEvent(ctx, p.HubID, p.Topic, p.Payload)
}
