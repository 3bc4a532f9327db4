package cloud

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"hubbridge/internal/events"
	"hubbridge/internal/hub"
	"hubbridge/internal/models"
	"hubbridge/internal/taskqueue"

	"github.com/redis/go-redis/v9"
)

// lastStateTTL bounds how long a device's forwarded state stays cached.
const lastStateTTL = time.Hour

// stateCache remembers the last forwarded state per device.
type stateCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

func (c redisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Forwarder relays local events into the cloud event logs. Forwarding is
// at-most-once: a failed delivery is logged and dropped, no retry queue
// exists at this layer.
type Forwarder struct {
	hub           *hub.Hub
	cache         stateCache
	enqueueEvent  func(taskqueue.ForwardEventPayload) error
	enqueueZigbee func(taskqueue.ForwardZigbeePayload) error
}

// NewForwarder creates a forwarder for the authenticated hub.
func NewForwarder(h *hub.Hub, redisClient *redis.Client) *Forwarder {
	return &Forwarder{
		hub:           h,
		cache:         redisCache{client: redisClient},
		enqueueEvent:  taskqueue.EnqueueForward,
		enqueueZigbee: taskqueue.EnqueueForwardZigbee,
	}
}

// Register subscribes the forwarder to the router's event channels.
func (f *Forwarder) Register(router *events.Router) {
	router.StateChange.Subscribe(f.onStateChange)
	router.ZigbeeEvent.Subscribe(f.onZigbeeEvent)
}

// onStateChange records the event in the durable log. In debug mode every
// event is recorded; in normal mode only switch state changes are. Switch
// events always reach the log; the last-state cache only skips the
// hub-document merge when the state has not actually changed.
func (f *Forwarder) onStateChange(ctx context.Context, event models.StateChangeEvent) error {
	debug := f.hub.LogLevel() == "debug"
	entityID := event.Data.NewState.EntityID
	isSwitch := event.EventType == "state_changed" && strings.HasPrefix(entityID, "switch.")

	if !debug && !isSwitch {
		return nil
	}

	task := taskqueue.ForwardEventPayload{HubID: f.hub.ID()}

	if isSwitch {
		deviceID := strings.TrimPrefix(entityID, "switch.")
		state, err := deviceStateDoc(event.Data.NewState)
		if err != nil {
			return err
		}
		if !f.unchanged(ctx, deviceID, state) {
			f.rememberState(ctx, deviceID, state)
			task.DeviceID = deviceID
			task.State = state
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	task.Payload = payload

	if err := f.enqueueEvent(task); err != nil {
		// At-most-once: the event is gone, only the log remembers it.
		log.Printf("CLOUD: could not forward %s event for %s: %v", event.EventType, entityID, err)
	}
	return nil
}

// onZigbeeEvent records zigbee traffic in the secondary log, debug mode only.
func (f *Forwarder) onZigbeeEvent(_ context.Context, event models.ZigbeeEvent) error {
	if f.hub.LogLevel() != "debug" {
		return nil
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	task := taskqueue.ForwardZigbeePayload{HubID: f.hub.ID(), Topic: event.Topic, Payload: payload}
	if err := f.enqueueZigbee(task); err != nil {
		log.Printf("CLOUD: could not forward zigbee event on %s: %v", event.Topic, err)
	}
	return nil
}

// deviceStateDoc is the device state as stored on the hub document: the new
// entity state minus its identity and the display-only friendlyName.
func deviceStateDoc(state models.EntityState) (json.RawMessage, error) {
	attributes := make(map[string]any, len(state.Attributes))
	for k, v := range state.Attributes {
		if k == "friendlyName" {
			continue
		}
		attributes[k] = v
	}
	return json.Marshal(map[string]any{
		"state":       state.State,
		"attributes":  attributes,
		"lastChanged": state.LastChanged,
		"lastUpdated": state.LastUpdated,
	})
}

func (f *Forwarder) unchanged(ctx context.Context, deviceID string, state json.RawMessage) bool {
	cached, err := f.cache.Get(ctx, "device:last:"+deviceID)
	if err != nil {
		return false
	}
	return cached == string(state)
}

func (f *Forwarder) rememberState(ctx context.Context, deviceID string, state json.RawMessage) {
	if err := f.cache.Set(ctx, "device:last:"+deviceID, string(state), lastStateTTL); err != nil {
		log.Printf("CLOUD: last-state cache write for %s failed: %v", deviceID, err)
	}
}
