package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"hubbridge/internal/models"
	"hubbridge/internal/taskqueue"
)

type memoryCache struct {
	entries map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]string{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	val, ok := c.entries[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return val, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

func newTestForwarder(t *testing.T, logLevel string) (*Forwarder, *memoryCache, *[]taskqueue.ForwardEventPayload, *[]taskqueue.ForwardZigbeePayload) {
	t.Helper()
	h := seededHub(t)
	h.Seed(models.HubProps{ID: "hub-1", LogLevel: logLevel})

	cache := newMemoryCache()
	var events []taskqueue.ForwardEventPayload
	var zigbee []taskqueue.ForwardZigbeePayload
	f := &Forwarder{
		hub:   h,
		cache: cache,
		enqueueEvent: func(p taskqueue.ForwardEventPayload) error {
			events = append(events, p)
			return nil
		},
		enqueueZigbee: func(p taskqueue.ForwardZigbeePayload) error {
			zigbee = append(zigbee, p)
			return nil
		},
	}
	return f, cache, &events, &zigbee
}

func switchEvent(entityID, state string) models.StateChangeEvent {
	return models.StateChangeEvent{
		EventType: "state_changed",
		Data: models.StateChangeData{
			NewState: models.EntityState{EntityID: entityID, State: state},
		},
	}
}

func TestOnStateChangeGating(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		event    models.StateChangeEvent
		want     int
	}{
		{"normal switch change", "normal", switchEvent("switch.ab12", "on"), 1},
		{"normal non-switch entity", "normal", switchEvent("sensor.temp", "21.5"), 0},
		{"normal non-state-change event", "normal", models.StateChangeEvent{EventType: "call_service"}, 0},
		{"debug non-switch entity", "debug", switchEvent("sensor.temp", "21.5"), 1},
		{"debug non-state-change event", "debug", models.StateChangeEvent{EventType: "call_service"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, events, _ := newTestForwarder(t, tt.logLevel)

			if err := f.onStateChange(context.Background(), tt.event); err != nil {
				t.Fatalf("onStateChange: %v", err)
			}
			if len(*events) != tt.want {
				t.Fatalf("forwarded %d events, want %d", len(*events), tt.want)
			}
		})
	}
}

func TestOnStateChangeSwitchCarriesDeviceState(t *testing.T) {
	f, cache, events, _ := newTestForwarder(t, "normal")

	if err := f.onStateChange(context.Background(), switchEvent("switch.ab12", "on")); err != nil {
		t.Fatalf("onStateChange: %v", err)
	}

	task := (*events)[0]
	if task.HubID != "hub-1" {
		t.Errorf("hubID = %q", task.HubID)
	}
	if task.DeviceID != "ab12" || len(task.State) == 0 {
		t.Errorf("switch change must carry the merge fields, got %+v", task)
	}
	if _, ok := cache.entries["device:last:ab12"]; !ok {
		t.Error("forwarded state not remembered in the cache")
	}
}

func TestOnStateChangeUnchangedSkipsOnlyMerge(t *testing.T) {
	f, _, events, _ := newTestForwarder(t, "normal")

	if err := f.onStateChange(context.Background(), switchEvent("switch.ab12", "on")); err != nil {
		t.Fatalf("onStateChange: %v", err)
	}
	if err := f.onStateChange(context.Background(), switchEvent("switch.ab12", "on")); err != nil {
		t.Fatalf("onStateChange: %v", err)
	}

	if len(*events) != 2 {
		t.Fatalf("the log records every switch change, got %d events", len(*events))
	}
	repeat := (*events)[1]
	if repeat.DeviceID != "" || repeat.State != nil {
		t.Errorf("unchanged state must skip the document merge, got %+v", repeat)
	}

	if err := f.onStateChange(context.Background(), switchEvent("switch.ab12", "off")); err != nil {
		t.Fatalf("onStateChange: %v", err)
	}
	changed := (*events)[2]
	if changed.DeviceID != "ab12" {
		t.Errorf("a real change must merge again, got %+v", changed)
	}
}

func TestOnZigbeeEventDebugOnly(t *testing.T) {
	event := models.ZigbeeEvent{Topic: "zigbee2mqtt/0xab", Data: map[string]any{"linkQuality": 120.0}}

	f, _, _, zigbee := newTestForwarder(t, "normal")
	if err := f.onZigbeeEvent(context.Background(), event); err != nil {
		t.Fatalf("onZigbeeEvent: %v", err)
	}
	if len(*zigbee) != 0 {
		t.Fatal("zigbee traffic must not be forwarded outside debug mode")
	}

	f, _, _, zigbee = newTestForwarder(t, "debug")
	if err := f.onZigbeeEvent(context.Background(), event); err != nil {
		t.Fatalf("onZigbeeEvent: %v", err)
	}
	if len(*zigbee) != 1 {
		t.Fatalf("forwarded %d zigbee events, want 1", len(*zigbee))
	}
	if (*zigbee)[0].Topic != "zigbee2mqtt/0xab" || (*zigbee)[0].HubID != "hub-1" {
		t.Errorf("task = %+v", (*zigbee)[0])
	}
}
