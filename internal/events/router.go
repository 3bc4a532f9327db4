package events

import (
	"context"
	"log"
	"sync"

	"hubbridge/internal/models"
)

// queueSize bounds how many undelivered payloads a channel may hold before
// Publish starts blocking the publisher of that channel.
const queueSize = 256

// channel is a single named event stream. Deliveries are consumed by one
// goroutine, so handlers for a given channel run serialized and in source
// order. A failing handler is logged and never cancels its siblings.
type channel[T any] struct {
	name     string
	mu       sync.Mutex
	handlers []func(context.Context, T) error
	queue    chan T
	once     sync.Once
}

func newChannel[T any](name string) *channel[T] {
	return &channel[T]{name: name, queue: make(chan T, queueSize)}
}

// Subscribe registers a handler. Handlers are invoked in registration order.
func (c *channel[T]) Subscribe(h func(context.Context, T) error) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
	c.once.Do(func() { go c.dispatch() })
}

// Publish enqueues a payload for delivery and reports whether any handler
// was subscribed. With no subscribers the payload is dropped; publishing is
// always safe.
func (c *channel[T]) Publish(payload T) bool {
	if !c.Subscribed() {
		return false
	}
	c.queue <- payload
	return true
}

// Subscribed reports whether the channel has at least one handler.
func (c *channel[T]) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers) > 0
}

func (c *channel[T]) dispatch() {
	for payload := range c.queue {
		c.mu.Lock()
		handlers := make([]func(context.Context, T) error, len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.Unlock()
		for _, h := range handlers {
			if err := h(context.Background(), payload); err != nil {
				log.Printf("ROUTER: handler error on channel %s: %v", c.name, err)
			}
		}
	}
}

// Router fans events out between the transport, the cloud layer and the
// orchestration code. Channels are a closed set; each carries its own
// payload type so a handler can never see a foreign event shape.
type Router struct {
	StateChange *channel[models.StateChangeEvent]
	ZigbeeEvent *channel[models.ZigbeeEvent]
	SetState    *channel[models.SetStateCommand]
	PropsChange *channel[models.HubProps]
	DeviceAdded *channel[models.Action]
}

// NewRouter creates a router with all channels registered.
func NewRouter() *Router {
	return &Router{
		StateChange: newChannel[models.StateChangeEvent]("stateChange"),
		ZigbeeEvent: newChannel[models.ZigbeeEvent]("zigbeeEvent"),
		SetState:    newChannel[models.SetStateCommand]("setState"),
		PropsChange: newChannel[models.HubProps]("propsChange"),
		DeviceAdded: newChannel[models.Action]("deviceAdded"),
	}
}
