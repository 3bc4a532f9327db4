package transport

import (
	"log"
	"strings"

	"hubbridge/internal/events"
	"hubbridge/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Options configures the hub's MQTT client.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// EventTopic carries JSON state-change events from the runtime.
	EventTopic string
	// ZigbeeTopic is the wildcard namespace of the zigbee bridge.
	ZigbeeTopic string
	// CommandTopic receives setState commands for the runtime.
	CommandTopic string
}

// Client bridges the MQTT broker and the event router.
type Client struct {
	mqtt   mqtt.Client
	router *events.Router
	opts   Options
}

// NewClient connects to the broker and wires inbound topics to the router.
// The paho client reconnects on its own; subscriptions are re-established in
// the OnConnect hook so they survive every reconnect.
func NewClient(opts Options, router *events.Router) (*Client, error) {
	c := &Client{router: router, opts: opts}

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetOnConnectHandler(c.onConnect)

	c.mqtt = mqtt.NewClient(mqttOpts)
	if token := c.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// NewClientWith wraps an already-connected MQTT client; used by tests.
func NewClientWith(client mqtt.Client, opts Options, router *events.Router) *Client {
	return &Client{mqtt: client, router: router, opts: opts}
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("TRANSPORT: connected, subscribing")
	if token := client.Subscribe(c.opts.EventTopic, 1, c.onEvent); token.Wait() && token.Error() != nil {
		log.Printf("TRANSPORT: subscribe %s failed: %v", c.opts.EventTopic, token.Error())
	}
	if token := client.Subscribe(c.opts.ZigbeeTopic, 0, c.onZigbee); token.Wait() && token.Error() != nil {
		log.Printf("TRANSPORT: subscribe %s failed: %v", c.opts.ZigbeeTopic, token.Error())
	}
}

func (c *Client) onEvent(_ mqtt.Client, msg mqtt.Message) {
	var event models.StateChangeEvent
	if err := DecodeNormalized(msg.Payload(), &event); err != nil {
		log.Printf("TRANSPORT: dropping event on %s: %v", msg.Topic(), err)
		return
	}
	c.router.StateChange.Publish(event)
}

func (c *Client) onZigbee(_ mqtt.Client, msg mqtt.Message) {
	// Zigbee payloads are usually JSON but some bridge topics carry plain
	// strings ("online"); keep those as-is instead of dropping them.
	var data any
	if normalized, err := NormalizeJSON(msg.Payload()); err == nil {
		data = normalized
	} else {
		data = string(msg.Payload())
	}
	c.router.ZigbeeEvent.Publish(models.ZigbeeEvent{Topic: msg.Topic(), Data: data})
}

// EntityID maps a device id to its runtime entity id. Ids that already carry
// a domain ("group.night_light") pass through untouched.
func EntityID(deviceID string) string {
	if strings.Contains(deviceID, ".") {
		return deviceID
	}
	return "switch." + deviceID
}
