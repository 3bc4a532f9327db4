package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedState rejects a state outside the on/off/toggle vocabulary.
var ErrUnsupportedState = errors.New("unsupported state")

// serviceVerbs maps the cloud state vocabulary to runtime service verbs.
var serviceVerbs = map[string]string{
	"on":     "turn_on",
	"off":    "turn_off",
	"toggle": "toggle",
}

// SetState publishes a single command message driving deviceID to state.
// Success means the message was accepted by the transport, not that the
// device changed state; no acknowledgement is awaited.
func (c *Client) SetState(deviceID, state string) error {
	verb, ok := serviceVerbs[state]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedState, state)
	}
	payload, err := json.Marshal(SnakeCaseKeys(map[string]any{
		"entityId": EntityID(deviceID),
		"service":  verb,
	}))
	if err != nil {
		return err
	}
	c.mqtt.Publish(c.opts.CommandTopic, 0, false, payload)
	return nil
}
