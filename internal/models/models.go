package models

import (
	"encoding/json"
	"time"
)

// DeviceType classifies how a device participates in automation compilation.
type DeviceType string

const (
	DeviceLighting DeviceType = "lighting"
	DeviceOther    DeviceType = "other"
)

// TriggerKind is the closed set of user-facing automation triggers.
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerSunrise  TriggerKind = "sunrise"
	TriggerSunset   TriggerKind = "sunset"
	TriggerSleep    TriggerKind = "sleep"
	TriggerSchedule TriggerKind = "schedule"
	TriggerInterval TriggerKind = "interval"
)

// Repetition controls how often a schedule entry fires.
type Repetition string

const (
	RepetitionDaily       Repetition = "daily"
	RepetitionTheOtherDay Repetition = "theOtherDay"
	RepetitionOneInThree  Repetition = "1In3"
	RepetitionCustom      Repetition = "custom"
)

// ScheduleEntry is one wall-clock firing of a schedule trigger.
type ScheduleEntry struct {
	Repetition Repetition `json:"repetition"`
	// RepetitionSettings holds the weekday set ("mon".."sun"), custom only.
	RepetitionSettings []string  `json:"repetitionSettings,omitempty"`
	Time               time.Time `json:"time"`
}

// Interval describes "turned on continuously for at least this long".
type Interval struct {
	Hours   int `json:"hour"`
	Minutes int `json:"min"`
	Seconds int `json:"sec"`
}

// TriggerSettings carries the kind-specific settings of a trigger.
type TriggerSettings struct {
	Entries  []ScheduleEntry `json:"entries,omitempty"`
	Interval *Interval       `json:"interval,omitempty"`
}

// DeviceAutomation pairs the turn-on and turn-off intents of one device.
type DeviceAutomation struct {
	TurnOn          TriggerKind      `json:"turnOn"`
	TurnOnSettings  *TriggerSettings `json:"turnOnSettings,omitempty"`
	TurnOff         TriggerKind      `json:"turnOff"`
	TurnOffSettings *TriggerSettings `json:"turnOffSettings,omitempty"`
}

// DeviceProps is the per-device automation intent stored on the hub document.
type DeviceProps struct {
	Type       DeviceType       `json:"type"`
	Automation DeviceAutomation `json:"automation"`
}

// DevicesProps maps device id -> automation intent.
type DevicesProps map[string]DeviceProps

// HubProps is the hub document held in the cloud store.
type HubProps struct {
	ID           string       `json:"id"`
	LogLevel     string       `json:"logLevel,omitempty"`
	DevicesProps DevicesProps `json:"devicesProps,omitempty"`
}

// EntityState is the runtime's view of one entity inside a state change.
type EntityState struct {
	EntityID    string         `json:"entityId"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged string         `json:"lastChanged,omitempty"`
	LastUpdated string         `json:"lastUpdated,omitempty"`
}

// StateChangeEvent is a normalized event from the runtime's event topic.
type StateChangeEvent struct {
	EventType string          `json:"eventType"`
	Data      StateChangeData `json:"data"`
}

// StateChangeData carries the new (and optionally old) entity state.
type StateChangeData struct {
	NewState EntityState  `json:"newState"`
	OldState *EntityState `json:"oldState,omitempty"`
}

// ZigbeeEvent is an event from the zigbee bridge namespace. Data is the
// decoded JSON payload, or the raw string when the payload is not JSON.
type ZigbeeEvent struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// SetStateCommand asks the hub to drive a device to a state.
type SetStateCommand struct {
	DeviceID string `json:"deviceId"`
	State    string `json:"state"`
}

// Action is one pending row of the cloud actions queue.
type Action struct {
	ID      string          `json:"id"`
	Kind    string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Action kinds accepted from the actions queue.
const (
	ActionSetState     = "setState"
	ActionSetConfig    = "setConfig"
	ActionAddNewDevice = "addNewDevice"
)
