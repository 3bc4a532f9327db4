package compiler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hubbridge/internal/models"
	"hubbridge/internal/transport"
)

// ErrUnsupportedCombination rejects a device whose turnOn/turnOff pair does
// not match any compilable pattern. The whole compile aborts; a partial
// rule set must never reach the runtime.
var ErrUnsupportedCombination = errors.New("unsupported automation combination")

// DeviceResolver resolves a device name to its registry id, needed by
// interval triggers.
type DeviceResolver interface {
	DeviceID(deviceName string) (string, error)
}

// Compiler translates per-device automation intents into rule and group
// documents for the automation runtime.
type Compiler struct {
	resolver DeviceResolver
	sleepAt  time.Time
	loc      *time.Location
}

// Output is a compiled rule set: the ordered automations and the device
// groups, ready for serialization.
type Output struct {
	Automations []Rule
	Groups      Groups
}

// New creates a compiler. sleepTime is the fixed daily bedtime as "15:04:05"
// wall clock in loc; schedule trigger times are rendered in loc as well.
func New(resolver DeviceResolver, sleepTime string, loc *time.Location) (*Compiler, error) {
	at, err := time.ParseInLocation("15:04:05", sleepTime, loc)
	if err != nil {
		return nil, fmt.Errorf("parse sleep time: %w", err)
	}
	return &Compiler{resolver: resolver, sleepAt: at, loc: loc}, nil
}

const (
	actionOn  = "on"
	actionOff = "off"
)

// Compile produces the full rule set for devicesProps. Ordering is
// deterministic: the implicit automations first, then devices in sorted id
// order, turnOn before turnOff within a device. Any lookup failure or
// unsupported combination aborts the compile.
func (c *Compiler) Compile(devicesProps models.DevicesProps) (*Output, error) {
	out := &Output{
		Groups: Groups{
			GroupNightLight:           {},
			GroupNightLightWhileAwake: {},
		},
	}

	// The implicit automations exist regardless of device configuration;
	// they anchor the two implicit groups.
	if err := c.addAutomation(out, "group."+GroupNightLight, models.TriggerSunset, nil, actionOn); err != nil {
		return nil, err
	}
	if err := c.addAutomation(out, "group."+GroupNightLight, models.TriggerSunrise, nil, actionOff); err != nil {
		return nil, err
	}
	if err := c.addAutomation(out, "group."+GroupNightLightWhileAwake, models.TriggerSleep, nil, actionOff); err != nil {
		return nil, err
	}

	// Map iteration order is randomized; sorted ids keep the output stable.
	deviceIDs := make([]string, 0, len(devicesProps))
	for id := range devicesProps {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	for _, deviceID := range deviceIDs {
		if err := c.compileDevice(out, deviceID, devicesProps[deviceID]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Compiler) compileDevice(out *Output, deviceID string, props models.DeviceProps) error {
	a := props.Automation

	switch props.Type {
	case models.DeviceLighting:
		switch {
		case a.TurnOn == models.TriggerSunset && a.TurnOff == models.TriggerSunrise:
			// All night: covered by the implicit night_light automation.
			out.Groups.Add(GroupNightLight, transport.EntityID(deviceID))
			return nil
		case a.TurnOn == models.TriggerSunset && a.TurnOff == models.TriggerSleep:
			// Night while awake: still a night light, turned off earlier.
			out.Groups.Add(GroupNightLight, transport.EntityID(deviceID))
			out.Groups.Add(GroupNightLightWhileAwake, transport.EntityID(deviceID))
			return nil
		case a.TurnOn == models.TriggerManual &&
			(a.TurnOff == models.TriggerSunrise || a.TurnOff == models.TriggerSleep):
			if err := c.addAutomation(out, deviceID, a.TurnOn, a.TurnOnSettings, actionOn); err != nil {
				return err
			}
			return c.addAutomation(out, deviceID, a.TurnOff, a.TurnOffSettings, actionOff)
		default:
			return fmt.Errorf("%w: lighting device %s (%s -> %s)",
				ErrUnsupportedCombination, deviceID, a.TurnOn, a.TurnOff)
		}

	case models.DeviceOther:
		if !allowedOtherTurnOn[a.TurnOn] {
			return fmt.Errorf("%w: device %s turnOn %s", ErrUnsupportedCombination, deviceID, a.TurnOn)
		}
		if !allowedOtherTurnOff[a.TurnOff] {
			return fmt.Errorf("%w: device %s turnOff %s", ErrUnsupportedCombination, deviceID, a.TurnOff)
		}
		if err := c.addAutomation(out, deviceID, a.TurnOn, a.TurnOnSettings, actionOn); err != nil {
			return err
		}
		return c.addAutomation(out, deviceID, a.TurnOff, a.TurnOffSettings, actionOff)

	default:
		return fmt.Errorf("%w: device %s has unknown type %q", ErrUnsupportedCombination, deviceID, props.Type)
	}
}

var allowedOtherTurnOn = map[models.TriggerKind]bool{
	models.TriggerManual:   true,
	models.TriggerSunrise:  true,
	models.TriggerSunset:   true,
	models.TriggerSchedule: true,
}

var allowedOtherTurnOff = map[models.TriggerKind]bool{
	models.TriggerSleep:    true,
	models.TriggerSunrise:  true,
	models.TriggerInterval: true,
	models.TriggerSchedule: true,
}

// addAutomation desugars a trigger intent and appends the resulting rules.
// Manual never produces a rule. Sleep is sugar for a fixed daily schedule at
// the configured bedtime, regardless of any settings passed alongside it.
func (c *Compiler) addAutomation(out *Output, deviceID string, trigger models.TriggerKind, settings *models.TriggerSettings, action string) error {
	if trigger == models.TriggerManual {
		return nil
	}
	if trigger == models.TriggerSleep {
		trigger = models.TriggerSchedule
		settings = &models.TriggerSettings{Entries: []models.ScheduleEntry{
			{Repetition: models.RepetitionDaily, Time: c.sleepAt},
		}}
	}

	if trigger == models.TriggerSchedule {
		if settings == nil {
			return fmt.Errorf("%w: device %s schedule trigger without settings",
				ErrUnsupportedCombination, deviceID)
		}
		for _, entry := range settings.Entries {
			if err := c.appendRule(out, deviceID, trigger, settings, entry, action); err != nil {
				return err
			}
		}
		return nil
	}

	return c.appendRule(out, deviceID, trigger, settings, models.ScheduleEntry{}, action)
}

func (c *Compiler) appendRule(out *Output, deviceID string, trigger models.TriggerKind, settings *models.TriggerSettings, entry models.ScheduleEntry, action string) error {
	rule := Rule{Mode: "single"}

	switch trigger {
	case models.TriggerSunrise, models.TriggerSunset:
		rule.Trigger = []Trigger{{Platform: "sun", Event: string(trigger)}}

	case models.TriggerSchedule:
		condition, err := repetitionCondition(deviceID, entry)
		if err != nil {
			return err
		}
		rule.Condition = condition
		// Truncate to whole seconds of wall clock; the runtime has no
		// sub-second time triggers.
		rule.Trigger = []Trigger{{Platform: "time", At: entry.Time.In(c.loc).Format("15:04:05")}}

	case models.TriggerInterval:
		if settings == nil || settings.Interval == nil {
			return fmt.Errorf("%w: device %s interval trigger without settings",
				ErrUnsupportedCombination, deviceID)
		}
		registryID, err := c.resolver.DeviceID(deviceID)
		if err != nil {
			return fmt.Errorf("compile %s: %w", deviceID, err)
		}
		rule.Trigger = []Trigger{{
			Platform: "device",
			Type:     "turned_on",
			DeviceID: registryID,
			EntityID: transport.EntityID(deviceID),
			Domain:   "switch",
			For: &Duration{
				Hours:   settings.Interval.Hours,
				Minutes: settings.Interval.Minutes,
				Seconds: settings.Interval.Seconds,
			},
		}}

	default:
		return fmt.Errorf("%w: device %s trigger %q", ErrUnsupportedCombination, deviceID, trigger)
	}

	service := "homeassistant.turn_off"
	if action == actionOn {
		service = "homeassistant.turn_on"
	}
	rule.Action = []Action{{Service: service, EntityID: transport.EntityID(deviceID)}}

	out.Automations = append(out.Automations, rule)
	return nil
}

// repetitionCondition renders a schedule entry's repetition as rule
// conditions. theOtherDay and 1In3 are day-of-year parity checks; custom is
// an explicit weekday set; daily needs no condition.
func repetitionCondition(deviceID string, entry models.ScheduleEntry) ([]Condition, error) {
	switch entry.Repetition {
	case models.RepetitionDaily:
		return nil, nil
	case models.RepetitionTheOtherDay:
		return []Condition{{
			Condition:     "template",
			ValueTemplate: "{{ now().timetuple().tm_yday % 2 == 0 }}",
		}}, nil
	case models.RepetitionOneInThree:
		return []Condition{{
			Condition:     "template",
			ValueTemplate: "{{ now().timetuple().tm_yday % 3 == 0 }}",
		}}, nil
	case models.RepetitionCustom:
		return []Condition{{Condition: "time", Weekday: entry.RepetitionSettings}}, nil
	default:
		return nil, fmt.Errorf("%w: device %s repetition %q",
			ErrUnsupportedCombination, deviceID, entry.Repetition)
	}
}
