package compiler

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// Rule is one compiled automation in the runtime's native shape. Rules are
// immutable once emitted and identified only by position in the output.
type Rule struct {
	Mode      string      `yaml:"mode"`
	Trigger   []Trigger   `yaml:"trigger"`
	Condition []Condition `yaml:"condition,omitempty"`
	Action    []Action    `yaml:"action"`
}

// Trigger starts evaluation of a rule. Exactly one of the platform-specific
// field groups is populated.
type Trigger struct {
	Platform string    `yaml:"platform"`
	Event    string    `yaml:"event,omitempty"`
	At       string    `yaml:"at,omitempty"`
	Type     string    `yaml:"type,omitempty"`
	DeviceID string    `yaml:"device_id,omitempty"`
	EntityID string    `yaml:"entity_id,omitempty"`
	Domain   string    `yaml:"domain,omitempty"`
	For      *Duration `yaml:"for,omitempty"`
}

// Duration is an interval trigger's "turned on for" threshold. Sub-second
// resolution is always zero.
type Duration struct {
	Hours        int `yaml:"hours"`
	Minutes      int `yaml:"minutes"`
	Seconds      int `yaml:"seconds"`
	Milliseconds int `yaml:"milliseconds"`
}

// Condition gates whether a triggered rule's action executes.
type Condition struct {
	Condition     string   `yaml:"condition"`
	ValueTemplate string   `yaml:"value_template,omitempty"`
	Weekday       []string `yaml:"weekday,omitempty"`
}

// Action is the service call performed when a rule fires.
type Action struct {
	Service  string `yaml:"service"`
	EntityID string `yaml:"entity_id"`
}

// Group is a named set of entities usable as a single automation target.
type Group struct {
	Entities []string `yaml:"entities"`
}

// Groups maps group name -> group. Entity lists are ordered and unique.
type Groups map[string]Group

// Implicit groups anchored by the seeded automations.
const (
	GroupNightLight           = "night_light"
	GroupNightLightWhileAwake = "night_light_while_awake"
)

// Add appends an entity to a group, keeping the list unique.
func (g Groups) Add(name, entityID string) {
	group := g[name]
	for _, existing := range group.Entities {
		if existing == entityID {
			return
		}
	}
	group.Entities = append(group.Entities, entityID)
	g[name] = group
}

// Names returns the group names in sorted order.
func (g Groups) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalAutomations serializes the rule list as the automations document.
func MarshalAutomations(rules []Rule) ([]byte, error) {
	return yaml.Marshal(rules)
}

// MarshalGroups serializes the group mapping as the groups document.
// yaml.v3 sorts map keys, so equal inputs produce byte-identical output.
func MarshalGroups(groups Groups) ([]byte, error) {
	return yaml.Marshal(groups)
}
