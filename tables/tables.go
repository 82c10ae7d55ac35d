// Package tables holds the declarative conversion rules correlating
// external domains, states and classes with protocol-side capability
// modules, and the reverse. Rules are ordered; every lookup scans linearly
// and the first structural match wins. Absence of a match is a "not
// supported" outcome, never an error.
package tables

import (
	"github.com/habridge/habridge/matter"
)

// ServiceCall describes an external service invocation.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}

// CommandRule maps an inbound protocol command on a domain to an external
// service call shape.
type CommandRule struct {
	Domain  string
	Command string
	Service string
	// Data derives service call data from the command payload. Nil means
	// no data beyond the target entity.
	Data func(payload map[string]any) map[string]any
	// Transition marks services accepting a transition time parameter.
	Transition bool
}

// StateRule maps an external (domain, state) pair to a discrete attribute
// write.
type StateRule struct {
	Domain    string
	State     string
	Cluster   matter.ClusterID
	Attribute string
	Value     any
}

// AttributeRule maps an external state attribute of a domain to a converted
// protocol attribute write. Convert returning ok=false means no write.
type AttributeRule struct {
	Domain    string
	Source    string
	Cluster   matter.ClusterID
	Attribute string
	Convert   func(value any) (any, bool)
}

// SensorRule maps a numeric sensor reading, keyed by state class and device
// class, to a converted attribute write. Battery, when set, additionally
// selects on whether the owning node is a battery-type node; this is how a
// voltage sensor on a battery targets a different capability than the same
// measurement on a general power node.
type SensorRule struct {
	StateClass  string
	DeviceClass string
	Battery     *bool
	Cluster     matter.ClusterID
	Attribute   string
	Convert     func(value any) (any, bool)
}

// BinaryRule maps a binary sensor device class to a boolean/enum attribute
// write.
type BinaryRule struct {
	DeviceClass string
	Cluster     matter.ClusterID
	Attribute   string
	On          any
	Off         any
}

// TriggerRule maps an emitted event type to a one-shot trigger on a node.
type TriggerRule struct {
	EventType string
	Cluster   matter.ClusterID
	Event     string
}

// Tables is an immutable, process-wide set of conversion rules. Source
// order is preserved exactly; some domains rely on multiple candidate rules
// and first structural match.
type Tables struct {
	Commands   []CommandRule
	States     []StateRule
	Attributes []AttributeRule
	Sensors    []SensorRule
	Binaries   []BinaryRule
	Triggers   []TriggerRule
}

// Command resolves the first rule matching (domain, command).
func (t *Tables) Command(domain string, command string) (CommandRule, bool) {
	for _, r := range t.Commands {
		if r.Domain == domain && r.Command == command {
			return r, true
		}
	}

	return CommandRule{}, false
}

// StatesFor returns every rule matching (domain, state), in source order.
func (t *Tables) StatesFor(domain string, state string) []StateRule {
	var out []StateRule

	for _, r := range t.States {
		if r.Domain == domain && r.State == state {
			out = append(out, r)
		}
	}

	return out
}

// AttributesFor returns every attribute conversion rule for a domain, in
// source order.
func (t *Tables) AttributesFor(domain string) []AttributeRule {
	var out []AttributeRule

	for _, r := range t.Attributes {
		if r.Domain == domain {
			out = append(out, r)
		}
	}

	return out
}

// Sensor resolves the first rule matching (state class, device class),
// refined by whether the reading is attached to a battery-type node.
func (t *Tables) Sensor(stateClass string, deviceClass string, battery bool) (SensorRule, bool) {
	for _, r := range t.Sensors {
		if r.StateClass != stateClass || r.DeviceClass != deviceClass {
			continue
		}

		if r.Battery != nil && *r.Battery != battery {
			continue
		}

		return r, true
	}

	return SensorRule{}, false
}

// Binary resolves the first rule matching a binary sensor device class.
func (t *Tables) Binary(deviceClass string) (BinaryRule, bool) {
	for _, r := range t.Binaries {
		if r.DeviceClass == deviceClass {
			return r, true
		}
	}

	return BinaryRule{}, false
}

// Trigger resolves the first rule matching an emitted event type.
func (t *Tables) Trigger(eventType string) (TriggerRule, bool) {
	for _, r := range t.Triggers {
		if r.EventType == eventType {
			return r, true
		}
	}

	return TriggerRule{}, false
}
