package habridge

import (
	"context"
	"regexp"
	"strconv"

	"github.com/habridge/habridge/endpoint"
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/matter"
	"github.com/shimmeringbee/logwrap"
)

// oneShotDomains hold no persistent state; their state value is the
// timestamp of the last activation and never maps to an attribute.
var oneShotDomains = map[string]bool{
	"automation":   true,
	"script":       true,
	"scene":        true,
	"button":       true,
	"input_button": true,
}

var signedDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// HandleStateChange applies one external state change to the node bound to
// the entity. Unsupported or unmapped changes are dropped with a log
// entry; a failing attribute write never stops the remaining writes.
func (d *Dispatcher) HandleStateChange(ctx context.Context, entityID string, oldState *hass.State, newState *hass.State) {
	device, node, found := d.registry.Resolve(entityID)
	if !found {
		d.logger.LogDebug(ctx, "State change for unbridged entity dropped.", logwrap.Datum("Entity", entityID))
		return
	}

	if newState == nil || newState.Value == hass.StateUnavailable {
		if err := device.Tree.SetReachable(false); err != nil {
			d.logger.LogError(ctx, "Failed to mark device unreachable.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
		}

		return
	}

	if oldState != nil && oldState.Value == hass.StateUnavailable {
		if err := device.Tree.SetReachable(true); err != nil {
			d.logger.LogError(ctx, "Failed to mark device reachable.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
		}
	}

	domain, err := hass.Domain(entityID)
	if err != nil {
		d.logger.LogWarn(ctx, "State change for malformed entity id dropped.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
		return
	}

	if oneShotDomains[domain] {
		return
	}

	switch domain {
	case "sensor":
		d.applySensor(ctx, entityID, node, newState)
	case "binary_sensor":
		d.applyBinarySensor(ctx, entityID, node, newState)
	case "event":
		d.applyEvent(ctx, entityID, node, newState)
	default:
		d.applyGeneric(ctx, entityID, node, domain, newState)
	}
}

func (d *Dispatcher) applySensor(ctx context.Context, entityID string, node *endpoint.Node, s *hass.State) {
	rule, found := d.tables.Sensor(s.Str("state_class"), s.Str("device_class"), node.HasDeviceType(matter.PowerSourceID))
	if !found {
		d.logger.LogWarn(ctx, "Unsupported sensor class.", logwrap.Datum("Entity", entityID), logwrap.Datum("StateClass", s.Str("state_class")), logwrap.Datum("DeviceClass", s.Str("device_class")))
		return
	}

	var value any = s.Value
	if signedDecimal.MatchString(s.Value) {
		f, _ := strconv.ParseFloat(s.Value, 64)
		value = f
	}

	converted, ok := rule.Convert(value)
	if !ok {
		// Non-numeric sentinels such as "unknown" produce no write.
		return
	}

	if err := node.SetAttribute(rule.Cluster, rule.Attribute, converted); err != nil {
		d.logger.LogError(ctx, "Failed to write sensor attribute.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
	}
}

func (d *Dispatcher) applyBinarySensor(ctx context.Context, entityID string, node *endpoint.Node, s *hass.State) {
	rule, found := d.tables.Binary(s.Str("device_class"))
	if !found {
		d.logger.LogWarn(ctx, "Unsupported binary sensor class.", logwrap.Datum("Entity", entityID), logwrap.Datum("DeviceClass", s.Str("device_class")))
		return
	}

	value := rule.Off
	if s.Value == "on" {
		value = rule.On
	}

	if err := node.SetAttribute(rule.Cluster, rule.Attribute, value); err != nil {
		d.logger.LogError(ctx, "Failed to write binary sensor attribute.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
	}
}

func (d *Dispatcher) applyEvent(ctx context.Context, entityID string, node *endpoint.Node, s *hass.State) {
	rule, found := d.tables.Trigger(s.Str("event_type"))
	if !found {
		d.logger.LogWarn(ctx, "Unsupported event type.", logwrap.Datum("Entity", entityID), logwrap.Datum("EventType", s.Str("event_type")))
		return
	}

	if err := node.FireTrigger(rule.Cluster, rule.Event); err != nil {
		d.logger.LogError(ctx, "Failed to fire trigger.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
	}
}

func (d *Dispatcher) applyGeneric(ctx context.Context, entityID string, node *endpoint.Node, domain string, s *hass.State) {
	matched := d.tables.StatesFor(domain, s.Value)
	if len(matched) == 0 {
		d.logger.LogWarn(ctx, "Unsupported state for domain.", logwrap.Datum("Domain", domain), logwrap.Datum("State", s.Value), logwrap.Datum("Entity", entityID))
	}

	for _, r := range matched {
		if err := node.SetAttribute(r.Cluster, r.Attribute, r.Value); err != nil {
			d.logger.LogError(ctx, "Failed to write state attribute.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
		}
	}

	// An off light or fan reports stale levels and colors; the retained
	// last-on values stay in place instead.
	if (domain == "light" || domain == "fan") && s.Value == "off" {
		return
	}

	for _, r := range d.tables.AttributesFor(domain) {
		raw, present := s.Attribute(r.Source)
		if !present || raw == nil {
			continue
		}

		converted, ok := r.Convert(raw)
		if !ok {
			continue
		}

		if err := node.SetAttribute(r.Cluster, r.Attribute, converted); err != nil {
			d.logger.LogError(ctx, "Failed to write converted attribute.", logwrap.Datum("Entity", entityID), logwrap.Datum("Source", r.Source), logwrap.Err(err))
		}
	}
}
