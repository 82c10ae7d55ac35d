package habridge

import (
	"context"
	"math"

	"github.com/habridge/habridge/endpoint"
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/matter"
	"github.com/habridge/habridge/tables"
	"github.com/shimmeringbee/logwrap"
)

// HandleCommand services one inbound protocol command addressed at the
// entity a node was bound to during composition. Unsupported commands are
// dropped with a log entry, never an error; service call failures are
// returned to the caller.
func (d *Dispatcher) HandleCommand(ctx context.Context, entityID string, command string, payload map[string]any) error {
	domain, err := hass.Domain(entityID)
	if err != nil {
		d.logger.LogWarn(ctx, "Command for malformed entity id ignored.", logwrap.Datum("Entity", entityID), logwrap.Err(err))
		return nil
	}

	_, node, found := d.registry.Resolve(entityID)
	if !found {
		d.logger.LogWarn(ctx, "Command for unbound entity ignored.", logwrap.Datum("Entity", entityID), logwrap.Datum("Command", command))
		return nil
	}

	rule, supported := d.tables.Command(domain, command)
	if !supported {
		d.logger.LogWarn(ctx, "Unsupported command for domain.", logwrap.Datum("Domain", domain), logwrap.Datum("Command", command), logwrap.Datum("Entity", entityID))
		return nil
	}

	switch domain {
	case "cover":
		if service, handled := coverPositionShortcut(command, payload); handled {
			return d.caller.CallService(ctx, domain, service, entityID, nil)
		}
	case "light":
		return d.handleLightCommand(ctx, entityID, node, command, payload, rule)
	}

	return d.caller.CallService(ctx, domain, rule.Service, entityID, d.serviceData(rule, payload))
}

// serviceData derives service call data from the rule and payload,
// appending a transition when the service accepts one.
func (d *Dispatcher) serviceData(rule tables.CommandRule, payload map[string]any) map[string]any {
	var data map[string]any
	if rule.Data != nil {
		data = rule.Data(payload)
	}

	if rule.Transition {
		if ticks, ok := numeric(payload["transitionTime"]); ok && ticks > 0 {
			if data == nil {
				data = map[string]any{}
			}

			data["transition"] = ticks / transitionTickDivisor
		}
	}

	return data
}

// coverPositionShortcut rewrites full-travel position requests to the
// dedicated open and close services, which honor the device's calibrated
// travel limits where a raw position write would not.
func coverPositionShortcut(command string, payload map[string]any) (string, bool) {
	if command != "goToLiftPercentage" {
		return "", false
	}

	lift, ok := numeric(payload["liftPercent100thsValue"])
	if !ok {
		return "", false
	}

	switch lift {
	case 0:
		return "open_cover", true
	case 10000:
		return "close_cover", true
	}

	return "", false
}

// handleLightCommand applies the light command policy: a turn-on or a
// level command that would power an off light is synthesized into a full
// service call carrying the retained level and color, a level at or below
// the minimum becomes a turn-off, and level or color changes against an
// off light are retained on the node without touching the external light.
func (d *Dispatcher) handleLightCommand(ctx context.Context, entityID string, node *endpoint.Node, command string, payload map[string]any, rule tables.CommandRule) error {
	on := lightIsOn(node)

	switch command {
	case "on", "toggle":
		if !on {
			return d.caller.CallService(ctx, "light", "turn_on", entityID, d.turnOnData(node, nil, payload))
		}
	case "moveToLevel", "moveToLevelWithOnOff":
		level, ok := numeric(payload["level"])
		if !ok {
			d.logger.LogWarn(ctx, "Level command without a level ignored.", logwrap.Datum("Entity", entityID), logwrap.Datum("Command", command))
			return nil
		}

		if level <= lightMinLevel(node) {
			return d.caller.CallService(ctx, "light", "turn_off", entityID, d.serviceData(tables.CommandRule{Transition: true}, payload))
		}

		if !on {
			if command == "moveToLevel" {
				return d.retainPending(node, command, payload)
			}

			brightness := int(math.Round(level * 255 / 254))
			return d.caller.CallService(ctx, "light", "turn_on", entityID, d.turnOnData(node, &brightness, payload))
		}
	case "moveToColorTemperature", "moveToHueAndSaturation", "moveToColor":
		if !on {
			return d.retainPending(node, command, payload)
		}
	}

	return d.caller.CallService(ctx, "light", rule.Service, entityID, d.serviceData(rule, payload))
}

// retainPending records a suppressed level or color change on the node so
// a later synthesized turn-on carries it.
func (d *Dispatcher) retainPending(node *endpoint.Node, command string, payload map[string]any) error {
	switch command {
	case "moveToLevel":
		if level, ok := numeric(payload["level"]); ok {
			return node.SetAttribute(matter.ClusterLevelControl, matter.AttrCurrentLevel, int(level))
		}
	case "moveToColorTemperature":
		if mireds, ok := numeric(payload["colorTemperatureMireds"]); ok {
			if err := node.SetAttribute(matter.ClusterColorControl, matter.AttrColorMode, matter.ColorModeColorTemperature); err != nil {
				return err
			}

			return node.SetAttribute(matter.ClusterColorControl, matter.AttrColorTemperatureMireds, int(mireds))
		}
	case "moveToHueAndSaturation":
		hue, hok := numeric(payload["hue"])
		saturation, sok := numeric(payload["saturation"])
		if hok && sok {
			if err := node.SetAttribute(matter.ClusterColorControl, matter.AttrColorMode, matter.ColorModeHueSaturation); err != nil {
				return err
			}

			if err := node.SetAttribute(matter.ClusterColorControl, matter.AttrCurrentHue, int(hue)); err != nil {
				return err
			}

			return node.SetAttribute(matter.ClusterColorControl, matter.AttrCurrentSaturation, int(saturation))
		}
	case "moveToColor":
		x, xok := numeric(payload["colorX"])
		y, yok := numeric(payload["colorY"])
		if xok && yok {
			if err := node.SetAttribute(matter.ClusterColorControl, matter.AttrColorMode, matter.ColorModeXY); err != nil {
				return err
			}

			if err := node.SetAttribute(matter.ClusterColorControl, matter.AttrCurrentX, int(x)); err != nil {
				return err
			}

			return node.SetAttribute(matter.ClusterColorControl, matter.AttrCurrentY, int(y))
		}
	}

	return nil
}

// turnOnData assembles the synthesized full turn-on call from the node's
// retained level and active color mode. A brightness override takes the
// place of the retained level.
func (d *Dispatcher) turnOnData(node *endpoint.Node, brightness *int, payload map[string]any) map[string]any {
	data := map[string]any{}

	if brightness != nil {
		data["brightness"] = *brightness
	} else if level, found := node.Attribute(matter.ClusterLevelControl, matter.AttrCurrentLevel); found {
		if f, ok := numeric(level); ok {
			data["brightness"] = int(math.Round(f * 255 / 254))
		}
	}

	if mode, found := node.Attribute(matter.ClusterColorControl, matter.AttrColorMode); found {
		m, _ := numeric(mode)

		switch int(m) {
		case matter.ColorModeColorTemperature:
			if v, found := node.Attribute(matter.ClusterColorControl, matter.AttrColorTemperatureMireds); found {
				if f, ok := numeric(v); ok {
					data["color_temp"] = int(f)
				}
			}
		case matter.ColorModeHueSaturation:
			hue, hFound := node.Attribute(matter.ClusterColorControl, matter.AttrCurrentHue)
			saturation, sFound := node.Attribute(matter.ClusterColorControl, matter.AttrCurrentSaturation)
			if hFound && sFound {
				h, hok := numeric(hue)
				s, sok := numeric(saturation)
				if hok && sok {
					data["hs_color"] = []any{math.Round(h * 360 / 254), math.Round(s * 100 / 254)}
				}
			}
		case matter.ColorModeXY:
			x, xFound := node.Attribute(matter.ClusterColorControl, matter.AttrCurrentX)
			y, yFound := node.Attribute(matter.ClusterColorControl, matter.AttrCurrentY)
			if xFound && yFound {
				xf, xok := numeric(x)
				yf, yok := numeric(y)
				if xok && yok {
					data["xy_color"] = []any{xf / 65536, yf / 65536}
				}
			}
		}
	}

	if ticks, ok := numeric(payload["transitionTime"]); ok && ticks > 0 {
		data["transition"] = ticks / transitionTickDivisor
	}

	return data
}

func lightIsOn(node *endpoint.Node) bool {
	v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
	on, ok := v.(bool)
	return ok && on
}

func lightMinLevel(node *endpoint.Node) float64 {
	if v, found := node.Attribute(matter.ClusterLevelControl, matter.AttrMinLevel); found {
		if f, ok := numeric(v); ok {
			return f
		}
	}

	return 1
}
