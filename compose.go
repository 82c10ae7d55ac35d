package habridge

import (
	"context"
	"math"

	"github.com/habridge/habridge/endpoint"
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/matter"
	"github.com/shimmeringbee/logwrap"
)

// command binds an inbound protocol command to the dispatch engine,
// targeted at the entity the endpoint was seeded from.
func (b *Bridge) command(entityID string, cluster matter.ClusterID, name string) endpoint.CommandBinding {
	return endpoint.CommandBinding{
		Cluster: cluster,
		Command: name,
		Handler: func(ctx context.Context, _ *endpoint.Node, payload map[string]any) error {
			return b.dispatcher.HandleCommand(ctx, entityID, name, payload)
		},
	}
}

// seedEntity declares one entity's endpoint on the builder: device type
// markers, initial module state and dispatch bindings, derived from the
// entity's domain and current state. Returns false for domains the bridge
// cannot represent.
func (b *Bridge) seedEntity(ctx context.Context, builder *endpoint.Builder, e hass.Entity) bool {
	key := e.ID
	seeded := false

	switch e.Domain() {
	case "light":
		seeded = b.seedLight(builder, key, e)
	case "switch", "input_boolean":
		seeded = b.seedSwitch(builder, key, e)
	case "sensor":
		seeded = b.seedSensor(ctx, builder, key, e)
	case "binary_sensor":
		seeded = b.seedBinarySensor(ctx, builder, key, e)
	case "event":
		builder.AddDeviceTypes(key, matter.GenericSwitch)
		seeded = true
	case "cover":
		seeded = b.seedCover(builder, key, e)
	case "fan":
		seeded = b.seedFan(builder, key, e)
	case "lock":
		seeded = b.seedLock(builder, key, e)
	case "climate":
		seeded = b.seedClimate(builder, key, e)
	case "automation", "script", "scene", "button", "input_button":
		seeded = b.seedOneShot(builder, key)
	default:
		b.logger.LogInfo(ctx, "Unsupported domain, entity skipped.", logwrap.Datum("Entity", e.ID))
	}

	if seeded {
		if name := e.State.Str("friendly_name"); name != "" {
			builder.SetFriendlyName(key, name)
		}

		if len(e.Labels) > 0 {
			builder.SetTags(key, e.Labels...)
		}
	}

	return seeded
}

// lightCapabilities derives the level and color capabilities from the
// entity's supported color modes.
func lightCapabilities(s hass.State) (level bool, color bool, temp bool) {
	modes, _ := s.Attribute("supported_color_modes")
	list, _ := modes.([]any)

	for _, m := range list {
		switch m {
		case "brightness":
			level = true
		case "color_temp":
			level, temp = true, true
		case "hs", "xy", "rgb", "rgbw", "rgbww":
			level, color = true, true
		}
	}

	return level, color, temp
}

func (b *Bridge) seedLight(builder *endpoint.Builder, key string, e hass.Entity) bool {
	level, color, temp := lightCapabilities(e.State)

	deviceType := matter.OnOffLight
	switch {
	case color:
		deviceType = matter.ExtendedColorLight
	case temp:
		deviceType = matter.ColorTemperatureLight
	case level:
		deviceType = matter.DimmableLight
	}

	builder.AddDeviceTypes(key, deviceType)
	builder.AddModuleWithState(key, matter.ClusterOnOff, map[string]any{matter.AttrOnOff: e.State.Value == "on"})

	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "on"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "off"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "toggle"))

	if level {
		state := matter.DefaultState(matter.ClusterLevelControl)
		if v, found := e.State.Attribute("brightness"); found {
			if f, ok := numeric(v); ok {
				state[matter.AttrCurrentLevel] = int(math.Max(1, math.Round(f*254/255)))
			}
		}

		builder.AddModuleWithState(key, matter.ClusterLevelControl, state)
		builder.AddCommandBinding(key, b.command(key, matter.ClusterLevelControl, "moveToLevel"))
		builder.AddCommandBinding(key, b.command(key, matter.ClusterLevelControl, "moveToLevelWithOnOff"))
	}

	if color || temp {
		state := matter.DefaultState(matter.ClusterColorControl)

		switch e.State.Str("color_mode") {
		case "color_temp":
			state[matter.AttrColorMode] = matter.ColorModeColorTemperature
			if v, found := e.State.Attribute("color_temp"); found {
				if f, ok := numeric(v); ok {
					state[matter.AttrColorTemperatureMireds] = int(f)
				}
			}
		case "hs":
			state[matter.AttrColorMode] = matter.ColorModeHueSaturation
			if hs, found := e.State.Attribute("hs_color"); found {
				if pair, ok := hs.([]any); ok && len(pair) == 2 {
					if h, ok := numeric(pair[0]); ok {
						state[matter.AttrCurrentHue] = int(math.Round(h * 254 / 360))
					}
					if s, ok := numeric(pair[1]); ok {
						state[matter.AttrCurrentSaturation] = int(math.Round(s * 254 / 100))
					}
				}
			}
		}

		builder.AddModuleWithState(key, matter.ClusterColorControl, state)

		if temp {
			builder.AddCommandBinding(key, b.command(key, matter.ClusterColorControl, "moveToColorTemperature"))
		}

		if color {
			builder.AddCommandBinding(key, b.command(key, matter.ClusterColorControl, "moveToHueAndSaturation"))
			builder.AddCommandBinding(key, b.command(key, matter.ClusterColorControl, "moveToColor"))
		}
	}

	return true
}

func (b *Bridge) seedSwitch(builder *endpoint.Builder, key string, e hass.Entity) bool {
	builder.AddDeviceTypes(key, matter.OnOffPlugInUnit)
	builder.AddModuleWithState(key, matter.ClusterOnOff, map[string]any{matter.AttrOnOff: e.State.Value == "on"})

	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "on"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "off"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "toggle"))

	return true
}

func (b *Bridge) seedSensor(ctx context.Context, builder *endpoint.Builder, key string, e hass.Entity) bool {
	switch e.State.Str("device_class") {
	case "temperature":
		builder.AddDeviceTypes(key, matter.TemperatureSensor)
	case "humidity":
		builder.AddDeviceTypes(key, matter.HumiditySensor)
	case "pressure":
		builder.AddDeviceTypes(key, matter.PressureSensor)
	case "illuminance":
		builder.AddDeviceTypes(key, matter.LightSensor)
	case "battery":
		builder.AddDeviceTypes(key, matter.PowerSource)
	case "voltage":
		// A voltage reading targets the battery capability when it ends
		// up on a battery-backed node, the power measurement otherwise.
		builder.AddModule(key, matter.ClusterElectricalPowerMeasurement)
	default:
		b.logger.LogInfo(ctx, "Unsupported sensor class, entity skipped.", logwrap.Datum("Entity", e.ID))
		return false
	}

	return true
}

func (b *Bridge) seedBinarySensor(ctx context.Context, builder *endpoint.Builder, key string, e hass.Entity) bool {
	rule, found := b.tables.Binary(e.State.Str("device_class"))
	if !found {
		b.logger.LogInfo(ctx, "Unsupported binary sensor class, entity skipped.", logwrap.Datum("Entity", e.ID))
		return false
	}

	switch rule.Cluster {
	case matter.ClusterBooleanState:
		builder.AddDeviceTypes(key, matter.ContactSensor)
	case matter.ClusterOccupancySensing:
		builder.AddDeviceTypes(key, matter.OccupancySensor)
	}

	value := rule.Off
	if e.State.Value == "on" {
		value = rule.On
	}

	builder.AddModuleWithState(key, rule.Cluster, map[string]any{rule.Attribute: value})

	return true
}

func (b *Bridge) seedCover(builder *endpoint.Builder, key string, e hass.Entity) bool {
	builder.AddDeviceTypes(key, matter.WindowCovering)

	state := matter.DefaultState(matter.ClusterWindowCovering)
	if v, found := e.State.Attribute("current_position"); found {
		if f, ok := numeric(v); ok {
			state[matter.AttrCurrentPositionLiftPercent100ths] = int(math.Round((100 - f) * 100))
		}
	}
	builder.AddModuleWithState(key, matter.ClusterWindowCovering, state)

	builder.AddCommandBinding(key, b.command(key, matter.ClusterWindowCovering, "upOrOpen"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterWindowCovering, "downOrClose"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterWindowCovering, "stopMotion"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterWindowCovering, "goToLiftPercentage"))

	return true
}

func (b *Bridge) seedFan(builder *endpoint.Builder, key string, e hass.Entity) bool {
	builder.AddDeviceTypes(key, matter.Fan)

	state := matter.DefaultState(matter.ClusterFanControl)
	if e.State.Value == "on" {
		state[matter.AttrFanMode] = 1
	}
	if v, found := e.State.Attribute("percentage"); found {
		if f, ok := numeric(v); ok {
			state[matter.AttrPercentSetting] = int(f)
			state[matter.AttrPercentCurrent] = int(f)
		}
	}
	builder.AddModuleWithState(key, matter.ClusterFanControl, state)

	builder.AddCommandBinding(key, b.command(key, matter.ClusterFanControl, "on"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterFanControl, "off"))

	builder.AddSubscriptionBinding(key, endpoint.SubscriptionBinding{
		Cluster:   matter.ClusterFanControl,
		Attribute: matter.AttrPercentSetting,
		Listener: b.dispatcher.Listener(ServiceBinding{
			EntityID: key,
			Domain:   "fan",
			Service:  "set_percentage",
			DataKey:  "percentage",
			Convert: func(v any) any {
				f, ok := numeric(v)
				if !ok || f <= 0 {
					return nil
				}

				return int(f)
			},
			OffService: "turn_off",
		}),
	})

	return true
}

func (b *Bridge) seedLock(builder *endpoint.Builder, key string, e hass.Entity) bool {
	builder.AddDeviceTypes(key, matter.DoorLock)

	state := matter.DefaultState(matter.ClusterDoorLock)
	if e.State.Value == "unlocked" {
		state[matter.AttrLockState] = 2
	}
	builder.AddModuleWithState(key, matter.ClusterDoorLock, state)

	builder.AddCommandBinding(key, b.command(key, matter.ClusterDoorLock, "lockDoor"))
	builder.AddCommandBinding(key, b.command(key, matter.ClusterDoorLock, "unlockDoor"))

	return true
}

func (b *Bridge) seedClimate(builder *endpoint.Builder, key string, e hass.Entity) bool {
	builder.AddDeviceTypes(key, matter.Thermostat)

	state := map[string]any{}
	if v, found := e.State.Attribute("current_temperature"); found {
		if f, ok := numeric(v); ok {
			state[matter.AttrLocalTemperature] = int(math.Round(f * 100))
		}
	}
	if v, found := e.State.Attribute("temperature"); found {
		if f, ok := numeric(v); ok {
			state[matter.AttrOccupiedHeatingSetpoint] = int(math.Round(f * 100))
		}
	}
	builder.AddModuleWithState(key, matter.ClusterThermostat, state)

	builder.AddSubscriptionBinding(key, endpoint.SubscriptionBinding{
		Cluster:   matter.ClusterThermostat,
		Attribute: matter.AttrOccupiedHeatingSetpoint,
		Listener: b.dispatcher.Listener(ServiceBinding{
			EntityID: key,
			Domain:   "climate",
			Service:  "set_temperature",
			DataKey:  "temperature",
			Convert: func(v any) any {
				f, ok := numeric(v)
				if !ok {
					return nil
				}

				return f / 100
			},
		}),
	})

	return true
}

// seedOneShot represents an activatable entity with no persistent state as
// an on/off unit whose turn-on activates it.
func (b *Bridge) seedOneShot(builder *endpoint.Builder, key string) bool {
	builder.AddDeviceTypes(key, matter.OnOffPlugInUnit)
	builder.AddCommandBinding(key, b.command(key, matter.ClusterOnOff, "on"))

	return true
}
