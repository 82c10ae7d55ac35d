package tables

import (
	"math"

	"github.com/habridge/habridge/matter"
)

func boolPtr(v bool) *bool { return &v }

// number coerces a payload or state attribute value to a float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	}

	return 0, false
}

func scaled(factor float64) func(any) (any, bool) {
	return func(v any) (any, bool) {
		f, ok := number(v)
		if !ok {
			return nil, false
		}

		return int(math.Round(f * factor)), true
	}
}

// brightnessToLevel converts 1..255 brightness to a 1..254 level.
func brightnessToLevel(v any) (any, bool) {
	f, ok := number(v)
	if !ok {
		return nil, false
	}

	return int(math.Max(1, math.Round(f*254/255))), true
}

// luxToMeasured converts lux to the logarithmic illuminance encoding.
func luxToMeasured(v any) (any, bool) {
	f, ok := number(v)
	if !ok || f <= 0 {
		return nil, false
	}

	return int(math.Round(10000*math.Log10(f) + 1)), true
}

// positionToLift converts an open-percentage (100 = fully open) to the
// protocol's lift hundredths (10000 = fully closed).
func positionToLift(v any) (any, bool) {
	f, ok := number(v)
	if !ok {
		return nil, false
	}

	return int(math.Round((100 - f) * 100)), true
}

func hsHue(v any) (any, bool) {
	hs, ok := v.([]any)
	if !ok || len(hs) != 2 {
		return nil, false
	}

	h, ok := number(hs[0])
	if !ok {
		return nil, false
	}

	return int(math.Round(h * 254 / 360)), true
}

func hsSaturation(v any) (any, bool) {
	hs, ok := v.([]any)
	if !ok || len(hs) != 2 {
		return nil, false
	}

	s, ok := number(hs[1])
	if !ok {
		return nil, false
	}

	return int(math.Round(s * 254 / 100)), true
}

func passNumber(key string, target string) func(map[string]any) map[string]any {
	return func(payload map[string]any) map[string]any {
		if f, ok := number(payload[key]); ok {
			return map[string]any{target: f}
		}

		return nil
	}
}

func levelPayloadToBrightness(payload map[string]any) map[string]any {
	if f, ok := number(payload["level"]); ok {
		return map[string]any{"brightness": int(math.Round(f * 255 / 254))}
	}

	return nil
}

// Default returns the process-wide conversion rule set. Source order is
// load-bearing: lookups take the first structural match.
func Default() *Tables {
	return &Tables{
		Commands: []CommandRule{
			{Domain: "light", Command: "on", Service: "turn_on", Transition: true},
			{Domain: "light", Command: "off", Service: "turn_off", Transition: true},
			{Domain: "light", Command: "toggle", Service: "toggle", Transition: true},
			{Domain: "light", Command: "moveToLevel", Service: "turn_on", Data: levelPayloadToBrightness, Transition: true},
			{Domain: "light", Command: "moveToLevelWithOnOff", Service: "turn_on", Data: levelPayloadToBrightness, Transition: true},
			{Domain: "light", Command: "moveToColorTemperature", Service: "turn_on", Data: passNumber("colorTemperatureMireds", "color_temp"), Transition: true},
			{Domain: "light", Command: "moveToHueAndSaturation", Service: "turn_on", Data: func(p map[string]any) map[string]any {
				h, hok := number(p["hue"])
				s, sok := number(p["saturation"])
				if !hok || !sok {
					return nil
				}
				return map[string]any{"hs_color": []any{math.Round(h * 360 / 254), math.Round(s * 100 / 254)}}
			}, Transition: true},
			{Domain: "light", Command: "moveToColor", Service: "turn_on", Data: func(p map[string]any) map[string]any {
				x, xok := number(p["colorX"])
				y, yok := number(p["colorY"])
				if !xok || !yok {
					return nil
				}
				return map[string]any{"xy_color": []any{x / 65536, y / 65536}}
			}, Transition: true},

			{Domain: "switch", Command: "on", Service: "turn_on"},
			{Domain: "switch", Command: "off", Service: "turn_off"},
			{Domain: "switch", Command: "toggle", Service: "toggle"},

			{Domain: "input_boolean", Command: "on", Service: "turn_on"},
			{Domain: "input_boolean", Command: "off", Service: "turn_off"},
			{Domain: "input_boolean", Command: "toggle", Service: "toggle"},

			{Domain: "cover", Command: "upOrOpen", Service: "open_cover"},
			{Domain: "cover", Command: "downOrClose", Service: "close_cover"},
			{Domain: "cover", Command: "stopMotion", Service: "stop_cover"},
			{Domain: "cover", Command: "goToLiftPercentage", Service: "set_cover_position", Data: func(p map[string]any) map[string]any {
				if f, ok := number(p["liftPercent100thsValue"]); ok {
					return map[string]any{"position": int(math.Round(100 - f/100))}
				}
				return nil
			}},

			{Domain: "fan", Command: "on", Service: "turn_on"},
			{Domain: "fan", Command: "off", Service: "turn_off"},

			{Domain: "lock", Command: "lockDoor", Service: "lock"},
			{Domain: "lock", Command: "unlockDoor", Service: "unlock"},

			{Domain: "scene", Command: "on", Service: "turn_on"},
			{Domain: "script", Command: "on", Service: "turn_on"},
			{Domain: "automation", Command: "on", Service: "trigger"},
			{Domain: "button", Command: "on", Service: "press"},
			{Domain: "input_button", Command: "on", Service: "press"},
		},

		States: []StateRule{
			{Domain: "switch", State: "on", Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, Value: true},
			{Domain: "switch", State: "off", Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, Value: false},
			{Domain: "input_boolean", State: "on", Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, Value: true},
			{Domain: "input_boolean", State: "off", Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, Value: false},
			{Domain: "light", State: "on", Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, Value: true},
			{Domain: "light", State: "off", Cluster: matter.ClusterOnOff, Attribute: matter.AttrOnOff, Value: false},
			{Domain: "fan", State: "on", Cluster: matter.ClusterFanControl, Attribute: matter.AttrFanMode, Value: 1},
			{Domain: "fan", State: "off", Cluster: matter.ClusterFanControl, Attribute: matter.AttrFanMode, Value: 0},
			{Domain: "cover", State: "opening", Cluster: matter.ClusterWindowCovering, Attribute: matter.AttrOperationalStatus, Value: 1},
			{Domain: "cover", State: "closing", Cluster: matter.ClusterWindowCovering, Attribute: matter.AttrOperationalStatus, Value: 2},
			{Domain: "cover", State: "open", Cluster: matter.ClusterWindowCovering, Attribute: matter.AttrOperationalStatus, Value: 0},
			{Domain: "cover", State: "closed", Cluster: matter.ClusterWindowCovering, Attribute: matter.AttrOperationalStatus, Value: 0},
			{Domain: "lock", State: "locked", Cluster: matter.ClusterDoorLock, Attribute: matter.AttrLockState, Value: 1},
			{Domain: "lock", State: "unlocked", Cluster: matter.ClusterDoorLock, Attribute: matter.AttrLockState, Value: 2},
			{Domain: "lock", State: "jammed", Cluster: matter.ClusterDoorLock, Attribute: matter.AttrLockState, Value: 0},
			{Domain: "climate", State: "off", Cluster: matter.ClusterThermostat, Attribute: matter.AttrSystemMode, Value: 0},
			{Domain: "climate", State: "auto", Cluster: matter.ClusterThermostat, Attribute: matter.AttrSystemMode, Value: 1},
			{Domain: "climate", State: "heat_cool", Cluster: matter.ClusterThermostat, Attribute: matter.AttrSystemMode, Value: 1},
			{Domain: "climate", State: "cool", Cluster: matter.ClusterThermostat, Attribute: matter.AttrSystemMode, Value: 3},
			{Domain: "climate", State: "heat", Cluster: matter.ClusterThermostat, Attribute: matter.AttrSystemMode, Value: 4},
		},

		Attributes: []AttributeRule{
			{Domain: "light", Source: "brightness", Cluster: matter.ClusterLevelControl, Attribute: matter.AttrCurrentLevel, Convert: brightnessToLevel},
			{Domain: "light", Source: "color_temp", Cluster: matter.ClusterColorControl, Attribute: matter.AttrColorTemperatureMireds, Convert: scaled(1)},
			{Domain: "light", Source: "hs_color", Cluster: matter.ClusterColorControl, Attribute: matter.AttrCurrentHue, Convert: hsHue},
			{Domain: "light", Source: "hs_color", Cluster: matter.ClusterColorControl, Attribute: matter.AttrCurrentSaturation, Convert: hsSaturation},
			{Domain: "cover", Source: "current_position", Cluster: matter.ClusterWindowCovering, Attribute: matter.AttrCurrentPositionLiftPercent100ths, Convert: positionToLift},
			{Domain: "fan", Source: "percentage", Cluster: matter.ClusterFanControl, Attribute: matter.AttrPercentCurrent, Convert: scaled(1)},
			{Domain: "climate", Source: "current_temperature", Cluster: matter.ClusterThermostat, Attribute: matter.AttrLocalTemperature, Convert: scaled(100)},
			{Domain: "climate", Source: "temperature", Cluster: matter.ClusterThermostat, Attribute: matter.AttrOccupiedHeatingSetpoint, Convert: scaled(100)},
		},

		Sensors: []SensorRule{
			{StateClass: "measurement", DeviceClass: "temperature", Cluster: matter.ClusterTemperatureMeasurement, Attribute: matter.AttrMeasuredValue, Convert: scaled(100)},
			{StateClass: "measurement", DeviceClass: "humidity", Cluster: matter.ClusterRelativeHumidityMeasurement, Attribute: matter.AttrMeasuredValue, Convert: scaled(100)},
			{StateClass: "measurement", DeviceClass: "pressure", Cluster: matter.ClusterPressureMeasurement, Attribute: matter.AttrMeasuredValue, Convert: scaled(1)},
			{StateClass: "measurement", DeviceClass: "illuminance", Cluster: matter.ClusterIlluminanceMeasurement, Attribute: matter.AttrMeasuredValue, Convert: luxToMeasured},
			{StateClass: "measurement", DeviceClass: "battery", Cluster: matter.ClusterPowerSource, Attribute: matter.AttrBatPercentRemaining, Convert: scaled(2)},
			{StateClass: "measurement", DeviceClass: "voltage", Battery: boolPtr(true), Cluster: matter.ClusterPowerSource, Attribute: matter.AttrBatVoltage, Convert: scaled(1000)},
			{StateClass: "measurement", DeviceClass: "voltage", Battery: boolPtr(false), Cluster: matter.ClusterElectricalPowerMeasurement, Attribute: matter.AttrVoltage, Convert: scaled(1000)},
		},

		Binaries: []BinaryRule{
			{DeviceClass: "door", Cluster: matter.ClusterBooleanState, Attribute: matter.AttrStateValue, On: false, Off: true},
			{DeviceClass: "window", Cluster: matter.ClusterBooleanState, Attribute: matter.AttrStateValue, On: false, Off: true},
			{DeviceClass: "garage_door", Cluster: matter.ClusterBooleanState, Attribute: matter.AttrStateValue, On: false, Off: true},
			{DeviceClass: "opening", Cluster: matter.ClusterBooleanState, Attribute: matter.AttrStateValue, On: false, Off: true},
			{DeviceClass: "motion", Cluster: matter.ClusterOccupancySensing, Attribute: matter.AttrOccupancy, On: 1, Off: 0},
			{DeviceClass: "occupancy", Cluster: matter.ClusterOccupancySensing, Attribute: matter.AttrOccupancy, On: 1, Off: 0},
			{DeviceClass: "presence", Cluster: matter.ClusterOccupancySensing, Attribute: matter.AttrOccupancy, On: 1, Off: 0},
		},

		Triggers: []TriggerRule{
			{EventType: "press", Cluster: matter.ClusterSwitch, Event: matter.EventInitialPress},
			{EventType: "single", Cluster: matter.ClusterSwitch, Event: matter.EventShortRelease},
			{EventType: "release", Cluster: matter.ClusterSwitch, Event: matter.EventShortRelease},
			{EventType: "double", Cluster: matter.ClusterSwitch, Event: matter.EventMultiPressComplete},
			{EventType: "long", Cluster: matter.ClusterSwitch, Event: matter.EventLongPress},
			{EventType: "hold", Cluster: matter.ClusterSwitch, Event: matter.EventLongPress},
		},
	}
}
