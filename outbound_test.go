package habridge

import (
	"context"
	"testing"

	"github.com/habridge/habridge/endpoint"
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/matter"
	"github.com/stretchr/testify/assert"
)

type recordedTrigger struct {
	cluster matter.ClusterID
	event   string
}

type recordingObserver struct {
	triggers []recordedTrigger
}

func (r *recordingObserver) AttributeChanged(_ *endpoint.Node, _ matter.ClusterID, _ string, _ any) {
}

func (r *recordingObserver) TriggerFired(_ *endpoint.Node, cluster matter.ClusterID, event string) {
	r.triggers = append(r.triggers, recordedTrigger{cluster: cluster, event: event})
}

func TestDispatcher_HandleStateChange(t *testing.T) {
	t.Run("a change for an unbridged entity is dropped", func(t *testing.T) {
		d, _, _ := newTestDispatcher()

		assert.NotPanics(t, func() {
			d.HandleStateChange(context.Background(), "light.ghost", nil, &hass.State{Value: "on"})
		})
	})

	t.Run("an unavailable state marks the device unreachable and writes nothing else", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindLight(t, registry, "light.hall", false, false)

		d.HandleStateChange(context.Background(), "light.hall", &hass.State{Value: "off"}, &hass.State{Value: hass.StateUnavailable})

		device, _, _ := registry.Resolve("light.hall")
		assert.False(t, device.Tree.Reachable())

		v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, false, v)
	})

	t.Run("recovering from unavailable restores reachability before applying state", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindLight(t, registry, "light.hall", false, false)

		d.HandleStateChange(context.Background(), "light.hall", &hass.State{Value: "on"}, &hass.State{Value: hass.StateUnavailable})
		d.HandleStateChange(context.Background(), "light.hall", &hass.State{Value: hass.StateUnavailable}, &hass.State{Value: "on"})

		device, _, _ := registry.Resolve("light.hall")
		assert.True(t, device.Tree.Reachable())

		v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, true, v)
	})

	t.Run("a removed entity state marks the device unreachable", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		bindLight(t, registry, "light.hall", true, false)

		d.HandleStateChange(context.Background(), "light.hall", &hass.State{Value: "on"}, nil)

		device, _, _ := registry.Resolve("light.hall")
		assert.False(t, device.Tree.Reachable())
	})

	t.Run("a malformed entity id is dropped after reachability handling", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "kitchen", func(b *endpoint.Builder) {
			b.AddDeviceTypes("kitchen", matter.OnOffPlugInUnit)
		})

		assert.NotPanics(t, func() {
			d.HandleStateChange(context.Background(), "kitchen", &hass.State{Value: hass.StateUnavailable}, &hass.State{Value: "on"})
		})

		device, _, _ := registry.Resolve("kitchen")
		assert.True(t, device.Tree.Reachable())

		v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, false, v)
	})

	t.Run("one-shot domains never write state", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "automation.morning", func(b *endpoint.Builder) {
			b.AddDeviceTypes("automation.morning", matter.OnOffPlugInUnit)
		})

		d.HandleStateChange(context.Background(), "automation.morning", &hass.State{Value: "off"}, &hass.State{Value: "on"})

		v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, false, v)
	})
}

func TestDispatcher_HandleStateChange_Generic(t *testing.T) {
	t.Run("a switch state maps to the on/off attribute", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "switch.garage", func(b *endpoint.Builder) {
			b.AddDeviceTypes("switch.garage", matter.OnOffPlugInUnit)
		})

		d.HandleStateChange(context.Background(), "switch.garage", &hass.State{Value: "off"}, &hass.State{Value: "on"})

		v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, true, v)
	})

	t.Run("an unmapped state writes nothing", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "switch.garage", func(b *endpoint.Builder) {
			b.AddDeviceTypes("switch.garage", matter.OnOffPlugInUnit)
		})

		d.HandleStateChange(context.Background(), "switch.garage", &hass.State{Value: "on"}, &hass.State{Value: "blinking"})

		v, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, false, v)
	})

	t.Run("a lit light applies converted attributes", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindLight(t, registry, "light.hall", false, false)

		d.HandleStateChange(context.Background(), "light.hall", &hass.State{Value: "off"}, &hass.State{
			Value:      "on",
			Attributes: map[string]any{"brightness": 255},
		})

		on, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, true, on)

		level, _ := node.Attribute(matter.ClusterLevelControl, matter.AttrCurrentLevel)
		assert.Equal(t, 254, level)
	})

	t.Run("an off light keeps its retained level", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindLight(t, registry, "light.hall", true, false)

		assert.NoError(t, node.SetAttribute(matter.ClusterLevelControl, matter.AttrCurrentLevel, 200))

		d.HandleStateChange(context.Background(), "light.hall", &hass.State{Value: "on"}, &hass.State{
			Value:      "off",
			Attributes: map[string]any{"brightness": 0},
		})

		on, _ := node.Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.Equal(t, false, on)

		level, _ := node.Attribute(matter.ClusterLevelControl, matter.AttrCurrentLevel)
		assert.Equal(t, 200, level)
	})
}

func TestDispatcher_HandleStateChange_Sensors(t *testing.T) {
	t.Run("a temperature reading scales to hundredths", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "sensor.porch", func(b *endpoint.Builder) {
			b.AddDeviceTypes("sensor.porch", matter.TemperatureSensor)
		})

		d.HandleStateChange(context.Background(), "sensor.porch", nil, &hass.State{
			Value:      "21.5",
			Attributes: map[string]any{"state_class": "measurement", "device_class": "temperature"},
		})

		v, _ := node.Attribute(matter.ClusterTemperatureMeasurement, matter.AttrMeasuredValue)
		assert.Equal(t, 2150, v)
	})

	t.Run("a non-numeric sentinel produces no write", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "sensor.porch", func(b *endpoint.Builder) {
			b.AddDeviceTypes("sensor.porch", matter.TemperatureSensor)
		})

		d.HandleStateChange(context.Background(), "sensor.porch", nil, &hass.State{
			Value:      "unknown",
			Attributes: map[string]any{"state_class": "measurement", "device_class": "temperature"},
		})

		_, found := node.Attribute(matter.ClusterTemperatureMeasurement, matter.AttrMeasuredValue)
		assert.False(t, found)
	})

	t.Run("a voltage reading on a battery node targets the battery capability", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "sensor.remote_voltage", func(b *endpoint.Builder) {
			b.AddDeviceTypes("sensor.remote_voltage", matter.PowerSource)
		})

		d.HandleStateChange(context.Background(), "sensor.remote_voltage", nil, &hass.State{
			Value:      "3.1",
			Attributes: map[string]any{"state_class": "measurement", "device_class": "voltage"},
		})

		v, _ := node.Attribute(matter.ClusterPowerSource, matter.AttrBatVoltage)
		assert.Equal(t, 3100, v)
	})

	t.Run("a voltage reading elsewhere targets the power measurement", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "sensor.mains_voltage", func(b *endpoint.Builder) {
			b.AddModule("sensor.mains_voltage", matter.ClusterElectricalPowerMeasurement)
		})

		d.HandleStateChange(context.Background(), "sensor.mains_voltage", nil, &hass.State{
			Value:      "230",
			Attributes: map[string]any{"state_class": "measurement", "device_class": "voltage"},
		})

		v, _ := node.Attribute(matter.ClusterElectricalPowerMeasurement, matter.AttrVoltage)
		assert.Equal(t, 230000, v)
	})

	t.Run("an inverted contact class writes false when detecting", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "binary_sensor.front_door", func(b *endpoint.Builder) {
			b.AddDeviceTypes("binary_sensor.front_door", matter.ContactSensor)
		})

		d.HandleStateChange(context.Background(), "binary_sensor.front_door", nil, &hass.State{
			Value:      "on",
			Attributes: map[string]any{"device_class": "door"},
		})

		v, _ := node.Attribute(matter.ClusterBooleanState, matter.AttrStateValue)
		assert.Equal(t, false, v)
	})

	t.Run("an occupancy class writes the occupied flag", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "binary_sensor.landing", func(b *endpoint.Builder) {
			b.AddDeviceTypes("binary_sensor.landing", matter.OccupancySensor)
		})

		d.HandleStateChange(context.Background(), "binary_sensor.landing", nil, &hass.State{
			Value:      "on",
			Attributes: map[string]any{"device_class": "motion"},
		})

		v, _ := node.Attribute(matter.ClusterOccupancySensing, matter.AttrOccupancy)
		assert.Equal(t, 1, v)
	})
}

func TestDispatcher_HandleStateChange_Events(t *testing.T) {
	t.Run("an emitted event fires a one-shot trigger", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		node := bindEndpoint(t, registry, "event.button", func(b *endpoint.Builder) {
			b.AddDeviceTypes("event.button", matter.GenericSwitch)
		})

		observer := &recordingObserver{}
		device, _, _ := registry.Resolve("event.button")
		device.Tree.SetObserver(observer)

		d.HandleStateChange(context.Background(), "event.button", nil, &hass.State{
			Value:      "2026-08-23T10:00:00+00:00",
			Attributes: map[string]any{"event_type": "single"},
		})

		assert.Equal(t, []recordedTrigger{{cluster: matter.ClusterSwitch, event: matter.EventShortRelease}}, observer.triggers)

		v, _ := node.Attribute(matter.ClusterSwitch, matter.AttrCurrentPosition)
		assert.Equal(t, 0, v)
	})

	t.Run("an unknown event type fires nothing", func(t *testing.T) {
		d, registry, _ := newTestDispatcher()
		bindEndpoint(t, registry, "event.button", func(b *endpoint.Builder) {
			b.AddDeviceTypes("event.button", matter.GenericSwitch)
		})

		observer := &recordingObserver{}
		device, _, _ := registry.Resolve("event.button")
		device.Tree.SetObserver(observer)

		d.HandleStateChange(context.Background(), "event.button", nil, &hass.State{
			Value:      "2026-08-23T10:00:00+00:00",
			Attributes: map[string]any{"event_type": "quadruple"},
		})

		assert.Empty(t, observer.triggers)
	})
}
