package matter

// DeviceTypeID is the numeric code of a device type marker.
type DeviceTypeID uint16

// DeviceType is a coded marker declaring what kind of capability set an
// endpoint nominally exposes.
type DeviceType struct {
	Code DeviceTypeID
	Name string
}

const (
	RootNodeID              DeviceTypeID = 0x0016
	AggregatorID            DeviceTypeID = 0x000e
	BridgedNodeID           DeviceTypeID = 0x0013
	PowerSourceID           DeviceTypeID = 0x0011
	OnOffLightID            DeviceTypeID = 0x0100
	DimmableLightID         DeviceTypeID = 0x0101
	ColorTemperatureLightID DeviceTypeID = 0x010c
	ExtendedColorLightID    DeviceTypeID = 0x010d
	OnOffPlugInUnitID       DeviceTypeID = 0x010a
	DimmablePlugInUnitID    DeviceTypeID = 0x010b
	OnOffLightSwitchID      DeviceTypeID = 0x0103
	DimmerSwitchID          DeviceTypeID = 0x0104
	ColorDimmerSwitchID     DeviceTypeID = 0x0105
	GenericSwitchID         DeviceTypeID = 0x000f
	ContactSensorID         DeviceTypeID = 0x0015
	OccupancySensorID       DeviceTypeID = 0x0107
	LightSensorID           DeviceTypeID = 0x0106
	TemperatureSensorID     DeviceTypeID = 0x0302
	PressureSensorID        DeviceTypeID = 0x0305
	HumiditySensorID        DeviceTypeID = 0x0307
	WindowCoveringID        DeviceTypeID = 0x0202
	FanID                   DeviceTypeID = 0x002b
	ThermostatID            DeviceTypeID = 0x0301
	DoorLockID              DeviceTypeID = 0x000a
)

var (
	RootNode              = DeviceType{RootNodeID, "Root Node"}
	Aggregator            = DeviceType{AggregatorID, "Aggregator"}
	BridgedNode           = DeviceType{BridgedNodeID, "Bridged Node"}
	PowerSource           = DeviceType{PowerSourceID, "Power Source"}
	OnOffLight            = DeviceType{OnOffLightID, "On/Off Light"}
	DimmableLight         = DeviceType{DimmableLightID, "Dimmable Light"}
	ColorTemperatureLight = DeviceType{ColorTemperatureLightID, "Color Temperature Light"}
	ExtendedColorLight    = DeviceType{ExtendedColorLightID, "Extended Color Light"}
	OnOffPlugInUnit       = DeviceType{OnOffPlugInUnitID, "On/Off Plug-in Unit"}
	DimmablePlugInUnit    = DeviceType{DimmablePlugInUnitID, "Dimmable Plug-in Unit"}
	OnOffLightSwitch      = DeviceType{OnOffLightSwitchID, "On/Off Light Switch"}
	DimmerSwitch          = DeviceType{DimmerSwitchID, "Dimmer Switch"}
	ColorDimmerSwitch     = DeviceType{ColorDimmerSwitchID, "Color Dimmer Switch"}
	GenericSwitch         = DeviceType{GenericSwitchID, "Generic Switch"}
	ContactSensor         = DeviceType{ContactSensorID, "Contact Sensor"}
	OccupancySensor       = DeviceType{OccupancySensorID, "Occupancy Sensor"}
	LightSensor           = DeviceType{LightSensorID, "Light Sensor"}
	TemperatureSensor     = DeviceType{TemperatureSensorID, "Temperature Sensor"}
	PressureSensor        = DeviceType{PressureSensorID, "Pressure Sensor"}
	HumiditySensor        = DeviceType{HumiditySensorID, "Humidity Sensor"}
	WindowCovering        = DeviceType{WindowCoveringID, "Window Covering"}
	Fan                   = DeviceType{FanID, "Fan"}
	Thermostat            = DeviceType{ThermostatID, "Thermostat"}
	DoorLock              = DeviceType{DoorLockID, "Door Lock"}
)

// requiredModules lists the minimum capability modules a device type marker
// structurally requires on the endpoint carrying it.
var requiredModules = map[DeviceTypeID][]ClusterID{
	BridgedNodeID:           {ClusterBridgedDeviceBasicInformation},
	PowerSourceID:           {ClusterPowerSource},
	OnOffLightID:            {ClusterIdentify, ClusterGroups, ClusterOnOff},
	DimmableLightID:         {ClusterIdentify, ClusterGroups, ClusterOnOff, ClusterLevelControl},
	ColorTemperatureLightID: {ClusterIdentify, ClusterGroups, ClusterOnOff, ClusterLevelControl, ClusterColorControl},
	ExtendedColorLightID:    {ClusterIdentify, ClusterGroups, ClusterOnOff, ClusterLevelControl, ClusterColorControl},
	OnOffPlugInUnitID:       {ClusterIdentify, ClusterGroups, ClusterOnOff},
	DimmablePlugInUnitID:    {ClusterIdentify, ClusterGroups, ClusterOnOff, ClusterLevelControl},
	OnOffLightSwitchID:      {ClusterIdentify, ClusterOnOff},
	DimmerSwitchID:          {ClusterIdentify, ClusterOnOff, ClusterLevelControl},
	ColorDimmerSwitchID:     {ClusterIdentify, ClusterOnOff, ClusterLevelControl, ClusterColorControl},
	GenericSwitchID:         {ClusterIdentify, ClusterSwitch},
	ContactSensorID:         {ClusterIdentify, ClusterBooleanState},
	OccupancySensorID:       {ClusterIdentify, ClusterOccupancySensing},
	LightSensorID:           {ClusterIdentify, ClusterIlluminanceMeasurement},
	TemperatureSensorID:     {ClusterIdentify, ClusterTemperatureMeasurement},
	PressureSensorID:        {ClusterIdentify, ClusterPressureMeasurement},
	HumiditySensorID:        {ClusterIdentify, ClusterRelativeHumidityMeasurement},
	WindowCoveringID:        {ClusterIdentify, ClusterWindowCovering},
	FanID:                   {ClusterIdentify, ClusterFanControl},
	ThermostatID:            {ClusterIdentify, ClusterThermostat},
	DoorLockID:              {ClusterIdentify, ClusterDoorLock},
}

// RequiredModules returns the capability module ids structurally required by
// a device type marker. The returned slice must not be mutated.
func RequiredModules(id DeviceTypeID) []ClusterID {
	return requiredModules[id]
}
