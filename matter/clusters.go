package matter

import "fmt"

// ClusterID identifies a capability module ("cluster") an endpoint can host.
type ClusterID uint16

const (
	ClusterIdentify                      ClusterID = 0x0003
	ClusterGroups                        ClusterID = 0x0004
	ClusterOnOff                         ClusterID = 0x0006
	ClusterLevelControl                  ClusterID = 0x0008
	ClusterBasicInformation              ClusterID = 0x0028
	ClusterPowerSource                   ClusterID = 0x002f
	ClusterBridgedDeviceBasicInformation ClusterID = 0x0039
	ClusterSwitch                        ClusterID = 0x003b
	ClusterFixedLabel                    ClusterID = 0x0040
	ClusterBooleanState                  ClusterID = 0x0045
	ClusterElectricalPowerMeasurement    ClusterID = 0x0090
	ClusterDoorLock                      ClusterID = 0x0101
	ClusterWindowCovering                ClusterID = 0x0102
	ClusterFanControl                    ClusterID = 0x0202
	ClusterThermostat                    ClusterID = 0x0201
	ClusterColorControl                  ClusterID = 0x0300
	ClusterIlluminanceMeasurement        ClusterID = 0x0400
	ClusterTemperatureMeasurement        ClusterID = 0x0402
	ClusterPressureMeasurement           ClusterID = 0x0403
	ClusterRelativeHumidityMeasurement   ClusterID = 0x0405
	ClusterOccupancySensing              ClusterID = 0x0406
)

var clusterNames = map[ClusterID]string{
	ClusterIdentify:                      "Identify",
	ClusterGroups:                        "Groups",
	ClusterOnOff:                         "OnOff",
	ClusterLevelControl:                  "LevelControl",
	ClusterBasicInformation:              "BasicInformation",
	ClusterPowerSource:                   "PowerSource",
	ClusterBridgedDeviceBasicInformation: "BridgedDeviceBasicInformation",
	ClusterSwitch:                        "Switch",
	ClusterFixedLabel:                    "FixedLabel",
	ClusterBooleanState:                  "BooleanState",
	ClusterElectricalPowerMeasurement:    "ElectricalPowerMeasurement",
	ClusterDoorLock:                      "DoorLock",
	ClusterWindowCovering:                "WindowCovering",
	ClusterFanControl:                    "FanControl",
	ClusterThermostat:                    "Thermostat",
	ClusterColorControl:                  "ColorControl",
	ClusterIlluminanceMeasurement:        "IlluminanceMeasurement",
	ClusterTemperatureMeasurement:        "TemperatureMeasurement",
	ClusterPressureMeasurement:           "PressureMeasurement",
	ClusterRelativeHumidityMeasurement:   "RelativeHumidityMeasurement",
	ClusterOccupancySensing:              "OccupancySensing",
}

func (c ClusterID) String() string {
	if name, found := clusterNames[c]; found {
		return name
	}

	return fmt.Sprintf("Cluster(0x%04x)", uint16(c))
}

// Attribute names, keyed per cluster by convention.
const (
	AttrOnOff = "OnOff"

	AttrCurrentLevel = "CurrentLevel"
	AttrMinLevel     = "MinLevel"
	AttrMaxLevel     = "MaxLevel"

	AttrColorMode              = "ColorMode"
	AttrColorTemperatureMireds = "ColorTemperatureMireds"
	AttrCurrentHue             = "CurrentHue"
	AttrCurrentSaturation      = "CurrentSaturation"
	AttrCurrentX               = "CurrentX"
	AttrCurrentY               = "CurrentY"

	AttrReachable             = "Reachable"
	AttrNodeLabel             = "NodeLabel"
	AttrSerialNumber          = "SerialNumber"
	AttrVendorName            = "VendorName"
	AttrVendorID              = "VendorID"
	AttrProductName           = "ProductName"
	AttrProductID             = "ProductID"
	AttrSoftwareVersionString = "SoftwareVersionString"
	AttrHardwareVersionString = "HardwareVersionString"

	AttrStateValue          = "StateValue"
	AttrOccupancy           = "Occupancy"
	AttrMeasuredValue       = "MeasuredValue"
	AttrBatPercentRemaining = "BatPercentRemaining"
	AttrBatVoltage          = "BatVoltage"
	AttrVoltage             = "Voltage"

	AttrCurrentPositionLiftPercent100ths = "CurrentPositionLiftPercent100ths"
	AttrOperationalStatus                = "OperationalStatus"
	AttrLockState                        = "LockState"
	AttrFanMode                          = "FanMode"
	AttrPercentSetting                   = "PercentSetting"
	AttrPercentCurrent                   = "PercentCurrent"
	AttrLocalTemperature                 = "LocalTemperature"
	AttrOccupiedHeatingSetpoint          = "OccupiedHeatingSetpoint"
	AttrSystemMode                       = "SystemMode"

	AttrCurrentPosition   = "CurrentPosition"
	AttrNumberOfPositions = "NumberOfPositions"

	AttrLabelList = "LabelList"
)

// ColorControl ColorMode values.
const (
	ColorModeHueSaturation    = 0
	ColorModeXY               = 1
	ColorModeColorTemperature = 2
)

// Switch cluster events, fired as one-shot triggers.
const (
	EventInitialPress       = "InitialPress"
	EventShortRelease       = "ShortRelease"
	EventLongPress          = "LongPress"
	EventMultiPressComplete = "MultiPressComplete"
)

// defaultState provides the initial attribute values for a bare module
// declaration. Clusters without an entry start empty.
var defaultState = map[ClusterID]map[string]any{
	ClusterOnOff:                         {AttrOnOff: false},
	ClusterLevelControl:                  {AttrCurrentLevel: 1, AttrMinLevel: 1, AttrMaxLevel: 254},
	ClusterColorControl:                  {AttrColorMode: ColorModeColorTemperature, AttrColorTemperatureMireds: 370},
	ClusterBooleanState:                  {AttrStateValue: false},
	ClusterOccupancySensing:              {AttrOccupancy: 0},
	ClusterSwitch:                        {AttrCurrentPosition: 0, AttrNumberOfPositions: 2},
	ClusterWindowCovering:                {AttrCurrentPositionLiftPercent100ths: 0},
	ClusterFanControl:                    {AttrFanMode: 0, AttrPercentSetting: 0, AttrPercentCurrent: 0},
	ClusterDoorLock:                      {AttrLockState: 1},
	ClusterBridgedDeviceBasicInformation: {AttrReachable: true},
}

// DefaultState returns a fresh copy of the default initial attribute values
// for a cluster.
func DefaultState(c ClusterID) map[string]any {
	state := map[string]any{}

	for k, v := range defaultState[c] {
		state[k] = v
	}

	return state
}
