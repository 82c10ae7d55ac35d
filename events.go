package habridge

// deviceComposed is raised on the internal callback chain once a device's
// tree is composed and its entities bound.
type deviceComposed struct {
	device *Device
}

// deviceRemoved is raised on the internal callback chain once a device is
// dropped from the registry.
type deviceRemoved struct {
	device *Device
}

// DeviceComposed is emitted on the bridge's event stream for the protocol
// layer to publish the device.
type DeviceComposed struct {
	Device *Device
}

// DeviceRemoved is emitted on the bridge's event stream for the protocol
// layer to retract the device.
type DeviceRemoved struct {
	Device *Device
}
