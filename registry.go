package habridge

import (
	"sync"

	"github.com/habridge/habridge/endpoint"
)

// Device is one composed device: the endpoint tree plus the external
// device identifier it was composed from.
type Device struct {
	ID     string
	Serial string
	Tree   *endpoint.Tree
}

type resolution struct {
	device *Device
	node   *endpoint.Node
}

// Registry holds the composed devices and the entity bindings the dispatch
// paths resolve against. Mutation happens only during composition; the
// dispatch paths read concurrently.
type Registry struct {
	m        sync.RWMutex
	devices  map[string]*Device
	order    []string
	entities map[string]resolution
}

func NewRegistry() *Registry {
	return &Registry{
		devices:  map[string]*Device{},
		entities: map[string]resolution{},
	}
}

// addDevice registers a composed device. Re-adding a device id replaces
// the previous composition and drops its entity bindings.
func (r *Registry) addDevice(d *Device) {
	r.m.Lock()
	defer r.m.Unlock()

	if _, found := r.devices[d.ID]; found {
		r.unbindDeviceLocked(d.ID)
	} else {
		r.order = append(r.order, d.ID)
	}

	r.devices[d.ID] = d
}

// removeDevice drops a device and its entity bindings, returning the
// removed device, or nil when the id was never composed.
func (r *Registry) removeDevice(id string) *Device {
	r.m.Lock()
	defer r.m.Unlock()

	d, found := r.devices[id]
	if !found {
		return nil
	}

	r.unbindDeviceLocked(id)
	delete(r.devices, id)

	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return d
}

func (r *Registry) unbindDeviceLocked(id string) {
	for entityID, res := range r.entities {
		if res.device.ID == id {
			delete(r.entities, entityID)
		}
	}
}

// bindEntity binds an entity id to the node servicing it on a composed
// device's tree.
func (r *Registry) bindEntity(entityID string, d *Device, n *endpoint.Node) {
	r.m.Lock()
	defer r.m.Unlock()

	r.entities[entityID] = resolution{device: d, node: n}
}

// Device returns a composed device by id.
func (r *Registry) Device(id string) (*Device, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	d, found := r.devices[id]
	return d, found
}

// Devices returns the composed devices in composition order.
func (r *Registry) Devices() []*Device {
	r.m.RLock()
	defer r.m.RUnlock()

	var out []*Device
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}

	return out
}

// Resolve returns the device and node bound to an entity id.
func (r *Registry) Resolve(entityID string) (*Device, *endpoint.Node, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	res, found := r.entities[entityID]
	if !found {
		return nil, nil, false
	}

	return res.device, res.node, true
}
