package endpoint

import (
	"errors"
	"fmt"
	"github.com/habridge/habridge/matter"
)

var (
	// ErrNotDefined is returned when an endpoint, module or binding is
	// accessed that composition never defined. Programming contract
	// violation, fatal to the caller.
	ErrNotDefined = errors.New("not defined")
	// ErrNotBuilt is returned by accessors used before Build has
	// materialized the tree.
	ErrNotBuilt = errors.New("not yet built")
	// ErrAlreadyBuilt is returned by a second call to Build.
	ErrAlreadyBuilt = errors.New("already built")
	// ErrDestroyed is returned when a destroyed builder is used.
	ErrDestroyed = errors.New("builder destroyed")
)

// OperatingMode selects how the composed device identifies itself.
type OperatingMode int

const (
	// ModeBridged composes the device as a child of a bridge; the root
	// carries the bridged-node marker and bridged basic information.
	ModeBridged OperatingMode = iota
	// ModeStandalone composes the device as a directly commissioned node;
	// the bridged-node marker is removed from the root.
	ModeStandalone
)

// Identity carries the information attached to the root's basic information
// module during build.
type Identity struct {
	Name            string
	Serial          string
	VendorName      string
	VendorID        uint16
	ProductName     string
	ProductID       uint16
	SoftwareVersion string
	HardwareVersion string
}

type explicitModule struct {
	id    matter.ClusterID
	state map[string]any
}

// accumulator is the mutable intermediate record for one endpoint key.
type accumulator struct {
	key  string
	name string
	tags []string

	deviceTypes []matter.DeviceType
	bare        []matter.ClusterID
	explicit    []explicitModule

	commands      []CommandBinding
	subscriptions []SubscriptionBinding
}

// Builder accumulates per-endpoint composition state and emits an immutable
// endpoint tree exactly once. Accumulation is a single-threaded batch
// computation; the builder performs no locking of its own.
type Builder struct {
	endpoints map[string]*accumulator
	order     []string

	mode            OperatingMode
	identity        Identity
	composedLabel   string
	configReference string
	shared          map[matter.ClusterID]bool

	tree      *Tree
	built     bool
	destroyed bool
}

// NewBuilder returns an empty builder. The always-shared module set defaults
// to identity and group membership.
func NewBuilder() *Builder {
	return &Builder{
		endpoints: map[string]*accumulator{},
		shared: map[matter.ClusterID]bool{
			matter.ClusterIdentify: true,
			matter.ClusterGroups:   true,
		},
	}
}

// endpoint returns the accumulator for a key, creating it on first
// reference.
func (b *Builder) endpoint(key string) *accumulator {
	acc, found := b.endpoints[key]
	if !found {
		acc = &accumulator{key: key}
		b.endpoints[key] = acc
		b.order = append(b.order, key)
	}

	return acc
}

// AddDeviceTypes adds device type markers to an endpoint, ignoring markers
// already present.
func (b *Builder) AddDeviceTypes(key string, types ...matter.DeviceType) *Builder {
	acc := b.endpoint(key)

	for _, dt := range types {
		present := false
		for _, existing := range acc.deviceTypes {
			if existing.Code == dt.Code {
				present = true
				break
			}
		}

		if !present {
			acc.deviceTypes = append(acc.deviceTypes, dt)
		}
	}

	return b
}

// AddModule declares a bare capability module on an endpoint. A bare
// declaration loses to an explicit-state declaration with the same id.
func (b *Builder) AddModule(key string, id matter.ClusterID) *Builder {
	acc := b.endpoint(key)

	for _, existing := range acc.bare {
		if existing == id {
			return b
		}
	}

	acc.bare = append(acc.bare, id)
	return b
}

// AddModuleWithState declares a capability module with explicit initial
// attribute values. Re-declaring the same id replaces the previous state.
func (b *Builder) AddModuleWithState(key string, id matter.ClusterID, state map[string]any) *Builder {
	acc := b.endpoint(key)

	for i, existing := range acc.explicit {
		if existing.id == id {
			acc.explicit[i].state = state
			return b
		}
	}

	acc.explicit = append(acc.explicit, explicitModule{id: id, state: state})
	return b
}

// AddCommandBinding registers a command handler to be bound to the
// materialized node.
func (b *Builder) AddCommandBinding(key string, binding CommandBinding) *Builder {
	acc := b.endpoint(key)
	acc.commands = append(acc.commands, binding)
	return b
}

// AddSubscriptionBinding registers an attribute-change listener to be bound
// to the materialized node.
func (b *Builder) AddSubscriptionBinding(key string, binding SubscriptionBinding) *Builder {
	acc := b.endpoint(key)
	acc.subscriptions = append(acc.subscriptions, binding)
	return b
}

// SetFriendlyName sets an endpoint's friendly name.
func (b *Builder) SetFriendlyName(key string, name string) *Builder {
	b.endpoint(key).name = name
	return b
}

// SetTags sets an endpoint's ordered semantic tags.
func (b *Builder) SetTags(key string, tags ...string) *Builder {
	b.endpoint(key).tags = tags
	return b
}

// SetComposedLabel attaches a composed label to the emitted tree.
func (b *Builder) SetComposedLabel(label string) *Builder {
	b.composedLabel = label
	return b
}

// SetConfigReference attaches a configuration reference to the emitted tree.
func (b *Builder) SetConfigReference(ref string) *Builder {
	b.configReference = ref
	return b
}

// SetOperatingMode selects bridged or standalone composition.
func (b *Builder) SetOperatingMode(mode OperatingMode) *Builder {
	b.mode = mode
	return b
}

// SetIdentity sets the identity information attached to the root during
// build.
func (b *Builder) SetIdentity(id Identity) *Builder {
	b.identity = id
	return b
}

// SetSharedModules replaces the set of module ids that never block a merge
// during remap.
func (b *Builder) SetSharedModules(ids ...matter.ClusterID) *Builder {
	b.shared = map[matter.ClusterID]bool{}
	for _, id := range ids {
		b.shared[id] = true
	}

	return b
}

// Root returns the materialized root node. ErrNotBuilt before Build.
func (b *Builder) Root() (*Node, error) {
	if b.tree == nil {
		return nil, fmt.Errorf("root endpoint: %w", ErrNotBuilt)
	}

	return b.tree.Root(), nil
}

// Endpoint returns a materialized endpoint by key. The root is addressed by
// RootKey; remapped endpoints are no longer addressable.
func (b *Builder) Endpoint(key string) (*Node, error) {
	if b.tree == nil {
		return nil, fmt.Errorf("endpoint %q: %w", key, ErrNotBuilt)
	}

	if key == RootKey {
		return b.tree.Root(), nil
	}

	if n, found := b.tree.Child(key); found {
		return n, nil
	}

	return nil, fmt.Errorf("endpoint %q: %w", key, ErrNotDefined)
}

// Destroy releases all intermediate accumulation state. Safe to call after
// Build, or instead of it to abandon the builder.
func (b *Builder) Destroy() {
	b.endpoints = nil
	b.order = nil
	b.destroyed = true
}
