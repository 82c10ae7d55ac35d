package endpoint

import (
	"context"
	"fmt"
	"github.com/habridge/habridge/matter"
	"sync"
)

// RootKey is the endpoint key of the root/main node of a composed device.
const RootKey = ""

// CommandHandler services an inbound protocol command against the node it
// was bound to during build.
type CommandHandler func(ctx context.Context, node *Node, payload map[string]any) error

// CommandBinding binds a protocol command on a capability module to a
// handler.
type CommandBinding struct {
	Cluster matter.ClusterID
	Command string
	Handler CommandHandler
}

// SubscriptionListener receives a protocol-side attribute change. The
// offline flag marks changes replayed from a non-interactive source.
type SubscriptionListener func(ctx context.Context, newValue any, oldValue any, offline bool) error

// SubscriptionBinding binds a protocol-side attribute change on a capability
// module to a listener.
type SubscriptionBinding struct {
	Cluster   matter.ClusterID
	Attribute string
	Listener  SubscriptionListener
}

// Observer receives attribute writes and one-shot triggers from nodes of an
// emitted tree.
type Observer interface {
	AttributeChanged(node *Node, cluster matter.ClusterID, attribute string, value any)
	TriggerFired(node *Node, cluster matter.ClusterID, event string)
}

// Module is an instantiated capability module on a materialized node.
type Module struct {
	ID matter.ClusterID

	m          *sync.RWMutex
	attributes map[string]any
}

// Attribute returns the current value of an attribute, if present.
func (m *Module) Attribute(name string) (any, bool) {
	m.m.RLock()
	defer m.m.RUnlock()

	v, found := m.attributes[name]
	return v, found
}

// Attributes returns a copy of the module's current attribute values.
func (m *Module) Attributes() map[string]any {
	m.m.RLock()
	defer m.m.RUnlock()

	out := map[string]any{}
	for k, v := range m.attributes {
		out[k] = v
	}

	return out
}

// Node is an addressable node in a composed device's capability tree. The
// structure is immutable after build; attribute values are runtime state
// and writes to them are serialized per node.
type Node struct {
	tree *Tree

	key         string
	name        string
	tags        []string
	deviceTypes []matter.DeviceType

	modules     map[matter.ClusterID]*Module
	moduleOrder []matter.ClusterID

	commands      []CommandBinding
	subscriptions []SubscriptionBinding

	m *sync.RWMutex
}

func (n *Node) Key() string    { return n.key }
func (n *Node) Name() string   { return n.name }
func (n *Node) Tags() []string { return n.tags }

func (n *Node) DeviceTypes() []matter.DeviceType { return n.deviceTypes }

// HasDeviceType reports whether the node carries the device type marker.
func (n *Node) HasDeviceType(id matter.DeviceTypeID) bool {
	for _, dt := range n.deviceTypes {
		if dt.Code == id {
			return true
		}
	}

	return false
}

// Module returns the instantiated capability module for a cluster id.
func (n *Node) Module(id matter.ClusterID) (*Module, bool) {
	mod, found := n.modules[id]
	return mod, found
}

// Modules returns the node's modules in declaration order.
func (n *Node) Modules() []*Module {
	var out []*Module
	for _, id := range n.moduleOrder {
		out = append(out, n.modules[id])
	}

	return out
}

// SetAttribute writes a single attribute on one of the node's modules,
// notifying the tree's observer. Writing to an undeclared module is a
// composition contract violation.
func (n *Node) SetAttribute(cluster matter.ClusterID, attribute string, value any) error {
	mod, found := n.modules[cluster]
	if !found {
		return fmt.Errorf("endpoint %q: %w: module %s", n.key, ErrNotDefined, cluster)
	}

	mod.m.Lock()
	mod.attributes[attribute] = value
	mod.m.Unlock()

	if o := n.tree.observer(); o != nil {
		o.AttributeChanged(n, cluster, attribute, value)
	}

	return nil
}

// Attribute reads a single attribute from one of the node's modules.
func (n *Node) Attribute(cluster matter.ClusterID, attribute string) (any, bool) {
	mod, found := n.modules[cluster]
	if !found {
		return nil, false
	}

	return mod.Attribute(attribute)
}

// FireTrigger emits a one-shot trigger on the node, without any attribute
// state change.
func (n *Node) FireTrigger(cluster matter.ClusterID, event string) error {
	if _, found := n.modules[cluster]; !found {
		return fmt.Errorf("endpoint %q: %w: module %s", n.key, ErrNotDefined, cluster)
	}

	if o := n.tree.observer(); o != nil {
		o.TriggerFired(n, cluster, event)
	}

	return nil
}

// Commands returns the node's bound command bindings.
func (n *Node) Commands() []CommandBinding { return n.commands }

// InvokeCommand routes an inbound protocol command to its bound handler.
func (n *Node) InvokeCommand(ctx context.Context, cluster matter.ClusterID, command string, payload map[string]any) error {
	for _, b := range n.commands {
		if b.Cluster == cluster && b.Command == command {
			return b.Handler(ctx, n, payload)
		}
	}

	return fmt.Errorf("endpoint %q: %w: command %s on %s", n.key, ErrNotDefined, command, cluster)
}

// NotifyChange delivers a protocol-side attribute change to every listener
// bound to (cluster, attribute). Listener failures do not prevent delivery
// to the remaining listeners; the first failure is returned.
func (n *Node) NotifyChange(ctx context.Context, cluster matter.ClusterID, attribute string, newValue any, oldValue any, offline bool) error {
	var firstErr error

	for _, s := range n.subscriptions {
		if s.Cluster == cluster && s.Attribute == attribute {
			if err := s.Listener(ctx, newValue, oldValue, offline); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Tree is the immutable endpoint tree emitted by a Builder.
type Tree struct {
	root       *Node
	children   map[string]*Node
	childOrder []string

	remapped []string
	split    []string

	composedLabel   string
	configReference string
	mode            OperatingMode

	m   sync.RWMutex
	obs Observer
}

// Root returns the root/main node.
func (t *Tree) Root() *Node { return t.root }

// Child returns a retained (split) child endpoint by key.
func (t *Tree) Child(key string) (*Node, bool) {
	n, found := t.children[key]
	return n, found
}

// Children returns the retained child endpoints in declaration order.
func (t *Tree) Children() []*Node {
	var out []*Node
	for _, k := range t.childOrder {
		out = append(out, t.children[k])
	}

	return out
}

// Remapped returns the keys of endpoints folded into the root during build.
func (t *Tree) Remapped() []string { return t.remapped }

// Split returns the keys of endpoints that failed the remap disjointness
// test and were retained as children.
func (t *Tree) Split() []string { return t.split }

func (t *Tree) ComposedLabel() string   { return t.composedLabel }
func (t *Tree) ConfigReference() string { return t.configReference }
func (t *Tree) Mode() OperatingMode     { return t.mode }

// SetObserver attaches the protocol collaborator's observer for attribute
// writes and triggers.
func (t *Tree) SetObserver(o Observer) {
	t.m.Lock()
	defer t.m.Unlock()

	t.obs = o
}

func (t *Tree) observer() Observer {
	t.m.RLock()
	defer t.m.RUnlock()

	return t.obs
}

// SetReachable flips the per-device reachability flag, held on whichever
// basic information module the root carries.
func (t *Tree) SetReachable(reachable bool) error {
	for _, id := range []matter.ClusterID{matter.ClusterBridgedDeviceBasicInformation, matter.ClusterBasicInformation} {
		if _, found := t.root.Module(id); found {
			return t.root.SetAttribute(id, matter.AttrReachable, reachable)
		}
	}

	return fmt.Errorf("root endpoint: %w: basic information module", ErrNotDefined)
}

// Reachable returns the current reachability flag, defaulting to true when
// the root carries no basic information module.
func (t *Tree) Reachable() bool {
	for _, id := range []matter.ClusterID{matter.ClusterBridgedDeviceBasicInformation, matter.ClusterBasicInformation} {
		if v, found := t.root.Attribute(id, matter.AttrReachable); found {
			b, ok := v.(bool)
			return ok && b
		}
	}

	return true
}
