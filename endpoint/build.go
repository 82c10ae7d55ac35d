package endpoint

import (
	"github.com/habridge/habridge/matter"
	"sync"
)

// Build runs the one-shot composition pipeline and emits the immutable
// endpoint tree. With remap set, non-root endpoints whose device types and
// module ids are disjoint from every other non-root endpoint are folded
// into the root; the remainder are retained as split endpoints.
func (b *Builder) Build(remap bool) (*Tree, error) {
	if b.destroyed {
		return nil, ErrDestroyed
	}

	if b.built {
		return nil, ErrAlreadyBuilt
	}

	root := b.endpoint(RootKey)

	// Prune subsumed device type markers on every endpoint.
	for _, acc := range b.endpoints {
		acc.deviceTypes = matter.PruneDeviceTypes(acc.deviceTypes)
	}

	// Seed each non-root endpoint's module set with the ids its markers
	// structurally require, so the disjointness test below runs against the
	// effective requirement rather than only what was declared.
	if remap {
		for key, acc := range b.endpoints {
			if key == RootKey {
				continue
			}

			for _, dt := range acc.deviceTypes {
				for _, id := range matter.RequiredModules(dt.Code) {
					b.AddModule(key, id)
				}
			}
		}
	}

	for _, acc := range b.endpoints {
		reconcileModules(acc)
	}

	var remapped, split []string

	if remap {
		remapped, split = b.remapEndpoints(root)
	}

	// Merging can land device types on the root that no single endpoint
	// declared, so subsumption and reconciliation must run again.
	root.deviceTypes = matter.PruneDeviceTypes(root.deviceTypes)
	reconcileModules(root)

	if b.mode == ModeStandalone {
		root.deviceTypes = removeDeviceType(root.deviceTypes, matter.BridgedNodeID)
	}

	b.attachIdentity(root)

	tree := &Tree{
		children:        map[string]*Node{},
		remapped:        remapped,
		split:           split,
		composedLabel:   b.composedLabel,
		configReference: b.configReference,
		mode:            b.mode,
	}

	tree.root = materialize(tree, root)

	for _, key := range b.order {
		if key == RootKey {
			continue
		}

		if acc, found := b.endpoints[key]; found {
			tree.children[key] = materialize(tree, acc)
			tree.childOrder = append(tree.childOrder, key)
		}
	}

	b.tree = tree
	b.built = true

	return tree, nil
}

// remapEndpoints folds every non-conflicting non-root endpoint into the
// root. Disjointness is tested against precomputed occupancy counts across
// all non-root endpoints: an id occupied exactly once is only occupied by
// the endpoint under test itself.
func (b *Builder) remapEndpoints(root *accumulator) (remapped []string, split []string) {
	dtOccupancy := map[matter.DeviceTypeID]int{}
	modOccupancy := map[matter.ClusterID]int{}

	for key, acc := range b.endpoints {
		if key == RootKey {
			continue
		}

		for _, dt := range acc.deviceTypes {
			dtOccupancy[dt.Code]++
		}

		for _, id := range moduleIDs(acc) {
			if !b.shared[id] {
				modOccupancy[id]++
			}
		}
	}

	var retainedOrder []string

	for _, key := range b.order {
		if key == RootKey {
			retainedOrder = append(retainedOrder, key)
			continue
		}

		acc := b.endpoints[key]

		disjoint := true
		for _, dt := range acc.deviceTypes {
			if dtOccupancy[dt.Code] > 1 {
				disjoint = false
				break
			}
		}

		if disjoint {
			for _, id := range moduleIDs(acc) {
				if !b.shared[id] && modOccupancy[id] > 1 {
					disjoint = false
					break
				}
			}
		}

		if disjoint {
			mergeInto(root, acc)
			delete(b.endpoints, key)
			remapped = append(remapped, key)
		} else {
			retainedOrder = append(retainedOrder, key)
			split = append(split, key)
		}
	}

	b.order = retainedOrder

	return remapped, split
}

// mergeInto transfers an endpoint's device types, modules and bindings onto
// the root accumulator.
func mergeInto(root *accumulator, acc *accumulator) {
	for _, dt := range acc.deviceTypes {
		present := false
		for _, existing := range root.deviceTypes {
			if existing.Code == dt.Code {
				present = true
				break
			}
		}

		if !present {
			root.deviceTypes = append(root.deviceTypes, dt)
		}
	}

	for _, id := range acc.bare {
		present := false
		for _, existing := range root.bare {
			if existing == id {
				present = true
				break
			}
		}

		if !present {
			root.bare = append(root.bare, id)
		}
	}

	for _, em := range acc.explicit {
		present := false
		for _, existing := range root.explicit {
			if existing.id == em.id {
				present = true
				break
			}
		}

		if !present {
			root.explicit = append(root.explicit, em)
		}
	}

	root.commands = append(root.commands, acc.commands...)
	root.subscriptions = append(root.subscriptions, acc.subscriptions...)
}

// reconcileModules drops every bare module id that also has an explicit
// state entry with the same id. Idempotent.
func reconcileModules(acc *accumulator) {
	var kept []matter.ClusterID

	for _, id := range acc.bare {
		explicit := false
		for _, em := range acc.explicit {
			if em.id == id {
				explicit = true
				break
			}
		}

		if !explicit {
			kept = append(kept, id)
		}
	}

	acc.bare = kept
}

// moduleIDs returns an endpoint's module ids, explicit entries first.
func moduleIDs(acc *accumulator) []matter.ClusterID {
	var ids []matter.ClusterID

	for _, em := range acc.explicit {
		ids = append(ids, em.id)
	}

	for _, id := range acc.bare {
		present := false
		for _, existing := range ids {
			if existing == id {
				present = true
				break
			}
		}

		if !present {
			ids = append(ids, id)
		}
	}

	return ids
}

func removeDeviceType(types []matter.DeviceType, id matter.DeviceTypeID) []matter.DeviceType {
	var kept []matter.DeviceType

	for _, dt := range types {
		if dt.Code != id {
			kept = append(kept, dt)
		}
	}

	return kept
}

// attachIdentity places the identity information on the root as an explicit
// basic information module, standalone or bridged depending on mode.
func (b *Builder) attachIdentity(root *accumulator) {
	cluster := matter.ClusterBridgedDeviceBasicInformation
	if b.mode == ModeStandalone {
		cluster = matter.ClusterBasicInformation
	}

	name := root.name
	if name == "" {
		name = b.identity.Name
	}

	state := map[string]any{
		matter.AttrNodeLabel:             name,
		matter.AttrSerialNumber:          b.identity.Serial,
		matter.AttrVendorName:            b.identity.VendorName,
		matter.AttrVendorID:              b.identity.VendorID,
		matter.AttrProductName:           b.identity.ProductName,
		matter.AttrProductID:             b.identity.ProductID,
		matter.AttrSoftwareVersionString: b.identity.SoftwareVersion,
		matter.AttrHardwareVersionString: b.identity.HardwareVersion,
		matter.AttrReachable:             true,
	}

	for i, em := range root.explicit {
		if em.id == cluster {
			root.explicit[i].state = state
			return
		}
	}

	root.explicit = append(root.explicit, explicitModule{id: cluster, state: state})
	reconcileModules(root)
}

// materialize instantiates a concrete node from an accumulator: explicit
// modules first with their initial values over defaults, bare ids with
// defaults, then any ids the final device type set still requires, and
// finally the registered bindings.
func materialize(tree *Tree, acc *accumulator) *Node {
	n := &Node{
		tree:        tree,
		key:         acc.key,
		name:        acc.name,
		tags:        acc.tags,
		deviceTypes: acc.deviceTypes,
		modules:     map[matter.ClusterID]*Module{},
		m:           &sync.RWMutex{},
	}

	instantiate := func(id matter.ClusterID, state map[string]any) {
		if _, found := n.modules[id]; found {
			return
		}

		attributes := matter.DefaultState(id)
		for k, v := range state {
			attributes[k] = v
		}

		n.modules[id] = &Module{ID: id, m: &sync.RWMutex{}, attributes: attributes}
		n.moduleOrder = append(n.moduleOrder, id)
	}

	for _, em := range acc.explicit {
		instantiate(em.id, em.state)
	}

	for _, id := range acc.bare {
		instantiate(id, nil)
	}

	for _, dt := range acc.deviceTypes {
		for _, id := range matter.RequiredModules(dt.Code) {
			instantiate(id, nil)
		}
	}

	n.commands = acc.commands
	n.subscriptions = acc.subscriptions

	return n
}
