package endpoint

import (
	"context"
	"github.com/habridge/habridge/matter"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestBuilder_Accessors(t *testing.T) {
	t.Run("accessing the root before build errors with not yet built", func(t *testing.T) {
		b := NewBuilder()

		_, err := b.Root()
		assert.ErrorIs(t, err, ErrNotBuilt)

		_, err = b.Endpoint("one")
		assert.ErrorIs(t, err, ErrNotBuilt)
	})

	t.Run("accessing an endpoint that was never declared errors with not defined", func(t *testing.T) {
		b := NewBuilder()

		_, err := b.Build(false)
		assert.NoError(t, err)

		_, err = b.Endpoint("missing")
		assert.ErrorIs(t, err, ErrNotDefined)
	})

	t.Run("building twice errors with already built", func(t *testing.T) {
		b := NewBuilder()

		_, err := b.Build(false)
		assert.NoError(t, err)

		_, err = b.Build(false)
		assert.ErrorIs(t, err, ErrAlreadyBuilt)
	})

	t.Run("building a destroyed builder errors", func(t *testing.T) {
		b := NewBuilder()
		b.Destroy()

		_, err := b.Build(false)
		assert.ErrorIs(t, err, ErrDestroyed)
	})

	t.Run("destroy after build leaves the emitted tree accessible", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes(RootKey, matter.OnOffLight)

		tree, err := b.Build(false)
		assert.NoError(t, err)

		b.Destroy()

		root, err := b.Root()
		assert.NoError(t, err)
		assert.Equal(t, tree.Root(), root)
	})
}

func TestBuilder_Build(t *testing.T) {
	t.Run("without remap the emitted endpoint keys equal the declared keys", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes("one", matter.TemperatureSensor)
		b.AddDeviceTypes("two", matter.HumiditySensor)

		tree, err := b.Build(false)
		assert.NoError(t, err)

		_, found := tree.Child("one")
		assert.True(t, found)
		_, found = tree.Child("two")
		assert.True(t, found)

		assert.Empty(t, tree.Remapped())
		assert.Empty(t, tree.Split())
	})

	t.Run("prunes subsumed device type markers on every endpoint", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes("one", matter.OnOffLight, matter.DimmableLight)

		tree, _ := b.Build(false)

		one, _ := tree.Child("one")
		assert.Equal(t, []matter.DeviceType{matter.DimmableLight}, one.DeviceTypes())
	})

	t.Run("an explicit state module declaration beats a bare declaration of the same id", func(t *testing.T) {
		b := NewBuilder()
		b.AddModule(RootKey, matter.ClusterOnOff)
		b.AddModuleWithState(RootKey, matter.ClusterOnOff, map[string]any{matter.AttrOnOff: true})

		tree, _ := b.Build(false)

		v, found := tree.Root().Attribute(matter.ClusterOnOff, matter.AttrOnOff)
		assert.True(t, found)
		assert.Equal(t, true, v)

		assert.Len(t, tree.Root().Modules(), 2)
	})

	t.Run("bare module declarations receive default initial state", func(t *testing.T) {
		b := NewBuilder()
		b.AddModule("one", matter.ClusterLevelControl)

		tree, _ := b.Build(false)

		one, _ := tree.Child("one")
		v, found := one.Attribute(matter.ClusterLevelControl, matter.AttrMinLevel)
		assert.True(t, found)
		assert.Equal(t, 1, v)
	})

	t.Run("auto-completes modules required by the final device type set", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes("one", matter.DimmableLight)

		tree, _ := b.Build(false)

		one, _ := tree.Child("one")
		_, found := one.Module(matter.ClusterOnOff)
		assert.True(t, found)
		_, found = one.Module(matter.ClusterLevelControl)
		assert.True(t, found)
		_, found = one.Module(matter.ClusterIdentify)
		assert.True(t, found)
	})

	t.Run("mutators are chainable", func(t *testing.T) {
		tree, err := NewBuilder().
			AddDeviceTypes("one", matter.ContactSensor).
			SetFriendlyName("one", "Front Door").
			SetTags("one", "security").
			Build(false)

		assert.NoError(t, err)

		one, _ := tree.Child("one")
		assert.Equal(t, "Front Door", one.Name())
		assert.Equal(t, []string{"security"}, one.Tags())
	})
}

func TestBuilder_Remap(t *testing.T) {
	t.Run("two endpoints with disjoint types and modules are folded into the root", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes(RootKey, matter.BridgedNode)
		b.AddDeviceTypes("light", matter.DimmableLight)
		b.AddDeviceTypes("temp", matter.TemperatureSensor)

		tree, err := b.Build(true)
		assert.NoError(t, err)

		assert.ElementsMatch(t, []string{"light", "temp"}, tree.Remapped())
		assert.Empty(t, tree.Split())
		assert.Empty(t, tree.Children())

		root := tree.Root()
		assert.True(t, root.HasDeviceType(matter.DimmableLightID))
		assert.True(t, root.HasDeviceType(matter.TemperatureSensorID))

		_, found := root.Module(matter.ClusterOnOff)
		assert.True(t, found)
		_, found = root.Module(matter.ClusterTemperatureMeasurement)
		assert.True(t, found)
	})

	t.Run("universally shared module ids never block a merge", func(t *testing.T) {
		// Both endpoints structurally require Identify, which is in the
		// default shared set.
		b := NewBuilder()
		b.AddDeviceTypes("one", matter.TemperatureSensor)
		b.AddDeviceTypes("two", matter.HumiditySensor)

		tree, _ := b.Build(true)

		assert.ElementsMatch(t, []string{"one", "two"}, tree.Remapped())
		assert.Empty(t, tree.Split())
	})

	t.Run("endpoints sharing any other module id are both retained as split endpoints", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes("one", matter.OnOffLight)
		b.AddDeviceTypes("two", matter.OnOffPlugInUnit)

		tree, _ := b.Build(true)

		// Both require OnOff, so neither is disjoint.
		assert.Empty(t, tree.Remapped())
		assert.ElementsMatch(t, []string{"one", "two"}, tree.Split())

		_, found := tree.Child("one")
		assert.True(t, found)
		_, found = tree.Child("two")
		assert.True(t, found)
	})

	t.Run("endpoints sharing a device type marker are retained", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes("one", matter.ContactSensor)
		b.AddDeviceTypes("two", matter.ContactSensor)

		tree, _ := b.Build(true)

		assert.Empty(t, tree.Remapped())
		assert.ElementsMatch(t, []string{"one", "two"}, tree.Split())
	})

	t.Run("the shared module set is configurable", func(t *testing.T) {
		b := NewBuilder()
		b.SetSharedModules(matter.ClusterIdentify, matter.ClusterGroups, matter.ClusterOnOff)
		b.AddDeviceTypes("one", matter.OnOffLight)
		b.AddDeviceTypes("two", matter.OnOffPlugInUnit)

		tree, _ := b.Build(true)

		assert.ElementsMatch(t, []string{"one", "two"}, tree.Remapped())
	})

	t.Run("root merged from multiple children is pruned again", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes("light", matter.ExtendedColorLight)
		b.AddDeviceTypes("temp", matter.TemperatureSensor)
		b.AddDeviceTypes(RootKey, matter.OnOffLight)

		tree, _ := b.Build(true)

		root := tree.Root()
		assert.True(t, root.HasDeviceType(matter.ExtendedColorLightID))
		assert.False(t, root.HasDeviceType(matter.OnOffLightID))
	})

	t.Run("command bindings of a remapped endpoint are bound to the root", func(t *testing.T) {
		invoked := false

		b := NewBuilder()
		b.AddDeviceTypes("light", matter.OnOffLight)
		b.AddCommandBinding("light", CommandBinding{
			Cluster: matter.ClusterOnOff,
			Command: "on",
			Handler: func(_ context.Context, _ *Node, _ map[string]any) error {
				invoked = true
				return nil
			},
		})

		tree, _ := b.Build(true)

		err := tree.Root().InvokeCommand(context.Background(), matter.ClusterOnOff, "on", nil)
		assert.NoError(t, err)
		assert.True(t, invoked)
	})
}

func TestBuilder_OperatingMode(t *testing.T) {
	t.Run("bridged mode attaches identity as a bridged device basic information module", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes(RootKey, matter.BridgedNode, matter.OnOffLight)
		b.SetIdentity(Identity{Name: "Hall Light", Serial: "abc-123", VendorName: "habridge"})

		tree, _ := b.Build(true)

		root := tree.Root()
		assert.True(t, root.HasDeviceType(matter.BridgedNodeID))

		v, found := root.Attribute(matter.ClusterBridgedDeviceBasicInformation, matter.AttrNodeLabel)
		assert.True(t, found)
		assert.Equal(t, "Hall Light", v)

		v, _ = root.Attribute(matter.ClusterBridgedDeviceBasicInformation, matter.AttrSerialNumber)
		assert.Equal(t, "abc-123", v)
	})

	t.Run("standalone mode removes the bridged node marker and uses basic information", func(t *testing.T) {
		b := NewBuilder()
		b.SetOperatingMode(ModeStandalone)
		b.AddDeviceTypes(RootKey, matter.BridgedNode, matter.OnOffLight)
		b.SetIdentity(Identity{Name: "Hall Light"})

		tree, _ := b.Build(true)

		root := tree.Root()
		assert.False(t, root.HasDeviceType(matter.BridgedNodeID))

		_, found := root.Module(matter.ClusterBridgedDeviceBasicInformation)
		assert.False(t, found)

		v, found := root.Attribute(matter.ClusterBasicInformation, matter.AttrNodeLabel)
		assert.True(t, found)
		assert.Equal(t, "Hall Light", v)
	})

	t.Run("root friendly name wins over identity name for the node label", func(t *testing.T) {
		b := NewBuilder()
		b.SetFriendlyName(RootKey, "Preferred")
		b.SetIdentity(Identity{Name: "Fallback"})

		tree, _ := b.Build(false)

		v, _ := tree.Root().Attribute(matter.ClusterBridgedDeviceBasicInformation, matter.AttrNodeLabel)
		assert.Equal(t, "Preferred", v)
	})
}

func TestTree_Reachability(t *testing.T) {
	t.Run("set reachable flips the flag on the bridged basic information module", func(t *testing.T) {
		b := NewBuilder()
		b.AddDeviceTypes(RootKey, matter.BridgedNode)

		tree, _ := b.Build(true)
		assert.True(t, tree.Reachable())

		assert.NoError(t, tree.SetReachable(false))
		assert.False(t, tree.Reachable())

		assert.NoError(t, tree.SetReachable(true))
		assert.True(t, tree.Reachable())
	})
}

type recordingObserver struct {
	attributes []string
	triggers   []string
}

func (r *recordingObserver) AttributeChanged(_ *Node, cluster matter.ClusterID, attribute string, _ any) {
	r.attributes = append(r.attributes, cluster.String()+"."+attribute)
}

func (r *recordingObserver) TriggerFired(_ *Node, cluster matter.ClusterID, event string) {
	r.triggers = append(r.triggers, cluster.String()+"."+event)
}

func TestNode_Runtime(t *testing.T) {
	t.Run("attribute writes notify the tree observer", func(t *testing.T) {
		b := NewBuilder()
		b.AddModule(RootKey, matter.ClusterOnOff)

		tree, _ := b.Build(false)

		obs := &recordingObserver{}
		tree.SetObserver(obs)

		assert.NoError(t, tree.Root().SetAttribute(matter.ClusterOnOff, matter.AttrOnOff, true))
		assert.Equal(t, []string{"OnOff.OnOff"}, obs.attributes)
	})

	t.Run("writing to an undeclared module errors with not defined", func(t *testing.T) {
		b := NewBuilder()

		tree, _ := b.Build(false)

		err := tree.Root().SetAttribute(matter.ClusterOnOff, matter.AttrOnOff, true)
		assert.ErrorIs(t, err, ErrNotDefined)
	})

	t.Run("triggers reach the tree observer", func(t *testing.T) {
		b := NewBuilder()
		b.AddModule(RootKey, matter.ClusterSwitch)

		tree, _ := b.Build(false)

		obs := &recordingObserver{}
		tree.SetObserver(obs)

		assert.NoError(t, tree.Root().FireTrigger(matter.ClusterSwitch, matter.EventShortRelease))
		assert.Equal(t, []string{"Switch.ShortRelease"}, obs.triggers)
	})

	t.Run("subscription listeners receive protocol-side changes", func(t *testing.T) {
		var got []any

		b := NewBuilder()
		b.AddModule(RootKey, matter.ClusterLevelControl)
		b.AddSubscriptionBinding(RootKey, SubscriptionBinding{
			Cluster:   matter.ClusterLevelControl,
			Attribute: matter.AttrCurrentLevel,
			Listener: func(_ context.Context, newValue any, _ any, _ bool) error {
				got = append(got, newValue)
				return nil
			},
		})

		tree, _ := b.Build(false)

		err := tree.Root().NotifyChange(context.Background(), matter.ClusterLevelControl, matter.AttrCurrentLevel, 10, 5, false)
		assert.NoError(t, err)
		assert.Equal(t, []any{10}, got)
	})
}
