package habridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/habridge/habridge/endpoint"
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/matter"
	"github.com/habridge/habridge/rules"
	"github.com/habridge/habridge/tables"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
	"golang.org/x/sync/semaphore"
)

// Settings carries the bridge-level identity and operating mode applied to
// every composed device.
type Settings struct {
	Name            string
	Mode            endpoint.OperatingMode
	VendorName      string
	VendorID        uint16
	ProductName     string
	ProductID       uint16
	SoftwareVersion string
}

// Bridge owns device composition: it filters the external entity set,
// groups entities by owning device, composes endpoint trees and maintains
// the registry the dispatch paths resolve against.
type Bridge struct {
	settings Settings

	registry   *Registry
	tables     *tables.Tables
	caller     hass.ServiceCaller
	filter     *rules.Engine
	dispatcher *Dispatcher

	section   persistence.Section
	callbacks callbacks.AdderCaller
	logger    logwrap.Logger

	events chan any

	composeLock sync.Mutex
	composeSem  map[string]*semaphore.Weighted

	ctx       context.Context
	ctxCancel context.CancelFunc
}

func New(settings Settings, section persistence.Section, caller hass.ServiceCaller, filter *rules.Engine) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())

	if settings.ProductName == "" {
		settings.ProductName = settings.Name
	}

	b := &Bridge{
		settings:   settings,
		registry:   NewRegistry(),
		tables:     tables.Default(),
		caller:     caller,
		filter:     filter,
		section:    section,
		callbacks:  callbacks.Create(),
		logger:     logwrap.New(discard.Discard()),
		events:     make(chan any, 100),
		composeSem: map[string]*semaphore.Weighted{},
		ctx:        ctx,
		ctxCancel:  cancel,
	}

	b.dispatcher = NewDispatcher(b.registry, b.tables, caller, b.logger)

	b.callbacks.Add(b.announceComposed)
	b.callbacks.Add(b.announceRemoved)

	return b
}

// Registry returns the registry of composed devices.
func (b *Bridge) Registry() *Registry { return b.registry }

// Dispatcher returns the dispatch engine bound to this bridge's registry.
func (b *Bridge) Dispatcher() *Dispatcher { return b.dispatcher }

// Stop cancels the bridge's internal context.
func (b *Bridge) Stop() error {
	b.ctxCancel()
	return nil
}

// HandleStateEvent adapts the external event stream to the dispatch
// engine; it satisfies the client's event handler shape.
func (b *Bridge) HandleStateEvent(ev hass.StateEvent) {
	b.dispatcher.HandleStateChange(b.ctx, ev.EntityID, ev.Old, ev.New)
}

func (b *Bridge) announceComposed(_ context.Context, e deviceComposed) error {
	b.sendEvent(DeviceComposed{Device: e.device})
	return nil
}

func (b *Bridge) announceRemoved(_ context.Context, e deviceRemoved) error {
	b.sendEvent(DeviceRemoved{Device: e.device})
	return nil
}

func (b *Bridge) sendEvent(event any) {
	select {
	case b.events <- event:
	default:
		b.logger.LogWarn(b.ctx, "Event buffer full, dropping event.", logwrap.Datum("Event", fmt.Sprintf("%T", event)))
	}
}

// ReadEvent blocks until a bridge event is available or the context
// expires.
func (b *Bridge) ReadEvent(ctx context.Context) (any, error) {
	select {
	case event := <-b.events:
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) semaphoreFor(deviceID string) *semaphore.Weighted {
	b.composeLock.Lock()
	defer b.composeLock.Unlock()

	sem, found := b.composeSem[deviceID]
	if !found {
		sem = semaphore.NewWeighted(1)
		b.composeSem[deviceID] = sem
	}

	return sem
}

func (b *Bridge) sectionForDevice(deviceID string) persistence.Section {
	return b.section.Section("device", deviceID)
}

// serialFor returns the device's stable serial number, minting and
// persisting one on first composition.
func (b *Bridge) serialFor(deviceID string) string {
	s := b.sectionForDevice(deviceID)

	if serial, found := s.String("Serial"); found {
		return serial
	}

	serial := uuid.NewString()
	s.Set("Serial", serial)
	return serial
}

// ComposeAll groups the entity set by owning device and composes each
// group. Entities without a device id compose as single-entity devices
// keyed by their own id.
func (b *Bridge) ComposeAll(ctx context.Context, entities []hass.Entity) error {
	groups := map[string][]hass.Entity{}
	var order []string

	for _, e := range entities {
		key := e.DeviceID
		if key == "" {
			key = e.ID
		}

		if _, found := groups[key]; !found {
			order = append(order, key)
		}

		groups[key] = append(groups[key], e)
	}

	for _, key := range order {
		if _, err := b.ComposeDevice(ctx, key, groups[key]); err != nil {
			return err
		}
	}

	return nil
}

// ComposeDevice composes one device from its entity group: filtered
// entities seed endpoints on a builder, the builder emits a remapped tree
// and the entities are bound for dispatch. Re-composing a device id
// replaces the previous composition. Returns nil without error when no
// entity survives filtering and domain support.
func (b *Bridge) ComposeDevice(pctx context.Context, deviceID string, entities []hass.Entity) (*Device, error) {
	sem := b.semaphoreFor(deviceID)
	if err := sem.Acquire(pctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	ctx, end := b.logger.Segment(pctx, "Composing device.", logwrap.Datum("Device", deviceID))
	defer end()

	var accepted []hass.Entity
	for _, e := range entities {
		in := rules.Input{ID: e.ID, Domain: e.Domain(), DeviceID: e.DeviceID, AreaID: e.AreaID, Labels: e.Labels}

		ok, err := b.filter.Evaluate(in)
		if err != nil {
			return nil, fmt.Errorf("filtering %s: %w", e.ID, err)
		}

		if !ok {
			b.logger.LogDebug(ctx, "Entity rejected by filter.", logwrap.Datum("Entity", e.ID))
			continue
		}

		accepted = append(accepted, e)
	}

	serial := b.serialFor(deviceID)

	builder := endpoint.NewBuilder().
		SetOperatingMode(b.settings.Mode).
		SetConfigReference(deviceID).
		SetIdentity(endpoint.Identity{
			Name:            deviceName(deviceID, accepted),
			Serial:          serial,
			VendorName:      b.settings.VendorName,
			VendorID:        b.settings.VendorID,
			ProductName:     b.settings.ProductName,
			ProductID:       b.settings.ProductID,
			SoftwareVersion: b.settings.SoftwareVersion,
		})

	if b.settings.Mode == endpoint.ModeBridged {
		builder.AddDeviceTypes(endpoint.RootKey, matter.BridgedNode)
	}

	if label := deviceLabel(accepted); label != "" {
		builder.SetComposedLabel(label)
	}

	var seeded []string
	for _, e := range accepted {
		if b.seedEntity(ctx, builder, e) {
			seeded = append(seeded, e.ID)
		}
	}

	if len(seeded) == 0 {
		builder.Destroy()
		b.logger.LogInfo(ctx, "No bridgeable entities, device skipped.", logwrap.Datum("Device", deviceID))
		return nil, nil
	}

	tree, err := builder.Build(true)
	if err != nil {
		builder.Destroy()
		return nil, fmt.Errorf("composing %s: %w", deviceID, err)
	}
	builder.Destroy()

	device := &Device{ID: deviceID, Serial: serial, Tree: tree}
	b.registry.addDevice(device)

	for _, entityID := range seeded {
		node, found := tree.Child(entityID)
		if !found {
			node = tree.Root()
		}

		b.registry.bindEntity(entityID, device, node)
	}

	b.logger.LogInfo(ctx, "Device composed.", logwrap.Datum("Device", deviceID), logwrap.Datum("Entities", len(seeded)), logwrap.Datum("Remapped", len(tree.Remapped())), logwrap.Datum("Split", len(tree.Split())))

	if err := b.callbacks.Call(ctx, deviceComposed{device: device}); err != nil {
		b.logger.LogWarn(ctx, "Device composition callback failed.", logwrap.Datum("Device", deviceID), logwrap.Err(err))
	}

	return device, nil
}

// RemoveDevice drops a composed device, its entity bindings and its
// persisted state.
func (b *Bridge) RemoveDevice(ctx context.Context, deviceID string) bool {
	device := b.registry.removeDevice(deviceID)
	if device == nil {
		return false
	}

	b.section.Section("device").Delete(deviceID)

	if err := b.callbacks.Call(ctx, deviceRemoved{device: device}); err != nil {
		b.logger.LogWarn(ctx, "Device removal callback failed.", logwrap.Datum("Device", deviceID), logwrap.Err(err))
	}

	return true
}

func deviceName(deviceID string, entities []hass.Entity) string {
	for _, e := range entities {
		if name := e.State.Str("friendly_name"); name != "" {
			return name
		}
	}

	return deviceID
}

func deviceLabel(entities []hass.Entity) string {
	for _, e := range entities {
		if e.AreaID != "" {
			return e.AreaID
		}
	}

	return ""
}
