// Package hass defines the boundary to the external entity/state
// collaborator: a read-only entity registry, an append-only state event
// stream, and the service invocation primitive.
package hass

import (
	"context"
	"errors"
	"strings"
)

// ErrNoDomain marks an entity id without a domain separator. Such entities
// are unsupported and skipped, never fatal.
var ErrNoDomain = errors.New("entity id has no domain separator")

// StateUnavailable is the state value marking an unreachable entity.
const StateUnavailable = "unavailable"

// Domain returns the external domain of an entity id, the prefix before the
// first separator.
func Domain(entityID string) (string, error) {
	domain, _, found := strings.Cut(entityID, ".")
	if !found || domain == "" {
		return "", ErrNoDomain
	}

	return domain, nil
}

// State is an entity's current state value plus its attribute bag.
type State struct {
	Value      string
	Attributes map[string]any
}

// Attribute returns an attribute from the state's bag.
func (s *State) Attribute(name string) (any, bool) {
	if s == nil {
		return nil, false
	}

	v, found := s.Attributes[name]
	return v, found
}

// Str returns a string attribute, empty when absent or not a string.
func (s *State) Str(name string) string {
	if v, found := s.Attribute(name); found {
		if str, ok := v.(string); ok {
			return str
		}
	}

	return ""
}

// Entity is one externally-sourced entity with its registry metadata and
// current state.
type Entity struct {
	ID       string
	DeviceID string
	AreaID   string
	Labels   []string
	State    State
}

// Domain returns the entity's external domain, empty for malformed ids.
func (e Entity) Domain() string {
	domain, err := Domain(e.ID)
	if err != nil {
		return ""
	}

	return domain
}

// StateEvent is one entry of the append-only state change stream.
type StateEvent struct {
	DeviceID string
	EntityID string
	Old      *State
	New      *State
}

// EntityRegistry is the read-only, eventually-refreshed view of the
// external entity set.
type EntityRegistry interface {
	Entities() []Entity
	Entity(id string) (Entity, bool)
}

// ServiceCaller invokes a service on the external system. Failures are
// returned to the caller and never retried here.
type ServiceCaller interface {
	CallService(ctx context.Context, domain string, service string, entityID string, data map[string]any) error
}

// StaticRegistry is a fixed EntityRegistry, used for composition snapshots
// and in tests.
type StaticRegistry struct {
	entities map[string]Entity
	order    []string
}

// NewStaticRegistry copies the given entities into a fixed registry.
func NewStaticRegistry(entities []Entity) *StaticRegistry {
	r := &StaticRegistry{entities: map[string]Entity{}}

	for _, e := range entities {
		if _, found := r.entities[e.ID]; !found {
			r.order = append(r.order, e.ID)
		}

		r.entities[e.ID] = e
	}

	return r
}

func (r *StaticRegistry) Entities() []Entity {
	var out []Entity
	for _, id := range r.order {
		out = append(out, r.entities[id])
	}

	return out
}

func (r *StaticRegistry) Entity(id string) (Entity, bool) {
	e, found := r.entities[id]
	return e, found
}
