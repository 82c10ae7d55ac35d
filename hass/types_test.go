package hass

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestDomain(t *testing.T) {
	t.Run("returns the prefix before the first separator", func(t *testing.T) {
		domain, err := Domain("light.kitchen")
		assert.NoError(t, err)
		assert.Equal(t, "light", domain)
	})

	t.Run("only the first separator counts", func(t *testing.T) {
		domain, err := Domain("sensor.porch.temperature")
		assert.NoError(t, err)
		assert.Equal(t, "sensor", domain)
	})

	t.Run("a malformed id without separator errors", func(t *testing.T) {
		_, err := Domain("kitchen")
		assert.ErrorIs(t, err, ErrNoDomain)
	})

	t.Run("an empty domain errors", func(t *testing.T) {
		_, err := Domain(".kitchen")
		assert.ErrorIs(t, err, ErrNoDomain)
	})
}

func TestStaticRegistry(t *testing.T) {
	t.Run("returns entities in insertion order and by id", func(t *testing.T) {
		r := NewStaticRegistry([]Entity{
			{ID: "light.kitchen"},
			{ID: "sensor.porch"},
		})

		entities := r.Entities()
		assert.Len(t, entities, 2)
		assert.Equal(t, "light.kitchen", entities[0].ID)

		e, found := r.Entity("sensor.porch")
		assert.True(t, found)
		assert.Equal(t, "sensor.porch", e.ID)

		_, found = r.Entity("switch.garage")
		assert.False(t, found)
	})

	t.Run("a later entity with the same id replaces the earlier one", func(t *testing.T) {
		r := NewStaticRegistry([]Entity{
			{ID: "light.kitchen", State: State{Value: "off"}},
			{ID: "light.kitchen", State: State{Value: "on"}},
		})

		assert.Len(t, r.Entities(), 1)

		e, _ := r.Entity("light.kitchen")
		assert.Equal(t, "on", e.State.Value)
	})
}

func TestState_Attribute(t *testing.T) {
	t.Run("nil state has no attributes", func(t *testing.T) {
		var s *State
		_, found := s.Attribute("brightness")
		assert.False(t, found)
	})

	t.Run("string accessor coerces only strings", func(t *testing.T) {
		s := &State{Attributes: map[string]any{"device_class": "temperature", "brightness": 10}}
		assert.Equal(t, "temperature", s.Str("device_class"))
		assert.Equal(t, "", s.Str("brightness"))
		assert.Equal(t, "", s.Str("missing"))
	})
}
