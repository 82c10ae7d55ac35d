package habridge

import (
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/tables"
	"github.com/shimmeringbee/logwrap"
)

// transitionTickDivisor converts protocol transition times, expressed in
// tenths of a second, to the seconds the external system expects.
const transitionTickDivisor = 10

// Dispatcher translates inbound protocol commands to external service
// calls and outbound state changes to attribute writes, consulting the
// conversion tables and the registry's entity bindings.
type Dispatcher struct {
	registry *Registry
	tables   *tables.Tables
	caller   hass.ServiceCaller
	logger   logwrap.Logger
}

func NewDispatcher(registry *Registry, t *tables.Tables, caller hass.ServiceCaller, logger logwrap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, tables: t, caller: caller, logger: logger}
}

// numeric coerces a payload or attribute value to a float64.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	}

	return 0, false
}
