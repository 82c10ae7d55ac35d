package habridge

import (
	"context"
	"reflect"

	"github.com/habridge/habridge/endpoint"
)

// ServiceBinding shapes the external service call made when the protocol
// side writes a subscribed attribute.
type ServiceBinding struct {
	EntityID string
	Domain   string
	Service  string
	DataKey  string
	// Convert maps the written value to the service parameter. A nil
	// result selects OffService instead, with no data.
	Convert    func(value any) any
	OffService string
}

// Listener returns a subscription listener applying the change suppression
// policy: offline replays and writes that do not change the value never
// reach the external system, and a conversion yielding nil falls back to
// the off service.
func (d *Dispatcher) Listener(b ServiceBinding) endpoint.SubscriptionListener {
	return func(ctx context.Context, newValue any, oldValue any, offline bool) error {
		if offline {
			return nil
		}

		if reflect.DeepEqual(newValue, oldValue) {
			return nil
		}

		value := newValue
		if b.Convert != nil {
			value = b.Convert(newValue)
		}

		if value == nil {
			if b.OffService == "" {
				return nil
			}

			return d.caller.CallService(ctx, b.Domain, b.OffService, b.EntityID, nil)
		}

		var data map[string]any
		if b.DataKey != "" {
			data = map[string]any{b.DataKey: value}
		}

		return d.caller.CallService(ctx, b.Domain, b.Service, b.EntityID, data)
	}
}
