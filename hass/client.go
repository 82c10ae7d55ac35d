package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/retry"
)

const DefaultConnectTimeout = 5 * time.Second
const DefaultConnectRetries = 5
const DefaultRequestTimeout = 10 * time.Second

// EventHandler receives state change events from the stream.
type EventHandler func(StateEvent)

type wsMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Event   *wsEvent        `json:"event,omitempty"`

	AccessToken string `json:"access_token,omitempty"`
	EventType   string `json:"event_type,omitempty"`

	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      *wsTarget      `json:"target,omitempty"`
}

type wsTarget struct {
	EntityID string `json:"entity_id"`
}

type wsEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string   `json:"entity_id"`
		OldState *wsState `json:"old_state"`
		NewState *wsState `json:"new_state"`
	} `json:"data"`
}

type wsState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

type wsRegistryEntry struct {
	EntityID string   `json:"entity_id"`
	DeviceID string   `json:"device_id"`
	AreaID   string   `json:"area_id"`
	Labels   []string `json:"labels"`
}

// Client speaks the external system's websocket API: authentication
// handshake, state bootstrap, event subscription and service invocation.
type Client struct {
	url    string
	token  string
	logger logwrap.Logger

	handler EventHandler

	conn   *websocket.Conn
	writeM sync.Mutex

	pendingM sync.Mutex
	pending  map[int64]chan wsMessage
	nextID   int64

	subM       sync.Mutex
	subscribed bool

	deviceM  sync.RWMutex
	deviceOf map[string]string
}

// NewClient creates a client for the given websocket URL and access token.
// The handler receives every state change event once subscribed.
func NewClient(url string, token string, handler EventHandler, logger logwrap.Logger) *Client {
	return &Client{
		url:      url,
		token:    token,
		handler:  handler,
		logger:   logger,
		pending:  map[int64]chan wsMessage{},
		deviceOf: map[string]string{},
	}
}

// Connect dials the endpoint and performs the authentication handshake,
// retrying transient failures.
func (c *Client) Connect(pctx context.Context) error {
	return retry.Retry(pctx, DefaultConnectTimeout, DefaultConnectRetries, func(ctx context.Context) error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.LogWarn(ctx, "Failed to dial event stream.", logwrap.Err(err))
			return err
		}

		if err := c.authenticate(conn); err != nil {
			_ = conn.Close()
			c.logger.LogWarn(ctx, "Authentication handshake failed.", logwrap.Err(err))
			return err
		}

		c.conn = conn
		c.logger.LogInfo(ctx, "Connected to event stream.", logwrap.Datum("URL", c.url))
		return nil
	})
}

func (c *Client) authenticate(conn *websocket.Conn) error {
	var greeting wsMessage
	if err := conn.ReadJSON(&greeting); err != nil {
		return err
	}

	if greeting.Type != "auth_required" {
		return fmt.Errorf("unexpected greeting: %s", greeting.Type)
	}

	if err := conn.WriteJSON(wsMessage{Type: "auth", AccessToken: c.token}); err != nil {
		return err
	}

	var response wsMessage
	if err := conn.ReadJSON(&response); err != nil {
		return err
	}

	if response.Type != "auth_ok" {
		return fmt.Errorf("authentication rejected: %s", response.Type)
	}

	return nil
}

// Run reads the event stream until the context is cancelled, dispatching
// events and correlating command results. A failed connection is redialled,
// re-authenticated and re-subscribed; Run returns an error only when a
// reconnect attempt is exhausted.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.readLoop()

		if ctx.Err() != nil {
			c.logger.LogInfo(ctx, "Event stream loop terminating due to cancelled context.")
			return nil
		}

		c.logger.LogWarn(ctx, "Event stream lost, reconnecting.", logwrap.Err(err))

		if err := c.reconnect(ctx); err != nil {
			c.logger.LogError(ctx, "Failed to re-establish event stream.", logwrap.Err(err))
			return err
		}
	}
}

func (c *Client) readLoop() error {
	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Type {
		case "result":
			c.deliverResult(msg)
		case "event":
			if msg.Event != nil && msg.Event.EventType == "state_changed" {
				c.dispatchStateChange(msg.Event)
			}
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	_ = c.Close()

	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.subM.Lock()
	subscribed := c.subscribed
	c.subM.Unlock()

	// The subscribe result is only delivered once the read loop resumes,
	// so the re-subscription must not be awaited here.
	if subscribed {
		go func() {
			if err := c.SubscribeStateChanges(ctx); err != nil {
				c.logger.LogError(ctx, "Failed to re-subscribe to state changes.", logwrap.Err(err))
			}
		}()
	}

	return nil
}

// Close tears the connection down, failing any in-flight requests.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

func (c *Client) deliverResult(msg wsMessage) {
	c.pendingM.Lock()
	ch, found := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.pendingM.Unlock()

	if found {
		ch <- msg
	}
}

func (c *Client) dispatchStateChange(ev *wsEvent) {
	if c.handler == nil {
		return
	}

	c.deviceM.RLock()
	deviceID := c.deviceOf[ev.Data.EntityID]
	c.deviceM.RUnlock()

	c.handler(StateEvent{
		DeviceID: deviceID,
		EntityID: ev.Data.EntityID,
		Old:      stateFrom(ev.Data.OldState),
		New:      stateFrom(ev.Data.NewState),
	})
}

func stateFrom(ws *wsState) *State {
	if ws == nil {
		return nil
	}

	return &State{Value: ws.State, Attributes: ws.Attributes}
}

func (c *Client) request(ctx context.Context, msg wsMessage) (wsMessage, error) {
	ch := make(chan wsMessage, 1)

	c.pendingM.Lock()
	c.nextID++
	msg.ID = c.nextID
	c.pending[msg.ID] = ch
	c.pendingM.Unlock()

	c.writeM.Lock()
	err := c.conn.WriteJSON(msg)
	c.writeM.Unlock()

	if err != nil {
		c.pendingM.Lock()
		delete(c.pending, msg.ID)
		c.pendingM.Unlock()
		return wsMessage{}, err
	}

	select {
	case response := <-ch:
		if response.Success != nil && !*response.Success {
			return response, fmt.Errorf("command %s rejected by remote", msg.Type)
		}
		return response, nil
	case <-ctx.Done():
		c.pendingM.Lock()
		delete(c.pending, msg.ID)
		c.pendingM.Unlock()
		return wsMessage{}, ctx.Err()
	}
}

// SubscribeStateChanges subscribes the handler to the state change stream.
// The subscription is re-established on every reconnect.
func (c *Client) SubscribeStateChanges(ctx context.Context) error {
	if _, err := c.request(ctx, wsMessage{Type: "subscribe_events", EventType: "state_changed"}); err != nil {
		return err
	}

	c.subM.Lock()
	c.subscribed = true
	c.subM.Unlock()

	return nil
}

// ListEntities bootstraps the entity set by combining the current states
// with the entity registry metadata.
func (c *Client) ListEntities(pctx context.Context) ([]Entity, error) {
	var entities []Entity

	err := retry.Retry(pctx, DefaultRequestTimeout, DefaultConnectRetries, func(ctx context.Context) error {
		statesMsg, err := c.request(ctx, wsMessage{Type: "get_states"})
		if err != nil {
			return err
		}

		var states []wsState
		if err := json.Unmarshal(statesMsg.Result, &states); err != nil {
			return fmt.Errorf("decoding states: %w", err)
		}

		registryMsg, err := c.request(ctx, wsMessage{Type: "config/entity_registry/list"})
		if err != nil {
			return err
		}

		var registry []wsRegistryEntry
		if err := json.Unmarshal(registryMsg.Result, &registry); err != nil {
			return fmt.Errorf("decoding entity registry: %w", err)
		}

		byEntity := map[string]wsRegistryEntry{}
		for _, entry := range registry {
			byEntity[entry.EntityID] = entry
		}

		c.deviceM.Lock()
		entities = nil
		for _, s := range states {
			entry := byEntity[s.EntityID]
			c.deviceOf[s.EntityID] = entry.DeviceID

			entities = append(entities, Entity{
				ID:       s.EntityID,
				DeviceID: entry.DeviceID,
				AreaID:   entry.AreaID,
				Labels:   entry.Labels,
				State:    State{Value: s.State, Attributes: s.Attributes},
			})
		}
		c.deviceM.Unlock()

		return nil
	})

	return entities, err
}

// CallService invokes a service on the external system.
func (c *Client) CallService(ctx context.Context, domain string, service string, entityID string, data map[string]any) error {
	_, err := c.request(ctx, wsMessage{
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
		Target:      &wsTarget{EntityID: entityID},
	})

	return err
}

var _ ServiceCaller = (*Client)(nil)
