// Package hass is the Home Assistant backend adapter. It keeps a
// websocket connection for state, registries and events, and falls back
// to the REST API for the few operations the websocket has no message
// for.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMaxReconnectsExceeded is returned when the maximum number of reconnect attempts is exceeded.
var ErrMaxReconnectsExceeded = errors.New("max reconnects exceeded")

// ErrNotConnected is returned when a call is attempted without an active connection.
var ErrNotConnected = errors.New("not connected to backend")

// ReconnectConfig contains configuration for websocket reconnection.
type ReconnectConfig struct {
	MinBackoff    time.Duration // Minimum backoff between reconnects
	MaxBackoff    time.Duration // Maximum backoff between reconnects
	Multiplier    float64       // Backoff multiplier
	MaxReconnects int           // Max reconnect attempts, 0 = infinite
}

// DefaultReconnectConfig returns sensible defaults for reconnection.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MinBackoff:    1 * time.Second,
		MaxBackoff:    2 * time.Minute,
		Multiplier:    2.0,
		MaxReconnects: 0, // infinite
	}
}

// Client talks to one Home Assistant instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	reconnect  ReconnectConfig
	log        zerolog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	states    map[string]*Entity
	entityReg map[string]RegistryEntry
	deviceReg map[string]DeviceEntry
	areaReg   map[string]Area
	listeners map[string][]func()

	writeMu sync.Mutex
	msgID   int64
	pending map[int64]chan json.RawMessage
}

// NewClient creates a backend client. baseURL is the plain HTTP base,
// e.g. "http://homeassistant.local:8123".
func NewClient(baseURL, token string, timeout time.Duration, reconnect ReconnectConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		reconnect:  reconnect,
		log:        log.With().Str("component", "hass").Logger(),
		states:     map[string]*Entity{},
		entityReg:  map[string]RegistryEntry{},
		deviceReg:  map[string]DeviceEntry{},
		areaReg:    map[string]Area{},
		listeners:  map[string][]func(){},
		pending:    map[int64]chan json.RawMessage{},
	}
}

type wsMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Event   *wsEvent        `json:"event,omitempty"`
	Error   *wsError        `json:"error,omitempty"`
}

type wsEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string  `json:"entity_id"`
		NewState *Entity `json:"new_state"`
	} `json:"data"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) websocketURL() string {
	url := c.baseURL + "/api/websocket"
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	return "ws://" + strings.TrimPrefix(url, "http://")
}

// Connect dials the websocket, authenticates and primes the caches.
// A failure here at startup is fatal for the caller.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL(), nil)
	if err != nil {
		return fmt.Errorf("dial backend websocket: %w", err)
	}

	if err := c.authenticate(conn); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.prime(ctx); err != nil {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		return err
	}

	c.log.Info().Int("entities", len(c.states)).Msg("Connected to backend")
	return nil
}

func (c *Client) authenticate(conn *websocket.Conn) error {
	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}
	if err := conn.WriteJSON(map[string]string{"type": "auth", "access_token": c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	var reply wsMessage
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if reply.Type != "auth_ok" {
		return fmt.Errorf("backend rejected token (%s)", reply.Type)
	}
	return nil
}

// prime subscribes to state changes and loads states plus the three
// registries. Must run before the read loop starts, so it reads replies
// inline.
func (c *Client) prime(ctx context.Context) error {
	send := func(msg map[string]any) (json.RawMessage, error) {
		c.writeMu.Lock()
		c.msgID++
		msg["id"] = c.msgID
		err := c.conn.WriteJSON(msg)
		c.writeMu.Unlock()
		if err != nil {
			return nil, err
		}
		for {
			var reply wsMessage
			if err := c.conn.ReadJSON(&reply); err != nil {
				return nil, err
			}
			if reply.Type != "result" {
				continue
			}
			if reply.Success != nil && !*reply.Success {
				if reply.Error != nil {
					return nil, fmt.Errorf("backend error %s: %s", reply.Error.Code, reply.Error.Message)
				}
				return nil, errors.New("backend command failed")
			}
			return reply.Result, nil
		}
	}

	if _, err := send(map[string]any{"type": "subscribe_events", "event_type": "state_changed"}); err != nil {
		return fmt.Errorf("subscribe state_changed: %w", err)
	}

	raw, err := send(map[string]any{"type": "get_states"})
	if err != nil {
		return fmt.Errorf("get_states: %w", err)
	}
	var states []*Entity
	if err := json.Unmarshal(raw, &states); err != nil {
		return fmt.Errorf("decode states: %w", err)
	}

	raw, err = send(map[string]any{"type": "config/entity_registry/list"})
	if err != nil {
		return fmt.Errorf("entity registry: %w", err)
	}
	var entities []RegistryEntry
	if err := json.Unmarshal(raw, &entities); err != nil {
		return fmt.Errorf("decode entity registry: %w", err)
	}

	raw, err = send(map[string]any{"type": "config/device_registry/list"})
	if err != nil {
		return fmt.Errorf("device registry: %w", err)
	}
	var devices []DeviceEntry
	if err := json.Unmarshal(raw, &devices); err != nil {
		return fmt.Errorf("decode device registry: %w", err)
	}

	raw, err = send(map[string]any{"type": "config/area_registry/list"})
	if err != nil {
		return fmt.Errorf("area registry: %w", err)
	}
	var areas []Area
	if err := json.Unmarshal(raw, &areas); err != nil {
		return fmt.Errorf("decode area registry: %w", err)
	}

	c.mu.Lock()
	for _, ent := range states {
		c.states[ent.EntityID] = ent
	}
	for _, reg := range entities {
		c.entityReg[reg.EntityID] = reg
	}
	for _, dev := range devices {
		c.deviceReg[dev.ID] = dev
	}
	for _, area := range areas {
		c.areaReg[area.AreaID] = area
	}
	c.mu.Unlock()
	return nil
}

// Run reads events until the context is cancelled, reconnecting with
// exponential backoff. Returns ErrMaxReconnectsExceeded when the retry
// budget is spent.
func (c *Client) Run(ctx context.Context) error {
	retryCount := 0
	currentBackoff := c.reconnect.MinBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := c.readLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}

		retryCount++
		if c.reconnect.MaxReconnects > 0 && retryCount > c.reconnect.MaxReconnects {
			c.log.Error().
				Int("max_reconnects", c.reconnect.MaxReconnects).
				Msg("Backend connection: max reconnects exceeded, terminating")
			return ErrMaxReconnectsExceeded
		}

		c.log.Warn().
			Err(err).
			Dur("backoff", currentBackoff).
			Int("retry", retryCount).
			Msg("Backend disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(currentBackoff):
		}

		nextBackoff := time.Duration(float64(currentBackoff) * c.reconnect.Multiplier)
		if nextBackoff > c.reconnect.MaxBackoff {
			nextBackoff = c.reconnect.MaxBackoff
		}
		currentBackoff = nextBackoff

		if err := c.Connect(ctx); err != nil {
			c.log.Warn().Err(err).Msg("Reconnect attempt failed")
			continue
		}
		retryCount = 0
		currentBackoff = c.reconnect.MinBackoff
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Type {
		case "event":
			if msg.Event != nil && msg.Event.EventType == "state_changed" {
				c.handleStateChanged(msg.Event)
			}
		case "result":
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg.Result
			}
		}
	}
}

func (c *Client) handleStateChanged(event *wsEvent) {
	entityID := event.Data.EntityID
	c.mu.Lock()
	if event.Data.NewState != nil {
		c.states[entityID] = event.Data.NewState
	} else {
		delete(c.states, entityID)
	}
	callbacks := append([]func(){}, c.listeners[entityID]...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// sendCommand issues a websocket command and waits for its result.
func (c *Client) sendCommand(ctx context.Context, msg map[string]any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	ch := make(chan json.RawMessage, 1)
	c.writeMu.Lock()
	c.msgID++
	id := c.msgID
	msg["id"] = id
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return errors.New("backend command timed out")
	}
}

// Close tears down the websocket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// --- state access ---

// EntityState returns the cached state for an entity.
func (c *Client) EntityState(entityID string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ent, ok := c.states[entityID]
	if !ok {
		return Entity{}, false
	}
	return *ent, true
}

// EntitiesByDomain returns entity ids in the given domain, skipping
// entities disabled in the registry.
func (c *Client) EntitiesByDomain(domain string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := domain + "."
	var out []string
	for id := range c.states {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if reg, ok := c.entityReg[id]; ok && reg.DisabledBy != "" {
			continue
		}
		out = append(out, id)
	}
	return out
}

// OnEntityState registers a callback invoked whenever the entity's state
// changes. Callbacks are never unregistered; churn is bounded by the
// entity count.
func (c *Client) OnEntityState(entityID string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[entityID] = append(c.listeners[entityID], fn)
}

// DeviceForEntity resolves an entity to its device registry row.
func (c *Client) DeviceForEntity(entityID string) (DeviceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.entityReg[entityID]
	if !ok || reg.DeviceID == "" {
		return DeviceEntry{}, false
	}
	dev, ok := c.deviceReg[reg.DeviceID]
	return dev, ok
}

// Areas returns all light-bearing areas with their entities resolved
// through the entity and device registries.
func (c *Client) Areas() []AreaView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byArea := map[string][]string{}
	for entityID := range c.states {
		if !strings.HasPrefix(entityID, "light.") {
			continue
		}
		reg, ok := c.entityReg[entityID]
		if !ok || reg.DisabledBy != "" {
			continue
		}
		areaID := reg.AreaID
		if areaID == "" && reg.DeviceID != "" {
			if dev, ok := c.deviceReg[reg.DeviceID]; ok {
				areaID = dev.AreaID
			}
		}
		if areaID != "" {
			byArea[areaID] = append(byArea[areaID], entityID)
		}
	}

	var out []AreaView
	for areaID, entities := range byArea {
		area, ok := c.areaReg[areaID]
		if !ok {
			continue
		}
		out = append(out, AreaView{AreaID: areaID, Name: area.Name, Entities: entities})
	}
	return out
}

// --- service calls ---

// CallService invokes a backend service. Fire-and-forget: the result is
// awaited only to surface transport errors.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	return c.sendCommand(ctx, map[string]any{
		"type":         "call_service",
		"domain":       domain,
		"service":      service,
		"service_data": data,
	})
}

// TurnOn turns on a light with the given service data.
func (c *Client) TurnOn(ctx context.Context, entityID string, data map[string]any) error {
	payload := map[string]any{"entity_id": entityID}
	for k, v := range data {
		payload[k] = v
	}
	return c.CallService(ctx, "light", "turn_on", payload)
}

// TurnOff turns off a light with the given service data.
func (c *Client) TurnOff(ctx context.Context, entityID string, data map[string]any) error {
	payload := map[string]any{"entity_id": entityID}
	for k, v := range data {
		payload[k] = v
	}
	return c.CallService(ctx, "light", "turn_off", payload)
}

// SetState publishes a synthetic entity state over REST. The websocket
// API has no set_state command.
func (c *Client) SetState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	body, err := json.Marshal(map[string]any{"state": state, "attributes": attributes})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/states/"+entityID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("set state %s: unexpected status %d", entityID, resp.StatusCode)
	}
	return nil
}

// CreateNotification shows a persistent notification in the backend UI.
func (c *Client) CreateNotification(ctx context.Context, message, notificationID string) error {
	return c.CallService(ctx, "persistent_notification", "create", map[string]any{
		"message":         message,
		"notification_id": notificationID,
	})
}

// DismissNotification removes a persistent notification.
func (c *Client) DismissNotification(ctx context.Context, notificationID string) error {
	return c.CallService(ctx, "persistent_notification", "dismiss", map[string]any{
		"notification_id": notificationID,
	})
}
