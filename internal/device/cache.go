package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
	"github.com/dokzlo13/hueshim/internal/eventbus"
	"github.com/dokzlo13/hueshim/internal/ledger"
)

// Manager owns the process-wide device cache. Devices are built once
// per entity and kept for the process lifetime; their backend state
// callbacks are registered once and never removed.
type Manager struct {
	bridge  *bridge.Bridge
	backend Backend
	bus     *eventbus.Bus
	ledger  *ledger.Ledger
	log     zerolog.Logger

	mu      sync.Mutex
	devices map[string]*Device

	entertainmentActive atomic.Bool
}

// NewManager creates a device manager. The bus and ledger are optional.
func NewManager(br *bridge.Bridge, backend Backend, bus *eventbus.Bus, led *ledger.Ledger) *Manager {
	return &Manager{
		bridge:  br,
		backend: backend,
		bus:     bus,
		ledger:  led,
		log:     log.With().Str("component", "device").Logger(),
		devices: make(map[string]*Device),
	}
}

// Get returns the device for a backend entity, building and caching it
// on first use.
func (m *Manager) Get(ctx context.Context, entityID string) (*Device, error) {
	m.mu.Lock()
	if d, ok := m.devices[entityID]; ok {
		m.mu.Unlock()
		return d, nil
	}
	m.mu.Unlock()

	lightID := m.bridge.LightIDForEntity(entityID)
	config, err := m.bridge.LightConfig(lightID)
	if err != nil {
		return nil, fmt.Errorf("light config for %s: %w", entityID, err)
	}

	var devType Type
	if entity, ok := m.backend.EntityState(entityID); ok {
		devType = TypeFromColorModes(entity.StrListAttr("supported_color_modes"))
	}

	d := newDevice(m, lightID, entityID, devType, config)
	d.Refresh(ctx)
	m.backend.OnEntityState(entityID, func() {
		d.Refresh(context.Background())
	})

	m.mu.Lock()
	// Another goroutine may have won the race; keep the first device so
	// only one backend callback drives it.
	if existing, ok := m.devices[entityID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.devices[entityID] = d
	m.mu.Unlock()
	return d, nil
}

// ByLightID returns the device for a bridge light id.
func (m *Manager) ByLightID(ctx context.Context, lightID string) (*Device, error) {
	entityID, err := m.bridge.EntityIDForLight(lightID)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, entityID)
}

// Cached returns the already built device for an entity, if any.
func (m *Manager) Cached(entityID string) (*Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[entityID]
	return d, ok
}

// SetEntertainmentActive toggles the streaming flag that rate limits
// per-device backend refreshes.
func (m *Manager) SetEntertainmentActive(active bool) {
	m.entertainmentActive.Store(active)
}

// EntertainmentActive reports whether a streaming session is running.
func (m *Manager) EntertainmentActive() bool {
	return m.entertainmentActive.Load()
}

// ForceRefreshAll refreshes every cached device from the backend. Used
// when a streaming session ends and the rate limited devices may hold
// stale state.
func (m *Manager) ForceRefreshAll(ctx context.Context) {
	m.mu.Lock()
	devices := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.Unlock()

	for _, d := range devices {
		d.Refresh(ctx)
	}
}

func (m *Manager) recordCommand(d *Device, source, service string, data map[string]any) {
	if m.ledger != nil {
		if err := m.ledger.Append(d.entityID, d.lightID, source, service, data); err != nil {
			m.log.Error().Err(err).Str("entity_id", d.entityID).Msg("failed to record command")
		}
	}
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeDeviceCommand,
			Data: map[string]any{
				"entity_id": d.entityID,
				"light_id":  d.lightID,
				"source":    source,
				"service":   service,
				"data":      data,
			},
		})
	}
}

func (m *Manager) publishState(d *Device) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeDeviceState,
		Data: map[string]any{
			"entity_id": d.entityID,
			"light_id":  d.lightID,
		},
	})
}
