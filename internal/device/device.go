// Package device models the lights exposed through the bridge. Each
// Device wraps one backend light entity and carries three state layers:
// the last command sent, the state observed from the backend and the
// state persisted in the config store.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/hueshim/internal/hass"
)

const (
	// DefaultTransitionSeconds is applied when a command carries no
	// explicit transition time.
	DefaultTransitionSeconds = 0.4
	// BrightnessThrottleThreshold is the brightness delta that
	// overrides the throttle window.
	BrightnessThrottleThreshold = 255 / 4
	// EntertainmentRefreshInterval caps backend state polling while a
	// streaming session is active. Without the cap every streamed frame
	// would trigger a refresh and add visible lag.
	EntertainmentRefreshInterval = time.Second
)

// Backend is the slice of the Home Assistant client the device layer
// depends on.
type Backend interface {
	EntityState(entityID string) (hass.Entity, bool)
	OnEntityState(entityID string, fn func())
	DeviceForEntity(entityID string) (hass.DeviceEntry, bool)
	TurnOn(ctx context.Context, entityID string, data map[string]any) error
	TurnOff(ctx context.Context, entityID string, data map[string]any) error
}

// Type classifies a light by its feature set.
type Type int

const (
	TypeOnOff Type = iota
	TypeDimmable
	TypeColorTemp
	TypeColor
	TypeExtendedColor
)

// String returns the Hue product type name.
func (t Type) String() string {
	switch t {
	case TypeDimmable:
		return "Dimmable light"
	case TypeColorTemp:
		return "Color temperature light"
	case TypeColor:
		return "Color light"
	case TypeExtendedColor:
		return "Extended color light"
	}
	return "On/off light"
}

// HasBrightness reports whether the type supports dimming.
func (t Type) HasBrightness() bool { return t != TypeOnOff }

// HasColorTemp reports whether the type supports color temperature.
func (t Type) HasColorTemp() bool { return t == TypeColorTemp || t == TypeExtendedColor }

// HasColor reports whether the type supports gamut color.
func (t Type) HasColor() bool { return t == TypeColor || t == TypeExtendedColor }

// TypeFromColorModes infers the device type from the backend's
// supported_color_modes attribute.
func TypeFromColorModes(modes []string) Type {
	hasColor := containsAny(modes, ColorModeHS, ColorModeXY, ColorModeRGB, ColorModeRGBW, ColorModeRGBWW)
	hasWhite := containsAny(modes, ColorModeColorTemp, ColorModeRGBW, ColorModeRGBWW, ColorModeWhite)
	switch {
	case hasColor && hasWhite:
		return TypeExtendedColor
	case hasColor:
		return TypeColor
	case containsAny(modes, ColorModeColorTemp):
		return TypeColorTemp
	case containsAny(modes, ColorModeBrightness):
		return TypeDimmable
	}
	return TypeOnOff
}

func containsAny(haystack []string, needles ...string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}

// Properties carries backend device registry attributes for a light.
type Properties struct {
	Manufacturer string
	Model        string
	Name         string
	SWVersion    string
	UniqueID     string
}

func propertiesFromBackend(backend Backend, entityID string) Properties {
	entry, ok := backend.DeviceForEntity(entityID)
	if !ok {
		return Properties{}
	}
	return Properties{
		Manufacturer: entry.Manufacturer,
		Model:        entry.Model,
		Name:         entry.Name,
		SWVersion:    entry.SWVersion,
		UniqueID:     entry.UniqueIdentifier(),
	}
}

// Device is a single bridged light.
type Device struct {
	mgr      *Manager
	log      zerolog.Logger
	lightID  string
	entityID string
	devType  Type
	props    Properties

	refreshGate *rate.Limiter

	mu                sync.Mutex
	config            map[string]any
	hassState         *EntityState
	configState       *EntityState
	throttleMS        int
	defaultTransition float64
	lastCommand       time.Time
}

func newDevice(mgr *Manager, lightID, entityID string, devType Type, config map[string]any) *Device {
	d := &Device{
		mgr:      mgr,
		log:      mgr.log.With().Str("light_id", lightID).Str("entity_id", entityID).Logger(),
		lightID:  lightID,
		entityID: entityID,
		devType:  devType,
		props:    propertiesFromBackend(mgr.backend, entityID),
		config:   config,

		refreshGate: rate.NewLimiter(rate.Every(EntertainmentRefreshInterval), 1),
	}
	if v, ok := toInt(config["throttle"]); ok {
		d.throttleMS = v
	}
	d.defaultTransition = DefaultTransitionSeconds
	if ms := float64(d.throttleMS) / 1000; ms > d.defaultTransition {
		d.defaultTransition = ms
	}
	saved, _ := config["state"].(map[string]any)
	d.configState = StateFromMap(saved)
	return d
}

// LightID returns the numeric bridge light id.
func (d *Device) LightID() string { return d.lightID }

// EntityID returns the backend entity id.
func (d *Device) EntityID() string { return d.entityID }

// Type returns the device classification.
func (d *Device) Type() Type { return d.devType }

// Properties returns the backend device registry attributes.
func (d *Device) Properties() Properties { return d.props }

// ThrottleMS returns the configured throttle window in milliseconds.
func (d *Device) ThrottleMS() int { return d.throttleMS }

// Enabled reports whether the light is exposed through the bridge.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.config["enabled"].(bool); ok {
		return v
	}
	return true
}

// Name returns the light name, preferring the locally configured name
// over the backend's friendly name.
func (d *Device) Name() string {
	d.mu.Lock()
	if name, ok := d.config["name"].(string); ok && name != "" {
		d.mu.Unlock()
		return name
	}
	d.mu.Unlock()
	if entity, ok := d.mgr.backend.EntityState(d.entityID); ok {
		return entity.StrAttr("friendly_name")
	}
	return ""
}

// SetName stores a local name override.
func (d *Device) SetName(name string) {
	d.mu.Lock()
	d.config["name"] = name
	d.mgr.bridge.Store().SetIn("lights", d.lightID, d.config)
	d.mu.Unlock()
}

// UniqueID returns the Hue unique id, preferring the backend device
// registry identifier over the locally generated one.
func (d *Device) UniqueID() string {
	if d.props.UniqueID != "" {
		return d.props.UniqueID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	uid, _ := d.config["uniqueid"].(string)
	return uid
}

// State returns a copy of the composed device state.
func (d *Device) State() EntityState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.configState
}

// Reachable reports whether the backend entity is available.
func (d *Device) Reachable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configState.IsReachable()
}

// PowerState reports the composed power state.
func (d *Device) PowerState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configState.On()
}

// TransitionSeconds returns the active transition time.
func (d *Device) TransitionSeconds() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.TransitionSeconds != nil {
		return *d.configState.TransitionSeconds
	}
	return d.defaultTransition
}

// Brightness returns the composed brightness, 0 when unset.
func (d *Device) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.Brightness != nil {
		return *d.configState.Brightness
	}
	return 0
}

// ColorMode returns the active color mode. Color temperature devices
// default to color_temp, gamut devices to xy.
func (d *Device) ColorMode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.ColorMode != nil {
		return *d.configState.ColorMode
	}
	if d.devType.HasColorTemp() && !d.devType.HasColor() {
		return ColorModeColorTemp
	}
	return ColorModeXY
}

// ColorTemp returns the composed color temperature in mireds.
func (d *Device) ColorTemp() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.ColorTemp != nil {
		return *d.configState.ColorTemp
	}
	return 153
}

// HueSat returns the composed hue/saturation in backend space.
func (d *Device) HueSat() HueSat {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.HueSaturation != nil {
		return *d.configState.HueSaturation
	}
	return HueSat{}
}

// XY returns the composed xy color point.
func (d *Device) XY() XYPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.XYColor != nil {
		return *d.configState.XYColor
	}
	return XYPoint{}
}

// RGB returns the composed RGB color.
func (d *Device) RGB() RGBColor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.RGBColor != nil {
		return *d.configState.RGBColor
	}
	return RGBColor{}
}

// Effect returns the composed effect name.
func (d *Device) Effect() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.configState.Effect != nil {
		return *d.configState.Effect
	}
	return ""
}

// Entity returns the latest raw backend entity.
func (d *Device) Entity() (hass.Entity, bool) {
	return d.mgr.backend.EntityState(d.entityID)
}

// MinMireds returns the backend's minimum color temperature.
func (d *Device) MinMireds() int {
	if entity, ok := d.Entity(); ok {
		if v, ok := entity.IntAttr("min_mireds"); ok {
			return v
		}
	}
	return 153
}

// MaxMireds returns the backend's maximum color temperature.
func (d *Device) MaxMireds() int {
	if entity, ok := d.Entity(); ok {
		if v, ok := entity.IntAttr("max_mireds"); ok {
			return v
		}
	}
	return 500
}

// Refresh pulls the current backend state and recomposes the persisted
// state. While a streaming session is active refreshes are rate limited
// per device.
func (d *Device) Refresh(ctx context.Context) {
	if d.mgr.EntertainmentActive() && !d.refreshGate.Allow() {
		return
	}

	entity, ok := d.mgr.backend.EntityState(d.entityID)
	if !ok {
		d.log.Debug().Msg("entity not found in backend state cache")
		return
	}

	d.mu.Lock()
	d.hassState = d.observedState(entity)
	d.recomposeLocked(nil)
	d.mu.Unlock()

	d.mgr.publishState(d)
}

// observedState maps a raw backend entity to the state fields this
// device type understands.
func (d *Device) observedState(entity hass.Entity) *EntityState {
	on := entity.State == "on"
	reachable := entity.State != "unavailable"
	s := &EntityState{PowerState: &on, Reachable: &reachable}
	if !d.devType.HasBrightness() {
		return s
	}
	if v, ok := entity.IntAttr("brightness"); ok {
		s.Brightness = &v
	}
	if mode := entity.StrAttr("color_mode"); mode != "" {
		s.ColorMode = &mode
	}
	if d.devType.HasColorTemp() {
		if v, ok := entity.IntAttr("color_temp"); ok {
			s.ColorTemp = &v
		}
	}
	if d.devType.HasColor() {
		if h, sat, ok := entity.FloatPair("hs_color"); ok {
			s.HueSaturation = &HueSat{Hue: int(h), Sat: int(sat)}
		}
		if x, y, ok := entity.FloatPair("xy_color"); ok {
			s.XYColor = &XYPoint{X: x, Y: y}
		}
		if r, g, b, ok := entity.IntTriple("rgb_color"); ok {
			s.RGBColor = &RGBColor{R: r, G: g, B: b}
		}
	}
	return s
}

// recomposeLocked merges the layers and persists the result. Caller
// holds d.mu.
func (d *Device) recomposeLocked(control *EntityState) {
	saved := StateFromMap(nil)
	if m, ok := d.config["state"].(map[string]any); ok {
		saved = StateFromMap(m)
	}
	d.configState = Compose(control, d.hassState, saved)
	d.config["state"] = d.configState.ToMap()
	d.mgr.bridge.Store().SetIn("lights", d.lightID, d.config)
}

// updateAllowed is the throttle gate. A command identical to the
// current composed state is always dropped. Within the throttle window
// commands are dropped unless the brightness delta exceeds the
// override threshold.
func (d *Device) updateAllowed(control *EntityState) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.configState.Equal(control) {
		return false
	}
	if d.throttleMS == 0 {
		return true
	}

	now := time.Now()
	if now.Sub(d.lastCommand) < time.Duration(d.throttleMS)*time.Millisecond {
		if control.Brightness != nil && d.configState.Brightness != nil &&
			abs(*d.configState.Brightness-*control.Brightness) > BrightnessThrottleThreshold {
			return true
		}
		return false
	}
	d.lastCommand = now
	return true
}

// execute delivers a control state to the backend.
func (d *Device) execute(ctx context.Context, control *EntityState, source string) error {
	if control == nil {
		d.log.Warn().Msg("no state to execute")
		return nil
	}
	if !d.updateAllowed(control) {
		return nil
	}

	var (
		service string
		data    map[string]any
		err     error
	)
	if control.On() {
		service = "turn_on"
		data = control.ToServiceData()
		err = d.mgr.backend.TurnOn(ctx, d.entityID, data)
	} else {
		service = "turn_off"
		err = d.mgr.backend.TurnOff(ctx, d.entityID, nil)
	}
	if err != nil {
		return fmt.Errorf("execute %s for %s: %w", service, d.entityID, err)
	}

	d.mu.Lock()
	d.recomposeLocked(control)
	d.mu.Unlock()

	d.mgr.recordCommand(d, source, service, data)
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
