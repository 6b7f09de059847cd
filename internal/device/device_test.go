package device

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dokzlo13/hueshim/internal/bridge"
	"github.com/dokzlo13/hueshim/internal/hass"
)

type backendCall struct {
	service  string
	entityID string
	data     map[string]any
}

// fakeBackend is an in-memory Backend for device tests.
type fakeBackend struct {
	mu        sync.Mutex
	entities  map[string]hass.Entity
	devices   map[string]hass.DeviceEntry
	calls     []backendCall
	callbacks map[string][]func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		entities:  map[string]hass.Entity{},
		devices:   map[string]hass.DeviceEntry{},
		callbacks: map[string][]func(){},
	}
}

func (f *fakeBackend) setEntity(e hass.Entity) {
	f.mu.Lock()
	f.entities[e.EntityID] = e
	cbs := append([]func(){}, f.callbacks[e.EntityID]...)
	f.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (f *fakeBackend) EntityState(entityID string) (hass.Entity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[entityID]
	return e, ok
}

func (f *fakeBackend) OnEntityState(entityID string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[entityID] = append(f.callbacks[entityID], fn)
}

func (f *fakeBackend) DeviceForEntity(entityID string) (hass.DeviceEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[entityID]
	return d, ok
}

func (f *fakeBackend) TurnOn(ctx context.Context, entityID string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backendCall{"turn_on", entityID, data})
	return nil
}

func (f *fakeBackend) TurnOff(ctx context.Context, entityID string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backendCall{"turn_off", entityID, data})
	return nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) lastCall(t *testing.T) backendCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no backend calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func testManager(t *testing.T) (*Manager, *fakeBackend, *bridge.Bridge) {
	t.Helper()
	store := bridge.OpenStore(filepath.Join(t.TempDir(), "config.json"))
	br := bridge.New(bridge.NewIdentity("b6:82:d3:45:ac:29", "127.0.0.1"), store, nil, 80, 443, false)
	fb := newFakeBackend()
	return NewManager(br, fb, nil, nil), fb, br
}

func lightEntity(entityID string, state string, attrs map[string]any) hass.Entity {
	return hass.Entity{EntityID: entityID, State: state, Attributes: attrs}
}

// setThrottle overrides the light's throttle window before the device
// is built.
func setThrottle(t *testing.T, br *bridge.Bridge, entityID string, ms int) {
	t.Helper()
	lightID := br.LightIDForEntity(entityID)
	conf, err := br.LightConfig(lightID)
	if err != nil {
		t.Fatal(err)
	}
	conf["throttle"] = ms
	br.Store().SetIn("lights", lightID, conf)
}

func TestManagerGetBuildsOnce(t *testing.T) {
	m, fb, _ := testManager(t)
	fb.setEntity(lightEntity("light.kitchen", "on", map[string]any{
		"supported_color_modes": []any{"color_temp"},
		"friendly_name":         "Kitchen",
	}))

	d, err := m.Get(context.Background(), "light.kitchen")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Type() != TypeColorTemp {
		t.Errorf("type = %v, want TypeColorTemp", d.Type())
	}
	if d.LightID() != "1" {
		t.Errorf("light id = %q", d.LightID())
	}
	if d.Name() != "Kitchen" {
		t.Errorf("name = %q", d.Name())
	}

	again, err := m.Get(context.Background(), "light.kitchen")
	if err != nil {
		t.Fatal(err)
	}
	if again != d {
		t.Error("second Get built a new device")
	}
	if byID, _ := m.ByLightID(context.Background(), "1"); byID != d {
		t.Error("ByLightID resolved a different device")
	}
}

func TestDeviceObservesBackendState(t *testing.T) {
	m, fb, _ := testManager(t)
	fb.setEntity(lightEntity("light.desk", "on", map[string]any{
		"supported_color_modes": []any{"xy", "color_temp"},
		"brightness":            float64(180),
		"color_mode":            "xy",
		"xy_color":              []any{0.4, 0.35},
	}))

	d, err := m.Get(context.Background(), "light.desk")
	if err != nil {
		t.Fatal(err)
	}
	if !d.PowerState() {
		t.Error("power state not observed")
	}
	if d.Brightness() != 180 {
		t.Errorf("brightness = %d", d.Brightness())
	}
	if xy := d.XY(); xy.X != 0.4 || xy.Y != 0.35 {
		t.Errorf("xy = %v", xy)
	}
	if d.ColorMode() != ColorModeXY {
		t.Errorf("color mode = %q", d.ColorMode())
	}

	// Backend updates flow through the registered callback.
	fb.setEntity(lightEntity("light.desk", "unavailable", nil))
	if d.Reachable() {
		t.Error("device still reachable after entity went unavailable")
	}
}

func TestCommandRoundTrip(t *testing.T) {
	m, fb, br := testManager(t)
	fb.setEntity(lightEntity("light.desk", "on", map[string]any{
		"supported_color_modes": []any{"brightness"},
		"brightness":            float64(50),
	}))
	setThrottle(t, br, "light.desk", 0)

	d, err := m.Get(context.Background(), "light.desk")
	if err != nil {
		t.Fatal(err)
	}

	if err := d.NewCommand("test").SetBrightness(200).Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	call := fb.lastCall(t)
	if call.service != "turn_on" || call.entityID != "light.desk" {
		t.Fatalf("call = %+v", call)
	}
	if call.data["brightness"] != 200 {
		t.Errorf("brightness = %v", call.data["brightness"])
	}
	if d.Brightness() != 200 {
		t.Errorf("composed brightness = %d after command", d.Brightness())
	}

	if err := d.NewCommand("test").SetPowerState(false).Execute(context.Background()); err != nil {
		t.Fatalf("Execute off: %v", err)
	}
	call = fb.lastCall(t)
	if call.service != "turn_off" {
		t.Fatalf("call = %+v", call)
	}
	if call.data != nil {
		t.Error("turn_off carried service data")
	}
	if d.PowerState() {
		t.Error("device still on after turn_off")
	}
}

func TestCoalescingDropsIdenticalCommand(t *testing.T) {
	m, fb, br := testManager(t)
	fb.setEntity(lightEntity("light.desk", "on", map[string]any{
		"supported_color_modes": []any{"brightness"},
	}))
	setThrottle(t, br, "light.desk", 0)

	d, err := m.Get(context.Background(), "light.desk")
	if err != nil {
		t.Fatal(err)
	}

	if err := d.NewCommand("test").SetBrightness(120).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := fb.callCount()
	if err := d.NewCommand("test").SetBrightness(120).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fb.callCount() != before {
		t.Error("identical command was not coalesced")
	}
}

func TestThrottleWindow(t *testing.T) {
	m, fb, br := testManager(t)
	fb.setEntity(lightEntity("light.desk", "on", map[string]any{
		"supported_color_modes": []any{"brightness"},
	}))
	// Window long enough that the test stays inside it.
	setThrottle(t, br, "light.desk", 60_000)

	d, err := m.Get(context.Background(), "light.desk")
	if err != nil {
		t.Fatal(err)
	}

	if err := d.NewCommand("test").SetBrightness(100).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := fb.callCount()
	if first == 0 {
		t.Fatal("first command throttled")
	}

	// Small delta inside the window is dropped.
	if err := d.NewCommand("test").SetBrightness(110).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fb.callCount() != first {
		t.Error("small brightness change not throttled")
	}

	// A delta above the threshold overrides the throttle.
	if err := d.NewCommand("test").SetBrightness(250).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fb.callCount() != first+1 {
		t.Error("large brightness change was throttled")
	}
}

func TestBuilderCapabilityGates(t *testing.T) {
	m, fb, br := testManager(t)
	fb.setEntity(lightEntity("light.plug", "on", map[string]any{
		"supported_color_modes": []any{"onoff"},
	}))
	setThrottle(t, br, "light.plug", 0)

	d, err := m.Get(context.Background(), "light.plug")
	if err != nil {
		t.Fatal(err)
	}

	cmd := d.NewCommand("test").
		SetBrightness(200).
		SetColorTemperature(300).
		SetXY(0.5, 0.5).
		SetHueSat(100, 50)
	state := cmd.State()
	if state.Brightness != nil {
		t.Error("brightness set on an on/off device")
	}
	if state.ColorTemp != nil || state.XYColor != nil || state.HueSaturation != nil {
		t.Error("color fields set on an on/off device")
	}
}

func TestBuilderBrightnessClamp(t *testing.T) {
	m, fb, br := testManager(t)
	fb.setEntity(lightEntity("light.desk", "on", map[string]any{
		"supported_color_modes": []any{"brightness"},
	}))
	setThrottle(t, br, "light.desk", 0)

	d, err := m.Get(context.Background(), "light.desk")
	if err != nil {
		t.Fatal(err)
	}

	if got := *d.NewCommand("test").SetBrightness(999).State().Brightness; got != 255 {
		t.Errorf("brightness = %d, want 255", got)
	}
	if got := *d.NewCommand("test").SetBrightness(-5).State().Brightness; got != 1 {
		t.Errorf("brightness = %d, want 1", got)
	}
}

func TestBuilderTransitionRespectsThrottle(t *testing.T) {
	m, fb, br := testManager(t)
	fb.setEntity(lightEntity("light.desk", "on", map[string]any{
		"supported_color_modes": []any{"brightness"},
	}))
	setThrottle(t, br, "light.desk", 400)

	d, err := m.Get(context.Background(), "light.desk")
	if err != nil {
		t.Fatal(err)
	}

	state := d.NewCommand("test").SetTransitionMS(0, true).State()
	if state.TransitionSeconds == nil || *state.TransitionSeconds != 0.4 {
		t.Errorf("transition = %v, want raised to 0.4s", state.TransitionSeconds)
	}

	state = d.NewCommand("test").SetTransitionMS(0, false).State()
	if state.TransitionSeconds == nil || *state.TransitionSeconds != 0 {
		t.Errorf("transition = %v, want 0", state.TransitionSeconds)
	}
}
