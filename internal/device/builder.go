package device

import "context"

// Command accumulates a control state for one device. Setters for
// features the device does not support are silently ignored, so
// callers can apply a generic request body without checking the
// device type first.
type Command struct {
	device *Device
	state  *EntityState
	source string
}

// NewCommand starts a command seeded with the device's current power
// state and transition time.
func (d *Device) NewCommand(source string) *Command {
	on := d.PowerState()
	transition := d.TransitionSeconds()
	return &Command{
		device: d,
		source: source,
		state:  &EntityState{PowerState: &on, TransitionSeconds: &transition},
	}
}

// SetPowerState sets the target power state.
func (c *Command) SetPowerState(on bool) *Command {
	c.state.PowerState = &on
	return c
}

// SetTransitionMS sets the transition time in milliseconds. With
// respectThrottle the transition is raised to at least the device's
// throttle window so throttled commands still blend smoothly.
func (c *Command) SetTransitionMS(ms float64, respectThrottle bool) *Command {
	if respectThrottle && ms < float64(c.device.ThrottleMS()) {
		ms = float64(c.device.ThrottleMS())
	}
	seconds := ms / 1000
	c.state.TransitionSeconds = &seconds
	return c
}

// SetTransitionSeconds sets the transition time in seconds.
func (c *Command) SetTransitionSeconds(seconds float64, respectThrottle bool) *Command {
	return c.SetTransitionMS(seconds*1000, respectThrottle)
}

// SetBrightness sets the target brightness, clamped to 1-255.
func (c *Command) SetBrightness(brightness int) *Command {
	if !c.device.Type().HasBrightness() {
		return c
	}
	v := int(Clamp(float64(brightness), 1, 255))
	c.state.Brightness = &v
	return c
}

// SetColorTemperature sets the target color temperature in mireds and
// selects the color_temp color mode.
func (c *Command) SetColorTemperature(ct int) *Command {
	if !c.device.Type().HasColorTemp() {
		return c
	}
	mode := ColorModeColorTemp
	c.state.ColorTemp = &ct
	c.state.ColorMode = &mode
	return c
}

// SetHueSat sets the target hue/saturation in backend space (hue
// 0-360, sat 0-100) and selects the hs color mode.
func (c *Command) SetHueSat(hue, sat int) *Command {
	if !c.device.Type().HasColor() {
		return c
	}
	mode := ColorModeHS
	c.state.HueSaturation = &HueSat{Hue: hue, Sat: sat}
	c.state.ColorMode = &mode
	return c
}

// SetXY sets the target xy color point and selects the xy color mode.
func (c *Command) SetXY(x, y float64) *Command {
	if !c.device.Type().HasColor() {
		return c
	}
	mode := ColorModeXY
	c.state.XYColor = &XYPoint{X: x, Y: y}
	c.state.ColorMode = &mode
	return c
}

// SetRGB sets the target RGB color and selects the rgb color mode.
func (c *Command) SetRGB(r, g, b int) *Command {
	if !c.device.Type().HasColor() {
		return c
	}
	mode := ColorModeRGB
	c.state.RGBColor = &RGBColor{R: r, G: g, B: b}
	c.state.ColorMode = &mode
	return c
}

// SetEffect sets the target effect.
func (c *Command) SetEffect(effect string) *Command {
	if !c.device.Type().HasColor() {
		return c
	}
	c.state.Effect = &effect
	return c
}

// SetFlash requests an alert flash, "short" or "long". The backend
// requires a color target alongside a flash, so the current color is
// re-sent in the device's active color mode.
func (c *Command) SetFlash(flash string) *Command {
	if !c.device.Type().HasBrightness() {
		return c
	}
	c.state.FlashState = &flash
	switch {
	case c.device.Type().HasColor() && c.device.ColorMode() != ColorModeColorTemp:
		hs := c.device.HueSat()
		c.SetHueSat(hs.Hue, hs.Sat)
	case c.device.Type().HasColorTemp():
		c.SetColorTemperature(c.device.ColorTemp())
	}
	return c
}

// State returns the accumulated control state.
func (c *Command) State() *EntityState {
	return c.state
}

// Execute delivers the accumulated state through the throttle gate.
func (c *Command) Execute(ctx context.Context) error {
	return c.device.execute(ctx, c.state, c.source)
}
