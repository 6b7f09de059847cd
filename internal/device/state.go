package device

// Backend color modes, mirroring Home Assistant's light color model.
const (
	ColorModeOnOff      = "onoff"
	ColorModeBrightness = "brightness"
	ColorModeColorTemp  = "color_temp"
	ColorModeHS         = "hs"
	ColorModeXY         = "xy"
	ColorModeRGB        = "rgb"
	ColorModeRGBW       = "rgbw"
	ColorModeRGBWW      = "rgbww"
	ColorModeWhite      = "white"
)

// HueSat is a hue/saturation pair in backend space (hue 0-360, sat 0-100).
type HueSat struct {
	Hue int
	Sat int
}

// XYPoint is a CIE 1931 xy color coordinate.
type XYPoint struct {
	X float64
	Y float64
}

// RGBColor is an 8-bit RGB triple.
type RGBColor struct {
	R int
	G int
	B int
}

// EntityState is the state of a single light. Nil fields are unset and
// fall through to the next layer during composition: control state wins
// over the observed backend state, which wins over the last persisted
// state.
type EntityState struct {
	PowerState        *bool
	Reachable         *bool
	TransitionSeconds *float64
	Brightness        *int
	ColorTemp         *int
	HueSaturation     *HueSat
	XYColor           *XYPoint
	RGBColor          *RGBColor
	FlashState        *string
	Effect            *string
	ColorMode         *string
}

// On reports the power state, defaulting to true when unset.
func (s *EntityState) On() bool {
	if s == nil || s.PowerState == nil {
		return true
	}
	return *s.PowerState
}

// IsReachable reports reachability, defaulting to true when unset.
func (s *EntityState) IsReachable() bool {
	if s == nil || s.Reachable == nil {
		return true
	}
	return *s.Reachable
}

// colorModeAttribute returns the backend attribute name and value
// selected by the active color mode.
func (s *EntityState) colorModeAttribute() (string, any) {
	if s == nil || s.ColorMode == nil {
		return "", nil
	}
	switch *s.ColorMode {
	case ColorModeColorTemp:
		if s.ColorTemp != nil {
			return ColorModeColorTemp, *s.ColorTemp
		}
		return ColorModeColorTemp, nil
	case ColorModeHS:
		if s.HueSaturation != nil {
			return "hs_color", []any{s.HueSaturation.Hue, s.HueSaturation.Sat}
		}
		return "hs_color", nil
	case ColorModeXY:
		if s.XYColor != nil {
			return "xy_color", []any{s.XYColor.X, s.XYColor.Y}
		}
		return "xy_color", nil
	case ColorModeRGB:
		if s.RGBColor != nil {
			return "rgb_color", []any{s.RGBColor.R, s.RGBColor.G, s.RGBColor.B}
		}
		return "rgb_color", nil
	}
	return "", nil
}

// Equal implements coalescing equality: two states are the same command
// when power, brightness and the color-mode-selected attribute match.
// Other fields (transition, flash, effect) do not make a command new.
func (s *EntityState) Equal(other *EntityState) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.On() != other.On() {
		return false
	}
	if !intPtrEqual(s.Brightness, other.Brightness) {
		return false
	}
	aName, aVal := s.colorModeAttribute()
	bName, bVal := other.colorModeAttribute()
	if aName != bName {
		return false
	}
	return anyValueEqual(aVal, bVal)
}

// ToServiceData converts the state to turn_on service data. Flash and
// transition are mutually exclusive: a flashing light ignores
// transition times.
func (s *EntityState) ToServiceData() map[string]any {
	data := map[string]any{}
	if s.Brightness != nil && *s.Brightness != 0 {
		data["brightness"] = *s.Brightness
	}
	if name, val := s.colorModeAttribute(); name != "" && val != nil {
		data[name] = val
	}
	if s.Effect != nil && *s.Effect != "" {
		data["effect"] = *s.Effect
	}
	if s.FlashState != nil && *s.FlashState != "" {
		data["flash"] = *s.FlashState
	} else if s.TransitionSeconds != nil {
		data["transition"] = *s.TransitionSeconds
	}
	return data
}

// Compose merges the three state layers field by field. A control field
// wins when set, then the observed field, then the previously saved
// field.
func Compose(control, observed, saved *EntityState) *EntityState {
	return &EntityState{
		PowerState:        firstSet(control, observed, saved, func(s *EntityState) *bool { return s.PowerState }),
		Reachable:         firstSet(control, observed, saved, func(s *EntityState) *bool { return s.Reachable }),
		TransitionSeconds: firstSet(control, observed, saved, func(s *EntityState) *float64 { return s.TransitionSeconds }),
		Brightness:        firstSet(control, observed, saved, func(s *EntityState) *int { return s.Brightness }),
		ColorTemp:         firstSet(control, observed, saved, func(s *EntityState) *int { return s.ColorTemp }),
		HueSaturation:     firstSet(control, observed, saved, func(s *EntityState) *HueSat { return s.HueSaturation }),
		XYColor:           firstSet(control, observed, saved, func(s *EntityState) *XYPoint { return s.XYColor }),
		RGBColor:          firstSet(control, observed, saved, func(s *EntityState) *RGBColor { return s.RGBColor }),
		FlashState:        firstSet(control, observed, saved, func(s *EntityState) *string { return s.FlashState }),
		Effect:            firstSet(control, observed, saved, func(s *EntityState) *string { return s.Effect }),
		ColorMode:         firstSet(control, observed, saved, func(s *EntityState) *string { return s.ColorMode }),
	}
}

// ToMap converts the state to a plain map for the config store.
func (s *EntityState) ToMap() map[string]any {
	out := map[string]any{
		"power_state": s.On(),
		"reachable":   s.IsReachable(),
	}
	if s.TransitionSeconds != nil {
		out["transition_seconds"] = *s.TransitionSeconds
	}
	if s.Brightness != nil {
		out["brightness"] = *s.Brightness
	}
	if s.ColorTemp != nil {
		out["color_temp"] = *s.ColorTemp
	}
	if s.HueSaturation != nil {
		out["hue_saturation"] = []any{s.HueSaturation.Hue, s.HueSaturation.Sat}
	}
	if s.XYColor != nil {
		out["xy_color"] = []any{s.XYColor.X, s.XYColor.Y}
	}
	if s.RGBColor != nil {
		out["rgb_color"] = []any{s.RGBColor.R, s.RGBColor.G, s.RGBColor.B}
	}
	if s.FlashState != nil {
		out["flash_state"] = *s.FlashState
	}
	if s.Effect != nil {
		out["effect"] = *s.Effect
	}
	if s.ColorMode != nil {
		out["color_mode"] = *s.ColorMode
	}
	return out
}

// StateFromMap restores a persisted state from the config store. An
// empty or nil map yields a fresh default state.
func StateFromMap(data map[string]any) *EntityState {
	s := &EntityState{}
	if len(data) == 0 {
		return s
	}
	if v, ok := data["power_state"].(bool); ok {
		s.PowerState = &v
	}
	if v, ok := data["reachable"].(bool); ok {
		s.Reachable = &v
	}
	if v, ok := toFloat(data["transition_seconds"]); ok {
		s.TransitionSeconds = &v
	}
	if v, ok := toInt(data["brightness"]); ok {
		s.Brightness = &v
	}
	if v, ok := toInt(data["color_temp"]); ok {
		s.ColorTemp = &v
	}
	if pair, ok := data["hue_saturation"].([]any); ok && len(pair) == 2 {
		h, hok := toInt(pair[0])
		sat, sok := toInt(pair[1])
		if hok && sok {
			s.HueSaturation = &HueSat{Hue: h, Sat: sat}
		}
	}
	if pair, ok := data["xy_color"].([]any); ok && len(pair) == 2 {
		x, xok := toFloat(pair[0])
		y, yok := toFloat(pair[1])
		if xok && yok {
			s.XYColor = &XYPoint{X: x, Y: y}
		}
	}
	if triple, ok := data["rgb_color"].([]any); ok && len(triple) == 3 {
		r, rok := toInt(triple[0])
		g, gok := toInt(triple[1])
		b, bok := toInt(triple[2])
		if rok && gok && bok {
			s.RGBColor = &RGBColor{R: r, G: g, B: b}
		}
	}
	if v, ok := data["flash_state"].(string); ok && v != "" {
		s.FlashState = &v
	}
	if v, ok := data["effect"].(string); ok && v != "" {
		s.Effect = &v
	}
	if v, ok := data["color_mode"].(string); ok && v != "" {
		s.ColorMode = &v
	}
	return s
}

// firstSet returns a copy of the first non-nil field across the layers.
func firstSet[T any](control, observed, saved *EntityState, pick func(*EntityState) *T) *T {
	for _, l := range []*EntityState{control, observed, saved} {
		if l == nil {
			continue
		}
		if v := pick(l); v != nil {
			out := *v
			return &out
		}
	}
	return nil
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func anyValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !anyValueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	af, afok := toFloat(a)
	bf, bfok := toFloat(b)
	if afok && bfok {
		return af == bf
	}
	return a == b
}

// Clamp bounds value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
