package device

import (
	"reflect"
	"testing"
)

func boolPtr(v bool) *bool          { return &v }
func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64   { return &v }
func strPtr(v string) *string       { return &v }

func TestTypeFromColorModes(t *testing.T) {
	tests := []struct {
		name  string
		modes []string
		want  Type
	}{
		{"onoff", []string{ColorModeOnOff}, TypeOnOff},
		{"no modes", nil, TypeOnOff},
		{"dimmable", []string{ColorModeBrightness}, TypeDimmable},
		{"color temp", []string{ColorModeColorTemp}, TypeColorTemp},
		{"color only", []string{ColorModeHS, ColorModeXY}, TypeColor},
		{"extended", []string{ColorModeXY, ColorModeColorTemp}, TypeExtendedColor},
		{"rgbw is extended", []string{ColorModeRGBW}, TypeExtendedColor},
		{"rgb only", []string{ColorModeRGB}, TypeColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeFromColorModes(tt.modes); got != tt.want {
				t.Errorf("TypeFromColorModes(%v) = %v, want %v", tt.modes, got, tt.want)
			}
		})
	}
}

func TestStateEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *EntityState
		want bool
	}{
		{
			"identical power and brightness",
			&EntityState{PowerState: boolPtr(true), Brightness: intPtr(128)},
			&EntityState{PowerState: boolPtr(true), Brightness: intPtr(128)},
			true,
		},
		{
			"different power",
			&EntityState{PowerState: boolPtr(true)},
			&EntityState{PowerState: boolPtr(false)},
			false,
		},
		{
			"different brightness",
			&EntityState{Brightness: intPtr(100)},
			&EntityState{Brightness: intPtr(200)},
			false,
		},
		{
			"transition does not make a command new",
			&EntityState{Brightness: intPtr(100), TransitionSeconds: floatPtr(0.4)},
			&EntityState{Brightness: intPtr(100), TransitionSeconds: floatPtr(2)},
			true,
		},
		{
			"color mode attribute compared",
			&EntityState{ColorMode: strPtr(ColorModeColorTemp), ColorTemp: intPtr(200)},
			&EntityState{ColorMode: strPtr(ColorModeColorTemp), ColorTemp: intPtr(300)},
			false,
		},
		{
			"off-mode color ignored",
			&EntityState{ColorTemp: intPtr(200)},
			&EntityState{ColorTemp: intPtr(300)},
			true,
		},
		{
			"xy compared when selected",
			&EntityState{ColorMode: strPtr(ColorModeXY), XYColor: &XYPoint{X: 0.5, Y: 0.4}},
			&EntityState{ColorMode: strPtr(ColorModeXY), XYColor: &XYPoint{X: 0.5, Y: 0.4}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToServiceData(t *testing.T) {
	t.Run("brightness and color temp", func(t *testing.T) {
		s := &EntityState{
			Brightness: intPtr(200),
			ColorMode:  strPtr(ColorModeColorTemp),
			ColorTemp:  intPtr(366),
		}
		got := s.ToServiceData()
		want := map[string]any{"brightness": 200, "color_temp": 366}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("data = %v, want %v", got, want)
		}
	})

	t.Run("zero brightness omitted", func(t *testing.T) {
		s := &EntityState{Brightness: intPtr(0)}
		if _, ok := s.ToServiceData()["brightness"]; ok {
			t.Error("zero brightness included")
		}
	})

	t.Run("flash suppresses transition", func(t *testing.T) {
		s := &EntityState{
			FlashState:        strPtr("short"),
			TransitionSeconds: floatPtr(0.4),
		}
		got := s.ToServiceData()
		if got["flash"] != "short" {
			t.Errorf("flash = %v", got["flash"])
		}
		if _, ok := got["transition"]; ok {
			t.Error("transition included alongside flash")
		}
	})

	t.Run("transition without flash", func(t *testing.T) {
		s := &EntityState{TransitionSeconds: floatPtr(1.5)}
		if got := s.ToServiceData()["transition"]; got != 1.5 {
			t.Errorf("transition = %v", got)
		}
	})

	t.Run("hs pair", func(t *testing.T) {
		s := &EntityState{
			ColorMode:     strPtr(ColorModeHS),
			HueSaturation: &HueSat{Hue: 180, Sat: 75},
		}
		got := s.ToServiceData()
		if !reflect.DeepEqual(got["hs_color"], []any{180, 75}) {
			t.Errorf("hs_color = %v", got["hs_color"])
		}
	})
}

func TestCompose(t *testing.T) {
	control := &EntityState{Brightness: intPtr(255)}
	observed := &EntityState{
		PowerState: boolPtr(true),
		Brightness: intPtr(100),
		ColorTemp:  intPtr(300),
	}
	saved := &EntityState{
		PowerState: boolPtr(false),
		ColorTemp:  intPtr(200),
		Effect:     strPtr("colorloop"),
	}

	got := Compose(control, observed, saved)
	if got.Brightness == nil || *got.Brightness != 255 {
		t.Errorf("Brightness = %v, control layer should win", got.Brightness)
	}
	if got.PowerState == nil || !*got.PowerState {
		t.Errorf("PowerState = %v, observed layer should win over saved", got.PowerState)
	}
	if got.ColorTemp == nil || *got.ColorTemp != 300 {
		t.Errorf("ColorTemp = %v", got.ColorTemp)
	}
	if got.Effect == nil || *got.Effect != "colorloop" {
		t.Errorf("Effect = %v, saved layer should fill the gap", got.Effect)
	}

	// Composition copies values, it does not alias the layers.
	*got.Brightness = 1
	if *control.Brightness != 255 {
		t.Error("composed state aliases the control layer")
	}
}

func TestStateMapRoundTrip(t *testing.T) {
	s := &EntityState{
		PowerState:    boolPtr(true),
		Brightness:    intPtr(128),
		ColorMode:     strPtr(ColorModeHS),
		HueSaturation: &HueSat{Hue: 120, Sat: 50},
		XYColor:       &XYPoint{X: 0.3127, Y: 0.329},
	}
	restored := StateFromMap(s.ToMap())
	if !restored.On() {
		t.Error("power state lost")
	}
	if restored.Brightness == nil || *restored.Brightness != 128 {
		t.Errorf("brightness = %v", restored.Brightness)
	}
	if restored.HueSaturation == nil || restored.HueSaturation.Hue != 120 {
		t.Errorf("hue_saturation = %v", restored.HueSaturation)
	}
	if restored.XYColor == nil || restored.XYColor.X != 0.3127 {
		t.Errorf("xy = %v", restored.XYColor)
	}
	if !s.Equal(restored) {
		t.Error("round-tripped state not command-equal")
	}
}
