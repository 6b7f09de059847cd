package apiv1

import (
	"testing"

	"github.com/dokzlo13/hueshim/internal/device"
)

func TestWrapNumber(t *testing.T) {
	tests := []struct {
		value, start, max float64
		want              float64
	}{
		{100, 0, 360, 100},
		{360, 0, 360, 0},
		{400, 0, 360, 40},
		{-10, 0, 360, 350},
		{65535, 0, 65535, 0},
		{70000, 0, 65535, 4465},
	}
	for _, tt := range tests {
		if got := wrapNumber(tt.value, tt.start, tt.max); got != tt.want {
			t.Errorf("wrapNumber(%v, %v, %v) = %v, want %v", tt.value, tt.start, tt.max, got, tt.want)
		}
	}
}

func TestFlashToAlert(t *testing.T) {
	if got := flashToAlert("short"); got != "select" {
		t.Errorf("short = %q", got)
	}
	if got := flashToAlert("long"); got != "lselect" {
		t.Errorf("long = %q", got)
	}
	if got := flashToAlert("none"); got != "none" {
		t.Errorf("none = %q", got)
	}
}

func TestColorModeToHue(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{device.ColorModeColorTemp, "ct"},
		{device.ColorModeHS, "hs"},
		{device.ColorModeXY, "xy"},
		{device.ColorModeRGB, "xy"},
	}
	for _, tt := range tests {
		if got := colorModeToHue(tt.mode); got != tt.want {
			t.Errorf("colorModeToHue(%q) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestUpdateDict(t *testing.T) {
	dst := map[string]any{
		"name": "old",
		"state": map[string]any{
			"on":  false,
			"bri": 100,
		},
	}
	updateDict(dst, map[string]any{
		"name": "new",
		"state": map[string]any{
			"on": true,
		},
	})

	if dst["name"] != "new" {
		t.Errorf("name = %v", dst["name"])
	}
	state := dst["state"].(map[string]any)
	if state["on"] != true {
		t.Errorf("state.on = %v", state["on"])
	}
	// Sibling keys in nested maps survive a merge.
	if state["bri"] != 100 {
		t.Errorf("state.bri = %v", state["bri"])
	}
}

func TestDeepCopyMap(t *testing.T) {
	src := map[string]any{
		"nested": map[string]any{"key": "value"},
		"list":   []any{1, 2},
	}
	cp := deepCopyMap(src)
	cp["nested"].(map[string]any)["key"] = "changed"
	cp["list"].([]any)[0] = 99

	if src["nested"].(map[string]any)["key"] != "value" {
		t.Error("nested map aliased")
	}
	if src["list"].([]any)[0] != 1 {
		t.Error("list aliased")
	}
}

func TestIsDigits(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"1", true},
		{"123", true},
		{"", false},
		{"1a", false},
		{"new", false},
		{"-1", false},
	}
	for _, tt := range tests {
		if got := isDigits(tt.s); got != tt.want {
			t.Errorf("isDigits(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestNumValue(t *testing.T) {
	if v, ok := numValue(float64(254)); !ok || v != 254 {
		t.Errorf("float64 = %v, %v", v, ok)
	}
	if v, ok := numValue(10); !ok || v != 10 {
		t.Errorf("int = %v, %v", v, ok)
	}
	if _, ok := numValue("254"); ok {
		t.Error("string accepted as number")
	}
	if _, ok := numValue(nil); ok {
		t.Error("nil accepted as number")
	}
}

func TestLightDefinition(t *testing.T) {
	tests := []struct {
		devType   string
		wantModel string
	}{
		{"On/off light", "LOM001"},
		{"Dimmable light", "LWB010"},
		{"Color temperature light", "LTW001"},
		{"Color light", "LST001"},
		{"Extended color light", "LCT015"},
	}
	for _, tt := range tests {
		def := lightDefinition(tt.devType)
		if def == nil {
			t.Fatalf("no definition for %q", tt.devType)
		}
		if def["modelid"] != tt.wantModel {
			t.Errorf("%s modelid = %v, want %v", tt.devType, def["modelid"], tt.wantModel)
		}
	}
}
