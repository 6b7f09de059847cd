package apiv2

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/dokzlo13/hueshim/internal/device"
)

// Namespaces for deriving stable v2 resource ids. Each resource kind
// gets its own namespace so one seed (bridge id, area id, entity id)
// yields distinct ids per kind.
var namespaces = map[string]uuid.UUID{
	"bridge":                  uuid.MustParse("6ba7b820-9dad-11d1-80b4-00c04fd430c8"),
	"bridge_home":             uuid.MustParse("6ba7b821-9dad-11d1-80b4-00c04fd430c8"),
	"homekit":                 uuid.MustParse("6ba7b822-9dad-11d1-80b4-00c04fd430c8"),
	"matter":                  uuid.MustParse("6ba7b823-9dad-11d1-80b4-00c04fd430c8"),
	"zigbee_connectivity":     uuid.MustParse("6ba7b824-9dad-11d1-80b4-00c04fd430c8"),
	"zigbee_device_discovery": uuid.MustParse("6ba7b825-9dad-11d1-80b4-00c04fd430c8"),
	"entertainment":           uuid.MustParse("6ba7b826-9dad-11d1-80b4-00c04fd430c8"),
	"room":                    uuid.MustParse("6ba7b827-9dad-11d1-80b4-00c04fd430c8"),
	"grouped_light":           uuid.MustParse("6ba7b828-9dad-11d1-80b4-00c04fd430c8"),
	"device":                  uuid.MustParse("6ba7b830-9dad-11d1-80b4-00c04fd430c8"),
	"light":                   uuid.MustParse("6ba7b831-9dad-11d1-80b4-00c04fd430c8"),
}

// hueID derives the deterministic v2 id for a resource kind and seed.
func hueID(kind, seed string) string {
	return uuid.NewSHA1(namespaces[kind], []byte(seed)).String()
}

func ref(kind, seed, rtype string) map[string]any {
	return map[string]any{"rid": hueID(kind, seed), "rtype": rtype}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// gamutC is the wide color gamut reported for color capable lights.
var gamutC = [3][2]float64{{0.6915, 0.3083}, {0.17, 0.7}, {0.1532, 0.0475}}

func (a *API) homekitResource() map[string]any {
	return map[string]any{
		"id":            hueID("homekit", a.br.Identity.BridgeID),
		"status":        "unpaired",
		"status_values": []any{"pairing", "paired", "unpaired"},
		"type":          "homekit",
	}
}

func (a *API) matterResource() map[string]any {
	return map[string]any{
		"has_qr_code": true,
		"id":          hueID("matter", a.br.Identity.BridgeID),
		"max_fabrics": 16,
		"type":        "matter",
	}
}

func (a *API) bridgeHomeResource() map[string]any {
	bridgeID := a.br.Identity.BridgeID
	children := []any{ref("device", bridgeID, "device")}
	for _, area := range a.hass.Areas() {
		children = append(children, ref("room", area.AreaID, "room"))
	}
	return map[string]any{
		"id":       hueID("bridge_home", bridgeID),
		"id_v1":    "/groups/0",
		"children": children,
		"services": []any{ref("grouped_light", bridgeID, "grouped_light")},
		"type":     "bridge_home",
	}
}

func (a *API) bridgeResource() map[string]any {
	bridgeID := a.br.Identity.BridgeID
	timezone := a.br.Store().GetIn("bridge_config", "timezone", "UTC")
	return map[string]any{
		"id":        hueID("bridge", bridgeID),
		"owner":     ref("device", bridgeID, "device"),
		"bridge_id": a.br.Identity.Serial[:6] + "fffe" + a.br.Identity.Serial[6:],
		"time_zone": map[string]any{"time_zone": timezone},
		"type":      "bridge",
	}
}

func (a *API) zigbeeDiscoveryResource() map[string]any {
	bridgeID := a.br.Identity.BridgeID
	return map[string]any{
		"id":     hueID("zigbee_device_discovery", bridgeID),
		"owner":  ref("device", bridgeID, "device"),
		"status": "ready",
		"type":   "zigbee_device_discovery",
	}
}

func (a *API) geolocationResource() map[string]any {
	return map[string]any{
		"id":            hueID("bridge", a.br.Identity.BridgeID+"/geolocation"),
		"type":          "geolocation",
		"is_configured": false,
		"sun_today": map[string]any{
			"sunset_time": "21:12:00",
			"day_type":    "normal_day",
		},
	}
}

func (a *API) groupedLightResources(ctx context.Context) []any {
	bridgeID := a.br.Identity.BridgeID
	result := []any{map[string]any{
		"id":                      hueID("grouped_light", bridgeID),
		"id_v1":                   "/groups/0",
		"owner":                   ref("bridge_home", bridgeID, "bridge_home"),
		"on":                      map[string]any{"on": a.anyLightOn(ctx)},
		"dimming":                 map[string]any{"brightness": 100},
		"dimming_delta":           map[string]any{},
		"color_temperature":       map[string]any{},
		"color_temperature_delta": map[string]any{},
		"color":                   map[string]any{},
		"alert":                   map[string]any{"action_values": []any{"breathe"}},
		"signaling": map[string]any{
			"signal_values": []any{"alternating", "no_signal", "on_off", "on_off_color"},
		},
		"dynamics": map[string]any{},
		"type":     "grouped_light",
	}}

	for _, area := range a.hass.Areas() {
		groupID := a.br.GroupIDForArea(area.AreaID)
		// aggregated live: true iff any member light is on
		anyOn := false
		for _, entityID := range area.Entities {
			if dev, err := a.devices.Get(ctx, entityID); err == nil && dev.PowerState() {
				anyOn = true
				break
			}
		}
		result = append(result, map[string]any{
			"id":                      hueID("grouped_light", area.AreaID),
			"id_v1":                   "/groups/" + groupID,
			"owner":                   ref("room", area.AreaID, "room"),
			"on":                      map[string]any{"on": anyOn},
			"dimming":                 map[string]any{"brightness": 0},
			"dimming_delta":           map[string]any{},
			"color_temperature":       map[string]any{},
			"color_temperature_delta": map[string]any{},
			"color":                   map[string]any{},
			"alert":                   map[string]any{"action_values": []any{"breathe"}},
			"signaling": map[string]any{
				"signal_values": []any{"no_signal", "on_off"},
			},
			"dynamics": map[string]any{},
			"type":     "grouped_light",
		})
	}
	return result
}

func (a *API) anyLightOn(ctx context.Context) bool {
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		if dev, err := a.devices.Get(ctx, entityID); err == nil && dev.PowerState() {
			return true
		}
	}
	return false
}

func (a *API) roomResources(ctx context.Context) []any {
	result := []any{}
	for _, area := range a.hass.Areas() {
		groupID := a.br.GroupIDForArea(area.AreaID)
		children := []any{}
		for _, entityID := range area.Entities {
			children = append(children, ref("device", entityID, "device"))
		}
		result = append(result, map[string]any{
			"id":       hueID("room", area.AreaID),
			"id_v1":    "/groups/" + groupID,
			"children": children,
			"services": []any{ref("grouped_light", area.AreaID, "grouped_light")},
			"metadata": map[string]any{"name": area.Name, "archetype": "other"},
			"type":     "room",
		})
	}
	return result
}

func (a *API) bridgeDeviceResource() map[string]any {
	bridgeID := a.br.Identity.BridgeID
	return map[string]any{
		"id": hueID("device", bridgeID),
		"product_data": map[string]any{
			"model_id":          "BSB002",
			"manufacturer_name": "Signify Netherlands B.V.",
			"product_name":      a.br.Name(),
			"product_archetype": "bridge_v2",
			"certified":         true,
			"software_version":  "1.59.1959097030",
		},
		"metadata": map[string]any{"name": a.br.Name(), "archetype": "bridge_v2"},
		"identify": map[string]any{},
		"services": []any{
			ref("bridge", bridgeID, "bridge"),
			ref("zigbee_connectivity", bridgeID, "zigbee_connectivity"),
			ref("entertainment", bridgeID, "entertainment"),
			ref("zigbee_device_discovery", bridgeID, "zigbee_device_discovery"),
		},
		"type": "device",
	}
}

func (a *API) deviceResources(ctx context.Context) []any {
	result := []any{a.bridgeDeviceResource()}
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		dev, err := a.devices.Get(ctx, entityID)
		if err != nil {
			continue
		}
		result = append(result, a.entityDeviceResource(dev))
	}
	return result
}

func (a *API) entityDeviceResource(dev *device.Device) map[string]any {
	props := dev.Properties()
	entityID := dev.EntityID()
	return map[string]any{
		"id":    hueID("device", entityID),
		"id_v1": "/lights/" + dev.LightID(),
		"product_data": map[string]any{
			"model_id":               props.Model,
			"manufacturer_name":      props.Manufacturer,
			"product_name":           props.Model,
			"product_archetype":      "hue_go",
			"certified":              true,
			"software_version":       props.SWVersion,
			"hardware_platform_type": "100b-108",
		},
		"metadata": map[string]any{"name": dev.Name(), "archetype": "hue_go"},
		"identify": map[string]any{},
		"services": []any{
			ref("light", entityID, "light"),
			ref("zigbee_connectivity", entityID, "zigbee_connectivity"),
			ref("entertainment", entityID, "entertainment"),
		},
		"type": "device",
	}
}

func (a *API) lightResources(ctx context.Context) []any {
	result := []any{}
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		dev, err := a.devices.Get(ctx, entityID)
		if err != nil {
			continue
		}
		result = append(result, a.entityLightResource(dev))
	}
	return result
}

func (a *API) entityLightResource(dev *device.Device) map[string]any {
	entityID := dev.EntityID()
	retval := map[string]any{
		"id":       hueID("light", entityID),
		"id_v1":    "/lights/" + dev.LightID(),
		"owner":    ref("device", entityID, "device"),
		"metadata": map[string]any{"name": dev.Name(), "archetype": "pendant_round"},
		"identify": map[string]any{},
		"dynamics": map[string]any{
			"status":        "none",
			"status_values": []any{"none", "dynamic_palette"},
			"speed":         0,
			"speed_valid":   false,
		},
		"alert": map[string]any{"action_values": []any{"breathe"}},
		"signaling": map[string]any{
			"signal_values": []any{"no_signal", "on_off", "on_off_color", "alternating"},
		},
		"mode": "normal",
		"effects": map[string]any{
			"status_values": []any{"no_effect", "candle"},
			"status":        "no_effect",
			"effect_values": []any{"no_effect", "candle", "fire", "prism"},
		},
		"powerup": map[string]any{
			"preset":     "safety",
			"configured": true,
			"on": map[string]any{
				"mode": "on",
				"on":   map[string]any{"on": true},
			},
			"dimming": map[string]any{
				"mode":    "dimming",
				"dimming": map[string]any{"brightness": 100},
			},
			"color": map[string]any{
				"mode":              "color_temperature",
				"color_temperature": map[string]any{"mirek": 366},
			},
		},
		"on":   map[string]any{"on": dev.PowerState()},
		"type": "light",
	}

	if dev.Type().HasBrightness() {
		retval["dimming"] = map[string]any{
			"brightness":    math.Round(10000*float64(dev.Brightness())/255) / 100,
			"min_dim_level": 2,
		}
		retval["dimming_delta"] = map[string]any{}
	}
	if dev.Type().HasColor() {
		xy := dev.XY()
		retval["color"] = map[string]any{
			"xy": map[string]any{"x": round4(xy.X), "y": round4(xy.Y)},
			"gamut": map[string]any{
				"red":   map[string]any{"x": gamutC[0][0], "y": gamutC[0][1]},
				"green": map[string]any{"x": gamutC[1][0], "y": gamutC[1][1]},
				"blue":  map[string]any{"x": gamutC[2][0], "y": gamutC[2][1]},
			},
			"gamut_type": "C",
		}
	}
	if dev.Type() == device.TypeExtendedColor {
		retval["color_temperature"] = map[string]any{
			"mirek":       dev.ColorTemp(),
			"mirek_valid": true,
			"mirek_schema": map[string]any{
				"mirek_minimum": dev.MinMireds(),
				"mirek_maximum": dev.MaxMireds(),
			},
		}
		retval["color_temperature_delta"] = map[string]any{}
	}
	return retval
}

func (a *API) zigbeeConnectivityResources(ctx context.Context) []any {
	bridgeID := a.br.Identity.BridgeID
	result := []any{map[string]any{
		"id":          hueID("zigbee_connectivity", bridgeID),
		"owner":       ref("device", bridgeID, "device"),
		"status":      "connected",
		"mac_address": a.br.Identity.MAC,
		"channel":     map[string]any{"status": "set", "value": "channel_15"},
		"type":        "zigbee_connectivity",
	}}
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		dev, err := a.devices.Get(ctx, entityID)
		if err != nil {
			continue
		}
		status := "connectivity_issue"
		if dev.Reachable() {
			status = "connected"
		}
		result = append(result, map[string]any{
			"id":          hueID("zigbee_connectivity", entityID),
			"id_v1":       "/lights/" + dev.LightID(),
			"owner":       ref("device", entityID, "device"),
			"status":      status,
			"mac_address": dev.UniqueID(),
			"type":        "zigbee_connectivity",
		})
	}
	return result
}

func (a *API) entertainmentResources(ctx context.Context) []any {
	bridgeID := a.br.Identity.BridgeID
	result := []any{map[string]any{
		"id":          hueID("entertainment", bridgeID),
		"owner":       ref("device", bridgeID, "device"),
		"renderer":    false,
		"proxy":       true,
		"equalizer":   false,
		"max_streams": 1,
		"type":        "entertainment",
	}}
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		dev, err := a.devices.Get(ctx, entityID)
		if err != nil {
			continue
		}
		result = append(result, map[string]any{
			"id":                 hueID("entertainment", entityID),
			"id_v1":              "/lights/" + dev.LightID(),
			"owner":              ref("device", entityID, "device"),
			"renderer":           true,
			"renderer_reference": ref("light", entityID, "light"),
			"proxy":              true,
			"equalizer":          true,
			"segments": map[string]any{
				"configurable": false,
				"max_segments": 1,
				"segments":     []any{map[string]any{"start": 0, "length": 1}},
			},
			"type": "entertainment",
		})
	}
	return result
}
