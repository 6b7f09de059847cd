package apiv1

import (
	"context"
	"math"
	"time"

	"github.com/dokzlo13/hueshim/internal/device"
)

const (
	hueBriMax = 254
	hueHueMax = 65535
	hueSatMax = 254
	hueCTMin  = 153
	hueCTMax  = 500
)

// wrapNumber wraps a value into [start, max) the way Hue clients expect
// out-of-range hue/sat values to be treated.
func wrapNumber(value, start, max float64) float64 {
	span := max - start
	m := math.Mod(value-start, span)
	if m < 0 {
		m += span
	}
	return m + start
}

// flashToAlert converts a backend flash state to the Hue alert value.
func flashToAlert(flash string) string {
	switch flash {
	case "short":
		return "select"
	case "long":
		return "lselect"
	}
	return flash
}

// colorModeToHue converts a backend color mode name to the Hue one.
func colorModeToHue(mode string) string {
	switch mode {
	case device.ColorModeColorTemp:
		return "ct"
	case device.ColorModeHS:
		return "hs"
	}
	return "xy"
}

func updateDict(dst, src map[string]any) {
	for key, value := range src {
		if sub, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				updateDict(existing, sub)
				continue
			}
		}
		dst[key] = value
	}
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopyValue(val)
		}
		return out
	}
	return v
}

func deepCopyMap(m map[string]any) map[string]any {
	out, _ := deepCopyValue(m).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func isoTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

// lightToHue converts a device to its Hue bridge JSON representation.
func (a *API) lightToHue(ctx context.Context, entityID string) (map[string]any, error) {
	dev, err := a.devices.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}

	retval := map[string]any{
		"state": map[string]any{
			"on":        dev.PowerState(),
			"reachable": dev.Reachable(),
			"mode":      "homeautomation",
		},
		"name":     dev.Name(),
		"uniqueid": dev.UniqueID(),
		"swupdate": map[string]any{
			"state":       "noupdates",
			"lastinstall": isoTimestamp(time.Now()),
		},
		"config": map[string]any{
			"archetype": "sultanbulb",
			"direction": "omnidirectional",
			"function":  "mixed",
			"startup":   map[string]any{"configured": true, "mode": "safety"},
		},
	}
	updateDict(retval, lightDefinition(dev.Type().String()))

	state := retval["state"].(map[string]any)
	devState := dev.State()

	if dev.Type().HasBrightness() {
		state["bri"] = dev.Brightness()
		alert := "none"
		if devState.FlashState != nil && *devState.FlashState != "" {
			alert = flashToAlert(*devState.FlashState)
		}
		state["alert"] = alert
	}
	if dev.Type().HasColorTemp() {
		state["ct"] = dev.ColorTemp()
		if caps, ok := retval["capabilities"].(map[string]any); ok {
			if control, ok := caps["control"].(map[string]any); ok {
				control["ct"] = map[string]any{"min": dev.MinMireds(), "max": dev.MaxMireds()}
			}
		}
	}
	if dev.Type().HasColor() {
		effect := dev.Effect()
		if effect == "" {
			effect = "none"
		}
		state["effect"] = effect
		xy := dev.XY()
		state["xy"] = []any{xy.X, xy.Y}
		hs := dev.HueSat()
		state["hue"] = int(float64(hs.Hue) / 360 * hueHueMax)
		state["sat"] = int(float64(hs.Sat) / 100 * hueSatMax)
	}
	if dev.Type() == device.TypeExtendedColor {
		state["colormode"] = colorModeToHue(dev.ColorMode())
	}

	props := dev.Properties()
	if props.Manufacturer != "" {
		retval["manufacturername"] = props.Manufacturer
	}
	if props.Model != "" {
		retval["modelid"] = props.Model
	}
	if props.Name != "" {
		retval["productname"] = props.Name
	}
	if props.SWVersion != "" {
		retval["swversion"] = props.SWVersion
	}

	return retval, nil
}

// allLights returns the Hue JSON for every enabled light.
func (a *API) allLights(ctx context.Context) map[string]any {
	result := map[string]any{}
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		dev, err := a.devices.Get(ctx, entityID)
		if err != nil {
			a.log.Warn().Err(err).Str("entity_id", entityID).Msg("skipping light")
			continue
		}
		if !dev.Enabled() {
			continue
		}
		obj, err := a.lightToHue(ctx, entityID)
		if err != nil {
			continue
		}
		result[dev.LightID()] = obj
	}
	return result
}

// allGroups returns the Hue JSON for local groups plus backend areas.
func (a *API) allGroups(ctx context.Context) map[string]any {
	result := map[string]any{}

	// local groups first
	for groupID, val := range a.br.Store().GetMap("groups") {
		conf, ok := val.(map[string]any)
		if !ok {
			continue
		}
		if _, isArea := conf["area_id"]; isArea {
			continue
		}
		if _, hasStream := conf["stream"]; hasStream {
			conf = deepCopyMap(conf)
			stream := conf["stream"].(map[string]any)
			stream["active"] = a.stream.Active()
		}
		result[groupID] = conf
	}

	// backend areas become rooms
	for _, area := range a.hass.Areas() {
		groupID := a.br.GroupIDForArea(area.AreaID)
		conf, err := a.br.GroupConfig(groupID)
		if err != nil {
			continue
		}
		if enabled, ok := conf["enabled"].(bool); ok && !enabled {
			continue
		}

		view := deepCopyMap(conf)
		name, _ := conf["name"].(string)
		if name == "" {
			name = area.Name
		}
		view["name"] = name

		lights := []any{}
		lightsOn := 0
		for _, entityID := range area.Entities {
			lightID := a.br.LightIDForEntity(entityID)
			lights = append(lights, lightID)
			dev, err := a.devices.Get(ctx, entityID)
			if err != nil {
				continue
			}
			if dev.PowerState() {
				lightsOn++
				if lightsOn == 1 {
					// first lit light provides the group action state
					if obj, err := a.lightToHue(ctx, entityID); err == nil {
						view["action"] = obj["state"]
					}
				}
			}
		}
		if len(lights) == 0 {
			continue
		}
		view["lights"] = lights
		state, ok := view["state"].(map[string]any)
		if !ok {
			state = map[string]any{}
			view["state"] = state
		}
		state["any_on"] = lightsOn > 0
		state["all_on"] = lightsOn == len(lights)
		result[groupID] = view
	}

	return result
}

// groupConf resolves a group id, materializing the virtual group 0
// that contains every light.
func (a *API) groupConf(ctx context.Context, groupID string) (map[string]any, bool) {
	if groupID == "0" {
		lights := []any{}
		for lightID := range a.allLights(ctx) {
			lights = append(lights, lightID)
		}
		return map[string]any{"lights": lights}, true
	}
	conf, err := a.br.GroupConfig(groupID)
	if err != nil {
		return nil, false
	}
	return conf, true
}

// groupEntities lists the backend entities behind a group.
func (a *API) groupEntities(ctx context.Context, groupID string) []string {
	conf, ok := a.groupConf(ctx, groupID)
	if !ok {
		return nil
	}

	if areaID, ok := conf["area_id"].(string); ok && areaID != "" {
		for _, area := range a.hass.Areas() {
			if area.AreaID == areaID {
				return area.Entities
			}
		}
		return nil
	}

	var entities []string
	if lights, ok := conf["lights"].([]any); ok {
		for _, raw := range lights {
			lightID, _ := raw.(string)
			entityID, err := a.br.EntityIDForLight(lightID)
			if err != nil {
				continue
			}
			entities = append(entities, entityID)
		}
	}
	return entities
}

// scenesForFullState replaces stored lightstates with the group's
// light list, the shape the full state dump uses.
func (a *API) scenesForFullState(ctx context.Context) map[string]any {
	scenes := deepCopyMap(a.br.Store().GetMap("scenes"))
	for _, val := range scenes {
		scene, ok := val.(map[string]any)
		if !ok {
			continue
		}
		delete(scene, "lightstates")
		groupID, _ := scene["group"].(string)
		lights := []any{}
		if conf, ok := a.groupConf(ctx, groupID); ok {
			if l, ok := conf["lights"].([]any); ok {
				lights = l
			}
		}
		scene["lights"] = lights
	}
	return scenes
}

// whitelistView strips secrets from the user table for the config view.
func (a *API) whitelistView() map[string]any {
	result := map[string]any{}
	for username, user := range a.br.Users() {
		result[username] = map[string]any{
			"name":          user.Name,
			"create date":   user.CreateDate,
			"last use date": user.LastUseDate,
		}
	}
	return result
}

// bridgeConfigView builds the bridge config object. Full details are
// reserved for authenticated users.
func (a *API) bridgeConfigView(full bool) map[string]any {
	result := bridgeBasic()
	result["name"] = a.br.Name()
	result["mac"] = a.br.Identity.MAC
	result["bridgeid"] = a.br.Identity.BridgeID
	if !full {
		return result
	}

	updateDict(result, bridgeFull())
	now := time.Now()
	result["linkbutton"] = a.br.LinkModeEnabled()
	result["ipaddress"] = a.br.Identity.IPAddr
	result["gateway"] = a.br.Identity.IPAddr
	result["UTC"] = isoTimestamp(now.UTC())
	result["localtime"] = isoTimestamp(now)
	result["timezone"] = a.br.Store().GetIn("bridge_config", "timezone", localTimezone())
	result["whitelist"] = a.whitelistView()
	result["zigbeechannel"] = a.br.Store().GetIn("bridge_config", "zigbeechannel", 25)
	return result
}
