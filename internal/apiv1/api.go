// Package apiv1 implements the classic Hue REST API as served by a
// BSB002 bridge, backed by Home Assistant entities.
package apiv1

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
	"github.com/dokzlo13/hueshim/internal/device"
	"github.com/dokzlo13/hueshim/internal/discovery"
	"github.com/dokzlo13/hueshim/internal/hass"
)

const newLightsWindow = 60 * time.Second

// Streamer controls the entertainment session from the REST side.
type Streamer interface {
	Start(groupID string, groupConf map[string]any, user bridge.User)
	Stop()
	Active() bool
}

// API serves the v1 endpoints.
type API struct {
	br      *bridge.Bridge
	hass    *hass.Client
	devices *device.Manager
	stream  Streamer
	log     zerolog.Logger

	mu             sync.Mutex
	newLights      map[string]any
	newLightsTimer *time.Timer
}

// New creates the v1 API.
func New(br *bridge.Bridge, hassClient *hass.Client, devices *device.Manager, stream Streamer) *API {
	return &API{
		br:        br,
		hass:      hassClient,
		devices:   devices,
		stream:    stream,
		log:       log.With().Str("component", "apiv1").Logger(),
		newLights: map[string]any{},
	}
}

// Mount registers the v1 routes. Every route is also registered with a
// trailing slash; Hue apps are inconsistent about that.
func (a *API) Mount(r chi.Router) {
	handle := func(method, pattern string, h http.HandlerFunc) {
		r.MethodFunc(method, pattern, h)
		r.MethodFunc(method, pattern+"/", h)
	}

	r.Post("/api", a.createUser)
	r.Post("/api/", a.createUser)
	r.Get("/api", a.unknownRequest)

	handle(http.MethodGet, "/api/config", a.getBridgeConfig)
	handle(http.MethodGet, "/api/{username}/config", a.getBridgeConfig)
	handle(http.MethodPut, "/api/{username}/config", a.changeConfig)
	handle(http.MethodDelete, "/api/{username}/config/whitelist/{element}", a.deleteWhitelist)

	handle(http.MethodGet, "/api/{username}", a.getFullState)

	handle(http.MethodGet, "/api/{username}/lights", a.getLights)
	handle(http.MethodGet, "/api/{username}/lights/new", a.getNewLights)
	handle(http.MethodPost, "/api/{username}/lights", a.searchNewLights)
	handle(http.MethodGet, "/api/{username}/lights/{light_id}", a.getLight)
	handle(http.MethodPut, "/api/{username}/lights/{light_id}", a.updateLight)
	handle(http.MethodPut, "/api/{username}/lights/{light_id}/state", a.putLightState)

	handle(http.MethodGet, "/api/{username}/groups", a.getGroups)
	handle(http.MethodGet, "/api/{username}/groups/{group_id}", a.getGroup)
	handle(http.MethodPost, "/api/{username}/groups", a.createGroup)
	handle(http.MethodPut, "/api/{username}/groups/{group_id}", a.updateGroup)
	handle(http.MethodPut, "/api/{username}/groups/{group_id}/action", a.groupAction)

	handle(http.MethodGet, "/api/{username}/{itemtype:scenes|rules|resourcelinks|schedules}", a.getLocalItems)
	handle(http.MethodGet, "/api/{username}/{itemtype:scenes|rules|resourcelinks|schedules}/{item_id}", a.getLocalItem)
	handle(http.MethodPost, "/api/{username}/{itemtype:scenes|rules|resourcelinks|schedules}", a.createLocalItem)
	handle(http.MethodPut, "/api/{username}/{itemtype:scenes|rules|resourcelinks|schedules}/{item_id}", a.updateLocalItem)
	handle(http.MethodDelete, "/api/{username}/{itemtype:scenes|rules|resourcelinks|schedules|groups|lights}/{item_id}", a.deleteLocalItem)

	handle(http.MethodGet, "/api/{username}/sensors", a.getSensors)
	handle(http.MethodGet, "/api/{username}/sensors/new", a.getSensors)
	handle(http.MethodGet, "/api/{username}/capabilities", a.getCapabilities)
	handle(http.MethodGet, "/api/{username}/info/timezones", a.getTimezones)

	r.Get("/description.xml", a.getDescription)
	r.Get("/link/{token}", a.link)

	r.HandleFunc("/api/*", a.unknownRequest)
}

// checkUser validates the username path segment against the whitelist.
func (a *API) checkUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := chi.URLParam(r, "username")
	if username != "" {
		if _, ok := a.br.GetUser(username); ok {
			return username, true
		}
	}
	a.log.Debug().Str("remote", r.RemoteAddr).Msg("Invalid username (api key)")
	sendError(w, strings.Replace(r.URL.Path, username, "", 1), "unauthorized user", 1)
	return "", false
}

// parseBody reads and decodes a JSON request body. Trailing NUL bytes
// are stripped for misbehaving apps like f.lux.
func (a *API) parseBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, "", "body contains invalid json", 2)
		return nil, false
	}
	raw = bytes.TrimRight(raw, "\x00")
	data := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			a.log.Warn().Str("body", string(raw)).Msg("Invalid json in request")
			sendError(w, "", "body contains invalid json", 2)
			return nil, false
		}
	}
	return data, true
}

// --- pairing ---

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	devicetype, _ := data["devicetype"].(string)
	if devicetype == "" {
		a.log.Warn().Msg("devicetype not specified")
		sendError(w, r.URL.Path, "devicetype not specified", 302)
		return
	}
	if strings.HasPrefix(devicetype, "home-assistant") {
		a.log.Error().Msg("Pairing with Home Assistant is explicitly disabled.")
		sendError(w, r.URL.Path, "Pairing with Home Assistant is explicitly disabled", 901)
		return
	}
	if !a.br.LinkModeEnabled() {
		a.br.EnableLinkModeDiscovery(r.Context())
		sendError(w, r.URL.Path, "link button not pressed", 101)
		return
	}

	user, err := a.br.CreateUser(devicetype)
	if err != nil {
		sendError(w, r.URL.Path, "link button not pressed", 101)
		return
	}
	success := map[string]any{"username": user.Username}
	if generate, _ := data["generateclientkey"].(bool); generate {
		success["clientkey"] = user.ClientKey
	}
	a.br.DisableLinkMode()
	go a.br.DisableLinkModeDiscovery(context.Background())
	sendJSON(w, []map[string]any{{"success": success}})
}

func (a *API) deleteWhitelist(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	element := chi.URLParam(r, "element")
	if _, ok := a.br.GetUser(element); !ok {
		sendError(w, r.URL.Path, "resource, {path}, not available", 3)
		return
	}
	a.br.DeleteUser(element)
	sendSuccess(w, r.URL.Path, map[string]any{element: "deleted"}, username)
}

// --- lights ---

func (a *API) getLights(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	sendJSON(w, a.allLights(r.Context()))
}

func (a *API) getNewLights(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	sendJSON(w, a.newLights)
}

// searchNewLights reactivates every soft-deleted light and group for
// one minute, mirroring a real bridge's search mode.
func (a *API) searchNewLights(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	if _, ok := a.parseBody(w, r); !ok {
		return
	}
	a.log.Info().Msg("Search mode activated. Any deleted/disabled lights will be reactivated.")

	a.mu.Lock()
	if a.newLightsTimer != nil {
		a.newLightsTimer.Stop()
	}
	a.newLightsTimer = time.AfterFunc(newLightsWindow, func() {
		a.mu.Lock()
		a.newLights = map[string]any{}
		a.mu.Unlock()
	})
	a.mu.Unlock()

	store := a.br.Store()
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		lightID := a.br.LightIDForEntity(entityID)
		conf, err := a.br.LightConfig(lightID)
		if err != nil {
			continue
		}
		if enabled, ok := conf["enabled"].(bool); ok && !enabled {
			conf["enabled"] = true
			store.SetIn("lights", lightID, conf)
			if obj, err := a.lightToHue(r.Context(), entityID); err == nil {
				a.mu.Lock()
				a.newLights[lightID] = obj
				a.mu.Unlock()
			}
		}
	}
	for groupID, val := range store.GetMap("groups") {
		conf, ok := val.(map[string]any)
		if !ok {
			continue
		}
		if enabled, ok := conf["enabled"].(bool); ok && !enabled {
			conf["enabled"] = true
			store.SetIn("groups", groupID, conf)
		}
	}
	sendSuccess(w, r.URL.Path, map[string]any{}, username)
}

func (a *API) getLight(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	lightID := chi.URLParam(r, "light_id")
	if lightID == "new" {
		a.mu.Lock()
		defer a.mu.Unlock()
		sendJSON(w, a.newLights)
		return
	}
	entityID, err := a.br.EntityIDForLight(lightID)
	if err != nil {
		sendError(w, r.URL.Path, "resource, {path}, not available", 3)
		return
	}
	obj, err := a.lightToHue(r.Context(), entityID)
	if err != nil {
		sendError(w, r.URL.Path, "resource, {path}, not available", 3)
		return
	}
	sendJSON(w, obj)
}

func (a *API) updateLight(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	lightID := chi.URLParam(r, "light_id")
	conf, err := a.br.LightConfig(lightID)
	if err != nil {
		sendError(w, r.URL.Path, "no light config", 404)
		return
	}
	if name, ok := data["name"].(string); ok {
		entityID, _ := conf["entity_id"].(string)
		if dev, err := a.devices.Get(r.Context(), entityID); err == nil {
			dev.SetName(name)
		}
	}
	sendSuccess(w, r.URL.Path, data, username)
}

func (a *API) putLightState(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	lightID := chi.URLParam(r, "light_id")
	entityID, err := a.br.EntityIDForLight(lightID)
	if err != nil {
		sendError(w, r.URL.Path, "resource, {path}, not available", 3)
		return
	}
	if err := a.lightAction(r.Context(), entityID, data); err != nil {
		a.log.Error().Err(err).Str("entity_id", entityID).Msg("light action failed")
	}
	sendSuccess(w, r.URL.Path, data, username)
}

// lightAction translates a Hue state request body into a device command.
func (a *API) lightAction(ctx context.Context, entityID string, data map[string]any) error {
	dev, err := a.devices.Get(ctx, entityID)
	if err != nil {
		return err
	}

	cmd := dev.NewCommand("apiv1")
	// transitiontime is in multiples of 100ms and defaults to 4
	if t, ok := numValue(data["transitiontime"]); ok && t != 0 {
		cmd.SetTransitionMS(t*100, false)
	} else {
		cmd.SetTransitionMS(400, false)
	}

	if on, present := data["on"].(bool); present && !on {
		cmd.SetPowerState(false)
		return cmd.Execute(ctx)
	}
	cmd.SetPowerState(true)

	// bri 0 is a valid request and clamps to the backend minimum of 1
	if bri, ok := numValue(data["bri"]); ok {
		cmd.SetBrightness(int(bri))
	}
	hue, hasHue := numValue(data["hue"])
	sat, hasSat := numValue(data["sat"])
	if hasHue && hasSat && hue != 0 && sat != 0 {
		hue = wrapNumber(hue, 0, hueHueMax)
		sat = wrapNumber(sat, 0, hueSatMax)
		cmd.SetHueSat(int(hue/hueHueMax*360), int(sat/hueSatMax*100))
	}
	if ct, ok := numValue(data["ct"]); ok && ct != 0 {
		cmd.SetColorTemperature(int(ct))
	}
	if xy, ok := data["xy"].([]any); ok && len(xy) == 2 {
		x, xok := numValue(xy[0])
		y, yok := numValue(xy[1])
		if xok && yok {
			cmd.SetXY(x, y)
		}
	}
	if effect, ok := data["effect"].(string); ok && effect != "" {
		cmd.SetEffect(effect)
	}
	switch data["alert"] {
	case "select":
		cmd.SetFlash("short")
	case "lselect":
		cmd.SetFlash("long")
	}

	return cmd.Execute(ctx)
}

// --- groups ---

func (a *API) getGroups(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	sendJSON(w, a.allGroups(r.Context()))
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	groupID := chi.URLParam(r, "group_id")
	if isDigits(groupID) {
		if conf, ok := a.allGroups(r.Context())[groupID]; ok {
			sendJSON(w, conf)
			return
		}
	}
	sendError(w, r.URL.Path, "resource, {path}, not available", 3)
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	if _, ok := data["class"]; !ok {
		data["class"] = "Other"
	}
	if _, ok := data["name"]; !ok {
		data["name"] = ""
	}
	itemID := a.br.NextLocalID("groups")
	a.br.Store().SetIn("groups", itemID, data)
	sendJSON(w, []map[string]any{{"success": map[string]any{"id": itemID}}})
}

func (a *API) updateGroup(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "group_id")
	conf, err := a.br.GroupConfig(groupID)
	if err != nil {
		sendError(w, r.URL.Path, "no group config", 404)
		return
	}
	updateDict(conf, data)

	if stream, ok := conf["stream"].(map[string]any); ok {
		if active, _ := stream["active"].(bool); active {
			a.log.Debug().Str("group_id", groupID).Msg("Start Entertainment mode for group")
			delete(stream, "active")
			user, _ := a.br.GetUser(username)
			a.stream.Start(groupID, conf, user)

			stream["owner"] = username
			if _, ok := stream["proxymode"]; !ok {
				stream["proxymode"] = "auto"
			}
			if _, ok := stream["proxynode"]; !ok {
				stream["proxynode"] = "/bridge"
			}
		} else {
			a.log.Info().Str("group_id", groupID).Msg("Stop Entertainment mode for group")
			a.stream.Stop()
		}
	}

	a.br.Store().SetIn("groups", groupID, conf)
	sendSuccess(w, r.URL.Path, data, username)
}

func (a *API) groupAction(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "group_id")
	conf, _ := a.br.GroupConfig(groupID)

	if sceneID, hasScene := data["scene"].(string); groupID == "0" && hasScene {
		scene, _ := a.br.Store().GetIn("scenes", sceneID, map[string]any{}).(map[string]any)
		if lightstates, ok := scene["lightstates"].(map[string]any); ok {
			for lightID, raw := range lightstates {
				state, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				entityID, err := a.br.EntityIDForLight(lightID)
				if err != nil {
					continue
				}
				if err := a.lightAction(r.Context(), entityID, state); err != nil {
					a.log.Error().Err(err).Str("entity_id", entityID).Msg("scene light action failed")
				}
			}
		}
	} else {
		for _, entityID := range a.groupEntities(r.Context(), groupID) {
			if err := a.lightAction(r.Context(), entityID, data); err != nil {
				a.log.Error().Err(err).Str("entity_id", entityID).Msg("group light action failed")
			}
		}
	}

	if conf != nil {
		if _, hasStream := conf["stream"]; hasStream {
			a.log.Info().Str("group_id", groupID).Msg("Stop Entertainment mode for group")
			a.stream.Stop()
		}
	}
	sendSuccess(w, r.URL.Path, data, username)
}

// --- local items ---

func (a *API) getLocalItems(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	itemtype := chi.URLParam(r, "itemtype")
	sendJSON(w, a.br.Store().GetMap(itemtype))
}

func (a *API) getLocalItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	itemtype := chi.URLParam(r, "itemtype")
	itemID := chi.URLParam(r, "item_id")
	result, _ := a.br.Store().GetIn(itemtype, itemID, map[string]any{}).(map[string]any)
	sendJSON(w, result)
}

func (a *API) createLocalItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	itemtype := chi.URLParam(r, "itemtype")
	itemID := a.br.NextLocalID(itemtype)
	a.br.Store().SetIn(itemtype, itemID, data)
	sendJSON(w, []map[string]any{{"success": map[string]any{"id": itemID}}})
}

func (a *API) updateLocalItem(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	itemtype := chi.URLParam(r, "itemtype")
	itemID := chi.URLParam(r, "item_id")
	item, ok := a.br.Store().GetIn(itemtype, itemID, nil).(map[string]any)
	if !ok {
		sendError(w, r.URL.Path, "no localitem", 404)
		return
	}
	updateDict(item, data)
	a.br.Store().SetIn(itemtype, itemID, item)
	sendSuccess(w, r.URL.Path, data, username)
}

func (a *API) deleteLocalItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	itemtype := chi.URLParam(r, "itemtype")
	itemID := chi.URLParam(r, "item_id")
	a.br.Store().Delete(itemtype, itemID)
	sendJSON(w, []map[string]any{{"success": "/" + itemtype + "/" + itemID + " deleted."}})
}

// --- bridge config ---

func (a *API) getBridgeConfig(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	valid := false
	if username != "" {
		_, valid = a.br.GetUser(username)
	}
	if !valid {
		// an unpaired client probing the config is how pairing starts
		a.br.EnableLinkModeDiscovery(r.Context())
	}
	sendJSON(w, a.bridgeConfigView(valid))
}

func (a *API) changeConfig(w http.ResponseWriter, r *http.Request) {
	username, ok := a.checkUser(w, r)
	if !ok {
		return
	}
	data, ok := a.parseBody(w, r)
	if !ok {
		return
	}
	a.log.Debug().Interface("params", data).Msg("Change config called")
	for key, value := range data {
		if key == "linkbutton" {
			// never persisted, pressing it just opens the pairing window
			if pressed, _ := value.(bool); pressed && !a.br.LinkModeEnabled() {
				a.br.EnableLinkMode()
			}
			continue
		}
		a.br.Store().SetIn("bridge_config", key, value)
	}
	sendSuccess(w, r.URL.Path, data, username)
}

func (a *API) getFullState(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	store := a.br.Store()
	sendJSON(w, map[string]any{
		"config":        a.bridgeConfigView(true),
		"schedules":     store.GetMap("schedules"),
		"rules":         store.GetMap("rules"),
		"scenes":        a.scenesForFullState(r.Context()),
		"resourcelinks": store.GetMap("resourcelinks"),
		"lights":        a.allLights(r.Context()),
		"groups":        a.allGroups(r.Context()),
		"sensors": map[string]any{
			"1": map[string]any{
				"state": map[string]any{"daylight": nil, "lastupdated": "none"},
				"config": map[string]any{
					"on":            true,
					"configured":    false,
					"sunriseoffset": 30,
					"sunsetoffset":  -30,
				},
				"name":             "Daylight",
				"type":             "Daylight",
				"modelid":          "PHDL00",
				"manufacturername": "Signify Netherlands B.V.",
				"swversion":        "1.0",
			},
		},
	})
}

func (a *API) getSensors(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	sendJSON(w, map[string]any{})
}

func (a *API) getCapabilities(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	sendJSON(w, map[string]any{
		"lights": map[string]any{"available": 50},
		"sensors": map[string]any{
			"available": 60,
			"clip":      map[string]any{"available": 60},
			"zll":       map[string]any{"available": 60},
			"zgp":       map[string]any{"available": 60},
		},
		"groups":        map[string]any{"available": 60},
		"scenes":        map[string]any{"available": 100, "lightstates": map[string]any{"available": 1500}},
		"rules":         map[string]any{"available": 100, "lightstates": map[string]any{"available": 1500}},
		"schedules":     map[string]any{"available": 100},
		"resourcelinks": map[string]any{"available": 100},
		"whitelists":    map[string]any{"available": 100},
		"timezones":     map[string]any{"value": timezones},
		"streaming":     map[string]any{"available": 1, "total": 10, "channels": 10},
	})
}

func (a *API) getTimezones(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.checkUser(w, r); !ok {
		return
	}
	sendJSON(w, timezones)
}

// --- discovery endpoints ---

func (a *API) getDescription(w http.ResponseWriter, r *http.Request) {
	xml := discovery.DescriptionXML(a.br.Identity, a.br.DiscoveryHTTPPort(), a.br.Name())
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(xml))
}

func (a *API) link(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if !a.br.CheckLinkToken(r.Context(), token) {
		w.WriteHeader(http.StatusFound)
		w.Write([]byte("Invalid token supplied!"))
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(`<html>
<body>
<h2>Link mode is enabled for 5 minutes.</h2>
</body>
<script>
  setTimeout(function() {
      window.close()
  }, 2000);
</script>
</html>`))
}

func (a *API) unknownRequest(w http.ResponseWriter, r *http.Request) {
	a.log.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("Invalid/unknown request")
	if r.Method == http.MethodGet {
		parts := strings.Split(strings.TrimLeft(r.URL.Path, "/"), "/")
		if len(parts) > 2 {
			if _, ok := a.br.GetUser(parts[1]); !ok {
				sendError(w, r.URL.Path, "unauthorized user", 1)
				return
			}
		}
		sendError(w, r.URL.Path, "method, GET, not available for resource, {path}", 4)
		return
	}
	sendError(w, r.URL.Path, "unknown request", 404)
}

func numValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func localTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	return "UTC"
}
