package apiv2

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
	"github.com/dokzlo13/hueshim/internal/device"
	"github.com/dokzlo13/hueshim/internal/eventbus"
	"github.com/dokzlo13/hueshim/internal/hass"
	"github.com/dokzlo13/hueshim/internal/middleware"
)

// Rapid state changes are coalesced into single event stream frames.
const eventBatchInterval = 250 * time.Millisecond

// Directory lists the backend entities and areas the resource tree is
// built from. *hass.Client satisfies it.
type Directory interface {
	EntitiesByDomain(domain string) []string
	Areas() []hass.AreaView
}

// API serves the CLIP v2 resource endpoints and the server-sent event
// stream that v2 clients subscribe to.
type API struct {
	br      *bridge.Bridge
	hass    Directory
	devices *device.Manager
	log     zerolog.Logger
	batch   *middleware.IntervalCollector

	mu      sync.Mutex
	streams map[chan string]struct{}
}

func New(br *bridge.Bridge, hassClient Directory, devices *device.Manager, bus *eventbus.Bus) *API {
	a := &API{
		br:      br,
		hass:    hassClient,
		devices: devices,
		log:     log.With().Str("component", "apiv2").Logger(),
		streams: make(map[chan string]struct{}),
	}
	a.batch = middleware.NewIntervalCollector(eventBatchInterval, a.broadcast)
	if bus != nil {
		bus.Subscribe(eventbus.EventTypeDeviceState, a.onDeviceState)
	}
	return a
}

// Close stops the event batcher.
func (a *API) Close() {
	a.batch.Close()
}

func (a *API) Mount(r chi.Router) {
	r.Route("/clip/v2", func(r chi.Router) {
		r.Use(a.requireApplicationKey)
		r.Get("/resource", a.getAllResources)
		r.Get("/resource/homekit", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return []any{a.homekitResource()}
		}))
		r.Get("/resource/matter", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return []any{a.matterResource()}
		}))
		r.Get("/resource/bridge_home", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return []any{a.bridgeHomeResource()}
		}))
		r.Get("/resource/grouped_light", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return a.groupedLightResources(r.Context())
		}))
		r.Get("/resource/room", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return a.roomResources(r.Context())
		}))
		r.Get("/resource/device", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return a.deviceResources(r.Context())
		}))
		r.Get("/resource/light", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return a.lightResources(r.Context())
		}))
		r.Get("/resource/light/{resourceID}", a.getLight)
		r.Put("/resource/light/{resourceID}", a.putLight)
		r.Get("/resource/zigbee_connectivity", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return a.zigbeeConnectivityResources(r.Context())
		}))
		r.Get("/resource/entertainment", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return a.entertainmentResources(r.Context())
		}))
		r.Get("/resource/bridge", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return []any{a.bridgeResource()}
		}))
		r.Get("/resource/geolocation", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return []any{a.geolocationResource()}
		}))
		r.Get("/resource/zigbee_device_discovery", a.collection(func(w http.ResponseWriter, r *http.Request) []any {
			return []any{a.zigbeeDiscoveryResource()}
		}))
		r.HandleFunc("/*", a.unknownResource)
	})
	r.Get("/auth/v1", a.authV1)
	r.Put("/auth/v1", a.authV1)
	r.Get("/eventstream/clip/v2", a.eventStream)
}

// requireApplicationKey rejects requests that do not carry a valid
// hue-application-key header.
func (a *API) requireApplicationKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("hue-application-key")
		if _, ok := a.br.GetUser(key); !ok {
			a.sendError(w, http.StatusForbidden, "unauthorized user")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) authV1(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("hue-application-key")
	if _, ok := a.br.GetUser(key); !ok {
		a.sendError(w, http.StatusForbidden, "unauthorized user")
		return
	}
	w.Header().Set("hue-application-id", hueID("device", key))
	w.WriteHeader(http.StatusOK)
}

func (a *API) collection(fn func(http.ResponseWriter, *http.Request) []any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.sendData(w, fn(w, r))
	}
}

func (a *API) getAllResources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := []any{a.homekitResource(), a.matterResource(), a.bridgeHomeResource()}
	data = append(data, a.groupedLightResources(ctx)...)
	data = append(data, a.roomResources(ctx)...)
	data = append(data, a.deviceResources(ctx)...)
	data = append(data, a.lightResources(ctx)...)
	data = append(data, a.zigbeeConnectivityResources(ctx)...)
	data = append(data, a.entertainmentResources(ctx)...)
	data = append(data, a.bridgeResource(), a.geolocationResource(), a.zigbeeDiscoveryResource())
	a.sendData(w, data)
}

func (a *API) getLight(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")
	dev := a.deviceForResource(r.Context(), resourceID)
	if dev == nil {
		a.sendError(w, http.StatusNotFound, "resource not found")
		return
	}
	a.sendData(w, []any{a.entityLightResource(dev)})
}

func (a *API) putLight(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")
	dev := a.deviceForResource(r.Context(), resourceID)
	if dev == nil {
		a.sendError(w, http.StatusNotFound, "resource not found")
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd := dev.NewCommand("apiv2")
	if on, ok := body["on"].(map[string]any); ok {
		if power, ok := on["on"].(bool); ok {
			cmd.SetPowerState(power)
		}
	}
	if color, ok := body["color"].(map[string]any); ok {
		if xy, ok := color["xy"].(map[string]any); ok {
			x, xok := xy["x"].(float64)
			y, yok := xy["y"].(float64)
			if xok && yok {
				cmd.SetXY(x, y)
			}
		}
	}
	if ct, ok := body["color_temperature"].(map[string]any); ok {
		if mirek, ok := ct["mirek"].(float64); ok {
			cmd.SetColorTemperature(int(mirek))
		}
	}
	if dimming, ok := body["dimming"].(map[string]any); ok {
		if brightness, ok := dimming["brightness"].(float64); ok {
			cmd.SetBrightness(int(math.Max(2, brightness*2.55)))
		}
	}
	if err := cmd.Execute(r.Context()); err != nil {
		a.log.Error().Err(err).Str("entity_id", dev.EntityID()).Msg("v2 light update failed")
		a.sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.sendData(w, []any{map[string]any{"rid": resourceID, "rtype": "light"}})
}

func (a *API) deviceForResource(ctx context.Context, resourceID string) *device.Device {
	for _, entityID := range a.hass.EntitiesByDomain("light") {
		if hueID("light", entityID) != resourceID {
			continue
		}
		dev, err := a.devices.Get(ctx, entityID)
		if err != nil {
			return nil
		}
		return dev
	}
	return nil
}

func (a *API) unknownResource(w http.ResponseWriter, r *http.Request) {
	a.sendData(w, []any{})
}

// eventStream implements the v2 server-sent events channel. Clients
// receive an initial comment line, then resource updates as they occur.
func (a *API) eventStream(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("hue-application-key")
	if _, ok := a.br.GetUser(key); !ok {
		a.sendError(w, http.StatusForbidden, "unauthorized user")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": hi\n\n")
	flusher.Flush()

	ch := make(chan string, 16)
	a.mu.Lock()
	a.streams[ch] = struct{}{}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.streams, ch)
		a.mu.Unlock()
	}()

	a.log.Debug().Str("remote", r.RemoteAddr).Msg("event stream subscribed")
	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// onDeviceState queues a persisted state change for the event stream.
func (a *API) onDeviceState(event eventbus.Event) {
	entityID, _ := event.Data["entity_id"].(string)
	if entityID == "" {
		return
	}
	dev, ok := a.devices.Cached(entityID)
	if !ok {
		return
	}
	a.batch.AddEvent(map[string]any{
		"creationtime": time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		"id":           hueID("device", entityID+"/update"),
		"type":         "update",
		"data":         []any{a.entityLightResource(dev)},
	})
}

// broadcast delivers a batch of updates as one event stream frame.
func (a *API) broadcast(events []map[string]any) {
	encoded, err := json.Marshal(events)
	if err != nil {
		return
	}
	msg := fmt.Sprintf("id: %d:0\ndata: %s\n\n", time.Now().Unix(), encoded)

	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range a.streams {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (a *API) sendData(w http.ResponseWriter, data []any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	buf, err := json.Marshal(map[string]any{"errors": []any{}, "data": data})
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Write(buf)
}

func (a *API) sendError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf, _ := json.Marshal(map[string]any{
		"errors": []any{map[string]any{"description": description}},
		"data":   []any{},
	})
	w.Write(buf)
}
