// Package bridge holds the durable identity and configuration of the
// emulated Hue bridge: the JSON document store, users (app keys), the
// link-button state machine and light/group id allocation.
package bridge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultThrottleMS is the per-light command coalescing window applied
	// to newly discovered lights.
	DefaultThrottleMS = 150

	// LinkModeWindow is how long link mode (and the discovery token) stays
	// active before self-expiring.
	LinkModeWindow = 300 * time.Second

	linkNotificationID = "hue_bridge_link_requested"
)

// ErrLinkNotPressed is returned by CreateUser while link mode is off.
var ErrLinkNotPressed = errors.New("link button not pressed")

// ErrNotFound is returned when a light/group/user lookup misses.
var ErrNotFound = errors.New("not found")

// Notifier delivers the out-of-band link-mode notification to the user.
type Notifier interface {
	CreateNotification(ctx context.Context, message, notificationID string) error
	DismissNotification(ctx context.Context, notificationID string) error
}

// User is a registered API client (application key).
type User struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	ClientKey   string `json:"clientkey"`
	CreateDate  string `json:"create date"`
	LastUseDate string `json:"last use date"`
}

// Bridge bundles identity, persistent storage and pairing state.
type Bridge struct {
	Identity Identity

	store    *Store
	notifier Notifier
	log      zerolog.Logger

	HTTPPort        int
	HTTPSPort       int
	UseDefaultPorts bool

	mu             sync.Mutex
	linkMode       bool
	linkToken      string
	linkTimer      *time.Timer
	discoveryTimer *time.Timer
}

// New creates a Bridge around an opened store.
func New(identity Identity, store *Store, notifier Notifier, httpPort, httpsPort int, useDefaultPorts bool) *Bridge {
	return &Bridge{
		Identity:        identity,
		store:           store,
		notifier:        notifier,
		log:             log.With().Str("component", "bridge").Logger(),
		HTTPPort:        httpPort,
		HTTPSPort:       httpsPort,
		UseDefaultPorts: useDefaultPorts,
	}
}

// Store exposes the underlying document store.
func (b *Bridge) Store() *Store {
	return b.store
}

// Name returns the friendly bridge name.
func (b *Bridge) Name() string {
	if name, ok := b.store.GetIn("bridge_config", "name", "").(string); ok && name != "" {
		return name
	}
	return "Hueshim"
}

// DiscoveryHTTPPort is the port advertised in SSDP/description.xml.
func (b *Bridge) DiscoveryHTTPPort() int {
	if b.UseDefaultPorts {
		return 80
	}
	return b.HTTPPort
}

// Close flushes pairing timers and the store.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.linkTimer != nil {
		b.linkTimer.Stop()
	}
	if b.discoveryTimer != nil {
		b.discoveryTimer.Stop()
	}
	b.mu.Unlock()
	b.store.Close()
}

// --- id allocation ---

// LightIDForEntity returns the stable light id for a backend entity,
// creating a default light record on first sight. Allocation picks
// max(existing)+1 so ids are dense and never reused while present.
func (b *Bridge) LightIDForEntity(entityID string) string {
	lights := b.store.GetMap("lights")
	for id, val := range lights {
		if conf, ok := val.(map[string]any); ok && conf["entity_id"] == entityID {
			return id
		}
	}

	nextID := 1
	for id := range lights {
		if n, err := strconv.Atoi(id); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	lightID := strconv.Itoa(nextID)

	conf := map[string]any{
		"entity_id": entityID,
		"enabled":   true,
		"name":      "",
		"uniqueid":  UniqueID(entityID),
		"config": map[string]any{
			"archetype": "sultanbulb",
			"function":  "mixed",
			"direction": "omnidirectional",
			"startup":   map[string]any{"configured": true, "mode": "safety"},
		},
		"throttle": DefaultThrottleMS,
	}
	b.store.SetIn("lights", lightID, conf)
	b.log.Info().Str("entity_id", entityID).Str("light_id", lightID).Msg("Registered new light")
	return lightID
}

// LightConfig returns the stored record for a light id.
func (b *Bridge) LightConfig(lightID string) (map[string]any, error) {
	conf, ok := b.store.GetIn("lights", lightID, nil).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("light %s: %w", lightID, ErrNotFound)
	}
	return conf, nil
}

// EntityIDForLight resolves a light id back to its backend entity id.
func (b *Bridge) EntityIDForLight(lightID string) (string, error) {
	conf, err := b.LightConfig(lightID)
	if err != nil {
		return "", err
	}
	entityID, _ := conf["entity_id"].(string)
	if entityID == "" {
		return "", fmt.Errorf("light %s has no entity id: %w", lightID, ErrNotFound)
	}
	return entityID, nil
}

// GroupIDForArea returns the stable group id for a backend area,
// creating a default group record on first sight.
func (b *Bridge) GroupIDForArea(areaID string) string {
	groups := b.store.GetMap("groups")
	for id, val := range groups {
		if conf, ok := val.(map[string]any); ok && conf["area_id"] == areaID {
			return id
		}
	}

	nextID := 1
	for id := range groups {
		if n, err := strconv.Atoi(id); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	groupID := strconv.Itoa(nextID)

	conf := map[string]any{
		"area_id": areaID,
		"enabled": true,
		"name":    "",
		"class":   "Other",
		"type":    "Room",
		"lights":  []any{},
		"sensors": []any{},
		"action":  map[string]any{"on": false},
		"state":   map[string]any{"any_on": false, "all_on": false},
	}
	b.store.SetIn("groups", groupID, conf)
	return groupID
}

// GroupConfig returns the stored record for a group id.
func (b *Bridge) GroupConfig(groupID string) (map[string]any, error) {
	conf, ok := b.store.GetIn("groups", groupID, nil).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	return conf, nil
}

// NextLocalID returns the first free decimal id for a local item type
// (scenes, rules, resourcelinks, groups).
func (b *Bridge) NextLocalID(itemType string) string {
	items := b.store.GetMap(itemType)
	for i := 1; i < 1000; i++ {
		id := strconv.Itoa(i)
		if _, ok := items[id]; !ok {
			return id
		}
	}
	return "1000"
}

// --- users ---

// GetUser returns user details and stamps the last use date.
func (b *Bridge) GetUser(username string) (User, bool) {
	data, ok := b.store.GetIn("users", username, nil).(map[string]any)
	if !ok {
		return User{}, false
	}
	data["last use date"] = timestamp()
	b.store.SetIn("users", username, data)
	return userFromMap(data), true
}

// Users returns all registered users keyed by username.
func (b *Bridge) Users() map[string]User {
	result := map[string]User{}
	for username, val := range b.store.GetMap("users") {
		if data, ok := val.(map[string]any); ok {
			result[username] = userFromMap(data)
		}
	}
	return result
}

// CreateUser mints a new user while link mode is enabled. It is
// idempotent on devicetype: an existing user with the same name is
// returned instead of a duplicate.
func (b *Bridge) CreateUser(devicetype string) (User, error) {
	b.mu.Lock()
	enabled := b.linkMode
	b.mu.Unlock()
	if !enabled {
		return User{}, ErrLinkNotPressed
	}

	for _, user := range b.Users() {
		if user.Name == devicetype {
			return user, nil
		}
	}

	user := User{
		Name:       devicetype,
		Username:   secureString(40, false),
		ClientKey:  secureString(32, true),
		CreateDate: timestamp(),
	}
	b.store.SetIn("users", user.Username, map[string]any{
		"name":        user.Name,
		"clientkey":   user.ClientKey,
		"create date": user.CreateDate,
		"username":    user.Username,
	})
	b.log.Info().Str("name", user.Name).Msg("Client registered")
	return user, nil
}

// DeleteUser removes a user. Deletion is hard.
func (b *Bridge) DeleteUser(username string) {
	b.store.Delete("users", username)
}

func userFromMap(data map[string]any) User {
	str := func(key string) string {
		s, _ := data[key].(string)
		return s
	}
	return User{
		Name:        str("name"),
		Username:    str("username"),
		ClientKey:   str("clientkey"),
		CreateDate:  str("create date"),
		LastUseDate: str("last use date"),
	}
}

// --- link mode ---

// LinkModeEnabled reports whether new users may currently be created.
func (b *Bridge) LinkModeEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linkMode
}

// LinkDiscoveryKey returns the current discovery token, empty when none.
func (b *Bridge) LinkDiscoveryKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linkToken
}

// EnableLinkMode opens the pairing window for 5 minutes.
func (b *Bridge) EnableLinkMode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.linkMode {
		return
	}
	b.linkMode = true
	b.linkTimer = time.AfterFunc(LinkModeWindow, b.DisableLinkMode)
	b.log.Info().Msg("Link mode is enabled for the next 5 minutes")
}

// DisableLinkMode closes the pairing window.
func (b *Bridge) DisableLinkMode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.linkMode {
		return
	}
	b.linkMode = false
	if b.linkTimer != nil {
		b.linkTimer.Stop()
		b.linkTimer = nil
	}
	b.log.Info().Msg("Link mode is disabled")
}

// EnableLinkModeDiscovery mints a discovery token and asks the backend
// to show a notification with the /link URL. The token self-expires
// after 5 minutes.
func (b *Bridge) EnableLinkModeDiscovery(ctx context.Context) {
	b.mu.Lock()
	if b.linkToken != "" {
		b.mu.Unlock()
		return
	}
	b.linkToken = secureString(32, false)
	token := b.linkToken
	b.discoveryTimer = time.AfterFunc(LinkModeWindow, func() {
		b.DisableLinkModeDiscovery(context.Background())
	})
	b.mu.Unlock()

	b.log.Info().Msg("Link request detected, requesting confirmation via the backend")

	url := fmt.Sprintf("http://%s:%d/link/%s", b.Identity.IPAddr, b.DiscoveryHTTPPort(), token)
	msg := "Click the link below to enable pairing mode on the virtual bridge:\n\n" +
		fmt.Sprintf("**[Enable link mode](%s)**", url)
	if b.notifier != nil {
		if err := b.notifier.CreateNotification(ctx, msg, linkNotificationID); err != nil {
			b.log.Warn().Err(err).Msg("Failed to create link notification")
		}
	}
}

// DisableLinkModeDiscovery clears the token and dismisses the notification.
func (b *Bridge) DisableLinkModeDiscovery(ctx context.Context) {
	b.mu.Lock()
	b.linkToken = ""
	if b.discoveryTimer != nil {
		b.discoveryTimer.Stop()
		b.discoveryTimer = nil
	}
	b.mu.Unlock()
	if b.notifier != nil {
		if err := b.notifier.DismissNotification(ctx, linkNotificationID); err != nil {
			b.log.Debug().Err(err).Msg("Failed to dismiss link notification")
		}
	}
}

// CheckLinkToken flips link mode on when the token matches the current
// discovery key.
func (b *Bridge) CheckLinkToken(ctx context.Context, token string) bool {
	b.mu.Lock()
	match := token != "" && token == b.linkToken
	b.mu.Unlock()
	if !match {
		return false
	}
	b.EnableLinkMode()
	b.DisableLinkModeDiscovery(ctx)
	return true
}

// --- helpers ---

func timestamp() string {
	return time.Now().Format("2006-01-02T15:04:05")
}

const (
	urlSafeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"
	hexChars     = "0123456789ABCDEF"
)

// secureString creates a secure random string for usernames, client
// keys and tokens. Hex-compatible strings are upper case.
func secureString(length int, hexCompatible bool) string {
	charset := urlSafeChars
	if hexCompatible {
		charset = hexChars
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = charset[n.Int64()]
	}
	return string(out)
}
