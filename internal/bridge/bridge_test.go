package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
)

func testBridge(t *testing.T) *Bridge {
	t.Helper()
	store := OpenStore(filepath.Join(t.TempDir(), "config.json"))
	id := NewIdentity("b6:82:d3:45:ac:29", "127.0.0.1")
	return New(id, store, nil, 80, 443, false)
}

func TestLightIDForEntity(t *testing.T) {
	b := testBridge(t)

	first := b.LightIDForEntity("light.kitchen")
	if first != "1" {
		t.Errorf("first light id = %q, want 1", first)
	}
	if again := b.LightIDForEntity("light.kitchen"); again != first {
		t.Errorf("repeated lookup allocated a new id: %q", again)
	}
	if second := b.LightIDForEntity("light.bedroom"); second != "2" {
		t.Errorf("second light id = %q, want 2", second)
	}

	conf, err := b.LightConfig(first)
	if err != nil {
		t.Fatalf("LightConfig: %v", err)
	}
	if conf["entity_id"] != "light.kitchen" {
		t.Errorf("entity_id = %v", conf["entity_id"])
	}
	if conf["throttle"] != DefaultThrottleMS {
		t.Errorf("throttle = %v", conf["throttle"])
	}

	entityID, err := b.EntityIDForLight(first)
	if err != nil || entityID != "light.kitchen" {
		t.Errorf("EntityIDForLight = %q, %v", entityID, err)
	}
}

func TestLightConfigNotFound(t *testing.T) {
	b := testBridge(t)
	if _, err := b.LightConfig("99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGroupIDForArea(t *testing.T) {
	b := testBridge(t)

	first := b.GroupIDForArea("living_room")
	if first != "1" {
		t.Errorf("first group id = %q, want 1", first)
	}
	if again := b.GroupIDForArea("living_room"); again != first {
		t.Errorf("repeated lookup allocated a new id: %q", again)
	}

	conf, err := b.GroupConfig(first)
	if err != nil {
		t.Fatalf("GroupConfig: %v", err)
	}
	if conf["type"] != "Room" {
		t.Errorf("type = %v", conf["type"])
	}
}

func TestNextLocalID(t *testing.T) {
	b := testBridge(t)

	if id := b.NextLocalID("scenes"); id != "1" {
		t.Errorf("empty store id = %q, want 1", id)
	}
	b.Store().SetIn("scenes", "1", map[string]any{})
	b.Store().SetIn("scenes", "3", map[string]any{})
	// First free id, not max+1.
	if id := b.NextLocalID("scenes"); id != "2" {
		t.Errorf("id = %q, want 2", id)
	}
}

func TestCreateUserRequiresLinkMode(t *testing.T) {
	b := testBridge(t)

	if _, err := b.CreateUser("test#app"); !errors.Is(err, ErrLinkNotPressed) {
		t.Fatalf("err = %v, want ErrLinkNotPressed", err)
	}

	b.EnableLinkMode()
	defer b.DisableLinkMode()

	user, err := b.CreateUser("test#app")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if len(user.Username) != 40 {
		t.Errorf("username length = %d, want 40", len(user.Username))
	}
	if !regexp.MustCompile(`^[0-9A-F]{32}$`).MatchString(user.ClientKey) {
		t.Errorf("clientkey %q is not 32 upper hex chars", user.ClientKey)
	}

	// Idempotent on devicetype.
	again, err := b.CreateUser("test#app")
	if err != nil {
		t.Fatalf("CreateUser again: %v", err)
	}
	if again.Username != user.Username {
		t.Error("duplicate user minted for the same devicetype")
	}

	got, ok := b.GetUser(user.Username)
	if !ok || got.Name != "test#app" {
		t.Errorf("GetUser = %+v, %v", got, ok)
	}
	if got.LastUseDate == "" {
		t.Error("GetUser did not stamp last use date")
	}

	b.DeleteUser(user.Username)
	if _, ok := b.GetUser(user.Username); ok {
		t.Error("user survived deletion")
	}
}

func TestCheckLinkToken(t *testing.T) {
	b := testBridge(t)

	if b.CheckLinkToken(context.Background(), "") {
		t.Error("empty token accepted")
	}
	if b.CheckLinkToken(context.Background(), "nope") {
		t.Error("token accepted with no discovery key minted")
	}

	b.EnableLinkModeDiscovery(context.Background())
	token := b.LinkDiscoveryKey()
	if token == "" {
		t.Fatal("no discovery key minted")
	}
	if b.CheckLinkToken(context.Background(), "wrong") {
		t.Error("wrong token accepted")
	}
	if !b.CheckLinkToken(context.Background(), token) {
		t.Fatal("valid token rejected")
	}
	if !b.LinkModeEnabled() {
		t.Error("link mode not enabled after valid token")
	}
	if b.LinkDiscoveryKey() != "" {
		t.Error("discovery key survived redemption")
	}
	b.DisableLinkMode()
}
