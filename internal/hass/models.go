package hass

// Entity is a backend entity state snapshot.
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

// Attr returns a raw attribute value.
func (e *Entity) Attr(name string) any {
	if e.Attributes == nil {
		return nil
	}
	return e.Attributes[name]
}

// StrAttr returns a string attribute, empty when absent.
func (e *Entity) StrAttr(name string) string {
	s, _ := e.Attr(name).(string)
	return s
}

// NumAttr returns a numeric attribute. JSON numbers decode as float64.
func (e *Entity) NumAttr(name string) (float64, bool) {
	f, ok := e.Attr(name).(float64)
	return f, ok
}

// IntAttr returns a numeric attribute truncated to int.
func (e *Entity) IntAttr(name string) (int, bool) {
	f, ok := e.NumAttr(name)
	return int(f), ok
}

// ListAttr returns a list attribute, nil when absent.
func (e *Entity) ListAttr(name string) []any {
	l, _ := e.Attr(name).([]any)
	return l
}

// StrListAttr returns a list attribute with string items.
func (e *Entity) StrListAttr(name string) []string {
	var out []string
	for _, item := range e.ListAttr(name) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// FloatPair decodes a two-element numeric list attribute.
func (e *Entity) FloatPair(name string) (float64, float64, bool) {
	l := e.ListAttr(name)
	if len(l) != 2 {
		return 0, 0, false
	}
	a, okA := l[0].(float64)
	b, okB := l[1].(float64)
	return a, b, okA && okB
}

// IntTriple decodes a three-element numeric list attribute.
func (e *Entity) IntTriple(name string) (int, int, int, bool) {
	l := e.ListAttr(name)
	if len(l) != 3 {
		return 0, 0, 0, false
	}
	a, okA := l[0].(float64)
	b, okB := l[1].(float64)
	c, okC := l[2].(float64)
	return int(a), int(b), int(c), okA && okB && okC
}

// RegistryEntry is a row from the backend entity registry.
type RegistryEntry struct {
	EntityID   string `json:"entity_id"`
	DeviceID   string `json:"device_id"`
	AreaID     string `json:"area_id"`
	DisabledBy string `json:"disabled_by"`
}

// DeviceEntry is a row from the backend device registry.
type DeviceEntry struct {
	ID           string `json:"id"`
	AreaID       string `json:"area_id"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Name         string `json:"name"`
	NameByUser   string `json:"name_by_user"`
	SWVersion    string `json:"sw_version"`
	Identifiers  []any  `json:"identifiers"`
}

// DisplayName prefers the user-assigned device name.
func (d *DeviceEntry) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	return d.Name
}

// UniqueIdentifier extracts the first usable identifier from the device
// registry row, preferring a zigbee address when present.
func (d *DeviceEntry) UniqueIdentifier() string {
	var first string
	for _, ident := range d.Identifiers {
		pair, ok := ident.([]any)
		if !ok || len(pair) == 0 {
			if s, ok := ident.(string); ok && first == "" {
				first = s
			}
			continue
		}
		last, _ := pair[len(pair)-1].(string)
		if last == "" {
			continue
		}
		if domain, _ := pair[0].(string); domain == "zha" {
			return last
		}
		if first == "" {
			first = last
		}
	}
	return first
}

// Area is a row from the backend area registry.
type Area struct {
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
}

// AreaView is an area together with its resolved light entities.
type AreaView struct {
	AreaID   string
	Name     string
	Entities []string
}
