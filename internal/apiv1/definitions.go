package apiv1

// Product definitions presented to Hue clients. Each emulated light
// borrows the identity of a genuine Hue product matching its feature
// set so apps render proper icons and capability sheets.

func lightDefinition(deviceType string) map[string]any {
	switch deviceType {
	case "Dimmable light":
		return map[string]any{
			"type":             "Dimmable light",
			"modelid":          "LWB010",
			"manufacturername": "Signify Netherlands B.V.",
			"productname":      "Hue white lamp",
			"swversion":        "1.104.2",
			"capabilities": map[string]any{
				"certified": true,
				"control": map[string]any{
					"mindimlevel": 5000,
					"maxlumen":    806,
				},
				"streaming": map[string]any{"renderer": false, "proxy": false},
			},
		}
	case "Color temperature light":
		return map[string]any{
			"type":             "Color temperature light",
			"modelid":          "LTW001",
			"manufacturername": "Signify Netherlands B.V.",
			"productname":      "Hue ambiance lamp",
			"swversion":        "1.104.2",
			"capabilities": map[string]any{
				"certified": true,
				"control": map[string]any{
					"mindimlevel": 1000,
					"maxlumen":    806,
					"ct":          map[string]any{"min": 153, "max": 454},
				},
				"streaming": map[string]any{"renderer": false, "proxy": false},
			},
		}
	case "Color light":
		return map[string]any{
			"type":             "Color light",
			"modelid":          "LST001",
			"manufacturername": "Signify Netherlands B.V.",
			"productname":      "Hue lightstrip",
			"swversion":        "5.127.1.26581",
			"capabilities": map[string]any{
				"certified": true,
				"control": map[string]any{
					"mindimlevel":    40,
					"maxlumen":       1600,
					"colorgamuttype": "A",
					"colorgamut": []any{
						[]any{0.704, 0.296},
						[]any{0.2151, 0.7106},
						[]any{0.138, 0.08},
					},
				},
				"streaming": map[string]any{"renderer": true, "proxy": true},
			},
		}
	case "Extended color light":
		return map[string]any{
			"type":             "Extended color light",
			"modelid":          "LCT015",
			"manufacturername": "Signify Netherlands B.V.",
			"productname":      "Hue color lamp",
			"swversion":        "1.104.2",
			"capabilities": map[string]any{
				"certified": true,
				"control": map[string]any{
					"mindimlevel":    1000,
					"maxlumen":       806,
					"colorgamuttype": "C",
					"colorgamut": []any{
						[]any{0.6915, 0.3083},
						[]any{0.17, 0.7},
						[]any{0.1532, 0.0475},
					},
					"ct": map[string]any{"min": 153, "max": 500},
				},
				"streaming": map[string]any{"renderer": true, "proxy": true},
			},
		}
	}
	return map[string]any{
		"type":             "On/off light",
		"modelid":          "LOM001",
		"manufacturername": "Signify Netherlands B.V.",
		"productname":      "Hue Smart plug",
		"swversion":        "1.104.2",
		"capabilities": map[string]any{
			"certified": true,
			"control":   map[string]any{},
			"streaming": map[string]any{"renderer": false, "proxy": false},
		},
	}
}

// bridgeBasic returns the config fields visible without authentication.
func bridgeBasic() map[string]any {
	return map[string]any{
		"modelid":          "BSB002",
		"datastoreversion": "103",
		"apiversion":       "1.48.0",
		"swversion":        "1948086000",
		"factorynew":       false,
		"replacesbridgeid": nil,
		"starterkitid":     "",
	}
}

// bridgeFull returns the additional config fields for authenticated
// users.
func bridgeFull() map[string]any {
	return map[string]any{
		"backup": map[string]any{"status": "idle", "errorcode": 0},
		"dhcp":   true,
		"internetservices": map[string]any{
			"internet":     "connected",
			"remoteaccess": "connected",
			"swupdate":     "connected",
			"time":         "connected",
		},
		"netmask":          "255.255.255.0",
		"portalconnection": "connected",
		"portalservices":   true,
		"portalstate": map[string]any{
			"communication": "disconnected",
			"incoming":      false,
			"outgoing":      true,
			"signedon":      true,
		},
		"proxyaddress": "none",
		"proxyport":    0,
		"swupdate2": map[string]any{
			"autoinstall":  map[string]any{"on": true, "updatetime": "T14:00:00"},
			"bridge":       map[string]any{"lastinstall": "2020-12-11T17:08:55", "state": "noupdates"},
			"checkforupdate": false,
			"lastchange":   "2020-12-13T10:30:15",
			"state":        "noupdates",
		},
	}
}

// timezones is the subset of the IANA database a real bridge ships.
var timezones = []string{
	"Africa/Cairo",
	"Africa/Johannesburg",
	"Africa/Lagos",
	"America/Anchorage",
	"America/Argentina/Buenos_Aires",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Mexico_City",
	"America/New_York",
	"America/Sao_Paulo",
	"America/Toronto",
	"Asia/Dubai",
	"Asia/Hong_Kong",
	"Asia/Jerusalem",
	"Asia/Kolkata",
	"Asia/Seoul",
	"Asia/Shanghai",
	"Asia/Singapore",
	"Asia/Tokyo",
	"Australia/Melbourne",
	"Australia/Perth",
	"Australia/Sydney",
	"Europe/Amsterdam",
	"Europe/Berlin",
	"Europe/Dublin",
	"Europe/Lisbon",
	"Europe/London",
	"Europe/Madrid",
	"Europe/Moscow",
	"Europe/Paris",
	"Europe/Rome",
	"Europe/Stockholm",
	"Europe/Warsaw",
	"Pacific/Auckland",
	"UTC",
}
