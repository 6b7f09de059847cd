package apiv1

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func decodeList(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", body, err)
	}
	return out
}

func TestSendSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	sendSuccess(w, "/api/testuser/lights/1/state", map[string]any{"on": true}, "testuser")

	out := decodeList(t, w.Body.Bytes())
	if len(out) != 1 {
		t.Fatalf("entries = %d", len(out))
	}
	success, ok := out[0]["success"].(map[string]any)
	if !ok {
		t.Fatalf("no success entry: %v", out[0])
	}
	if success["/lights/1/state/on"] != true {
		t.Errorf("success = %v", success)
	}

	if got := w.Header().Get("server"); got != "nginx" {
		t.Errorf("server header = %q", got)
	}
}

func TestSendSuccessMultipleKeys(t *testing.T) {
	w := httptest.NewRecorder()
	sendSuccess(w, "/api/u/groups/1/action", map[string]any{"on": true, "bri": float64(200)}, "u")

	out := decodeList(t, w.Body.Bytes())
	if len(out) != 2 {
		t.Fatalf("entries = %d, want one per key", len(out))
	}
}

func TestSendError(t *testing.T) {
	tests := []struct {
		name        string
		address     string
		description string
		errType     int
		wantAddr    string
		wantDesc    string
	}{
		{
			name:        "unauthorized",
			address:     "/api/bogus/lights",
			description: "unauthorized user",
			errType:     1,
			wantAddr:    "/lights",
			wantDesc:    "unauthorized user",
		},
		{
			name:        "short path",
			address:     "/api",
			description: "body contains invalid json",
			errType:     2,
			wantAddr:    "/",
			wantDesc:    "body contains invalid json",
		},
		{
			name:        "path substitution",
			address:     "/api/u/invalid/path",
			description: "method, GET, not available for resource, {path}",
			errType:     4,
			wantAddr:    "/invalid",
			wantDesc:    "method, GET, not available for resource, /invalid",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			sendError(w, tt.address, tt.description, tt.errType)

			out := decodeList(t, w.Body.Bytes())
			errObj, ok := out[0]["error"].(map[string]any)
			if !ok {
				t.Fatalf("no error entry: %v", out[0])
			}
			if errObj["address"] != tt.wantAddr {
				t.Errorf("address = %v, want %v", errObj["address"], tt.wantAddr)
			}
			if errObj["description"] != tt.wantDesc {
				t.Errorf("description = %v, want %v", errObj["description"], tt.wantDesc)
			}
			if errObj["type"] != float64(tt.errType) {
				t.Errorf("type = %v, want %d", errObj["type"], tt.errType)
			}
		})
	}
}

func TestSendJSONNoHTMLEscape(t *testing.T) {
	w := httptest.NewRecorder()
	sendJSON(w, map[string]any{"name": "a & b <c>"})
	if body := w.Body.String(); body != `{"name":"a & b <c>"}` {
		t.Errorf("body = %s", body)
	}
}
