package apiv1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// responseHeaders mimics a real bridge's nginx frontend. Some Hue apps
// check these before trusting the bridge.
var responseHeaders = map[string]string{
	"server":                           "nginx",
	"Access-Control-Max-Age":           "3600",
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Allow-Methods":     "POST, GET, OPTIONS, PUT, DELETE, HEAD",
	"Access-Control-Allow-Headers":     "Content-Type",
	"X-XSS-Protection":                 "1; mode=block",
	"X-Frame-Options":                  "SAMEORIGIN",
	"X-Content-Type-Options":           "nosniff",
	"Content-Security-Policy":          "default-src 'self'",
	"Referrer-Policy":                  "no-referrer",
}

func sendJSON(w http.ResponseWriter, data any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	for key, value := range responseHeaders {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
}

// sendSuccess emits one success entry per received key, addressed
// relative to the username prefix.
func sendSuccess(w http.ResponseWriter, requestPath string, requestData map[string]any, username string) {
	if username != "" {
		requestPath = strings.Replace(requestPath, "/api/"+username, "", 1)
	}
	response := make([]map[string]any, 0, len(requestData))
	for key, val := range requestData {
		response = append(response, map[string]any{
			"success": map[string]any{requestPath + "/" + key: val},
		})
	}
	sendJSON(w, response)
}

// sendError emits the Hue error envelope. The address is stripped down
// to the resource path the way a real bridge reports it.
func sendError(w http.ResponseWriter, address, description string, errType int) {
	if address != "" {
		if strings.Contains(address, "//") {
			address = strings.Replace(address, "/api/", "", 1)
		} else {
			parts := strings.Split(strings.TrimLeft(address, "/"), "/")
			if len(parts) > 2 {
				address = "/" + parts[2]
			} else {
				address = "/"
			}
		}
	}
	description = strings.ReplaceAll(description, "{path}", address)
	sendJSON(w, []map[string]any{
		{"error": map[string]any{"type": errType, "address": address, "description": description}},
	})
}
