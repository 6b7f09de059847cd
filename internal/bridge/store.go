package bridge

import (
	"bytes"
	"encoding/json"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigWriteDelay is how long a mutation may sit in memory before the
// document is committed to disk. Mutations inside the window ride the
// pending commit instead of rescheduling it.
const ConfigWriteDelay = 10 * time.Second

// Store is a JSON document store with delayed atomic commits.
// The document is a two-level map: top-level keys ("lights", "users", ...)
// hold either a scalar or a map of subkey to value.
type Store struct {
	mu   sync.Mutex
	path string
	doc  map[string]any

	writeDelay time.Duration
	saveTimer  *time.Timer

	log zerolog.Logger
}

// OpenStore loads the JSON document at path. Load errors (missing file,
// malformed JSON, I/O) produce an empty document, not an error.
func OpenStore(path string) *Store {
	s := &Store{
		path:       path,
		doc:        map[string]any{},
		writeDelay: ConfigWriteDelay,
		log:        log.With().Str("component", "store").Logger(),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("Loading config file failed, starting empty")
		return s
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("Parsing config file failed, starting empty")
		s.doc = map[string]any{}
	}
	return s
}

// Get returns the value at key, or def when absent. Returned values are
// detached copies; mutations only take effect through Set/SetIn.
func (s *Store) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.doc[key]
	if !ok {
		return def
	}
	return copyValue(val)
}

// GetIn returns the value at key/subkey, or def when absent. Returned
// values are detached copies.
func (s *Store) GetIn(key, subkey string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.doc[key].(map[string]any)
	if !ok {
		return def
	}
	val, ok := sub[subkey]
	if !ok {
		return def
	}
	return copyValue(val)
}

// GetMap returns a detached copy of the map at key.
func (s *Store) GetMap(key string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.doc[key].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return copyValue(sub).(map[string]any)
}

// Set stores value at key. A set that does not change the value is a no-op.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reflect.DeepEqual(s.doc[key], value) {
		return
	}
	s.doc[key] = copyValue(value)
	s.scheduleCommitLocked()
}

// SetIn stores value at key/subkey, creating the sublevel if needed.
func (s *Store) SetIn(key, subkey string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.doc[key].(map[string]any)
	if !ok {
		s.doc[key] = map[string]any{subkey: copyValue(value)}
		s.scheduleCommitLocked()
		return
	}
	if reflect.DeepEqual(sub[subkey], value) {
		return
	}
	sub[subkey] = copyValue(value)
	s.scheduleCommitLocked()
}

// copyValue deep-copies the JSON-shaped values the document holds, so
// the store never shares nested maps with its callers.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}

// Delete removes key (or key/subkey) from the document.
//
// Two special cases are handled as soft deletes: lights are disabled
// instead of removed, and groups whose class is "Home Assistant" are
// disabled after their scenes are cascade-deleted. Backend-derived
// records must survive a delete so their ids stay stable.
func (s *Store) Delete(key, subkey string) {
	if key == "groups" && subkey != "" {
		for sceneID, val := range s.GetMap("scenes") {
			scene, ok := val.(map[string]any)
			if !ok {
				continue
			}
			if scene["group"] == subkey {
				s.Delete("scenes", sceneID)
			}
		}
		if group, ok := s.GetIn("groups", subkey, nil).(map[string]any); ok {
			if group["class"] == "Home Assistant" {
				group["enabled"] = false
				s.SetIn("groups", subkey, group)
				s.forceCommit()
				return
			}
		}
	}
	if key == "lights" && subkey != "" {
		if light, ok := s.GetIn("lights", subkey, nil).(map[string]any); ok {
			light["enabled"] = false
			s.SetIn("lights", subkey, light)
			s.forceCommit()
			return
		}
	}

	s.mu.Lock()
	if subkey != "" {
		if sub, ok := s.doc[key].(map[string]any); ok {
			delete(sub, subkey)
		}
	} else {
		delete(s.doc, key)
	}
	s.mu.Unlock()
	s.forceCommit()
}

// scheduleCommitLocked arms the commit timer if none is pending.
// Callers must hold s.mu.
func (s *Store) scheduleCommitLocked() {
	if s.saveTimer != nil {
		return
	}
	s.saveTimer = time.AfterFunc(s.writeDelay, func() {
		s.mu.Lock()
		s.saveTimer = nil
		data, err := s.encodeLocked()
		s.mu.Unlock()
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to serialize config document")
			return
		}
		s.write(data)
	})
}

// forceCommit writes the document immediately, without waiting for the
// delayed commit window.
func (s *Store) forceCommit() {
	s.mu.Lock()
	data, err := s.encodeLocked()
	s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to serialize config document")
		return
	}
	s.write(data)
}

// encodeLocked marshals the document with sorted keys, 4-space indent
// and non-ASCII preserved. Callers must hold s.mu.
func (s *Store) encodeLocked() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// write rotates the live file to a .backup sibling, then atomically
// renames a synced temp file over the live path. Save errors are logged
// and swallowed: the data stays in memory and is retried on the next
// mutation or on shutdown.
func (s *Store) write(data []byte) {
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.path+".backup"); err != nil {
			s.log.Error().Err(err).Msg("Failed to rotate config backup")
		}
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to save config file")
		return
	}
	s.log.Debug().Str("path", s.path).Msg("Config committed")
}

// Close cancels any pending commit and flushes the document once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	data, err := s.encodeLocked()
	s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to serialize config document on shutdown")
		return
	}
	s.write(data)
}
