// Package store persists credential-pool state to disk so a restarted
// gateway resumes with the same cookie/key pools: valid and exhausted
// cookies (with usage counters and reset timestamps), retired cookies with
// their reasons, and Gemini API keys, one JSON document per gateway.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/llm-gateway/internal/credential"
)

// State is the on-disk layout: every credential the gateway knows about.
// Pool membership is derived on load from each cookie's reset_time, so the
// file carries no separate valid/exhausted split.
type State struct {
	Cookies      []*credential.CookieStatus `json:"cookie_array"`
	WastedCookie []credential.UselessCookie `json:"wasted_cookie"`
	GeminiKeys   []*credential.KeyStatus    `json:"gemini_keys"`
}

// Store reads and writes a single State file. Saves are serialized and
// atomic (write to a temp file in the same directory, then rename), so a
// crash mid-save never truncates the previous good state.
type Store struct {
	mu   sync.Mutex
	path string
}

// New builds a Store for the given file path. The file need not exist yet.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state. A missing file yields an empty State and
// no error, so first-run needs no special casing.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state State
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, errors.Wrapf(err, "read credential state %q", s.path)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, errors.Wrapf(err, "parse credential state %q", s.path)
	}
	return state, nil
}

// Save atomically replaces the persisted state.
func (s *Store) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode credential state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create state directory %q", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp state file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp state file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replace credential state %q", s.path)
	}
	return nil
}
