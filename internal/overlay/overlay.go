// Package overlay loads the file-backed whitelist and blacklist data that
// fronts the database tiers. Missing or malformed files degrade silently to
// "no overlay data"; the caller falls through to the database.
package overlay

import (
	"encoding/json"
	"log/slog"
	"os"
)

// GlobalKey is the reserved blacklist-file key holding the flat list of
// sensitive words applied across all sessions.
const GlobalKey = "_global"

// WhitelistEntry is one curated FAQ pattern in the whitelist file.
type WhitelistEntry struct {
	Pattern      string `json:"pattern"`
	Answer       string `json:"answer"`
	Priority     int    `json:"priority"`
	ProductTypes string `json:"product_types,omitempty"`
}

// BlacklistEntry is one ban rule in the blacklist file.
type BlacklistEntry struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
}

// Whitelist maps session ids to their ordered overlay entries.
type Whitelist map[string][]WhitelistEntry

// Blacklist holds per-session ban rules plus the global sensitive-word list.
type Blacklist struct {
	Sessions map[string][]BlacklistEntry
	Global   []string
}

// LoadWhitelist reads the whitelist overlay file. Any failure yields an empty
// overlay.
func LoadWhitelist(path string) Whitelist {
	raw, ok := readFile(path)
	if !ok {
		return Whitelist{}
	}

	var wl Whitelist
	if err := json.Unmarshal(raw, &wl); err != nil {
		slog.Warn("malformed whitelist overlay, ignoring", "path", path, "error", err)
		return Whitelist{}
	}
	if wl == nil {
		wl = Whitelist{}
	}
	return wl
}

// LoadBlacklist reads the blacklist overlay file. The _global key is a flat
// string list; every other key maps a session id to ban rules. Any failure
// yields an empty overlay.
func LoadBlacklist(path string) Blacklist {
	bl := Blacklist{Sessions: map[string][]BlacklistEntry{}}

	raw, ok := readFile(path)
	if !ok {
		return bl
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byKey); err != nil {
		slog.Warn("malformed blacklist overlay, ignoring", "path", path, "error", err)
		return bl
	}

	for key, msg := range byKey {
		if key == GlobalKey {
			var words []string
			if err := json.Unmarshal(msg, &words); err != nil {
				slog.Warn("malformed sensitive-word list, ignoring", "path", path, "error", err)
				continue
			}
			bl.Global = words
			continue
		}

		var entries []BlacklistEntry
		if err := json.Unmarshal(msg, &entries); err != nil {
			slog.Warn("malformed blacklist session entries, ignoring", "path", path, "session_id", key, "error", err)
			continue
		}
		bl.Sessions[key] = entries
	}

	return bl
}

func readFile(path string) ([]byte, bool) {
	if path == "" {
		return nil, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("overlay file unreadable, ignoring", "path", path, "error", err)
		}
		return nil, false
	}
	return raw, true
}
