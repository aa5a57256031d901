package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamstall/liveassist/internal/overlay"
	"github.com/streamstall/liveassist/internal/types"
)

// IsBlacklisted rejects messages from banned users or containing banned
// phrases. The overlay file tier is checked first; a file miss falls through
// to the database tier.
func (s *SQLStore) IsBlacklisted(ctx context.Context, sessionID, username, message string) (bool, error) {
	entries := overlay.LoadBlacklist(s.blacklistPath).Sessions[sessionID]
	for _, entry := range entries {
		if types.BlacklistType(entry.Type) == types.BlacklistUsername && entry.Pattern == username {
			return true, nil
		}
		if types.BlacklistType(entry.Type) == types.BlacklistMessage && patternMatches(entry.Pattern, message) {
			return true, nil
		}
	}

	banned := false
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		banned = false

		var count int
		err := db.QueryRowContext(ctx,
			d.Rebind(`SELECT COUNT(*) FROM blacklist WHERE session_id = ? AND type = 'username' AND pattern = ?`),
			sessionID, username).Scan(&count)
		if err != nil {
			return fmt.Errorf("query banned usernames: %w", err)
		}
		if count > 0 {
			banned = true
			return nil
		}

		rows, err := db.QueryContext(ctx,
			d.Rebind(`SELECT pattern FROM blacklist WHERE session_id = ? AND type = 'message'`),
			sessionID)
		if err != nil {
			return fmt.Errorf("query banned patterns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var pattern string
			if err := rows.Scan(&pattern); err != nil {
				return fmt.Errorf("scan banned pattern: %w", err)
			}
			if patternMatches(pattern, message) {
				banned = true
				return nil
			}
		}
		return rows.Err()
	})
	if err != nil {
		return false, err
	}
	return banned, nil
}

// CheckSensitiveWords matches the message against the process-wide sensitive
// word list from the blacklist overlay's _global bucket. Purely file-backed;
// a missing or malformed file means no sensitive words.
func (s *SQLStore) CheckSensitiveWords(message string) (bool, []string) {
	if message == "" {
		return false, nil
	}

	words := overlay.LoadBlacklist(s.blacklistPath).Global
	if len(words) == 0 {
		return false, nil
	}

	msg := strings.ToLower(strings.TrimSpace(message))
	var matched []string
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(msg, strings.ToLower(strings.TrimSpace(word))) {
			matched = append(matched, word)
		}
	}

	if len(matched) > 0 {
		slog.Warn("sensitive words matched", "words", matched)
		return true, matched
	}
	return false, nil
}
