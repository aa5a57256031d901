package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/streamstall/liveassist/internal/overlay"
)

// faqMatcher is one tier of the whitelist lookup chain. Tiers are tried in
// order until one yields a match.
type faqMatcher interface {
	match(ctx context.Context, sessionID, message string, sessionTypes map[string]bool) (string, bool, error)
}

// ResolveFAQ matches a message against the session's curated patterns:
// the file overlay tier first, then the database tier. A miss is a normal
// outcome, reported as ("", false, nil).
func (s *SQLStore) ResolveFAQ(ctx context.Context, sessionID, message string) (string, bool, error) {
	sessionTypes, err := s.sessionProductTypes(ctx, sessionID)
	if err != nil {
		slog.Warn("product type lookup failed, matching without category gate", "session_id", sessionID, "error", err)
		sessionTypes = nil
	}

	matchers := []faqMatcher{
		overlayFAQMatcher{path: s.whitelistPath},
		dbFAQMatcher{store: s},
	}
	for _, m := range matchers {
		answer, ok, err := m.match(ctx, sessionID, message, sessionTypes)
		if err != nil {
			return "", false, err
		}
		if ok {
			return answer, true, nil
		}
	}
	return "", false, nil
}

// faqScore orders candidates: higher declared priority wins, then the longer
// (more specific) pattern, measured in runes.
type faqScore struct {
	priority int
	length   int
}

func scoreOf(priority int, pattern string) faqScore {
	return faqScore{priority: priority, length: utf8.RuneCountInString(pattern)}
}

func (a faqScore) beats(b faqScore) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.length > b.length
}

// categoryApplies gates an entry by its comma-separated category tags.
// No tags declared, or a session with no categorized products, means always
// applicable.
func categoryApplies(csv string, sessionTypes map[string]bool) bool {
	if strings.TrimSpace(csv) == "" || len(sessionTypes) == 0 {
		return true
	}
	for _, tag := range strings.Split(csv, ",") {
		if sessionTypes[strings.TrimSpace(tag)] {
			return true
		}
	}
	return false
}

func patternMatches(pattern, message string) bool {
	return pattern != "" && strings.Contains(strings.ToLower(message), strings.ToLower(pattern))
}

// overlayFAQMatcher serves the file-backed whitelist tier. No hit bookkeeping
// exists for this tier, and file errors degrade to a miss. A winning entry
// with an empty answer is also a miss, so the database tier still gets a
// chance at the message.
type overlayFAQMatcher struct {
	path string
}

func (m overlayFAQMatcher) match(_ context.Context, sessionID, message string, sessionTypes map[string]bool) (string, bool, error) {
	entries := overlay.LoadWhitelist(m.path)[sessionID]

	var (
		best      string
		bestScore = faqScore{priority: -1, length: -1}
		found     bool
	)
	for _, entry := range entries {
		if !categoryApplies(entry.ProductTypes, sessionTypes) {
			continue
		}
		if !patternMatches(entry.Pattern, message) {
			continue
		}
		if score := scoreOf(entry.Priority, entry.Pattern); score.beats(bestScore) {
			best = entry.Answer
			bestScore = score
			found = true
		}
	}
	if best == "" {
		return "", false, nil
	}
	return best, found, nil
}

// dbFAQMatcher serves the database tier, the source of truth when the overlay
// has nothing. A win increments hit telemetry before the answer is returned.
type dbFAQMatcher struct {
	store *SQLStore
}

func (m dbFAQMatcher) match(ctx context.Context, sessionID, message string, sessionTypes map[string]bool) (string, bool, error) {
	var (
		answer string
		found  bool
	)
	err := m.store.withDB(func(db *sql.DB, d Dialect) error {
		answer, found = "", false

		rows, err := db.QueryContext(ctx,
			d.Rebind(`SELECT id, pattern, answer, priority, product_types FROM whitelist WHERE session_id = ?`),
			sessionID)
		if err != nil {
			return fmt.Errorf("query whitelist: %w", err)
		}
		defer rows.Close()

		var (
			bestID    int64
			bestScore = faqScore{priority: -1, length: -1}
		)
		for rows.Next() {
			var (
				id           int64
				pattern      string
				entryAnswer  string
				priority     sql.NullInt64
				productTypes sql.NullString
			)
			if err := rows.Scan(&id, &pattern, &entryAnswer, &priority, &productTypes); err != nil {
				return fmt.Errorf("scan whitelist entry: %w", err)
			}
			if !categoryApplies(productTypes.String, sessionTypes) {
				continue
			}
			if !patternMatches(pattern, message) {
				continue
			}
			if score := scoreOf(int(priority.Int64), pattern); score.beats(bestScore) {
				answer = entryAnswer
				bestID = id
				bestScore = score
				found = true
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if found {
			// Advisory telemetry; a failed update must not cost the caller
			// the answer.
			update := fmt.Sprintf(`UPDATE whitelist SET hit_count = hit_count + 1, last_hit_at = %s WHERE id = ?`, d.Now())
			if _, err := db.ExecContext(ctx, d.Rebind(update), bestID); err != nil {
				slog.Warn("whitelist hit update failed", "id", bestID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return answer, found, nil
}
