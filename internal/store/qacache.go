package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/streamstall/liveassist/internal/types"
)

var (
	// Punctuation stripped from questions before hashing: CJK and ASCII
	// sentence punctuation, quotes and brackets.
	questionPunct = regexp.MustCompile(`[？?！!。.，,、；;：:“”‘’'"（）()【】\[\]]`)

	// Sentence-final particles that carry no meaning for cache identity.
	questionParticles = regexp.MustCompile(`(吗|呢|啊|哦|嘛|呀|哇|哈)+`)
)

// NormalizeQuestion reduces a question to its canonical form: trimmed, the
// 么 particle variant unified to 吗 before particles are stripped (keeping
// the whole pipeline idempotent), punctuation and particle runs removed,
// internal whitespace collapsed, lower-cased.
func NormalizeQuestion(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "么", "吗")
	text = questionPunct.ReplaceAllString(text, "")
	text = questionParticles.ReplaceAllString(text, "")
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// questionKey derives the content address for a question. The origin context
// token keeps otherwise-identical questions about different referents from
// colliding.
func questionKey(question, origin string) string {
	composite := NormalizeQuestion(question)
	if origin != "" {
		composite += "|origin:" + origin
	}
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

// CachedAnswer looks up a cached answer for the question within the session.
// A hit bumps the entry's hit count and last-used timestamp. A miss returns
// (nil, nil).
func (s *SQLStore) CachedAnswer(ctx context.Context, sessionID, question, origin string) (*types.CachedAnswer, error) {
	hash := questionKey(question, origin)

	var cached *types.CachedAnswer
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		cached = nil

		row := db.QueryRowContext(ctx,
			d.Rebind(`SELECT id, answer, audio_url FROM qa_cache
				WHERE session_id = ? AND question_hash = ?
				ORDER BY last_used_at DESC LIMIT 1`),
			sessionID, hash)

		var (
			id       int64
			answer   string
			audioURL sql.NullString
		)
		if err := row.Scan(&id, &answer, &audioURL); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("query qa cache: %w", err)
		}

		update := fmt.Sprintf(`UPDATE qa_cache SET hit_count = hit_count + 1, last_used_at = %s WHERE id = ?`, d.Now())
		if _, err := db.ExecContext(ctx, d.Rebind(update), id); err != nil {
			return fmt.Errorf("update qa cache hit: %w", err)
		}

		cached = &types.CachedAnswer{Answer: answer, AudioURL: audioURL.String}
		slog.Info("qa cache hit", "session_id", sessionID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// CacheAnswer upserts a cached answer keyed by the question's content
// address. A repeated write updates the existing row rather than duplicating
// it. Every write is followed by the LRU eviction pass.
func (s *SQLStore) CacheAnswer(ctx context.Context, sessionID, question, answer, audioURL, origin string) error {
	hash := questionKey(question, origin)

	return s.withDB(func(db *sql.DB, d Dialect) error {
		var existingID int64
		err := db.QueryRowContext(ctx,
			d.Rebind(`SELECT id FROM qa_cache WHERE session_id = ? AND question_hash = ?`),
			sessionID, hash).Scan(&existingID)

		switch {
		case err == nil:
			var update string
			var args []any
			if audioURL != "" {
				update = fmt.Sprintf(`UPDATE qa_cache SET answer = ?, audio_url = ?, hit_count = hit_count + 1, last_used_at = %s WHERE id = ?`, d.Now())
				args = []any{answer, audioURL, existingID}
			} else {
				update = fmt.Sprintf(`UPDATE qa_cache SET answer = ?, hit_count = hit_count + 1, last_used_at = %s WHERE id = ?`, d.Now())
				args = []any{answer, existingID}
			}
			if _, err := db.ExecContext(ctx, d.Rebind(update), args...); err != nil {
				return fmt.Errorf("update qa cache entry: %w", err)
			}
		case errors.Is(err, sql.ErrNoRows):
			_, err = db.ExecContext(ctx,
				d.Rebind(`INSERT INTO qa_cache (session_id, question, question_hash, answer, audio_url) VALUES (?, ?, ?, ?, ?)`),
				sessionID, question, hash, answer, nullIfEmpty(audioURL))
			if err != nil {
				return fmt.Errorf("insert qa cache entry: %w", err)
			}
		default:
			return fmt.Errorf("query qa cache entry: %w", err)
		}

		return s.evictQACache(ctx, db, d)
	})
}

// evictQACache enforces the global population bound after a write: past the
// ceiling, everything but the ceiling-many most-recently-used entries is
// deleted. Insertion order breaks last-used ties.
func (s *SQLStore) evictQACache(ctx context.Context, db *sql.DB, d Dialect) error {
	if s.cacheLimit <= 0 {
		return nil
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qa_cache`).Scan(&count); err != nil {
		return fmt.Errorf("count qa cache: %w", err)
	}
	if count <= s.cacheLimit {
		return nil
	}

	res, err := db.ExecContext(ctx,
		d.Rebind(`DELETE FROM qa_cache WHERE id NOT IN (
			SELECT id FROM qa_cache ORDER BY last_used_at DESC, id DESC LIMIT ?
		)`), s.cacheLimit)
	if err != nil {
		return fmt.Errorf("evict qa cache: %w", err)
	}

	if deleted, err := res.RowsAffected(); err == nil && deleted > 0 {
		slog.Info("qa cache evicted", "deleted", deleted, "kept", s.cacheLimit)
	}
	return nil
}
