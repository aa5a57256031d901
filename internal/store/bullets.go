package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamstall/liveassist/internal/types"
)

// AddBulletScreen enqueues one spectator message and returns its queue id.
func (s *SQLStore) AddBulletScreen(ctx context.Context, sessionID, username, message, category string, priority int) (int64, error) {
	if sessionID == "" || message == "" {
		return 0, fmt.Errorf("%w: session id and message are required", ErrInvalidInput)
	}
	if category == "" {
		category = "unknown"
	}

	var id int64
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		var err error
		id, err = insertWithID(ctx, db, d,
			`INSERT INTO bullet_screen_queue (session_id, username, message, category, priority) VALUES (?, ?, ?, ?, ?)`,
			sessionID, username, message, category, priority)
		if err != nil {
			return fmt.Errorf("insert bullet screen: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Debug("bullet screen queued", "session_id", sessionID, "id", id)
	return id, nil
}

// PendingBulletScreens drains up to limit unprocessed messages, highest
// priority first, oldest first within a priority.
func (s *SQLStore) PendingBulletScreens(ctx context.Context, sessionID string, limit int) ([]types.BulletScreen, error) {
	if limit <= 0 {
		limit = 10
	}

	var bullets []types.BulletScreen
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		bullets = []types.BulletScreen{}

		query := fmt.Sprintf(`SELECT id, session_id, username, message, category, priority, confidence_score, created_at
			FROM bullet_screen_queue
			WHERE session_id = ? AND is_processed = %s
			ORDER BY priority DESC, created_at ASC LIMIT ?`, d.Bool(false))
		rows, err := db.QueryContext(ctx, d.Rebind(query), sessionID, limit)
		if err != nil {
			return fmt.Errorf("query bullet screens: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b          types.BulletScreen
				username   sql.NullString
				category   sql.NullString
				confidence sql.NullFloat64
				createdAt  any
			)
			if err := rows.Scan(&b.ID, &b.SessionID, &username, &b.Message, &category, &b.Priority, &confidence, &createdAt); err != nil {
				return fmt.Errorf("scan bullet screen: %w", err)
			}
			b.Username = username.String
			b.Category = category.String
			b.Confidence = confidence.Float64
			b.CreatedAt = scanTime(createdAt)
			bullets = append(bullets, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return bullets, nil
}

// MarkBulletScreensProcessed stamps the given queue ids as handled. An empty
// id list is a no-op.
func (s *SQLStore) MarkBulletScreensProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	return s.withDB(func(db *sql.DB, d Dialect) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
		query := fmt.Sprintf(`UPDATE bullet_screen_queue SET is_processed = %s, processed_at = %s WHERE id IN (%s)`,
			d.Bool(true), d.Now(), placeholders)

		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		if _, err := db.ExecContext(ctx, d.Rebind(query), args...); err != nil {
			return fmt.Errorf("mark bullet screens processed: %w", err)
		}
		return nil
	})
}
