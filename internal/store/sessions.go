package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streamstall/liveassist/internal/types"
)

const defaultUnit = "元"

// CreateSession inserts the session row and all product rows in a single
// transaction with one commit. On any failure nothing is visible afterwards.
func (s *SQLStore) CreateSession(ctx context.Context, id, hostName, liveTheme string, products []types.NewProduct) error {
	return s.withDB(func(db *sql.DB, d Dialect) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx,
			d.Rebind(`INSERT INTO sessions (id, host_name, live_theme) VALUES (?, ?, ?)`),
			id, hostName, liveTheme)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, p := range products {
			attrs := normalizeProductAttributes(p)
			attrsJSON, err := json.Marshal(attrs)
			if err != nil {
				return fmt.Errorf("marshal attributes for %q: %w", p.Name, err)
			}

			unit := p.Unit
			if unit == "" {
				unit = defaultUnit
			}

			_, err = tx.ExecContext(ctx,
				d.Rebind(`INSERT INTO products (session_id, product_name, price, unit, product_type, attributes)
					VALUES (?, ?, ?, ?, ?, ?)`),
				id, p.Name, p.Price, unit, nullIfEmpty(string(p.ProductType)), string(attrsJSON))
			if err != nil {
				return fmt.Errorf("insert product %q: %w", p.Name, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit session: %w", err)
		}

		slog.Info("session created", "session_id", id, "products", len(products))
		return nil
	})
}

// normalizeProductAttributes folds the legacy top-level origin value into the
// attribute map without clobbering an explicit attributes.origin.
func normalizeProductAttributes(p types.NewProduct) map[string]any {
	attrs := make(map[string]any, len(p.Attributes)+1)
	for k, v := range p.Attributes {
		attrs[k] = v
	}
	if p.Origin != "" {
		if existing, ok := attrs["origin"]; !ok || existing == nil || existing == "" {
			attrs["origin"] = p.Origin
		}
	}
	return attrs
}

// GetSession loads the session with its products (attributes materialized to
// a map, empty on malformed stored text) and its conversation history in
// chronological order. Returns ErrNotFound when the session does not exist.
func (s *SQLStore) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var session *types.Session
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		row := db.QueryRowContext(ctx,
			d.Rebind(`SELECT id, host_name, live_theme, created_at, updated_at FROM sessions WHERE id = ?`), id)

		var (
			sess                 types.Session
			createdAt, updatedAt any
		)
		if err := row.Scan(&sess.ID, &sess.HostName, &sess.LiveTheme, &createdAt, &updatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = scanTime(createdAt)
		sess.UpdatedAt = scanTime(updatedAt)

		products, err := s.sessionProducts(ctx, db, d, id)
		if err != nil {
			return err
		}
		sess.Products = products

		conversations, err := s.sessionConversations(ctx, db, d, id)
		if err != nil {
			return err
		}
		sess.Conversations = conversations

		session = &sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SQLStore) sessionProducts(ctx context.Context, db *sql.DB, d Dialect, sessionID string) ([]types.Product, error) {
	rows, err := db.QueryContext(ctx,
		d.Rebind(`SELECT id, session_id, product_name, price, unit, product_type, attributes
			FROM products WHERE session_id = ? ORDER BY id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []types.Product{}
	for rows.Next() {
		var (
			p           types.Product
			productType sql.NullString
			attrsText   sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Price, &p.Unit, &productType, &attrsText); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.ProductType = types.ProductType(productType.String)
		p.Attributes = parseAttributes(attrsText.String)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLStore) sessionConversations(ctx context.Context, db *sql.DB, d Dialect, sessionID string) ([]types.Conversation, error) {
	rows, err := db.QueryContext(ctx,
		d.Rebind(`SELECT id, session_id, user_message, ai_response, audio_url, created_at
			FROM conversations WHERE session_id = ? ORDER BY created_at, id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []types.Conversation{}
	for rows.Next() {
		var (
			c         types.Conversation
			userMsg   sql.NullString
			aiResp    sql.NullString
			audioURL  sql.NullString
			createdAt any
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &userMsg, &aiResp, &audioURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.UserMessage = userMsg.String
		c.AIResponse = aiResp.String
		c.AudioURL = audioURL.String
		c.CreatedAt = scanTime(createdAt)
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// parseAttributes materializes stored attribute text. Malformed text degrades
// to an empty map; callers never see a nil or invalid structure.
func parseAttributes(text string) map[string]any {
	if text == "" {
		return map[string]any{}
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(text), &attrs); err != nil || attrs == nil {
		if err != nil {
			slog.Warn("malformed product attributes, using empty map", "error", err)
		}
		return map[string]any{}
	}
	return attrs
}

// SaveConversation appends one user/assistant exchange.
func (s *SQLStore) SaveConversation(ctx context.Context, sessionID, userMessage, aiResponse, audioURL string) error {
	return s.withDB(func(db *sql.DB, d Dialect) error {
		_, err := db.ExecContext(ctx,
			d.Rebind(`INSERT INTO conversations (session_id, user_message, ai_response, audio_url) VALUES (?, ?, ?, ?)`),
			sessionID, userMessage, aiResponse, nullIfEmpty(audioURL))
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		slog.Debug("conversation saved", "session_id", sessionID)
		return nil
	})
}

// sessionProductTypes returns the union of category tags across the
// session's products, used for whitelist category gating.
func (s *SQLStore) sessionProductTypes(ctx context.Context, sessionID string) (map[string]bool, error) {
	out := map[string]bool{}
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		rows, err := db.QueryContext(ctx,
			d.Rebind(`SELECT DISTINCT product_type FROM products
				WHERE session_id = ? AND product_type IS NOT NULL AND product_type != ''`), sessionID)
		if err != nil {
			return fmt.Errorf("query product types: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return fmt.Errorf("scan product type: %w", err)
			}
			out[t] = true
		}
		return rows.Err()
	})
	return out, err
}
