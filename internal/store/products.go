package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamstall/liveassist/internal/merge"
	"github.com/streamstall/liveassist/internal/types"
)

// SaveProductInfo records one incremental attribute disclosure. The log row
// is always appended; when the referenced product resolves, the key/value is
// also merged into the product's stored attribute map. One transaction, one
// commit.
func (s *SQLStore) SaveProductInfo(ctx context.Context, sessionID string, ref types.ProductRef, key string, value any) error {
	if sessionID == "" || key == "" {
		return fmt.Errorf("%w: session id and info key are required", ErrInvalidInput)
	}

	stored, err := encodeInfoValue(value)
	if err != nil {
		return fmt.Errorf("encode info value: %w", err)
	}

	return s.withDB(func(db *sql.DB, d Dialect) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		productID, attrs, resolved := resolveProduct(ctx, tx, d, sessionID, ref)

		var logProductID any
		if resolved {
			logProductID = productID
		}
		_, err = tx.ExecContext(ctx,
			d.Rebind(`INSERT INTO product_info (session_id, product_id, product_name, info_key, info_value)
				VALUES (?, ?, ?, ?, ?)`),
			sessionID, logProductID, nullIfEmpty(ref.Name), key, stored)
		if err != nil {
			return fmt.Errorf("insert product info: %w", err)
		}

		if resolved {
			merged := merge.MergeMaps(attrs, map[string]any{key: decodeInfoValue(stored)})
			mergedJSON, err := json.Marshal(merged)
			if err != nil {
				return fmt.Errorf("marshal merged attributes: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				d.Rebind(`UPDATE products SET attributes = ? WHERE id = ?`),
				string(mergedJSON), productID)
			if err != nil {
				return fmt.Errorf("update product attributes: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit product info: %w", err)
		}

		slog.Info("product info saved",
			"session_id", sessionID, "product_id", productID, "key", key, "resolved", resolved)
		return nil
	})
}

// resolveProduct finds the product by id, else by name, within the session.
// An unresolvable ref is not an error; the disclosure log still records it.
func resolveProduct(ctx context.Context, tx *sql.Tx, d Dialect, sessionID string, ref types.ProductRef) (int64, map[string]any, bool) {
	var row *sql.Row
	switch {
	case ref.ID != 0:
		row = tx.QueryRowContext(ctx,
			d.Rebind(`SELECT id, attributes FROM products WHERE id = ? AND session_id = ?`),
			ref.ID, sessionID)
	case ref.Name != "":
		row = tx.QueryRowContext(ctx,
			d.Rebind(`SELECT id, attributes FROM products WHERE product_name = ? AND session_id = ? ORDER BY id LIMIT 1`),
			ref.Name, sessionID)
	default:
		return 0, nil, false
	}

	var (
		id        int64
		attrsText sql.NullString
	)
	if err := row.Scan(&id, &attrsText); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("product lookup failed", "session_id", sessionID, "error", err)
		}
		return 0, nil, false
	}
	return id, parseAttributes(attrsText.String), true
}

// GetProductInfo reconstructs the merged attribute view: the product's stored
// attributes overlaid with the disclosure log replayed in chronological
// order, so later disclosures win at leaves while nested siblings accumulate.
func (s *SQLStore) GetProductInfo(ctx context.Context, sessionID string, ref types.ProductRef) (map[string]any, error) {
	if sessionID == "" {
		return map[string]any{}, nil
	}

	attrs := map[string]any{}
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		attrs = map[string]any{}

		productID := ref.ID
		if productID == 0 && ref.Name != "" {
			row := db.QueryRowContext(ctx,
				d.Rebind(`SELECT id, attributes FROM products WHERE session_id = ? AND product_name = ? ORDER BY id LIMIT 1`),
				sessionID, ref.Name)
			var attrsText sql.NullString
			if err := row.Scan(&productID, &attrsText); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return fmt.Errorf("resolve product: %w", err)
			}
			attrs = parseAttributes(attrsText.String)
		} else if productID != 0 {
			row := db.QueryRowContext(ctx,
				d.Rebind(`SELECT attributes FROM products WHERE id = ? AND session_id = ?`),
				productID, sessionID)
			var attrsText sql.NullString
			if err := row.Scan(&attrsText); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return fmt.Errorf("resolve product: %w", err)
			}
			attrs = parseAttributes(attrsText.String)
		} else {
			return nil
		}

		rows, err := db.QueryContext(ctx,
			d.Rebind(`SELECT info_key, info_value FROM product_info
				WHERE session_id = ? AND product_id = ? ORDER BY created_at, id`),
			sessionID, productID)
		if err != nil {
			return fmt.Errorf("query product info: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var key, value sql.NullString
			if err := rows.Scan(&key, &value); err != nil {
				return fmt.Errorf("scan product info: %w", err)
			}
			if key.String == "" {
				continue
			}
			attrs = merge.MergeMaps(attrs, map[string]any{key.String: decodeInfoValue(value.String)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// encodeInfoValue serializes a disclosure value for the text column.
// Structured values become JSON; strings that already look like JSON objects
// or arrays are re-encoded canonically so push and pull reconciliation agree.
func encodeInfoValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		if looksLikeJSON(v) {
			var parsed any
			if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &parsed); err == nil {
				out, err := json.Marshal(parsed)
				if err != nil {
					return "", err
				}
				return string(out), nil
			}
		}
		return v, nil
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// decodeInfoValue is the inverse: text that parses as JSON comes back as the
// typed value, so numeric and boolean disclosures keep their types across the
// store round trip. Everything else stays a string.
func decodeInfoValue(stored string) any {
	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimSpace(stored)), &parsed); err != nil {
		return stored
	}
	return parsed
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}
