package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/streamstall/liveassist/internal/types"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// FAQTemplates lists the active global templates for one product category,
// highest priority first.
func (s *SQLStore) FAQTemplates(ctx context.Context, productType types.ProductType) ([]types.FAQTemplate, error) {
	var templates []types.FAQTemplate
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		templates = []types.FAQTemplate{}

		query := fmt.Sprintf(`SELECT id, product_type, pattern, answer_template, placeholder, priority
			FROM faq_templates
			WHERE product_type = ? AND is_active = %s
			ORDER BY priority DESC, id`, d.Bool(true))
		rows, err := db.QueryContext(ctx, d.Rebind(query), string(productType))
		if err != nil {
			return fmt.Errorf("query faq templates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t           types.FAQTemplate
				placeholder sql.NullString
			)
			if err := rows.Scan(&t.ID, &t.ProductType, &t.Pattern, &t.AnswerTemplate, &placeholder, &t.Priority); err != nil {
				return fmt.Errorf("scan faq template: %w", err)
			}
			t.Placeholder = placeholder.String
			t.Active = true
			templates = append(templates, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// ApplyFAQTemplates instantiates the category's templates into the session's
// whitelist and returns how many entries were created. Templates whose
// placeholders cannot all be filled from values are skipped, as are patterns
// the session already carries, so re-applying is idempotent. One transaction,
// one commit.
func (s *SQLStore) ApplyFAQTemplates(ctx context.Context, sessionID string, productType types.ProductType, values map[string]string) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	templates, err := s.FAQTemplates(ctx, productType)
	if err != nil {
		return 0, err
	}

	applied := 0
	err = s.withDB(func(db *sql.DB, d Dialect) error {
		applied = 0

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, t := range templates {
			answer, ok := renderTemplate(t.AnswerTemplate, values)
			if !ok {
				slog.Debug("faq template skipped, missing placeholder value",
					"session_id", sessionID, "pattern", t.Pattern)
				continue
			}

			var existing int64
			err := tx.QueryRowContext(ctx,
				d.Rebind(`SELECT id FROM whitelist WHERE session_id = ? AND pattern = ?`),
				sessionID, t.Pattern).Scan(&existing)
			switch {
			case err == nil:
				continue
			case errors.Is(err, sql.ErrNoRows):
			default:
				return fmt.Errorf("query existing whitelist entry: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				d.Rebind(`INSERT INTO whitelist (session_id, pattern, answer, priority, product_types)
					VALUES (?, ?, ?, ?, ?)`),
				sessionID, t.Pattern, answer, t.Priority, string(productType))
			if err != nil {
				return fmt.Errorf("insert whitelist entry %q: %w", t.Pattern, err)
			}
			applied++
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit template application: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("faq templates applied",
		"session_id", sessionID, "product_type", productType, "applied", applied)
	return applied, nil
}

// renderTemplate substitutes every {name} placeholder from values. A single
// unfilled placeholder fails the whole render; partially-filled answers never
// reach the whitelist.
func renderTemplate(tpl string, values map[string]string) (string, bool) {
	complete := true
	rendered := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := values[name]
		if !ok || v == "" {
			complete = false
			return m
		}
		return v
	})
	if !complete {
		return "", false
	}
	return rendered, true
}
