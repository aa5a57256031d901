package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/streamstall/liveassist/internal/types"
)

// FAQStatistics reports whitelist hit telemetry. With a session id the report
// covers that session's entries, including the ones never hit; with an empty
// id it aggregates across all sessions and annotates hot entries with their
// session's host and theme.
func (s *SQLStore) FAQStatistics(ctx context.Context, sessionID string) (*types.FAQStatistics, error) {
	if sessionID == "" {
		return s.globalFAQStatistics(ctx)
	}

	report := &types.FAQStatistics{SessionID: sessionID}
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		report.Statistics = types.FAQStats{}
		report.HotFAQs = nil
		report.UnusedFAQs = nil

		row := db.QueryRowContext(ctx,
			d.Rebind(`SELECT COUNT(*), COALESCE(SUM(hit_count), 0), COALESCE(AVG(hit_count), 0),
				COALESCE(MAX(hit_count), 0),
				COALESCE(SUM(CASE WHEN hit_count > 0 THEN 1 ELSE 0 END), 0)
				FROM whitelist WHERE session_id = ?`), sessionID)

		var avg sql.NullFloat64
		if err := row.Scan(&report.Statistics.TotalFAQs, &report.Statistics.TotalHits,
			&avg, &report.Statistics.MaxHits, &report.Statistics.UsedFAQs); err != nil {
			return fmt.Errorf("scan faq aggregates: %w", err)
		}
		report.Statistics.AvgHits = avg.Float64
		report.Statistics.UnusedFAQs = report.Statistics.TotalFAQs - report.Statistics.UsedFAQs

		hot, err := s.hotFAQs(ctx, db, d,
			`SELECT pattern, answer, hit_count, last_hit_at, product_types
				FROM whitelist WHERE session_id = ? AND hit_count > 0
				ORDER BY hit_count DESC, id LIMIT 10`, false, sessionID)
		if err != nil {
			return err
		}
		report.HotFAQs = hot

		unused, err := s.hotFAQs(ctx, db, d,
			`SELECT pattern, answer, hit_count, last_hit_at, product_types
				FROM whitelist WHERE session_id = ? AND hit_count = 0
				ORDER BY id DESC LIMIT 10`, false, sessionID)
		if err != nil {
			return err
		}
		report.UnusedFAQs = unused
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *SQLStore) globalFAQStatistics(ctx context.Context) (*types.FAQStatistics, error) {
	report := &types.FAQStatistics{}
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		report.Statistics = types.FAQStats{}
		report.HotFAQs = nil

		row := db.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(hit_count), 0), COALESCE(AVG(hit_count), 0),
				COUNT(DISTINCT session_id)
				FROM whitelist`)

		var avg sql.NullFloat64
		if err := row.Scan(&report.Statistics.TotalFAQs, &report.Statistics.TotalHits,
			&avg, &report.Statistics.TotalSessions); err != nil {
			return fmt.Errorf("scan global faq aggregates: %w", err)
		}
		report.Statistics.AvgHits = avg.Float64

		hot, err := s.hotFAQs(ctx, db, d,
			`SELECT w.pattern, w.answer, w.hit_count, w.last_hit_at, w.product_types,
				s.host_name, s.live_theme
				FROM whitelist w JOIN sessions s ON s.id = w.session_id
				WHERE w.hit_count > 0
				ORDER BY w.hit_count DESC, w.id LIMIT 20`, true)
		if err != nil {
			return err
		}
		report.HotFAQs = hot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *SQLStore) hotFAQs(ctx context.Context, db *sql.DB, d Dialect, query string, withSession bool, args ...any) ([]types.HotFAQ, error) {
	rows, err := db.QueryContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query hot faqs: %w", err)
	}
	defer rows.Close()

	out := []types.HotFAQ{}
	for rows.Next() {
		var (
			f            types.HotFAQ
			lastHitAt    any
			productTypes sql.NullString
			hostName     sql.NullString
			liveTheme    sql.NullString
		)
		dest := []any{&f.Pattern, &f.Answer, &f.HitCount, &lastHitAt, &productTypes}
		if withSession {
			dest = append(dest, &hostName, &liveTheme)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan hot faq: %w", err)
		}
		f.LastHitAt = scanNullTime(lastHitAt)
		f.ProductTypes = productTypes.String
		f.HostName = hostName.String
		f.LiveTheme = liveTheme.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// FAQRecommendations surfaces cached answers asked at least minHitCount times
// that no curated whitelist pattern already covers, hottest first.
func (s *SQLStore) FAQRecommendations(ctx context.Context, sessionID string, minHitCount int) ([]types.FAQRecommendation, error) {
	if minHitCount <= 0 {
		minHitCount = 1
	}

	var recs []types.FAQRecommendation
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		recs = []types.FAQRecommendation{}

		rows, err := db.QueryContext(ctx,
			d.Rebind(`SELECT q.question, q.answer, q.hit_count, q.last_used_at
				FROM qa_cache q
				WHERE q.session_id = ? AND q.hit_count >= ?
				AND NOT EXISTS (
					SELECT 1 FROM whitelist w
					WHERE w.session_id = q.session_id
					AND LOWER(q.question) LIKE '%' || LOWER(w.pattern) || '%'
				)
				ORDER BY q.hit_count DESC, q.id LIMIT 20`),
			sessionID, minHitCount)
		if err != nil {
			return fmt.Errorf("query faq recommendations: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r          types.FAQRecommendation
				lastUsedAt any
			)
			if err := rows.Scan(&r.Question, &r.Answer, &r.HitCount, &lastUsedAt); err != nil {
				return fmt.Errorf("scan faq recommendation: %w", err)
			}
			r.LastUsedAt = scanTime(lastUsedAt)
			recs = append(recs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}
