package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/streamstall/liveassist/internal/types"
)

func addWhitelistEntry(t *testing.T, s *SQLStore, sessionID, pattern, answer string, priority int, productTypes string) {
	t.Helper()
	mustExec(t, s,
		`INSERT INTO whitelist (session_id, pattern, answer, priority, product_types) VALUES (?, ?, ?, ?, ?)`,
		sessionID, pattern, answer, priority, nullIfEmpty(productTypes))
}

func TestResolveFAQ_SubstringMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)
	addWhitelistEntry(t, s, testSessionID, "发货", "48小时内顺丰发货", 10, "")

	answer, ok, err := s.ResolveFAQ(ctx, testSessionID, "请问什么时候发货呀")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if !ok || answer != "48小时内顺丰发货" {
		t.Errorf("ResolveFAQ() = %q, %v", answer, ok)
	}
}

func TestResolveFAQ_MissIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	mustCreateSession(t, s, testSessionID)
	answer, ok, err := s.ResolveFAQ(context.Background(), testSessionID, "完全无关的话")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if ok || answer != "" {
		t.Errorf("ResolveFAQ() = %q, %v, want miss", answer, ok)
	}
}

func TestResolveFAQ_PriorityThenLength(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)
	addWhitelistEntry(t, s, testSessionID, "甜", "low priority", 1, "")
	addWhitelistEntry(t, s, testSessionID, "甜度", "higher priority wins", 8, "")

	answer, _, err := s.ResolveFAQ(ctx, testSessionID, "甜度怎么样")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if answer != "higher priority wins" {
		t.Errorf("answer = %q", answer)
	}

	// Equal priority: the longer (more specific) pattern wins
	addWhitelistEntry(t, s, testSessionID, "包邮", "short", 5, "")
	addWhitelistEntry(t, s, testSessionID, "包邮吗", "long", 5, "")
	answer, _, err = s.ResolveFAQ(ctx, testSessionID, "这个包邮吗")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if answer != "long" {
		t.Errorf("answer = %q, want the longer pattern's", answer)
	}
}

func TestResolveFAQ_CategoryGate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID,
		types.NewProduct{Name: "腊肉", Price: 50, ProductType: types.ProductTypeMeat})
	addWhitelistEntry(t, s, testSessionID, "甜不甜", "很甜哦", 10, "fruit")
	addWhitelistEntry(t, s, testSessionID, "怎么养的", "散养土猪", 10, "meat,grain")

	// fruit-only entry is invisible to a meat session
	_, ok, err := s.ResolveFAQ(ctx, testSessionID, "甜不甜呀")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if ok {
		t.Error("fruit-gated entry matched a meat session")
	}

	answer, ok, err := s.ResolveFAQ(ctx, testSessionID, "猪是怎么养的")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if !ok || answer != "散养土猪" {
		t.Errorf("ResolveFAQ() = %q, %v", answer, ok)
	}
}

func TestResolveFAQ_NoTypedProductsDisablesGate(t *testing.T) {
	s := newTestStore(t)

	mustCreateSession(t, s, testSessionID, types.NewProduct{Name: "杂货", Price: 5})
	addWhitelistEntry(t, s, testSessionID, "甜不甜", "很甜哦", 10, "fruit")

	answer, ok, err := s.ResolveFAQ(context.Background(), testSessionID, "甜不甜")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if !ok || answer != "很甜哦" {
		t.Errorf("ResolveFAQ() = %q, %v, want match without gate", answer, ok)
	}
}

func TestResolveFAQ_HitTelemetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)
	addWhitelistEntry(t, s, testSessionID, "发货", "顺丰", 10, "")

	for i := 0; i < 3; i++ {
		if _, _, err := s.ResolveFAQ(ctx, testSessionID, "发货吗"); err != nil {
			t.Fatalf("ResolveFAQ() error = %v", err)
		}
	}

	var hits int
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		return db.QueryRowContext(ctx,
			d.Rebind(`SELECT hit_count FROM whitelist WHERE session_id = ? AND pattern = ?`),
			testSessionID, "发货").Scan(&hits)
	})
	if err != nil {
		t.Fatalf("query hit count: %v", err)
	}
	if hits != 3 {
		t.Errorf("hit_count = %d, want 3", hits)
	}
}

func TestResolveFAQ_OverlayBeatsDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)
	addWhitelistEntry(t, s, testSessionID, "发货", "db answer", 10, "")

	overlay := `{"` + testSessionID + `": [{"pattern": "发货", "answer": "file answer", "priority": 1}]}`
	if err := os.WriteFile(s.whitelistPath, []byte(overlay), 0644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	answer, ok, err := s.ResolveFAQ(ctx, testSessionID, "发货了吗")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if !ok || answer != "file answer" {
		t.Errorf("ResolveFAQ() = %q, %v, want overlay answer", answer, ok)
	}
}

func TestResolveFAQ_EmptyOverlayAnswerFallsThrough(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)
	addWhitelistEntry(t, s, testSessionID, "发货", "db answer", 1, "")

	// The overlay entry wins the file tier but carries no answer
	overlay := `{"` + testSessionID + `": [{"pattern": "发货", "answer": "", "priority": 9}]}`
	if err := os.WriteFile(s.whitelistPath, []byte(overlay), 0644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	answer, ok, err := s.ResolveFAQ(ctx, testSessionID, "发货了吗")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if !ok || answer != "db answer" {
		t.Errorf("ResolveFAQ() = %q, %v, want database answer", answer, ok)
	}
}

func TestCategoryApplies(t *testing.T) {
	fruit := map[string]bool{"fruit": true}
	tests := []struct {
		csv   string
		types map[string]bool
		want  bool
	}{
		{"", fruit, true},
		{"fruit", fruit, true},
		{"fruit, meat", map[string]bool{"meat": true}, true},
		{"meat", fruit, false},
		{"meat", nil, true}, // untyped session: no gate
	}
	for _, tt := range tests {
		if got := categoryApplies(tt.csv, tt.types); got != tt.want {
			t.Errorf("categoryApplies(%q, %v) = %v, want %v", tt.csv, tt.types, got, tt.want)
		}
	}
}
