package store

import (
	"context"
	"testing"

	"github.com/streamstall/liveassist/internal/types"
)

func TestFAQTemplates_SeededAndOrdered(t *testing.T) {
	s := newTestStore(t)

	templates, err := s.FAQTemplates(context.Background(), types.ProductTypeFruit)
	if err != nil {
		t.Fatalf("FAQTemplates() error = %v", err)
	}
	if len(templates) == 0 {
		t.Fatal("no seeded fruit templates")
	}
	for i := 1; i < len(templates); i++ {
		if templates[i].Priority > templates[i-1].Priority {
			t.Fatalf("templates not ordered by priority: %d before %d",
				templates[i-1].Priority, templates[i].Priority)
		}
	}
	for _, tpl := range templates {
		if tpl.ProductType != types.ProductTypeFruit {
			t.Errorf("template %q has type %q", tpl.Pattern, tpl.ProductType)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	values := map[string]string{"name": "红富士苹果", "sweetness": "9分甜"}

	got, ok := renderTemplate("我们的{name}甜度是{sweetness}，口感很好哦~", values)
	if !ok {
		t.Fatal("render failed with all values present")
	}
	if got != "我们的红富士苹果甜度是9分甜，口感很好哦~" {
		t.Errorf("rendered = %q", got)
	}

	// A single missing placeholder fails the whole render
	if _, ok := renderTemplate("{name}在{season}最好吃", values); ok {
		t.Error("render succeeded with missing placeholder")
	}

	// No placeholders at all is a valid render
	got, ok = renderTemplate("顺丰包邮", nil)
	if !ok || got != "顺丰包邮" {
		t.Errorf("renderTemplate(plain) = %q, %v", got, ok)
	}
}

func TestApplyFAQTemplates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID,
		types.NewProduct{Name: "红富士苹果", Price: 19.9, ProductType: types.ProductTypeFruit})

	values := map[string]string{
		"name":      "红富士苹果",
		"sweetness": "9分甜",
		"origin":    "山东烟台",
	}
	applied, err := s.ApplyFAQTemplates(ctx, testSessionID, types.ProductTypeFruit, values)
	if err != nil {
		t.Fatalf("ApplyFAQTemplates() error = %v", err)
	}
	// Seeded fruit templates needing only name/sweetness/origin: 甜不甜, 甜度,
	// 产地, 哪里的. The texture and season ones lack values and are skipped.
	if applied != 4 {
		t.Errorf("applied = %d, want 4", applied)
	}

	answer, ok, err := s.ResolveFAQ(ctx, testSessionID, "这苹果甜不甜呀")
	if err != nil {
		t.Fatalf("ResolveFAQ() error = %v", err)
	}
	if !ok || answer != "我们的红富士苹果甜度是9分甜，口感很好哦~" {
		t.Errorf("ResolveFAQ() = %q, %v", answer, ok)
	}
}

func TestApplyFAQTemplates_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID,
		types.NewProduct{Name: "脐橙", Price: 25, ProductType: types.ProductTypeFruit})

	values := map[string]string{"name": "脐橙", "sweetness": "很甜", "origin": "江西"}
	first, err := s.ApplyFAQTemplates(ctx, testSessionID, types.ProductTypeFruit, values)
	if err != nil {
		t.Fatalf("ApplyFAQTemplates() error = %v", err)
	}
	if first == 0 {
		t.Fatal("first application created nothing")
	}

	second, err := s.ApplyFAQTemplates(ctx, testSessionID, types.ProductTypeFruit, values)
	if err != nil {
		t.Fatalf("ApplyFAQTemplates() error = %v", err)
	}
	if second != 0 {
		t.Errorf("second application created %d entries, want 0", second)
	}
}

func TestApplyFAQTemplates_MoreValuesMoreTemplates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID,
		types.NewProduct{Name: "苹果", Price: 10, ProductType: types.ProductTypeFruit})

	partial := map[string]string{"name": "苹果", "sweetness": "9分甜", "origin": "烟台"}
	first, err := s.ApplyFAQTemplates(ctx, testSessionID, types.ProductTypeFruit, partial)
	if err != nil {
		t.Fatalf("ApplyFAQTemplates() error = %v", err)
	}

	// Supplying the texture value later instantiates the skipped template
	full := map[string]string{"name": "苹果", "texture": "脆嫩多汁"}
	second, err := s.ApplyFAQTemplates(ctx, testSessionID, types.ProductTypeFruit, full)
	if err != nil {
		t.Fatalf("ApplyFAQTemplates() error = %v", err)
	}
	if second != 1 {
		t.Errorf("second application = %d, want 1 (the texture template); first was %d", second, first)
	}
}

func TestApplyFAQTemplates_RequiresSession(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.ApplyFAQTemplates(context.Background(), "", types.ProductTypeFruit, nil); err == nil {
		t.Fatal("expected error for empty session id")
	}
}
