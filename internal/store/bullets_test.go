package store

import (
	"context"
	"testing"
)

func TestBulletScreenQueue_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)

	lowID, err := s.AddBulletScreen(ctx, testSessionID, "路人甲", "主播好漂亮", "chat", 1)
	if err != nil {
		t.Fatalf("AddBulletScreen() error = %v", err)
	}
	highID, err := s.AddBulletScreen(ctx, testSessionID, "买家乙", "苹果多少钱", "question", 9)
	if err != nil {
		t.Fatalf("AddBulletScreen() error = %v", err)
	}
	if lowID == 0 || highID == 0 || lowID == highID {
		t.Fatalf("ids = %d, %d", lowID, highID)
	}

	pending, err := s.PendingBulletScreens(ctx, testSessionID, 10)
	if err != nil {
		t.Fatalf("PendingBulletScreens() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	// Higher priority drains first
	if pending[0].ID != highID {
		t.Errorf("pending[0].ID = %d, want %d", pending[0].ID, highID)
	}
	if pending[0].Message != "苹果多少钱" || pending[0].Category != "question" {
		t.Errorf("pending[0] = %+v", pending[0])
	}

	if err := s.MarkBulletScreensProcessed(ctx, []int64{highID}); err != nil {
		t.Fatalf("MarkBulletScreensProcessed() error = %v", err)
	}

	pending, err = s.PendingBulletScreens(ctx, testSessionID, 10)
	if err != nil {
		t.Fatalf("PendingBulletScreens() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != lowID {
		t.Errorf("pending after mark = %+v", pending)
	}
}

func TestPendingBulletScreens_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateSession(t, s, testSessionID)
	for i := 0; i < 5; i++ {
		if _, err := s.AddBulletScreen(ctx, testSessionID, "user", "消息", "chat", i); err != nil {
			t.Fatalf("AddBulletScreen() error = %v", err)
		}
	}

	pending, err := s.PendingBulletScreens(ctx, testSessionID, 3)
	if err != nil {
		t.Fatalf("PendingBulletScreens() error = %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("len(pending) = %d, want 3", len(pending))
	}
	// The three highest priorities come back
	if pending[0].Priority != 4 || pending[2].Priority != 2 {
		t.Errorf("priorities = %d..%d", pending[0].Priority, pending[2].Priority)
	}
}

func TestMarkBulletScreensProcessed_EmptyIsNoop(t *testing.T) {
	s := newTestStore(t)

	if err := s.MarkBulletScreensProcessed(context.Background(), nil); err != nil {
		t.Errorf("MarkBulletScreensProcessed(nil) error = %v", err)
	}
}

func TestAddBulletScreen_RequiresMessage(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddBulletScreen(context.Background(), testSessionID, "user", "", "chat", 0); err == nil {
		t.Fatal("expected error for empty message")
	}
}
