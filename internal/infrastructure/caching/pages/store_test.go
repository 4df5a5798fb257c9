package pages

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/page"
)

func TestStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore[*page.Page](time.Minute)
	s.now = func() time.Time { return now }

	s.Put("a", page.New(page.Options{ID: "a"}))
	now = now.Add(30 * time.Second)
	s.Put("b", page.New(page.Options{ID: "b"}))

	if _, ok := s.Get("a"); !ok {
		t.Fatal("a should still be live")
	}

	now = now.Add(45 * time.Second)
	if _, ok := s.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if p, ok := s.Get("b"); !ok || p.ID != "b" {
		t.Fatal("b should still be live")
	}

	if removed := s.PurgeExpired(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}

	s.Delete("b")
	if _, ok := s.Get("b"); ok || s.Len() != 0 {
		t.Fatal("delete did not remove b")
	}
}
