package memory

import (
	"context"
	"testing"

	"github.com/vietddude/guardrail/internal/infra/storage"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.Get(ctx, "missing", &record{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Get on a missing key should report absence")
	}

	want := record{Name: "payout", Count: 3}
	if err := s.Set(ctx, "r1", want); err != nil {
		t.Fatal(err)
	}

	var got record
	ok, err = s.Get(ctx, "r1", &got)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != want {
		t.Errorf("Get = (%+v, %v), want (%+v, true)", got, ok, want)
	}
}

func TestMemoryStore_HasAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", 42); err != nil {
		t.Fatal(err)
	}
	has, err := s.Has(ctx, "k")
	if err != nil || !has {
		t.Fatalf("Has = (%v, %v), want (true, nil)", has, err)
	}

	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	has, err = s.Has(ctx, "k")
	if err != nil || has {
		t.Fatalf("Has after remove = (%v, %v), want (false, nil)", has, err)
	}

	// Removing an absent key is not an error.
	if err := s.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove of missing key: %v", err)
	}
}

func TestMemoryStore_GetLeavesOutUntouchedWhenMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Callers pre-fill out with defaults; a miss must not zero them.
	got := record{Name: "default", Count: 7}
	ok, err := s.Get(ctx, "absent", &got)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unexpected hit")
	}
	if got.Name != "default" || got.Count != 7 {
		t.Errorf("miss mutated out value: %+v", got)
	}
}

func TestMemoryStore_Len(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	keys := []storage.Key{"a", "b", "c"}
	for i, k := range keys {
		if err := s.Set(ctx, k, i); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}
