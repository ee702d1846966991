package mem

import (
	"context"
	"testing"
	"time"

	"geo-cache/internal/geocache"
)

func entry(key, gh string) *geocache.Entry {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &geocache.Entry{
		Key:         key,
		RawAddress:  "addr " + key,
		NormAddress: "addr " + key,
		Geohash:     gh,
		Components:  map[string]string{"locality": "x"},
		UsageCount:  1,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(geocache.DefaultTTL),
	}
}

func TestStoreCRUD(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if e, err := s.Get(ctx, "missing"); err != nil || e != nil {
		t.Fatalf("get missing = %v, %v", e, err)
	}
	if err := s.Upsert(ctx, entry("k1", "wx4g09")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e, err := s.Get(ctx, "k1")
	if err != nil || e == nil {
		t.Fatalf("get = %v, %v", e, err)
	}
	if e.RawAddress != "addr k1" {
		t.Errorf("raw address = %q", e.RawAddress)
	}

	// 覆盖写：同键整体替换
	e2 := entry("k1", "wx4g09")
	e2.UsageCount = 7
	if err := s.Upsert(ctx, e2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	e, _ = s.Get(ctx, "k1")
	if e.UsageCount != 7 {
		t.Errorf("usage after replace = %d", e.UsageCount)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("repeated delete must be idempotent: %v", err)
	}
	if e, _ := s.Get(ctx, "k1"); e != nil {
		t.Error("entry survived delete")
	}
}

func TestStoreScans(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, entry("a", "wx4g09"))
	_ = s.Upsert(ctx, entry("b", "wx4g0b"))
	_ = s.Upsert(ctx, entry("c", "u4pruy"))

	all, err := s.All(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %d entries, err %v", len(all), err)
	}
	hits, err := s.ByGeoPrefix(ctx, "wx4g0")
	if err != nil || len(hits) != 2 {
		t.Fatalf("prefix wx4g0 = %d entries, err %v", len(hits), err)
	}
	hits, _ = s.ByGeoPrefix(ctx, "zzz")
	if len(hits) != 0 {
		t.Errorf("prefix zzz = %d entries", len(hits))
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, entry("k", "wx4g09"))
	e, _ := s.Get(ctx, "k")
	e.UsageCount = 99
	e.Components["locality"] = "tampered"
	again, _ := s.Get(ctx, "k")
	if again.UsageCount != 1 || again.Components["locality"] != "x" {
		t.Error("caller mutation leaked into the store")
	}
}
