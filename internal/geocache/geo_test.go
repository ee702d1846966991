package geocache

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"
)

func TestEncodeGeohashKnownVector(t *testing.T) {
	// 经典测试向量：Jutland 灯塔
	if gh := encodeGeohash(57.64911, 10.40744, 11); gh != "u4pruydqqvj" {
		t.Errorf("encodeGeohash = %q, want u4pruydqqvj", gh)
	}
	if gh := encodeGeohash(39.9042, 116.4074, 6); len(gh) != 6 {
		t.Errorf("precision not honored: %q", gh)
	}
}

func TestDecodeGeohashBoxContainsPoint(t *testing.T) {
	pts := []Coordinates{
		{39.9042, 116.4074},
		{-33.8688, 151.2093},
		{0, 0},
		{89.5, -179.5},
	}
	for _, p := range pts {
		for prec := 1; prec <= 6; prec++ {
			gh := encodeGeohash(p.Latitude, p.Longitude, prec)
			minLat, maxLat, minLon, maxLon := decodeGeohashBox(gh)
			if p.Latitude < minLat || p.Latitude > maxLat || p.Longitude < minLon || p.Longitude > maxLon {
				t.Errorf("point %+v outside decoded box of %q", p, gh)
			}
		}
	}
}

func TestNeighborPrefixesCoverage(t *testing.T) {
	got := neighborPrefixes(39.9, 116.4, 5)
	if len(got) != 9 {
		t.Fatalf("expected 9 distinct prefixes away from poles, got %d", len(got))
	}
	center := encodeGeohash(39.9, 116.4, 5)
	found := false
	for _, p := range got {
		if p == center {
			found = true
		}
		if len(p) != 5 {
			t.Errorf("prefix %q has wrong precision", p)
		}
	}
	if !found {
		t.Error("center cell missing from neighborhood")
	}
}

func TestHaversine(t *testing.T) {
	// 赤道上 1 经度 ≈ 111.19km
	if d := Haversine(0, 0, 0, 1); math.Abs(d-111.19) > 0.5 {
		t.Errorf("equator degree = %.3f km", d)
	}
	if d := Haversine(39.9042, 116.4074, 39.9042, 116.4074); d != 0 {
		t.Errorf("zero distance = %f", d)
	}
	// 北京-上海约 1067km
	if d := Haversine(39.9042, 116.4074, 31.2304, 121.4737); math.Abs(d-1067) > 10 {
		t.Errorf("beijing-shanghai = %.1f km", d)
	}
}

func TestNearbyCorrectness(t *testing.T) {
	c, _, _ := newTestCache(t)
	put(t, c, "origin yard", 0, 0)
	put(t, c, "east yard", 0, 1)
	put(t, c, "far yard", 10, 10)

	got, err := c.Nearby(context.Background(), 0, 0, 200)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Result.Address != "origin yard" || got[1].Result.Address != "east yard" {
		t.Errorf("ordering wrong: %s, %s", got[0].Result.Address, got[1].Result.Address)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Error("results must be sorted nearest first")
	}
	if math.Abs(got[1].DistanceKm-111.19) > 0.5 {
		t.Errorf("east yard distance = %.3f km", got[1].DistanceKm)
	}
}

func TestNearbyInvalidInput(t *testing.T) {
	c, _, _ := newTestCache(t)
	for _, tc := range []struct{ lat, lng, r float64 }{
		{0, 0, 0},
		{0, 0, -5},
		{91, 0, 10},
		{0, 181, 10},
	} {
		if _, err := c.Nearby(context.Background(), tc.lat, tc.lng, tc.r); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Nearby(%v,%v,%v): got %v, want ErrInvalidInput", tc.lat, tc.lng, tc.r, err)
		}
	}
}

func TestNearbySkipsExpired(t *testing.T) {
	c, _, now := newTestCache(t)
	put(t, c, "doomed yard", 0, 0.5)
	*now = now.Add(DefaultTTL + 1)
	put(t, c, "fresh yard", 0, 0.2)
	got, err := c.Nearby(context.Background(), 0, 0, 100)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 1 || got[0].Result.Address != "fresh yard" {
		t.Errorf("expired entry leaked into nearby: %+v", got)
	}
}

// 临界半径下的覆盖判定：查询点贴近中心格北缘、半径按放大的每度千米数换算时，
// 圈内最北条目落在 8 邻域之外的第二个格子，覆盖精度必须退一级而不是收下中心格精度
func TestNearbyBucketCoversThresholdRadius(t *testing.T) {
	c, _, _ := newTestCache(t)
	minLat, maxLat, _, _ := decodeGeohashBox(encodeGeohash(40, 116, EntryGeohashPrecision))
	cell := maxLat - minLat
	qLat := maxLat - 0.0001*cell
	radius := cell * 111.32
	put(t, c, "north ridge", qLat+1.0005*cell, 116)

	if d := Haversine(qLat, 116, qLat+1.0005*cell, 116); d > radius {
		t.Fatalf("setup broken: entry at %.6f km, radius %.6f km", d, radius)
	}
	got, err := c.Nearby(context.Background(), qLat, 116, radius)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 1 || got[0].Result.Address != "north ridge" {
		t.Fatalf("in-radius entry dropped by bucket scan: %+v", got)
	}
}

// 分桶路径与全量扫描的结果恒等性：对不同纬度与半径逐一比对
func TestNearbyBucketMatchesLinearScan(t *testing.T) {
	c, st, _ := newTestCache(t)
	coords := []Coordinates{
		{0, 0}, {0.01, 0.01}, {0.5, 0.5}, {1, 1}, {2, -2},
		{39.9, 116.4}, {39.95, 116.45}, {40.2, 116.1}, {41, 117},
		{-33.87, 151.21}, {-33.9, 151.18}, {-34.5, 150.9},
		{59.93, 30.33}, {60.0, 30.4},
		{10, 10},
	}
	for i, p := range coords {
		put(t, c, "site-"+string(rune('a'+i)), p.Latitude, p.Longitude)
	}
	queries := []struct {
		lat, lng, radius float64
	}{
		{0, 0, 1}, {0, 0, 50}, {0, 0, 200}, {0, 0, 3000},
		{39.9, 116.4, 10}, {39.9, 116.4, 120}, {39.9, 116.4, 1000},
		{-33.87, 151.21, 5}, {-33.87, 151.21, 80},
		{59.95, 30.35, 20},
	}
	for _, q := range queries {
		got, err := c.Nearby(context.Background(), q.lat, q.lng, q.radius)
		if err != nil {
			t.Fatalf("nearby(%v): %v", q, err)
		}
		// 参照实现：直接全量过滤
		var want []string
		for _, e := range st.m {
			if d := Haversine(q.lat, q.lng, e.Coordinates.Latitude, e.Coordinates.Longitude); d <= q.radius {
				want = append(want, e.RawAddress)
			}
		}
		var gotAddrs []string
		for _, n := range got {
			gotAddrs = append(gotAddrs, n.Result.Address)
		}
		sort.Strings(want)
		sorted := append([]string(nil), gotAddrs...)
		sort.Strings(sorted)
		if strings.Join(sorted, "|") != strings.Join(want, "|") {
			t.Errorf("query %+v: bucket scan %v != linear scan %v", q, sorted, want)
		}
		if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].DistanceKm < got[j].DistanceKm }) {
			t.Errorf("query %+v: results not distance-sorted", q)
		}
	}
}
