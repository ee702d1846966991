package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"geo-cache/internal/geocache"
	"geo-cache/internal/geocoder"
	"geo-cache/internal/store/mem"
)

// 供应商桩：固定返回解析网关格式的成功响应
func stubProvider(t *testing.T) (*geocoder.Client, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		addr := r.URL.Query().Get("address")
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "1",
			"info":   "OK",
			"result": map[string]any{
				"formatted_address": addr + " (formatted)",
				"location":          map[string]float64{"lat": 39.78, "lng": -89.65},
				"place_id":          "stub-place",
				"name":              "Stub Depot",
			},
		})
	}))
	t.Cleanup(srv.Close)
	return &geocoder.Client{Endpoint: srv.URL, HTTP: srv.Client()}, &calls
}

func newTestServer(t *testing.T, gp *geocoder.Client) (*httptest.Server, *geocache.GeoCache) {
	t.Helper()
	gc := geocache.New(mem.NewStore(), 0)
	srv := httptest.NewServer(BuildRoutes(gc, nil, gp, nil))
	t.Cleanup(srv.Close)
	return srv, gc
}

func getJSON(t *testing.T, rawURL string, out any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", rawURL, err)
		}
	}
	return resp.StatusCode
}

func TestGeocodeReadThrough(t *testing.T) {
	gp, calls := stubProvider(t)
	srv, _ := newTestServer(t, gp)

	addr := url.QueryEscape("123 Main St, Springfield")
	var first geocodeResponse
	if code := getJSON(t, srv.URL+"/geocode?address="+addr, &first); code != http.StatusOK {
		t.Fatalf("first geocode status %d", code)
	}
	if first.Result == nil || first.Result.Cached {
		t.Fatalf("first response must come from the provider: %+v", first.Result)
	}
	if first.Result.Coordinates.Latitude != 39.78 || first.Result.ProviderID != "stub-place" {
		t.Errorf("provider result mismatch: %+v", first.Result)
	}
	if *calls != 1 {
		t.Fatalf("provider calls = %d, want 1", *calls)
	}

	// 第二次命中缓存，大小写/空白变体也不再回源
	var second geocodeResponse
	variant := url.QueryEscape("123 MAIN st,  springfield ")
	if code := getJSON(t, srv.URL+"/geocode?address="+variant, &second); code != http.StatusOK {
		t.Fatalf("second geocode status %d", code)
	}
	if second.Result == nil || !second.Result.Cached {
		t.Fatalf("second response must be served from cache: %+v", second.Result)
	}
	if *calls != 1 {
		t.Errorf("provider called again on cache hit: %d", *calls)
	}
}

func TestGeocodeValidationAndDegradation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if code := getJSON(t, srv.URL+"/geocode?address=%20%20", nil); code != http.StatusBadRequest {
		t.Errorf("blank address status %d, want 400", code)
	}
	// 无供应商且缓存未命中：对外 502
	if code := getJSON(t, srv.URL+"/geocode?address=somewhere", nil); code != http.StatusBadGateway {
		t.Errorf("no provider status %d, want 502", code)
	}
}

func TestSearchAndNearbyEndpoints(t *testing.T) {
	gp, _ := stubProvider(t)
	srv, gc := newTestServer(t, gp)
	seed := func(addr string, lat, lng float64) {
		t.Helper()
		if _, err := gc.Put(context.Background(), addr, geocache.Result{
			ResolvedAddress: addr,
			Coordinates:     geocache.Coordinates{Latitude: lat, Longitude: lng},
		}); err != nil {
			t.Fatalf("seed %s: %v", addr, err)
		}
	}
	seed("central depot", 0, 0)
	seed("east depot", 0, 1)
	seed("remote warehouse", 10, 10)

	var sr searchResponse
	if code := getJSON(t, srv.URL+"/search?q=depot&limit=5", &sr); code != http.StatusOK {
		t.Fatalf("search status %d", code)
	}
	if len(sr.Results) != 2 {
		t.Errorf("search results = %d, want 2", len(sr.Results))
	}
	if code := getJSON(t, srv.URL+"/search?q=", nil); code != http.StatusBadRequest {
		t.Errorf("blank query status %d, want 400", code)
	}

	var nr nearbyResponse
	if code := getJSON(t, srv.URL+"/nearby?lat=0&lng=0&radius_km=200", &nr); code != http.StatusOK {
		t.Fatalf("nearby status %d", code)
	}
	if len(nr.Results) != 2 {
		t.Errorf("nearby results = %d, want 2", len(nr.Results))
	}
	if code := getJSON(t, srv.URL+"/nearby?lat=0&lng=0&radius_km=-1", nil); code != http.StatusBadRequest {
		t.Errorf("negative radius status %d, want 400", code)
	}
	if code := getJSON(t, srv.URL+"/nearby?lat=abc&lng=0&radius_km=5", nil); code != http.StatusBadRequest {
		t.Errorf("bad lat status %d, want 400", code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	gp, _ := stubProvider(t)
	srv, gc := newTestServer(t, gp)
	if _, err := gc.Put(context.Background(), "only entry", geocache.Result{
		Coordinates: geocache.Coordinates{Latitude: 1, Longitude: 1},
	}); err != nil {
		t.Fatal(err)
	}
	var st geocache.Stats
	if code := getJSON(t, srv.URL+"/stats", &st); code != http.StatusOK {
		t.Fatalf("stats status %d", code)
	}
	if st.TotalEntries != 1 || st.ValidEntries != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSweepEndpointAuth(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "secret")
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/sweep", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unauthenticated sweep status %d, want 403", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/sweep", nil)
	req.Header.Set("x-admin-token", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated sweep status %d", resp.StatusCode)
	}
	var out sweepResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Removed != 0 {
		t.Errorf("removed = %d, want 0 on empty cache", out.Removed)
	}

	if code := getJSON(t, srv.URL+"/sweep", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET sweep status %d, want 405", code)
	}
}

// 热层视图归一化：供应商直出结果落 redis 前必须补齐缓存标记与时间，
// 否则热层命中会在长达热层 TTL 的窗口内对外谎报非缓存
func TestHotLayerValueMarksCached(t *testing.T) {
	fresh := &geocache.Result{
		Address:     "springfield depot",
		Coordinates: geocache.Coordinates{Latitude: 39.78, Longitude: -89.65},
	}
	var got geocache.Result
	if err := json.Unmarshal(hotLayerValue(fresh), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Cached {
		t.Error("hot layer value must carry cached=true")
	}
	if got.CacheTimestamp.IsZero() {
		t.Error("hot layer value must carry a cache timestamp")
	}
	if fresh.Cached || !fresh.CacheTimestamp.IsZero() {
		t.Error("caller's result must not be mutated")
	}

	stamped := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hit := &geocache.Result{Address: "springfield depot", Cached: true, CacheTimestamp: stamped}
	if err := json.Unmarshal(hotLayerValue(hit), &got); err != nil {
		t.Fatal(err)
	}
	if !got.CacheTimestamp.Equal(stamped) {
		t.Errorf("existing cache timestamp overwritten: %v", got.CacheTimestamp)
	}
}
