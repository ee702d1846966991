package geocache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"geo-cache/internal/logger"
)

// GeoCache：读穿缓存实例
// 背景：存储句柄显式注入而非模块级单例，便于测试替身与单进程多实例隔离。
// 约束：自身无锁；并发读写同键按存储 last-writer-wins 处理，UsageCount 丢失递增可接受（仅分析信号）。
type GeoCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// New：创建缓存实例；ttl 非正时取 DefaultTTL
func New(store Store, ttl time.Duration) *GeoCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &GeoCache{store: store, ttl: ttl, now: time.Now}
}

// Put：写入一条解析成功的结果（upsert 语义，存在即整体替换）
// 背景：仅在供应商解析成功后调用，坐标由参数类型保证存在；写失败返回软错误，调用方可忽略。
// 返回：条目键；落库失败时键照常返回并携带 ErrWriteFailed，读者下次直查供应商即可。
func (c *GeoCache) Put(ctx context.Context, rawAddress string, r Result) (string, error) {
	norm := Normalize(rawAddress)
	if norm == "" {
		return "", ErrInvalidInput
	}
	key := HashKey(rawAddress)
	now := c.now()
	e := &Entry{
		Key:             key,
		RawAddress:      strings.TrimSpace(rawAddress),
		NormAddress:     norm,
		ResolvedAddress: r.ResolvedAddress,
		Coordinates:     r.Coordinates,
		ProviderID:      r.ProviderID,
		Components:      r.Components,
		PlaceTypes:      r.PlaceTypes,
		DisplayName:     r.DisplayName,
		Geohash:         encodeGeohash(r.Coordinates.Latitude, r.Coordinates.Longitude, EntryGeohashPrecision),
		UsageCount:      1,
		CreatedAt:       now,
		LastUsedAt:      now,
		ExpiresAt:       now.Add(c.ttl),
	}
	if err := c.store.Upsert(ctx, e); err != nil {
		logger.L().Error("cache_put_error", "key", key, "err", err)
		return key, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	logger.L().Debug("cache_put_ok", "key", key, "geohash", e.Geohash)
	return key, nil
}

// Get：按地址读取；未命中/过期/存储故障一律返回 (nil, false)
// 背景：缓存不在正确性关键路径上，读失败退化为未命中，由调用方回源供应商。
// 约束：命中时递增 UsageCount 并刷新 LastUsedAt，回写尽力而为，失败不影响本次命中；
// 过期条目惰性删除；键碰撞通过比对条目内规范化地址识别并按未命中处理。
func (c *GeoCache) Get(ctx context.Context, rawAddress string) (*Result, bool) {
	norm := Normalize(rawAddress)
	if norm == "" {
		return nil, false
	}
	key := HashKey(rawAddress)
	e, err := c.store.Get(ctx, key)
	if err != nil {
		logger.L().Debug("cache_get_store_error", "key", key, "err", err)
		return nil, false
	}
	if e == nil {
		logger.L().Debug("cache_miss", "key", key)
		return nil, false
	}
	if e.NormAddress != "" && e.NormAddress != norm {
		logger.L().Warn("cache_key_collision", "key", key, "stored", e.NormAddress, "queried", norm)
		return nil, false
	}
	now := c.now()
	if e.Expired(now) {
		if derr := c.store.Delete(ctx, key); derr != nil {
			logger.L().Debug("cache_expire_delete_error", "key", key, "err", derr)
		}
		logger.L().Debug("cache_expired", "key", key)
		return nil, false
	}
	e.UsageCount++
	e.LastUsedAt = now
	if uerr := c.store.Upsert(ctx, e); uerr != nil {
		logger.L().Debug("cache_usage_bump_error", "key", key, "err", uerr)
	}
	logger.L().Debug("cache_hit", "key", key, "usage", e.UsageCount)
	return entryView(e), true
}

// SearchSimilar：在存活条目的原始/解析/展示名上做大小写不敏感子串匹配
// 背景：供地址表单联想使用；排序按 usageCount + lastUsed 秒级时间戳/1e6，使用量优先、近用兜底。
// 约束：查询不是一次“使用”，不改动计数；权重公式是可调启发式而非行为契约。
func (c *GeoCache) SearchSimilar(ctx context.Context, query string, limit int) ([]Result, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit < 1 {
		return nil, ErrInvalidInput
	}
	all, err := c.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	now := c.now()
	type scored struct {
		e     Entry
		score float64
	}
	var hits []scored
	for _, e := range all {
		if e.Expired(now) {
			continue
		}
		if !strings.Contains(strings.ToLower(e.RawAddress), q) &&
			!strings.Contains(strings.ToLower(e.ResolvedAddress), q) &&
			!strings.Contains(strings.ToLower(e.DisplayName), q) {
			continue
		}
		hits = append(hits, scored{e: e, score: float64(e.UsageCount) + float64(e.LastUsedAt.Unix())/1e6})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		e := h.e
		out = append(out, *entryView(&e))
	}
	logger.L().Debug("cache_search", "query", q, "hits", len(out))
	return out, nil
}

// Neighbor：近邻查询的单条结果，附带到查询点的球面距离
type Neighbor struct {
	Result     Result  `json:"result"`
	DistanceKm float64 `json:"distance_km"`
}

// Nearby：半径近邻查询，按距离升序返回存活条目
// 背景：优先走 geohash 分桶路径，仅扫描与查询圆相交的中心格与 8 邻域；覆盖精度不可行时
// （半径过大或接近极点）退化为全量扫描。两条路径结果恒等，分桶只是访问量优化。
func (c *GeoCache) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]Neighbor, error) {
	if radiusKm <= 0 || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidInput
	}
	var entries []Entry
	p := coverPrecision(lat, radiusKm)
	if p == 0 {
		all, err := c.store.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		entries = all
		logger.L().Debug("nearby_full_scan", "radius_km", radiusKm, "scanned", len(entries))
	} else {
		seen := make(map[string]bool)
		for _, prefix := range neighborPrefixes(lat, lng, p) {
			es, err := c.store.ByGeoPrefix(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			for _, e := range es {
				if !seen[e.Key] {
					seen[e.Key] = true
					entries = append(entries, e)
				}
			}
		}
		logger.L().Debug("nearby_bucket_scan", "radius_km", radiusKm, "precision", p, "scanned", len(entries))
	}
	now := c.now()
	var out []Neighbor
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		d := Haversine(lat, lng, e.Coordinates.Latitude, e.Coordinates.Longitude)
		if d <= radiusKm {
			out = append(out, Neighbor{Result: *entryView(&e), DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

// Stats：全量聚合统计（含过期条目）；纯读不改动任何条目
func (c *GeoCache) Stats(ctx context.Context) (*Stats, error) {
	all, err := c.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	now := c.now()
	st := &Stats{}
	var most *Entry
	for i := range all {
		e := &all[i]
		st.TotalEntries++
		if e.Expired(now) {
			st.ExpiredEntries++
		} else {
			st.ValidEntries++
		}
		st.TotalUsage += e.UsageCount
		if st.OldestEntry == nil || e.CreatedAt.Before(*st.OldestEntry) {
			t := e.CreatedAt
			st.OldestEntry = &t
		}
		if st.NewestEntry == nil || e.CreatedAt.After(*st.NewestEntry) {
			t := e.CreatedAt
			st.NewestEntry = &t
		}
		if most == nil || e.UsageCount > most.UsageCount {
			most = e
		}
	}
	if st.TotalEntries > 0 {
		st.AverageUsage = float64(st.TotalUsage) / float64(st.TotalEntries)
	}
	if most != nil {
		st.MostUsed = entryView(most)
		st.MostUsedCount = most.UsageCount
	}
	return st, nil
}

// SweepExpired：批量删除所有已过期条目，返回删除数
// 背景：与读路径的惰性删除互补；幂等，可与并发读共存——清扫与读者的回写竞争对象本就逻辑死亡，
// 任一结局（静默重插或空操作）均可接受。单条删除失败记录日志并跳过，不计入删除数。
func (c *GeoCache) SweepExpired(ctx context.Context) (int, error) {
	all, err := c.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	now := c.now()
	removed := 0
	for i := range all {
		e := &all[i]
		if !e.Expired(now) {
			continue
		}
		if derr := c.store.Delete(ctx, e.Key); derr != nil {
			logger.L().Error("sweep_delete_error", "key", e.Key, "err", derr)
			continue
		}
		removed++
	}
	logger.L().Debug("sweep_pass_done", "removed", removed)
	return removed, nil
}

// entryView：条目到对外视图的投影，剔除内部簿记字段
func entryView(e *Entry) *Result {
	return &Result{
		Address:         e.RawAddress,
		ResolvedAddress: e.ResolvedAddress,
		Coordinates:     e.Coordinates,
		ProviderID:      e.ProviderID,
		Components:      e.Components,
		PlaceTypes:      e.PlaceTypes,
		DisplayName:     e.DisplayName,
		Cached:          true,
		CacheTimestamp:  e.CreatedAt,
	}
}
