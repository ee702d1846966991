// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"geo-cache/internal/geocache"
	"geo-cache/internal/geocoder"
	"geo-cache/internal/ipgeo"
	"geo-cache/internal/logger"
	"geo-cache/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// redisTTL：热层结果缓存时长；明显短于文档存储 TTL，仅挡住热点重复查询
const redisTTL = 24 * time.Hour

// 解析访问者 IP：优先参数，其次常见反向代理头；保证在多层代理场景下稳定获取源 IP
func getClientIP(r *http.Request) string {
	q := r.URL.Query().Get("ip")
	if q != "" {
		return q
	}
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("cf-connecting-ip"); x != "" {
		return x
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return host
}

// hotLayerValue：落热层前的视图归一化
// 约束：热层命中对外就是缓存命中，标记位与缓存时间必须在写 redis 前补齐；
// 供应商直出结果（尚无缓存时间）取当下时刻。
func hotLayerValue(res *geocache.Result) []byte {
	hot := *res
	hot.Cached = true
	if hot.CacheTimestamp.IsZero() {
		hot.CacheTimestamp = time.Now()
	}
	b, _ := json.Marshal(hot)
	return b
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
// 背景：redis 热层与地址解析供应商、IP 粗定位均可为 nil（按部署裁剪），路由按可用性降级。
func BuildRoutes(gc *geocache.GeoCache, rc *redis.Client, gp *geocoder.Client, ipr *ipgeo.Resolver) *http.ServeMux {
	apiMux := http.NewServeMux()

	// /geocode：读穿入口——热层 → 文档缓存 → 供应商回源并写回
	apiMux.HandleFunc("/geocode", func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		metrics.RequestsTotal.Inc()
		defer func() { metrics.RequestDurationMs.Observe(float64(time.Since(t0).Milliseconds())) }()
		ctx := r.Context()
		address := r.URL.Query().Get("address")
		if strings.TrimSpace(address) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key := geocache.HashKey(address)
		if rc != nil {
			s, _ := rc.Get(ctx, "addr:"+key).Result()
			if s != "" {
				var res geocache.Result
				if err := json.Unmarshal([]byte(s), &res); err == nil {
					metrics.RedisHitsTotal.Inc()
					writeJSON(w, geocodeResponse{Query: address, Result: &res})
					return
				}
			}
			metrics.RedisMissesTotal.Inc()
		}
		if res, ok := gc.Get(ctx, address); ok {
			metrics.CacheHitsTotal.Inc()
			if rc != nil {
				rc.Set(ctx, "addr:"+key, string(hotLayerValue(res)), redisTTL)
			}
			writeJSON(w, geocodeResponse{Query: address, Result: res})
			return
		}
		metrics.CacheMissesTotal.Inc()
		if gp == nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		res, err := gp.Geocode(ctx, address)
		if err != nil {
			logger.L().Error("geocode_provider_error", "key", key, "err", err)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		// 写回尽力而为：缓存只是优化，失败不影响本次响应
		if _, perr := gc.Put(ctx, address, *res); perr != nil && !errors.Is(perr, geocache.ErrWriteFailed) {
			logger.L().Debug("geocode_put_rejected", "key", key, "err", perr)
		}
		if rc != nil {
			rc.Set(ctx, "addr:"+key, string(hotLayerValue(res)), redisTTL)
		}
		writeJSON(w, geocodeResponse{Query: address, Result: res})
	})

	// /search：存活条目上的子串联想，不计入使用次数
	apiMux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		metrics.SearchRequestsTotal.Inc()
		q := r.URL.Query().Get("q")
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		results, err := gc.SearchSimilar(r.Context(), q, limit)
		if err != nil {
			if errors.Is(err, geocache.ErrInvalidInput) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			logger.L().Error("search_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, searchResponse{Query: q, Results: results})
	})

	// /nearby：半径近邻查询
	apiMux.HandleFunc("/nearby", func(w http.ResponseWriter, r *http.Request) {
		metrics.NearbyRequestsTotal.Inc()
		lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
		radius, errR := strconv.ParseFloat(r.URL.Query().Get("radius_km"), 64)
		if errLat != nil || errLng != nil || errR != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		results, err := gc.Nearby(r.Context(), lat, lng, radius)
		if err != nil {
			if errors.Is(err, geocache.ErrInvalidInput) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			logger.L().Error("nearby_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, nearbyResponse{Latitude: lat, Longitude: lng, RadiusKm: radius, Results: results})
	})

	// /whereami：访问者 IP 粗定位后的就近查询；未配置 mmdb 时该能力整体不可用
	apiMux.HandleFunc("/whereami", func(w http.ResponseWriter, r *http.Request) {
		if ipr == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		radius := 50.0
		if v := r.URL.Query().Get("radius_km"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				radius = f
			}
		}
		ip := getClientIP(r)
		lat, lng, err := ipr.Locate(ip)
		if err != nil {
			logger.L().Debug("whereami_locate_miss", "ip", ip, "err", err)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		results, err := gc.Nearby(r.Context(), lat, lng, radius)
		if err != nil {
			logger.L().Error("whereami_nearby_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, nearbyResponse{Latitude: lat, Longitude: lng, RadiusKm: radius, Results: results})
	})

	// /stats：全量聚合统计
	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		st, err := gc.Stats(r.Context())
		if err != nil {
			logger.L().Error("stats_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, st)
	})

	// /sweep：管理员触发的过期清扫；与后台周期清扫互为补充
	apiMux.HandleFunc("/sweep", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		t := r.Header.Get("x-admin-token")
		if t == "" || t != os.Getenv("ADMIN_TOKEN") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		n, err := gc.SweepExpired(r.Context())
		if err != nil {
			logger.L().Error("sweep_endpoint_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		metrics.SweepRemovedTotal.Add(float64(n))
		writeJSON(w, sweepResponse{Removed: n})
	})

	return apiMux
}
