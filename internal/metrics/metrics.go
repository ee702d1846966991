package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_requests_total",
		Help: "Total number of /api/geocode requests",
	})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocache_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_hits_total",
		Help: "Total document-store cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_misses_total",
		Help: "Total document-store cache misses",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_redis_hits_total",
		Help: "Total redis hot-layer hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_redis_misses_total",
		Help: "Total redis hot-layer misses",
	})
	ProviderRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_provider_requests_total",
		Help: "Total geocoding provider REST requests",
	})
	ProviderSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_provider_success_total",
		Help: "Total geocoding provider REST successes",
	})
	ProviderFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_provider_fail_total",
		Help: "Total geocoding provider REST failures",
	})
	ProviderDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocache_provider_duration_ms",
		Help:    "Geocoding provider call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	NearbyRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_nearby_requests_total",
		Help: "Total /api/nearby requests",
	})
	SearchRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_search_requests_total",
		Help: "Total /api/search requests",
	})
	SweepRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_sweep_removed_total",
		Help: "Total expired entries removed by sweep",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderSuccessTotal)
	prometheus.MustRegister(ProviderFailTotal)
	prometheus.MustRegister(ProviderDurationMs)
	prometheus.MustRegister(NearbyRequestsTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SweepRemovedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
