// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"geo-cache/internal/api"
	"geo-cache/internal/geocache"
	"geo-cache/internal/geocoder"
	"geo-cache/internal/ipgeo"
	"geo-cache/internal/logger"
	"geo-cache/internal/metrics"
	"geo-cache/internal/middleware"
	"geo-cache/internal/migrate"
	"geo-cache/internal/store"
	"geo-cache/internal/store/mem"
	"geo-cache/internal/utils"
	"geo-cache/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	// 文档存储：优先 PostgreSQL，连接失败时回退到进程内存储
	// 背景：缓存不在正确性关键路径上，数据库不可用不应阻止服务启动；回退后缓存不跨进程持久。
	var docStore geocache.Store
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		db = nil
	} else if perr := db.Ping(); perr != nil {
		l.Error("db_ping_error", "err", perr)
		_ = db.Close()
		db = nil
	}
	if db != nil {
		defer db.Close()
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		docStore = store.AttachDB(db)
		l.Info("db_store_ready")
	} else {
		docStore = mem.NewStore()
		l.Warn("store_memory_fallback", "reason", "postgres_unavailable")
	}

	ttl := geocache.DefaultTTL
	if v := os.Getenv("CACHE_TTL_HOURS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			ttl = time.Duration(n) * time.Hour
		}
	}
	gc := geocache.New(docStore, ttl)
	l.Info("geocache_ready", "ttl_hours", int(ttl.Hours()))
	geocache.StartSweeper(gc)

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 地址解析供应商：未配置端点时 /geocode 只读缓存，未命中直接 502
	var gp *geocoder.Client
	if ep := os.Getenv("GEOCODER_ENDPOINT"); ep != "" {
		gp = &geocoder.Client{
			Endpoint: ep,
			Key:      os.Getenv("GEOCODER_KEY"),
			HTTP:     &http.Client{Timeout: 4 * time.Second},
		}
		l.Info("geocoder_ready", "endpoint", ep)
	} else {
		l.Warn("geocoder_disabled", "reason", "no_endpoint")
	}

	// IP 粗定位（可选）：服务 /whereami；mmdb 缺失仅禁用该端点
	var ipr *ipgeo.Resolver
	if p := os.Getenv("GEOIP_MMDB_PATH"); p != "" {
		if r, err := ipgeo.Open(p); err == nil {
			ipr = r
			defer r.Close()
		} else {
			l.Error("ipgeo_open_error", "path", p, "err", err)
		}
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(gc, rc, gp, ipr)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}
	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "geo-cache.local")
		l.Info("listening_tls", "addr", addr, "cert", certPath, "commit", version.Commit)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", addr, "commit", version.Commit)
	_ = s.ListenAndServe()
}
