package migrate

import (
	"database/sql"

	"geo-cache/internal/logger"
)

// 背景：首次运行自动创建缓存表与索引，保障后续读写与清扫
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _geo_cache (
            key TEXT PRIMARY KEY,
            raw_address TEXT NOT NULL,
            norm_address TEXT NOT NULL,
            resolved_address TEXT NOT NULL DEFAULT '',
            lat DOUBLE PRECISION NOT NULL,
            lng DOUBLE PRECISION NOT NULL,
            provider_id TEXT NOT NULL DEFAULT '',
            components JSONB,
            place_types JSONB,
            display_name TEXT NOT NULL DEFAULT '',
            geohash TEXT NOT NULL,
            usage_count BIGINT NOT NULL DEFAULT 1,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            last_used_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            expires_at TIMESTAMPTZ NOT NULL
        )`,
		// geohash 前缀查询（LIKE 'xxx%'）依赖 text_pattern_ops 索引
		`CREATE INDEX IF NOT EXISTS idx_geo_cache_geohash ON _geo_cache(geohash text_pattern_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_geo_cache_expires ON _geo_cache(expires_at)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
