// 包 store：提供缓存条目在 PostgreSQL 上的文档存储实现
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"geo-cache/internal/geocache"
	"geo-cache/internal/logger"

	_ "github.com/lib/pq"
)

// Store：数据库访问入口，持有连接池并实现 geocache.Store
// 约束：单键 upsert 即 last-writer-wins，无跨键事务；所有查询走调用方上下文超时
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open：使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

// Close：关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const entryCols = `key, raw_address, norm_address, resolved_address, lat, lng, provider_id, components, place_types, display_name, geohash, usage_count, created_at, last_used_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry：单行扫描为条目；components/place_types 以 JSONB 存储，空值容忍
func scanEntry(r rowScanner) (*geocache.Entry, error) {
	var e geocache.Entry
	var comps, types []byte
	err := r.Scan(&e.Key, &e.RawAddress, &e.NormAddress, &e.ResolvedAddress,
		&e.Coordinates.Latitude, &e.Coordinates.Longitude,
		&e.ProviderID, &comps, &types, &e.DisplayName, &e.Geohash,
		&e.UsageCount, &e.CreatedAt, &e.LastUsedAt, &e.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if len(comps) > 0 {
		_ = json.Unmarshal(comps, &e.Components)
	}
	if len(types) > 0 {
		_ = json.Unmarshal(types, &e.PlaceTypes)
	}
	return &e, nil
}

// Get：按键读取单条；不存在返回 (nil, nil)
func (s *Store) Get(ctx context.Context, key string) (*geocache.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryCols+" FROM _geo_cache WHERE key=$1", key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Upsert：整条写入，存在即全字段替换（含计数与时间戳）
func (s *Store) Upsert(ctx context.Context, e *geocache.Entry) error {
	var comps, types []byte
	if e.Components != nil {
		comps, _ = json.Marshal(e.Components)
	}
	if e.PlaceTypes != nil {
		types, _ = json.Marshal(e.PlaceTypes)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO _geo_cache(`+entryCols+`)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (key) DO UPDATE SET
            raw_address=EXCLUDED.raw_address, norm_address=EXCLUDED.norm_address,
            resolved_address=EXCLUDED.resolved_address, lat=EXCLUDED.lat, lng=EXCLUDED.lng,
            provider_id=EXCLUDED.provider_id, components=EXCLUDED.components,
            place_types=EXCLUDED.place_types, display_name=EXCLUDED.display_name,
            geohash=EXCLUDED.geohash, usage_count=EXCLUDED.usage_count,
            created_at=EXCLUDED.created_at, last_used_at=EXCLUDED.last_used_at,
            expires_at=EXCLUDED.expires_at`,
		e.Key, e.RawAddress, e.NormAddress, e.ResolvedAddress,
		e.Coordinates.Latitude, e.Coordinates.Longitude,
		e.ProviderID, comps, types, e.DisplayName, e.Geohash,
		e.UsageCount, e.CreatedAt, e.LastUsedAt, e.ExpiresAt)
	if err != nil {
		logger.L().Debug("store_upsert_error", "key", e.Key, "err", err)
	}
	return err
}

// Delete：按键删除；键不存在视为成功
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM _geo_cache WHERE key=$1", key)
	return err
}

// All：全量读取（统计、检索与清扫使用）
func (s *Store) All(ctx context.Context) ([]geocache.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryCols+" FROM _geo_cache")
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ByGeoPrefix：geohash 前缀过滤下推到数据库
// 背景：geohash 列建有 text_pattern_ops 索引，LIKE 前缀匹配走索引扫描；
// 前缀字符集为 geohash base32，无需转义 LIKE 通配符。
func (s *Store) ByGeoPrefix(ctx context.Context, prefix string) ([]geocache.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryCols+" FROM _geo_cache WHERE geohash LIKE $1", prefix+"%")
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]geocache.Entry, error) {
	defer rows.Close()
	var out []geocache.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
