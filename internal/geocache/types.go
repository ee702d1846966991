// 包 geocache：地址解析结果的读穿缓存核心（键为规范化地址哈希）
// 背景：地址解析依赖外部供应商，按次计费且延迟不稳定；将成功结果按规范化地址落入文档存储，
// 供表单联想、就近网点等场景复用。缓存仅是优化层，任何存储故障都不得阻断调用方直接访问供应商。
package geocache

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL：条目默认存活时长；超过后条目逻辑死亡，读取路径惰性删除或由清扫任务批量回收
const DefaultTTL = 7 * 24 * time.Hour

// Coordinates：WGS84 十进制度坐标
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Entry：缓存条目（存储层模型）
// 背景：一个规范化地址对应一条；Key 由地址哈希派生，Geohash 仅服务近邻分桶查询，不对外暴露。
// 约束：UsageCount 单调不减；Coordinates 对读者可见的条目必然非零（仅成功解析后写入）；
// 坐标与解析地址不原地更新，地址变更即新键。
type Entry struct {
	Key             string            `json:"key"`
	RawAddress      string            `json:"raw_address"`
	NormAddress     string            `json:"norm_address"`
	ResolvedAddress string            `json:"resolved_address"`
	Coordinates     Coordinates       `json:"coordinates"`
	ProviderID      string            `json:"provider_id,omitempty"`
	Components      map[string]string `json:"components,omitempty"`
	PlaceTypes      []string          `json:"place_types,omitempty"`
	DisplayName     string            `json:"display_name,omitempty"`
	Geohash         string            `json:"geohash"`
	UsageCount      int64             `json:"usage_count"`
	CreatedAt       time.Time         `json:"created_at"`
	LastUsedAt      time.Time         `json:"last_used_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
}

// Expired：按给定时刻判定条目是否已过期
func (e *Entry) Expired(now time.Time) bool { return now.After(e.ExpiresAt) }

// Result：对外返回的解析结果视图，剔除 Key/ExpiresAt 等内部簿记字段
// 约束：Cached 恒为 true（本包只返回缓存命中）；CacheTimestamp 为条目创建时间
type Result struct {
	Address         string            `json:"address"`
	ResolvedAddress string            `json:"resolved_address"`
	Coordinates     Coordinates       `json:"coordinates"`
	ProviderID      string            `json:"provider_id,omitempty"`
	Components      map[string]string `json:"components,omitempty"`
	PlaceTypes      []string          `json:"place_types,omitempty"`
	DisplayName     string            `json:"display_name,omitempty"`
	Cached          bool              `json:"cached"`
	CacheTimestamp  time.Time         `json:"cache_timestamp"`
}

// Stats：全量聚合统计（含过期条目，用于 有效/过期 拆分）
type Stats struct {
	TotalEntries   int64      `json:"total_entries"`
	ValidEntries   int64      `json:"valid_entries"`
	ExpiredEntries int64      `json:"expired_entries"`
	TotalUsage     int64      `json:"total_usage"`
	AverageUsage   float64    `json:"average_usage"`
	OldestEntry    *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry    *time.Time `json:"newest_entry,omitempty"`
	MostUsed       *Result    `json:"most_used,omitempty"`
	MostUsedCount  int64      `json:"most_used_count,omitempty"`
}

// Store：文档存储抽象（外部协作者）
// 背景：核心逻辑不绑定具体数据库；Postgres 与内存实现见 internal/store。
// 约束：单键 last-writer-wins，无跨键事务；Get 未命中返回 (nil, nil)；Delete 幂等。
// ByGeoPrefix 将 geohash 前缀过滤下推到存储原生查询，近邻查询据此分桶扫描；
// 任何实现必须保证其与全量扫描过滤结果一致。
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Upsert(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) ([]Entry, error)
	ByGeoPrefix(ctx context.Context, prefix string) ([]Entry, error)
}

// 错误分类：读路径对调用方永远退化为未命中，以下错误只出现在写路径与维护路径
var (
	// ErrInvalidInput：空地址、非正半径或非正 limit，在触达存储前拒绝
	ErrInvalidInput = errors.New("geocache: invalid input")
	// ErrWriteFailed：落库未成功；调用方可忽略（缓存仅是优化）
	ErrWriteFailed = errors.New("geocache: cache write failed")
	// ErrStoreUnavailable：存储不可达或超时；nearby/search/stats/sweep 无回退语义，向上暴露
	ErrStoreUnavailable = errors.New("geocache: store unavailable")
)
