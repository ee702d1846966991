package api

import "geo-cache/internal/geocache"

// 文档注释：对外响应结构（统一包装）
// 背景：统一对外序列化模型，仅包含必要字段，避免泄露内部簿记差异；便于前端与缓存一致化处理。
// 约束：字段稳定；新增字段需评估兼容性与前端依赖。

// geocodeResponse：/geocode 返回体
type geocodeResponse struct {
	Query  string           `json:"query"`
	Result *geocache.Result `json:"result,omitempty"`
}

// nearbyResponse：/nearby 与 /whereami 返回体
type nearbyResponse struct {
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	RadiusKm  float64             `json:"radius_km"`
	Results   []geocache.Neighbor `json:"results"`
}

// searchResponse：/search 返回体
type searchResponse struct {
	Query   string            `json:"query"`
	Results []geocache.Result `json:"results"`
}

// sweepResponse：/sweep 返回体
type sweepResponse struct {
	Removed int `json:"removed"`
}
