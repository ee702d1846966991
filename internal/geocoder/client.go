// 包 geocoder：外部地址解析供应商的 REST 客户端
// 背景：读穿触发在调用方（API 层）——缓存未命中时由其调用本客户端回源并写回缓存；
// 本包只负责请求与响应归一化，不感知缓存存在。
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"geo-cache/internal/geocache"
	"geo-cache/internal/logger"
	"geo-cache/internal/metrics"
)

// 文档注释：供应商响应结构
// 背景：对齐解析网关的返回字段，仅解析本方案需要的地址/坐标/地点元数据；
// status/infocode 用于错误判定与分类聚合，不在此处扩展对外响应模型。
type Response struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Infocode string `json:"infocode"`
	Result   struct {
		FormattedAddress string `json:"formatted_address"`
		Location         struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		PlaceID    string            `json:"place_id"`
		Name       string            `json:"name"`
		Types      []string          `json:"types"`
		Components map[string]string `json:"components"`
	} `json:"result"`
}

// Client：供应商客户端；endpoint 与 key 来自环境变量，由主入口注入
type Client struct {
	Endpoint string
	Key      string
	HTTP     *http.Client
}

var (
	ErrProvider   = errors.New("geocoder: provider error")
	ErrNoLocation = errors.New("geocoder: response missing coordinates")
)

// Geocode：解析单个地址
// 为什么：缓存未命中时的唯一回源路径；与缓存读写解耦，供应商不可用时上层直接对外报错。
// 参数：ctx 控制超时与取消；address 为用户提交的原始地址文本。
// 返回：归一化为缓存层的 Result 视图（Cached=false）；status!="1" 或坐标缺失返回错误。
func (c *Client) Geocode(ctx context.Context, address string) (*geocache.Result, error) {
	if c.Endpoint == "" {
		return nil, errors.New("geocoder: missing endpoint")
	}
	q := url.Values{}
	q.Set("address", address)
	if c.Key != "" {
		q.Set("key", c.Key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	t0 := time.Now()
	metrics.ProviderRequestsTotal.Inc()
	logger.L().Debug("geocoder_req", "address", address)
	resp, err := client.Do(req)
	if err != nil {
		logger.L().Error("geocoder_http_error", "err", err)
		metrics.ProviderFailTotal.Inc()
		return nil, err
	}
	defer resp.Body.Close()
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("geocoder_decode_error", "err", err)
		metrics.ProviderFailTotal.Inc()
		return nil, err
	}
	dur := time.Since(t0).Milliseconds()
	metrics.ProviderDurationMs.Observe(float64(dur))
	logger.L().Debug("geocoder_resp", "address", address, "status", r.Status, "infocode", r.Infocode, "duration_ms", dur)
	if r.Status != "1" {
		metrics.ProviderFailTotal.Inc()
		return nil, ErrProvider
	}
	// 坐标缺失按无数据处理（与 IP 粗定位的 0,0 约定一致），不能让零值坐标进入缓存
	if r.Result.Location.Lat == 0 && r.Result.Location.Lng == 0 {
		logger.L().Warn("geocoder_no_location", "address", address, "infocode", r.Infocode)
		metrics.ProviderFailTotal.Inc()
		return nil, ErrNoLocation
	}
	metrics.ProviderSuccessTotal.Inc()
	return &geocache.Result{
		Address:         address,
		ResolvedAddress: r.Result.FormattedAddress,
		Coordinates: geocache.Coordinates{
			Latitude:  r.Result.Location.Lat,
			Longitude: r.Result.Location.Lng,
		},
		ProviderID:  r.Result.PlaceID,
		Components:  r.Result.Components,
		PlaceTypes:  r.Result.Types,
		DisplayName: r.Result.Name,
	}, nil
}
