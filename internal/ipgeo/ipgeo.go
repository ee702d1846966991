// 包 ipgeo：基于本地 mmdb 的访问者 IP 粗定位
// 背景：车队看板的“附近网点”入口在无地址输入时以访问者 IP 的城市级坐标作为查询中心；
// 使用本地 GeoLite2-City 库避免在线依赖，精度仅到城市级，足够近邻查询起点使用。
package ipgeo

import (
	"errors"
	"net"

	"geo-cache/internal/logger"

	"github.com/oschwald/geoip2-golang"
)

type Resolver struct {
	reader *geoip2.Reader
}

// Open：加载 mmdb 文件；文件缺失或损坏返回错误，由上层决定是否禁用该能力
func Open(path string) (*Resolver, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("ipgeo_ready", "path", path)
	return &Resolver{reader: r}, nil
}

func (r *Resolver) Close() error { return r.reader.Close() }

// Locate：IP 文本到城市级坐标
// 约束：非法 IP 或库内无坐标（0,0 视为无数据）返回错误；不做在线回源。
func (r *Resolver) Locate(ip string) (lat, lng float64, err error) {
	p := net.ParseIP(ip)
	if p == nil {
		return 0, 0, errors.New("ipgeo: bad ip")
	}
	rec, err := r.reader.City(p)
	if err != nil {
		return 0, 0, err
	}
	lat = rec.Location.Latitude
	lng = rec.Location.Longitude
	if lat == 0 && lng == 0 {
		return 0, 0, errors.New("ipgeo: no location")
	}
	logger.L().Debug("ipgeo_locate", "ip", ip, "lat", lat, "lng", lng)
	return lat, lng, nil
}
