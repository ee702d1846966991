package geocache

import "math"

const earthRadiusKm = 6371.0

// 每纬度合千米数；由 Haversine 的地球半径推出，两处换算必须同源，
// 否则分桶覆盖判定会在临界半径上与精确距离过滤错位。
const kmPerDegree = math.Pi * earthRadiusKm / 180

func cosDeg(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

// Haversine：球面距离，返回千米
// 背景：近邻查询的精确过滤与排序依据；地球半径取 6371km。
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = earthRadiusKm
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
