package geocache

import "math"

// 文档注释：轻量 geohash 编码与邻域计算（base32）
// 背景：条目入库时编码到 6 字符（约 1.2km 网格）作为分桶键；近邻查询按半径选取合适前缀精度，
// 取中心格与 8 邻域做桶扫描。避免引入外部库，与缓存键一样保持确定性。
// 约束：仅用于分桶与近邻探测，不做行政区映射。

var geohashBase32 = []rune("0123456789bcdefghjkmnpqrstuvwxyz")

// EntryGeohashPrecision：条目落库时的编码精度
const EntryGeohashPrecision = 6

func encodeGeohash(lat, lon float64, precision int) string {
	latInt := []float64{-90, 90}
	lonInt := []float64{-180, 180}
	bits := []int{16, 8, 4, 2, 1}
	bit := 0
	ch := 0
	even := true
	out := make([]rune, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lonInt[0] + lonInt[1]) / 2
			if lon >= mid {
				ch |= bits[bit]
				lonInt[0] = mid
			} else {
				lonInt[1] = mid
			}
		} else {
			mid := (latInt[0] + latInt[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latInt[0] = mid
			} else {
				latInt[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, geohashBase32[ch])
			bit = 0
			ch = 0
		}
	}
	return string(out)
}

// decodeGeohashBox：解码前缀对应的经纬范围（minLat,maxLat,minLon,maxLon）
func decodeGeohashBox(gh string) (minLat, maxLat, minLon, maxLon float64) {
	latInt := []float64{-90, 90}
	lonInt := []float64{-180, 180}
	even := true
	for _, r := range gh {
		cd := 0
		for i, c := range geohashBase32 {
			if c == r {
				cd = i
				break
			}
		}
		for _, mask := range []int{16, 8, 4, 2, 1} {
			if even {
				mid := (lonInt[0] + lonInt[1]) / 2
				if cd&mask != 0 {
					lonInt[0] = mid
				} else {
					lonInt[1] = mid
				}
			} else {
				mid := (latInt[0] + latInt[1]) / 2
				if cd&mask != 0 {
					latInt[0] = mid
				} else {
					latInt[1] = mid
				}
			}
			even = !even
		}
	}
	return latInt[0], latInt[1], lonInt[0], lonInt[1]
}

// coverPrecision：在查询纬度处选择网格两边均不小于查询半径的最细精度
// 背景：满足该条件时中心格与 8 邻域必然覆盖整个查询圆，桶扫描与全量扫描结果一致。
// 约束：纬向尺寸按 kmPerDegree 精确换算（与 Haversine 同源）；经向取网格跨度在查询圆内
// 离赤道最远纬度处的弦长下界（2R·cos·sin），两边判定均不高估格子尺寸，覆盖恒成立。
// 返回 0 表示任何精度都不满足（半径过大或接近极点），调用方退化为全量扫描。
func coverPrecision(lat, radiusKm float64) int {
	edge := math.Abs(lat) + radiusKm/kmPerDegree
	if edge >= 90 {
		return 0
	}
	for p := EntryGeohashPrecision; p >= 1; p-- {
		minLat, maxLat, minLon, maxLon := decodeGeohashBox(encodeGeohash(lat, 0, p))
		hKm := (maxLat - minLat) * kmPerDegree
		wKm := 2 * earthRadiusKm * cosDeg(edge) * math.Sin((maxLon-minLon)*math.Pi/360)
		if hKm >= radiusKm && wKm >= radiusKm {
			return p
		}
	}
	return 0
}

// neighborPrefixes：中心格与 8 邻域的前缀集合
// 背景：通过格子中心点偏移一格宽/高重新编码求邻域，避免手写边界查找表；
// 越过极点的格子直接丢弃，跨 180 度经线由经度回绕处理。
func neighborPrefixes(lat, lon float64, precision int) []string {
	minLat, maxLat, minLon, maxLon := decodeGeohashBox(encodeGeohash(lat, lon, precision))
	dLat := maxLat - minLat
	dLon := maxLon - minLon
	cLat := (minLat + maxLat) / 2
	cLon := (minLon + maxLon) / 2
	seen := make(map[string]bool, 9)
	out := make([]string, 0, 9)
	for _, dy := range []float64{0, dLat, -dLat} {
		for _, dx := range []float64{0, dLon, -dLon} {
			nlat := cLat + dy
			if nlat > 90 || nlat < -90 {
				continue
			}
			nlon := cLon + dx
			if nlon > 180 {
				nlon -= 360
			}
			if nlon < -180 {
				nlon += 360
			}
			gh := encodeGeohash(nlat, nlon, precision)
			if !seen[gh] {
				seen[gh] = true
				out = append(out, gh)
			}
		}
	}
	return out
}
