package nearby

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm 为球面距离换算半径
const EarthRadiusKm = 6371.0

// 文档注释：KD-Tree 最近邻（二维经纬）
// 背景：按经度/纬度交替分割；查询时只在另一侧的球面距离下界不超过当前最优时才遍历。
// 约束：仅支持最近一个点查询；经度方向的下界考虑了跨越 ±180° 的情形。
type kdNode struct {
	p  Point
	ax int // 0:lon,1:lat
	l  *kdNode
	r  *kdNode
}

func buildKD(ps []Point, depth int) *kdNode {
	if len(ps) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(ps) / 2
	selectNth(ps, mid, ax)
	n := &kdNode{p: ps[mid], ax: ax}
	n.l = buildKD(ps[:mid], depth+1)
	n.r = buildKD(ps[mid+1:], depth+1)
	return n
}

// selectNth 原地选出第 n 小元素，左侧不大于它、右侧不小于它
func selectNth(a []Point, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(a []Point, lo, hi, pivot, ax int) int {
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if less(a[j], pv, ax) {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func less(x, y Point, ax int) bool {
	if ax == 0 {
		return x.Lon < y.Lon
	}
	return x.Lat < y.Lat
}

func nearest(root *kdNode, lat, lon float64) (Point, float64) {
	var best Point
	bestD := math.MaxFloat64
	q := s2.LatLngFromDegrees(lat, lon)
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := distanceKm(q, n.p); d < bestD || (d == bestD && n.p.URI < best.URI) {
			bestD, best = d, n.p
		}
		key, split := lon, n.p.Lon
		if n.ax == 1 {
			key, split = lat, n.p.Lat
		}
		first, second := n.l, n.r
		if key > split {
			first, second = n.r, n.l
		}
		dfs(first)
		if second != nil && farSideKm(n.ax, lat, lon, split) <= bestD {
			dfs(second)
		}
	}
	dfs(root)
	return best, bestD
}

func distanceKm(q s2.LatLng, p Point) float64 {
	return q.Distance(s2.LatLngFromDegrees(p.Lat, p.Lon)).Radians() * EarthRadiusKm
}

// farSideKm 为分割面另一侧任意点到查询点的球面距离下界
func farSideKm(ax int, lat, lon, split float64) float64 {
	if ax == 1 {
		return math.Abs(lat-split) * math.Pi / 180 * EarthRadiusKm
	}
	// 另一侧经度区间为 [split, 180] 或 [-180, split]，取两条路径中较短的经度差
	var d float64
	if lon <= split {
		d = math.Min(split-lon, lon+180)
	} else {
		d = math.Min(lon-split, 180-lon)
	}
	d = math.Min(d, 90) * math.Pi / 180
	return math.Asin(math.Cos(lat*math.Pi/180)*math.Sin(d)) * EarthRadiusKm
}
