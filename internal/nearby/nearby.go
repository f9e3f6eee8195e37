// 包 nearby：基于已缓存地名代表点的最近地名查询
package nearby

// Point 为地名代表点（WGS84 度）
type Point struct {
	URI string
	Lat float64
	Lon float64
}

// 文档注释：只读二维 KD 树
// 约束：构建后不再修改；零值与空树的任意查询都返回 ok=false。
type Tree struct {
	root *kdNode
	size int
}

// Build 复制 ps 后建树，不修改调用方切片
func Build(ps []Point) *Tree {
	cp := append([]Point(nil), ps...)
	return &Tree{root: buildKD(cp, 0), size: len(cp)}
}

func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Nearest 返回最近点及其球面距离（千米）；等距时取 URI 较小者
func (t *Tree) Nearest(lat, lon float64) (Point, float64, bool) {
	if t == nil || t.root == nil {
		return Point{}, 0, false
	}
	p, d := nearest(t.root, lat, lon)
	return p, d, true
}
