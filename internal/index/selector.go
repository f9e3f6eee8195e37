package index

import (
	"fmt"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	"pleiades-api/internal/place"
)

// Selector 决定索引取自地名记录的哪一部分
type Selector int

const (
	SelectTitle Selector = iota
	SelectNames
	SelectPlaceTypes
	SelectGeohash
	SelectS2Cell
)

const (
	// 约 5km 见方
	geohashPrecision = 5
	// 赤道附近约 10km 见方
	s2CellLevel = 10
)

var selectorNames = map[Selector]string{
	SelectTitle:      "title",
	SelectNames:      "names",
	SelectPlaceTypes: "placeTypes",
	SelectGeohash:    "geohash",
	SelectS2Cell:     "s2cell",
}

func (s Selector) String() string {
	if n, ok := selectorNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Selector(%d)", int(s))
}

// ParseSelector 将配置中的名称映射为 Selector（忽略大小写）
func ParseSelector(name string) (Selector, error) {
	for s, n := range selectorNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown selector %q", name)
}

// extractor 返回原始属性值：字符串、字符串序列，或由 terms() 拒绝的其它形状；第二个返回值为属性是否存在
type extractor func(p *place.Place) (any, bool)

var extractors = map[Selector]extractor{
	SelectTitle:      attr("title"),
	SelectPlaceTypes: attr("placeTypes"),
	SelectNames:      romanizedNames,
	SelectGeohash: point(func(lon, lat float64) string {
		return geohash.EncodeWithPrecision(lat, lon, geohashPrecision)
	}),
	SelectS2Cell: point(func(lon, lat float64) string {
		return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(s2CellLevel).ToToken()
	}),
}

func attr(key string) extractor {
	return func(p *place.Place) (any, bool) {
		return p.Attr(key)
	}
}

// badShape 包装派生提取器无法解释的原始值，确保 terms() 拒绝它
type badShape struct{ v any }

// romanizedNames 要求 names 为对象列表且每项带字符串 romanized 字段
func romanizedNames(p *place.Place) (any, bool) {
	raw, ok := p.Attr("names")
	if !ok {
		return nil, false
	}
	arr, ok := raw.([]any)
	if !ok {
		return badShape{raw}, true
	}
	for _, n := range arr {
		m, ok := n.(map[string]any)
		if !ok {
			return badShape{raw}, true
		}
		if _, ok := m["romanized"].(string); !ok {
			return badShape{raw}, true
		}
	}
	return p.Names(), true
}

// point 由 reprPoint 派生一个 term；显式 null 表示未定位，不产生 term
func point(enc func(lon, lat float64) string) extractor {
	return func(p *place.Place) (any, bool) {
		raw, ok := p.Attr("reprPoint")
		if !ok {
			return nil, false
		}
		if raw == nil {
			return []string{}, true
		}
		lon, lat, ok := place.ParsePoint(raw)
		if !ok {
			return badShape{raw}, true
		}
		return enc(lon, lat), true
	}
}

func terms(v any) ([]string, bool) {
	switch x := v.(type) {
	case string:
		return []string{x}, true
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
