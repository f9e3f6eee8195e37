package api

import (
	"pleiades-api/internal/gazetteer"
	"pleiades-api/internal/index"
)

// 文档注释：对外返回结构
// 背景：统一序列化模型；地名记录本身由 place.Place 的 MarshalJSON 输出。
// 约束：字段稳定；列表字段总是输出 JSON 数组而非 null。
type resolveResult struct {
	PID string `json:"pid"`
	URI string `json:"uri"`
}

type lookupResult struct {
	Index string   `json:"index"`
	Op    string   `json:"op"`
	Terms []string `json:"terms"`
	URIs  []string `json:"uris"`
}

type suggestResult struct {
	Index       string   `json:"index"`
	Term        string   `json:"term"`
	Distance    int      `json:"distance"`
	Suggestions []string `json:"suggestions"`
}

type indexesResult struct {
	Indexes []index.Stats `json:"indexes"`
}

type placesResult struct {
	URIs []string `json:"uris"`
}

type forgetResult struct {
	PID       string `json:"pid"`
	Forgotten bool   `json:"forgotten"`
}

type nearestResult struct {
	URI        string  `json:"uri"`
	Title      string  `json:"title"`
	DistanceKm float64 `json:"distance_km"`
}

type searchResult struct {
	Query gazetteer.Query       `json:"query"`
	Hits  []gazetteer.SearchHit `json:"hits"`
}

type errorResult struct {
	Message string `json:"message"`
}
