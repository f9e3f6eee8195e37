// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"pleiades-api/internal/gazetteer"
	"pleiades-api/internal/index"
	"pleiades-api/internal/logger"
	"pleiades-api/internal/place"
	"pleiades-api/internal/webi"
)

// DefaultSuggestDistance 为 /suggest 未指定 dist 时的编辑距离
const DefaultSuggestDistance = 2

// 构建并返回 API 路由：独立 Router 便于在主入口挂载到 API 前缀
func BuildRoutes(g *gazetteer.Gazetteer) http.Handler {
	h := &handlers{g: g}
	r := mux.NewRouter()
	r.Path("/places").Methods(http.MethodGet).HandlerFunc(h.places)
	r.Path("/places/{pid}").Methods(http.MethodGet).HandlerFunc(h.getPlace)
	r.Path("/places/{pid}").Methods(http.MethodDelete).HandlerFunc(h.forget)
	r.Path("/resolve/{pid}").Methods(http.MethodGet).HandlerFunc(h.resolve)
	r.Path("/indexes").Methods(http.MethodGet).HandlerFunc(h.indexes)
	r.Path("/lookup/{index}").Methods(http.MethodGet).HandlerFunc(h.lookup)
	r.Path("/suggest/{index}").Methods(http.MethodGet).HandlerFunc(h.suggest)
	r.Path("/nearest").Methods(http.MethodGet).HandlerFunc(h.nearest)
	r.Path("/search").Methods(http.MethodGet).HandlerFunc(h.search)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

type handlers struct {
	g *gazetteer.Gazetteer
}

// pid 取路径参数；完整 URI 形式的标识可经 ?uri= 传入
func pidOf(r *http.Request) string {
	if u := r.URL.Query().Get("uri"); u != "" {
		return u
	}
	return mux.Vars(r)["pid"]
}

func (h *handlers) places(w http.ResponseWriter, r *http.Request) {
	ps := h.g.Places()
	res := placesResult{URIs: make([]string, 0, len(ps))}
	for _, p := range ps {
		res.URIs = append(res.URIs, p.URI())
	}
	writeResponse(w, http.StatusOK, res)
}

func (h *handlers) getPlace(w http.ResponseWriter, r *http.Request) {
	reload := false
	if s := r.URL.Query().Get("reload"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reload must be a boolean")
			return
		}
		reload = b
	}
	p, err := h.g.GetPlace(r.Context(), pidOf(r), reload)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, p)
}

func (h *handlers) forget(w http.ResponseWriter, r *http.Request) {
	pid := pidOf(r)
	ok, err := h.g.Forget(r.Context(), pid)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, forgetResult{PID: pid, Forgotten: ok})
}

func (h *handlers) resolve(w http.ResponseWriter, r *http.Request) {
	pid := pidOf(r)
	uri, err := h.g.Resolve(r.Context(), pid)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, resolveResult{PID: pid, URI: uri})
}

func (h *handlers) indexes(w http.ResponseWriter, r *http.Request) {
	res := indexesResult{Indexes: []index.Stats{}}
	for _, n := range h.g.IndexNames() {
		if idx, ok := h.g.Index(n); ok {
			res.Indexes = append(res.Indexes, idx.Stats())
		}
	}
	writeResponse(w, http.StatusOK, res)
}

// lookup：单个 term 走精确查找；多个 term 按 op 组合，op 缺省为 and
func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["index"]
	q := r.URL.Query()
	terms := q["term"]
	if len(terms) == 0 {
		writeError(w, http.StatusBadRequest, "at least one term is required")
		return
	}
	opName := strings.ToLower(q.Get("op"))
	if opName == "" {
		opName = string(index.OpAnd)
	}
	op, err := index.ParseOperator(opName)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	var uris []string
	if len(terms) == 1 {
		uris, err = h.g.LookupTerm(name, terms[0])
	} else {
		uris, err = h.g.Lookup(name, terms, op)
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, lookupResult{Index: name, Op: string(op), Terms: terms, URIs: uris})
}

func (h *handlers) suggest(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["index"]
	q := r.URL.Query()
	term := q.Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "term is required")
		return
	}
	dist := DefaultSuggestDistance
	if s := q.Get("dist"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dist must be an integer")
			return
		}
		dist = n
	}
	out, err := h.g.Suggest(name, term, dist)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeResponse(w, http.StatusOK, suggestResult{Index: name, Term: term, Distance: dist, Suggestions: out})
}

// nearest：lat/lon 必填，radius（千米）缺省为不限
func (h *handlers) nearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}
	radius := 0.0
	if s := q.Get("radius"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "radius must be a non-negative number")
			return
		}
		radius = v
	}
	p, d, ok := h.g.Nearest(lat, lon, radius)
	if !ok {
		writeError(w, http.StatusNotFound, "no cached place within range")
		return
	}
	writeResponse(w, http.StatusOK, nearestResult{URI: p.URI(), Title: p.Title(), DistanceKm: d})
}

// search：text/title/description 为单值，type 与 tag 可重复；tag_op 缺省为 or
func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := gazetteer.Query{
		Text:         q.Get("text"),
		Title:        q.Get("title"),
		Description:  q.Get("description"),
		FeatureTypes: q["type"],
		Tags:         q["tag"],
		TagOperator:  index.Operator(strings.ToLower(q.Get("tag_op"))),
	}
	hits, err := h.g.Search(r.Context(), query)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, searchResult{Query: query, Hits: hits})
}

// 文档注释：错误到 HTTP 状态码的映射
// 约束：未知索引须先于参数错误判定（ErrUnknownIndex 同时满足 ErrInvalidArgument）；上游 404 透传，其余上游状态统一 502。
func statusFor(err error) int {
	var iie *gazetteer.InvalidIdentifierError
	var rre *gazetteer.RemoteResourceError
	var use *index.UnsupportedAttributeShapeError
	switch {
	case errors.As(err, &iie):
		return http.StatusBadRequest
	case errors.Is(err, gazetteer.ErrUnknownIndex):
		return http.StatusNotFound
	case errors.Is(err, index.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, webi.ErrDisallowed):
		return http.StatusForbidden
	case errors.As(err, &rre):
		if rre.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, place.ErrMalformedPayload), errors.Is(err, gazetteer.ErrMalformedSearchResults):
		return http.StatusBadGateway
	case errors.As(err, &use):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.L().Error("api_error", "path", r.URL.Path, "status", status, "err", err)
	} else {
		logger.L().Debug("api_rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, err.Error())
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.L().Error("api_encode_error", "err", err)
		writeError(w, http.StatusInternalServerError, "JSON serialization error")
		return
	}
	body = append(body, '\n')
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.Header().Set("content-length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(errorResult{Message: message})
	body = append(body, '\n')
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
