// 包 gazetteer：地名站点客户端门面；负责标识解析、地名记录拉取与进程内缓存，并在每次拉取后同步全部已注册索引
package gazetteer

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"pleiades-api/internal/index"
	"pleiades-api/internal/logger"
	"pleiades-api/internal/metrics"
	"pleiades-api/internal/nearby"
	"pleiades-api/internal/place"
	"pleiades-api/internal/webi"
	"pleiades-api/internal/webi/cache"
)

// 文档注释：地名站点客户端
// 背景：地名记录按规范 URI 缓存于进程内，不设过期；reload 强制重新拉取并重建索引。
// 约束：places 与 indexes 由 mu 保护；同一 URI 的并发拉取经 singleflight 合并为一次网络请求。
type Gazetteer struct {
	base *url.URL
	web  *webi.Client
	l    *slog.Logger

	mu      sync.RWMutex
	places  map[string]*place.Place
	indexes map[string]*index.Index
	order   []string
	// near 为 places 代表点的最近邻树，places 变化后置 nil 并在下次查询时重建
	near *nearby.Tree

	flights singleflight.Group
}

// New 校验配置并构建客户端；默认注册 titles 索引
func New(opts ...Option) (*Gazetteer, error) {
	s := defaults()
	for _, o := range opts {
		o(s)
	}
	l := s.l
	if l == nil {
		l = logger.L()
	}
	base, err := url.Parse(s.baseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, errors.Wrapf(ErrInvalidConfig, "base url %q", s.baseURL)
	}
	headers, err := validateHeaders(l, s.headers)
	if err != nil {
		return nil, err
	}
	ua, err := validateUserAgent(l, s.userAgent, headers)
	if err != nil {
		return nil, err
	}
	headers.Set("User-Agent", ua)

	var stores []cache.Store
	if s.memEntries > 0 {
		stores = append(stores, cache.NewMemory(s.memEntries))
	}
	if s.cacheDir != "" {
		fs, err := cache.NewFile(s.cacheDir)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
		stores = append(stores, fs)
	}
	if s.rc != nil {
		stores = append(stores, cache.NewRedis(s.rc, ""))
	}
	var store cache.Store
	if len(stores) > 0 {
		store = cache.NewChain(stores...)
	}

	g := &Gazetteer{
		base: base,
		web: webi.New(webi.Options{
			Headers:          headers,
			RespectRobotsTxt: s.respectRobots,
			CacheControl:     s.cacheControl,
			ExpireAfter:      s.expireAfter,
			Store:            store,
			HTTPClient:       s.hc,
			Logger:           l,
		}),
		l:       l,
		places:  make(map[string]*place.Place),
		indexes: make(map[string]*index.Index),
	}
	if err := g.AddIndex(TitlesIndex, index.SelectTitle); err != nil {
		return nil, err
	}
	for _, spec := range s.indexes {
		if err := g.AddIndex(spec.name, spec.sel); err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
	}
	l.Debug("gazetteer_init", "base", base.String(), "user_agent", ua,
		"robots", s.respectRobots, "cache_dir", s.cacheDir, "redis", s.rc != nil, "indexes", g.IndexNames())
	return g, nil
}

// BaseURL 返回站点根地址
func (g *Gazetteer) BaseURL() string { return g.base.String() }

// UserAgent 返回生效的 User-Agent
func (g *Gazetteer) UserAgent() string { return g.web.UserAgent() }

// GetPlace 返回标识对应的地名记录
// 背景：每次调用都会解析标识（一次 HEAD）；命中缓存且未要求 reload 时不再拉取载荷。
// 异常：拉取失败时缓存与索引保持原状；载荷已入缓存但索引失败时返回 UnsupportedAttributeShapeError。
func (g *Gazetteer) GetPlace(ctx context.Context, pid string, reload bool) (*place.Place, error) {
	uri, err := g.Resolve(ctx, pid)
	if err != nil {
		return nil, err
	}
	if !reload {
		if p, ok := g.cached(uri); ok {
			metrics.PlaceCacheHitsTotal.Inc()
			g.l.Debug("place_cache_hit", "uri", uri)
			return p, nil
		}
	}
	key := uri
	if reload {
		key = "reload " + uri
	}
	v, err, _ := g.flights.Do(key, func() (any, error) {
		return g.load(ctx, uri, reload)
	})
	if err != nil {
		return nil, err
	}
	return v.(*place.Place), nil
}

func (g *Gazetteer) cached(uri string) (*place.Place, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.places[uri]
	return p, ok
}

func (g *Gazetteer) load(ctx context.Context, uri string, reload bool) (*place.Place, error) {
	fetch := g.web.Get
	if reload {
		fetch = g.web.Refresh
	} else if p, ok := g.cached(uri); ok {
		return p, nil
	}
	r, err := fetch(ctx, uri+"/json")
	if err != nil {
		metrics.PlaceFetchTotal.WithLabelValues("error").Inc()
		g.l.Error("place_fetch_error", "uri", uri, "err", err)
		return nil, remoteError(uri, err)
	}
	fresh, err := place.FromJSON(uri, r.Body)
	if err != nil {
		metrics.PlaceFetchTotal.WithLabelValues("malformed").Inc()
		g.l.Error("place_decode_error", "uri", uri, "err", err)
		return nil, err
	}
	metrics.PlaceFetchTotal.WithLabelValues("ok").Inc()
	if fresh.URI() != uri {
		g.l.Debug("place_uri_differs", "requested", uri, "payload", fresh.URI())
	}

	g.mu.Lock()
	p, had := g.places[uri]
	var staleURI string
	if had {
		if old := p.URI(); old != fresh.URI() {
			staleURI = old
		}
		p.Replace(fresh)
	} else {
		p = fresh
		g.places[uri] = p
	}
	g.near = nil
	g.mu.Unlock()

	if staleURI != "" {
		for _, idx := range g.indexList() {
			idx.RemoveURI(staleURI)
		}
	}
	g.l.Info("place_loaded", "uri", p.URI(), "title", p.Title(), "reload", reload, "cached_response", r.Cached)
	if err := g.Reindex(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Reindex 将 p 推送到每个已注册索引；全部索引都会被尝试，返回首个错误
func (g *Gazetteer) Reindex(p *place.Place) error {
	var first error
	for _, idx := range g.indexList() {
		if err := idx.Update(p); err != nil {
			metrics.IndexUpdatesTotal.WithLabelValues(idx.Name(), "error").Inc()
			g.l.Error("index_update_error", "index", idx.Name(), "uri", p.URI(), "err", err)
			if first == nil {
				first = err
			}
			continue
		}
		metrics.IndexUpdatesTotal.WithLabelValues(idx.Name(), "ok").Inc()
	}
	return first
}

// Forget 从缓存与全部索引中移除地名记录（如上游删除或下线）；不发起网络请求
// 约束：pid 需为规范 URI 或其对应的数字 ID；返回是否确有缓存条目被移除
func (g *Gazetteer) Forget(_ context.Context, pid string) (bool, error) {
	uri, err := g.candidateURI(pid)
	if err != nil {
		return false, err
	}
	g.mu.Lock()
	key, p := uri, g.places[uri]
	if p == nil {
		for k, c := range g.places {
			if c.URI() == uri {
				key, p = k, c
				break
			}
		}
	}
	if p != nil {
		delete(g.places, key)
		g.near = nil
	}
	g.mu.Unlock()

	for _, idx := range g.indexList() {
		idx.RemoveURI(uri)
		if p != nil {
			idx.Remove(p)
		}
	}
	g.l.Info("place_forgotten", "uri", uri, "cached", p != nil)
	return p != nil, nil
}

// Places 返回当前缓存的全部地名记录，按 URI 排序
func (g *Gazetteer) Places() []*place.Place {
	g.mu.RLock()
	out := make([]*place.Place, 0, len(g.places))
	for _, p := range g.places {
		out = append(out, p)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URI() < out[j].URI() })
	return out
}

// AddIndex 注册新索引并对已缓存记录建立索引；同名索引已存在时返回 ErrInvalidArgument
func (g *Gazetteer) AddIndex(name string, sel index.Selector) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Wrap(index.ErrInvalidArgument, "index name is empty")
	}
	idx := index.New(name, sel)
	g.mu.Lock()
	if _, ok := g.indexes[name]; ok {
		g.mu.Unlock()
		return errors.Wrapf(index.ErrInvalidArgument, "index %q already registered", name)
	}
	g.indexes[name] = idx
	g.order = append(g.order, name)
	places := make([]*place.Place, 0, len(g.places))
	for _, p := range g.places {
		places = append(places, p)
	}
	g.mu.Unlock()

	var first error
	for _, p := range places {
		if err := idx.Update(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Index 按名称返回索引
func (g *Gazetteer) Index(name string) (*index.Index, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.indexes[name]
	return idx, ok
}

// IndexNames 按注册顺序返回索引名
func (g *Gazetteer) IndexNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

func (g *Gazetteer) indexList() []*index.Index {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*index.Index, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.indexes[n])
	}
	return out
}

func (g *Gazetteer) mustIndex(name string) (*index.Index, error) {
	idx, ok := g.Index(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownIndex, "%q", name)
	}
	return idx, nil
}

// LookupTerm 在指定索引中做单词项精确查找
func (g *Gazetteer) LookupTerm(name, term string) ([]string, error) {
	idx, err := g.mustIndex(name)
	if err != nil {
		return nil, err
	}
	return idx.LookupTerm(term), nil
}

// Lookup 在指定索引中做多词项 and/or 组合查找
func (g *Gazetteer) Lookup(name string, terms []string, op index.Operator) ([]string, error) {
	idx, err := g.mustIndex(name)
	if err != nil {
		return nil, err
	}
	return idx.LookupTerms(terms, op)
}

// Suggest 返回指定索引中与 term 编辑距离不超过 maxDist 的词项
func (g *Gazetteer) Suggest(name, term string, maxDist int) ([]string, error) {
	idx, err := g.mustIndex(name)
	if err != nil {
		return nil, err
	}
	return idx.Suggest(term, maxDist)
}

// Nearest 返回代表点距 (lat, lon) 最近的已缓存地名；maxKm>0 时超出半径视为未命中
// 约束：只考虑已缓存且带有效 reprPoint 的记录，不发起网络请求
func (g *Gazetteer) Nearest(lat, lon, maxKm float64) (*place.Place, float64, bool) {
	g.mu.Lock()
	if g.near == nil {
		pts := make([]nearby.Point, 0, len(g.places))
		for _, p := range g.places {
			if plon, plat, ok := p.ReprPoint(); ok {
				pts = append(pts, nearby.Point{URI: p.URI(), Lat: plat, Lon: plon})
			}
		}
		g.near = nearby.Build(pts)
		g.l.Debug("nearby_rebuilt", "points", len(pts))
	}
	tree := g.near
	g.mu.Unlock()

	pt, d, ok := tree.Nearest(lat, lon)
	if !ok || (maxKm > 0 && d > maxKm) {
		return nil, 0, false
	}
	for _, p := range g.Places() {
		if p.URI() == pt.URI {
			return p, d, true
		}
	}
	return nil, 0, false
}

func remoteError(uri string, err error) error {
	var se *webi.StatusError
	if errors.As(err, &se) {
		return &RemoteResourceError{URI: uri, Status: se.Status, Err: err}
	}
	return errors.Wrapf(err, "remote resource %s", uri)
}
