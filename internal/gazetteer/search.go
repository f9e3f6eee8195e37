package gazetteer

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"

	"pleiades-api/internal/index"
	"pleiades-api/internal/metrics"
)

// SearchPath 为站点检索接口（RSS 1.0 输出）
const SearchPath = "/search_rss"

// 文档注释：站点检索条件
// 背景：对应 search_rss 的目录查询参数，只检索已发布的 Place。
// 约束：至少给出一项条件；FeatureTypes 之间为 or，Tags 之间按 TagOperator 组合（缺省 or）。
type Query struct {
	Text         string         `json:"text,omitempty"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	FeatureTypes []string       `json:"feature_types,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	TagOperator  index.Operator `json:"tag_op,omitempty"`
}

// SearchHit 为一条检索结果；URI 已按本地规则规整
type SearchHit struct {
	ID      string `json:"id"`
	URI     string `json:"uri"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

func (q Query) empty() bool {
	return strings.TrimSpace(q.Text) == "" && strings.TrimSpace(q.Title) == "" &&
		strings.TrimSpace(q.Description) == "" && len(nonBlank(q.FeatureTypes)) == 0 && len(nonBlank(q.Tags)) == 0
}

// values 生成查询参数；url.Values.Encode 按键排序，同一查询得到同一缓存键
func (q Query) values() (url.Values, error) {
	if q.empty() {
		return nil, errors.Wrap(index.ErrInvalidArgument, "empty search query")
	}
	v := url.Values{}
	v.Set("portal_type", "Place")
	v.Set("review_state", "published")
	if s := strings.TrimSpace(q.Text); s != "" {
		v.Set("SearchableText", s)
	}
	if s := strings.TrimSpace(q.Title); s != "" {
		v.Set("Title", s)
	}
	if s := strings.TrimSpace(q.Description); s != "" {
		v.Set("Description", s)
	}
	for _, ft := range nonBlank(q.FeatureTypes) {
		v.Add("getFeatureType", ft)
	}
	if tags := nonBlank(q.Tags); len(tags) > 0 {
		op := q.TagOperator
		if op == "" {
			op = index.OpOr
		}
		if _, err := index.ParseOperator(string(op)); err != nil {
			return nil, err
		}
		for _, t := range tags {
			v.Add("Subject", t)
		}
		v.Set("Subject_operator", string(op))
	}
	return v, nil
}

// Search 通过同一 HTTP 协作层查询站点检索接口；响应走 GET 缓存并遵从 robots.txt
// 约束：不抓取也不缓存命中的地名记录；非本站地名链接被跳过；结果保持站点排序并按 URI 去重。
func (g *Gazetteer) Search(ctx context.Context, q Query) ([]SearchHit, error) {
	v, err := q.values()
	if err != nil {
		return nil, err
	}
	endpoint := g.base.String() + SearchPath + "?" + v.Encode()
	r, err := g.web.Get(ctx, endpoint)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		g.l.Error("search_error", "uri", endpoint, "err", err)
		return nil, remoteError(endpoint, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(r.Body))
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("malformed").Inc()
		g.l.Error("search_decode_error", "uri", endpoint, "err", err)
		return nil, errors.Wrapf(ErrMalformedSearchResults, "%s: %v", endpoint, err)
	}
	hits := make([]SearchHit, 0, len(feed.Items))
	seen := make(map[string]struct{}, len(feed.Items))
	for _, it := range feed.Items {
		uri, err := g.candidateURI(strings.TrimSpace(it.Link))
		if err != nil {
			g.l.Debug("search_hit_skipped", "link", it.Link, "err", err)
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		hits = append(hits, SearchHit{
			ID:      uri[strings.LastIndexByte(uri, '/')+1:],
			URI:     uri,
			Title:   strings.TrimSpace(it.Title),
			Summary: strings.TrimSpace(it.Description),
		})
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	g.l.Info("search_done", "hits", len(hits), "items", len(feed.Items), "cached_response", r.Cached)
	return hits, nil
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
