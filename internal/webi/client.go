// 包 webi：面向远端地名站点的 HTTP 协作层；负责请求头策略、robots.txt 遵从、抓取限速与 GET 响应缓存
package webi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pleiades-api/internal/logger"
	"pleiades-api/internal/metrics"
	"pleiades-api/internal/webi/cache"
)

// ErrDisallowed 表示 robots.txt 禁止访问该路径
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError 表示终端响应为非 2xx
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

// Response 为一次请求的结果；URL 为跟随重定向后的最终地址
type Response struct {
	Status int
	URL    string
	Header http.Header
	Body   []byte
	Cached bool
}

// 文档注释：客户端配置
// 约束：Headers 需已由调用方校验（仅 From/Referer/User-Agent）；Store 为空时不缓存；ExpireAfter<=0 时不写缓存。
type Options struct {
	Headers          http.Header
	RespectRobotsTxt bool
	CacheControl     bool
	ExpireAfter      time.Duration
	Store            cache.Store
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

type Client struct {
	hc           *http.Client
	headers      http.Header
	robots       bool
	cacheControl bool
	expire       time.Duration
	store        cache.Store
	l            *slog.Logger

	mu    sync.Mutex
	hosts map[string]*hostPolicy
}

func New(o Options) *Client {
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	l := o.Logger
	if l == nil {
		l = logger.L()
	}
	return &Client{
		hc:           hc,
		headers:      o.Headers.Clone(),
		robots:       o.RespectRobotsTxt,
		cacheControl: o.CacheControl,
		expire:       o.ExpireAfter,
		store:        o.Store,
		l:            l,
		hosts:        make(map[string]*hostPolicy),
	}
}

// UserAgent 返回实际发送的 User-Agent
func (c *Client) UserAgent() string { return c.headers.Get("User-Agent") }

// Head 发送 HEAD 并跟随重定向；不经过响应缓存
func (c *Client) Head(ctx context.Context, uri string) (*Response, error) {
	return c.do(ctx, http.MethodHead, uri)
}

// Get 优先读取响应缓存，未命中时请求远端并写回
func (c *Client) Get(ctx context.Context, uri string) (*Response, error) {
	if c.store != nil {
		e, ok, err := c.store.Get(ctx, cache.Key(http.MethodGet, uri))
		if err != nil {
			c.l.Warn("response_cache_read_error", "uri", uri, "err", err)
		}
		if ok {
			metrics.ResponseCacheHitsTotal.Inc()
			c.l.Debug("response_cache_hit", "uri", uri)
			return &Response{Status: e.Status, URL: e.URL, Header: e.Header, Body: e.Body, Cached: true}, nil
		}
		metrics.ResponseCacheMissesTotal.Inc()
	}
	return c.Refresh(ctx, uri)
}

// Refresh 跳过缓存读取直接请求远端，成功后写回缓存
func (c *Client) Refresh(ctx context.Context, uri string) (*Response, error) {
	r, err := c.do(ctx, http.MethodGet, uri)
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if ttl := c.ttlFor(r.Header); ttl > 0 {
			e := cache.Entry{Status: r.Status, URL: r.URL, Header: r.Header, Body: r.Body}
			if err := c.store.Set(ctx, cache.Key(http.MethodGet, uri), e, ttl); err != nil {
				c.l.Warn("response_cache_write_error", "uri", uri, "err", err)
			}
		}
	}
	return r, nil
}

// ttlFor：开启 cache-control 时以响应头为准（no-store/no-cache 不缓存，max-age 覆盖默认），否则使用固定过期时间
func (c *Client) ttlFor(h http.Header) time.Duration {
	if !c.cacheControl {
		return c.expire
	}
	ttl := c.expire
	for _, d := range strings.Split(h.Get("Cache-Control"), ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		switch {
		case d == "no-store" || d == "no-cache" || d == "private":
			return 0
		case strings.HasPrefix(d, "max-age="):
			if n, err := strconv.Atoi(strings.TrimPrefix(d, "max-age=")); err == nil {
				ttl = time.Duration(n) * time.Second
			}
		}
	}
	return ttl
}

func (c *Client) do(ctx context.Context, method, uri string) (*Response, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, errors.Errorf("bad request uri %q", uri)
	}
	if err := c.admit(ctx, u); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	t0 := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.HTTPErrorsTotal.WithLabelValues(method).Inc()
		c.l.Error("http_request_error", "method", method, "uri", uri, "err", err)
		return nil, errors.Wrapf(err, "%s %s", method, uri)
	}
	defer resp.Body.Close()
	var body []byte
	if method != http.MethodHead {
		if body, err = io.ReadAll(resp.Body); err != nil {
			metrics.HTTPErrorsTotal.WithLabelValues(method).Inc()
			return nil, errors.Wrapf(err, "read %s", uri)
		}
	}
	dur := time.Since(t0).Milliseconds()
	final := resp.Request.URL.String()
	metrics.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.HTTPDurationMs.WithLabelValues(method).Observe(float64(dur))
	c.l.Debug("http_response", "method", method, "uri", uri, "final", final, "status", resp.StatusCode, "duration_ms", dur)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: final, Status: resp.StatusCode}
	}
	return &Response{Status: resp.StatusCode, URL: final, Header: resp.Header, Body: body}, nil
}
