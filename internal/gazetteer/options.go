package gazetteer

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"pleiades-api/internal/index"
	"pleiades-api/internal/version"
)

const (
	DefaultBaseURL          = "https://pleiades.stoa.org"
	DefaultRespectRobotsTxt = true
	DefaultCacheControl     = false
	DefaultExpireAfter      = 24 * time.Hour
	// TitlesIndex 为默认注册的标题索引名
	TitlesIndex = "titles"
)

// DefaultUserAgent 由版本号生成；使用时会记录警告，建议调用方自定义
var DefaultUserAgent = "PleiadesGo/" + version.Version

// allowedHeaders 为允许自定义的请求头，其余键被丢弃并记录日志
var allowedHeaders = map[string]bool{"From": true, "Referer": true, "User-Agent": true}

// DefaultCacheDir 返回用户缓存目录下的响应缓存路径
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pleiades-api", "webi_cache")
}

type settings struct {
	baseURL       string
	userAgent     string
	headers       map[string]string
	respectRobots bool
	cacheControl  bool
	expireAfter   time.Duration
	cacheDir      string
	memEntries    int
	rc            *redis.Client
	hc            *http.Client
	l             *slog.Logger
	indexes       []indexSpec
}

type indexSpec struct {
	name string
	sel  index.Selector
}

func defaults() *settings {
	return &settings{
		baseURL:       DefaultBaseURL,
		userAgent:     DefaultUserAgent,
		respectRobots: DefaultRespectRobotsTxt,
		cacheControl:  DefaultCacheControl,
		expireAfter:   DefaultExpireAfter,
		cacheDir:      DefaultCacheDir(),
		memEntries:    512,
	}
}

// Option 配置 Gazetteer；仅在构造时生效
type Option func(*settings)

// WithBaseURL 指定地名站点根地址（scheme://host[:port]）
func WithBaseURL(u string) Option { return func(s *settings) { s.baseURL = strings.TrimRight(u, "/") } }

func WithUserAgent(ua string) Option { return func(s *settings) { s.userAgent = ua } }

// WithHeaders 设置自定义请求头；仅 From、Referer、User-Agent 生效
func WithHeaders(h map[string]string) Option {
	return func(s *settings) {
		s.headers = make(map[string]string, len(h))
		for k, v := range h {
			s.headers[k] = v
		}
	}
}

func WithRespectRobotsTxt(b bool) Option { return func(s *settings) { s.respectRobots = b } }

// WithCacheControl 开启后按响应 Cache-Control 决定是否缓存及缓存时长
func WithCacheControl(b bool) Option { return func(s *settings) { s.cacheControl = b } }

func WithExpireAfter(d time.Duration) Option { return func(s *settings) { s.expireAfter = d } }

// WithCacheDir 指定响应缓存目录；空字符串关闭文件缓存
func WithCacheDir(dir string) Option { return func(s *settings) { s.cacheDir = dir } }

// WithMemoryEntries 设置内存响应缓存容量；0 关闭内存缓存
func WithMemoryEntries(n int) Option { return func(s *settings) { s.memEntries = n } }

// WithRedis 以 Redis 作为共享响应缓存
func WithRedis(rc *redis.Client) Option { return func(s *settings) { s.rc = rc } }

func WithHTTPClient(hc *http.Client) Option { return func(s *settings) { s.hc = hc } }

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.l = l } }

// WithIndex 额外注册一个索引；标题索引总是存在
func WithIndex(name string, sel index.Selector) Option {
	return func(s *settings) { s.indexes = append(s.indexes, indexSpec{name: name, sel: sel}) }
}

// 文档注释：校验自定义请求头
// 背景：只转发站点运维需要的标识类请求头，避免调用方误传鉴权或缓存控制类头部。
// 约束：不支持的键记录错误日志后丢弃，不中断构造；值去除首尾空白后为空则返回 ErrInvalidConfig。
func validateHeaders(l *slog.Logger, in map[string]string) (http.Header, error) {
	out := http.Header{}
	for k, v := range in {
		ck := http.CanonicalHeaderKey(strings.TrimSpace(k))
		if !allowedHeaders[ck] {
			l.Error("unsupported_header_suppressed", "header", k)
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, errors.Wrapf(ErrInvalidConfig, "custom header %q has an empty value", k)
		}
		out.Set(ck, v)
	}
	return out, nil
}

// validateUserAgent：显式传入的 User-Agent 优先；未传或为默认值时采用自定义请求头中的 User-Agent
func validateUserAgent(l *slog.Logger, ua string, h http.Header) (string, error) {
	if ua == "" || ua == DefaultUserAgent {
		if v := h.Get("User-Agent"); v != "" {
			ua = v
		}
	}
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return "", errors.Wrap(ErrInvalidConfig, "user agent is empty")
	}
	if ua == DefaultUserAgent {
		l.Warn("default_user_agent",
			"user_agent", ua,
			"hint", "define a unique user agent for requests to the Pleiades gazetteer")
	}
	return ua, nil
}
