package middleware

import (
	"math"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/time/rate"

	"pleiades-api/internal/logger"
)

// 文档注释：令牌桶限流中间件（每秒）
// 背景：API 的缓存未命中会转化为对地名站点的请求；在入口限速以免放大到上游。
// 约束：不做队列排队，仅丢弃并返回 429；桶容量等于每秒速率。
type TokenBucket struct {
	lim *rate.Limiter
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 1
	}
	return &TokenBucket{lim: rate.NewLimiter(rate.Limit(qps), qps)}
}

func (tb *TokenBucket) allow() bool { return tb.lim.Allow() }

// Wrap 为 next 施加限速；被拒绝的请求带 Retry-After 头
func (tb *TokenBucket) Wrap(next http.Handler) http.Handler {
	retry := strconv.Itoa(int(math.Ceil(1 / float64(tb.lim.Limit()))))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
			w.Header().Set("Retry-After", retry)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Wrap 按环境变量 RATE_LIMIT_ENABLED / RATE_LIMIT_QPS 决定是否限速；未开启时原样返回 next
func Wrap(next http.Handler) http.Handler {
	if os.Getenv("RATE_LIMIT_ENABLED") != "true" {
		return next
	}
	qps := 200
	if s := os.Getenv("RATE_LIMIT_QPS"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			qps = n
		}
	}
	logger.L().Info("rate_limit_enabled", "qps", qps)
	return NewTokenBucket(qps).Wrap(next)
}
