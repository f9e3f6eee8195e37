// 包 cache：远端响应缓存；内存 LRU、文件目录与 Redis 三种后端，可按优先级串联
package cache

import (
	"context"
	"net/http"
	"time"
)

// Entry 为一次 GET 成功响应的缓存形态
type Entry struct {
	Status  int         `json:"status"`
	URL     string      `json:"url"`
	Header  http.Header `json:"header,omitempty"`
	Body    []byte      `json:"body"`
	Expires time.Time   `json:"expires"`
}

// Expired 报告条目在 now 时刻是否过期；零值 Expires 视为永不过期
func (e Entry) Expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}

// 文档注释：缓存后端契约
// 约束：Get 未命中返回 ok=false 且 err 为 nil；过期条目视为未命中；ttl<=0 表示不写入
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key 由方法与 URL 组成缓存键
func Key(method, url string) string { return method + " " + url }
