package cache

import (
	"context"
	"time"
)

// 文档注释：多级缓存串联
// 背景：按优先级依次查询（通常 内存 -> 文件/Redis）；后级命中时回填前级，剩余 TTL 沿用原条目。
// 约束：写入与删除对所有层级生效；nil 层级被忽略；任一层级出错时返回首个错误但继续处理其余层级。
type Chain struct {
	list []Store
}

func NewChain(list ...Store) *Chain {
	c := &Chain{}
	for _, s := range list {
		if s != nil {
			c.list = append(c.list, s)
		}
	}
	return c
}

func (c *Chain) Get(ctx context.Context, k string) (Entry, bool, error) {
	var firstErr error
	for i, s := range c.list {
		e, ok, err := s.Get(ctx, k)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		if ttl := time.Until(e.Expires); ttl > 0 {
			for _, front := range c.list[:i] {
				_ = front.Set(ctx, k, e, ttl)
			}
		}
		return e, true, nil
	}
	return Entry{}, false, firstErr
}

func (c *Chain) Set(ctx context.Context, k string, e Entry, ttl time.Duration) error {
	var firstErr error
	for _, s := range c.list {
		if err := s.Set(ctx, k, e, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Chain) Delete(ctx context.Context, k string) error {
	var firstErr error
	for _, s := range c.list {
		if err := s.Delete(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
