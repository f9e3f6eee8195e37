package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// 文档注释：进程内 LRU 缓存（带 TTL）
// 背景：同一进程内重复 GET 直接命中内存，避免磁盘或网络往返。
// 约束：容量按条目数计；超出时淘汰最久未用条目。
type MemoryStore struct {
	mu   sync.Mutex
	cap  int
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type memItem struct {
	k string
	v Entry
}

func NewMemory(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 512
	}
	return &MemoryStore{cap: capacity, lst: list.New(), dict: make(map[string]*list.Element), now: time.Now}
}

func (c *MemoryStore) Get(_ context.Context, k string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return Entry{}, false, nil
	}
	it := e.Value.(memItem)
	if it.v.Expired(c.now()) {
		c.lst.Remove(e)
		delete(c.dict, k)
		return Entry{}, false, nil
	}
	c.lst.MoveToFront(e)
	return it.v, true, nil
}

func (c *MemoryStore) Set(_ context.Context, k string, v Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	v.Expires = c.now().Add(ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = memItem{k: k, v: v}
		c.lst.MoveToFront(e)
		return nil
	}
	c.dict[k] = c.lst.PushFront(memItem{k: k, v: v})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(memItem).k)
		c.lst.Remove(back)
	}
	return nil
}

func (c *MemoryStore) Delete(_ context.Context, k string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return nil
}

// Len 返回当前条目数（含尚未被访问淘汰的过期条目）
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
