// 包 index：地名记录的内存倒排索引；正向 term→URI 与反向 URI→term 始终互逆
package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/pkg/errors"

	"pleiades-api/internal/place"
)

// ErrInvalidArgument 表示调用参数不合法（未知运算符、负编辑距离等）
var ErrInvalidArgument = errors.New("invalid argument")

// 文档注释：属性值无法展开为 term
// 约束：返回时该地名的旧条目已被移除；Missing 区分“缺少属性”与“属性为 null 或形状不符”。
type UnsupportedAttributeShapeError struct {
	Index    string
	Selector Selector
	URI      string
	Value    any
	Missing  bool
}

func (e *UnsupportedAttributeShapeError) Error() string {
	if e.Missing {
		return fmt.Sprintf("index %s: place %s has no %s attribute", e.Index, e.URI, e.Selector)
	}
	if e.Value == nil {
		return fmt.Sprintf("index %s: place %s has a null %s attribute", e.Index, e.URI, e.Selector)
	}
	return fmt.Sprintf("index %s: unsupported %s attribute shape %T for place %s", e.Index, e.Selector, e.Value, e.URI)
}

type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// ParseOperator 仅接受 "and" 与 "or"
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if op != OpAnd && op != OpOr {
		return "", errors.Wrapf(ErrInvalidArgument, "expected operator %q or %q, got %q", OpAnd, OpOr, s)
	}
	return op, nil
}

type set map[string]struct{}

type Index struct {
	name     string
	selector Selector

	mu      sync.RWMutex
	forward map[string]set
	reverse map[string]set
}

func New(name string, sel Selector) *Index {
	return &Index{
		name:     name,
		selector: sel,
		forward:  make(map[string]set),
		reverse:  make(map[string]set),
	}
}

func (i *Index) Name() string       { return i.name }
func (i *Index) Selector() Selector { return i.selector }

// 文档注释：同步 p 的索引条目
// 约束：先删除该 URI 的全部旧条目再插入当前值，整体处于同一写锁内；属性在锁内读取，
// 并发更新同一地名时后提交者总是反映地名记录的最新内容。重复调用结果不变。
func (i *Index) Update(p *place.Place) error {
	if p == nil || !p.Loaded() {
		return errors.Wrapf(ErrInvalidArgument, "index %s: place is not loaded", i.name)
	}
	ext, ok := extractors[i.selector]
	if !ok {
		return errors.Wrapf(ErrInvalidArgument, "index %s: unknown selector %s", i.name, i.selector)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	uri := p.URI()
	raw, present := ext(p)
	i.removeLocked(uri)
	if !present {
		return &UnsupportedAttributeShapeError{Index: i.name, Selector: i.selector, URI: uri, Missing: true}
	}
	ts, ok := terms(raw)
	if !ok {
		if b, isBad := raw.(badShape); isBad {
			raw = b.v
		}
		return &UnsupportedAttributeShapeError{Index: i.name, Selector: i.selector, URI: uri, Value: raw}
	}
	for _, t := range ts {
		i.insertLocked(t, uri)
	}
	return nil
}

// Remove 删除 p 的全部条目；未收录时无操作
func (i *Index) Remove(p *place.Place) {
	if p == nil {
		return
	}
	i.RemoveURI(p.URI())
}

func (i *Index) RemoveURI(uri string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeLocked(uri)
}

func (i *Index) removeLocked(uri string) {
	ts, ok := i.reverse[uri]
	if !ok {
		return
	}
	for t := range ts {
		us := i.forward[t]
		delete(us, uri)
		if len(us) == 0 {
			delete(i.forward, t)
		}
	}
	delete(i.reverse, uri)
}

func (i *Index) insertLocked(term, uri string) {
	us, ok := i.forward[term]
	if !ok {
		us = make(set)
		i.forward[term] = us
	}
	us[uri] = struct{}{}
	ts, ok := i.reverse[uri]
	if !ok {
		ts = make(set)
		i.reverse[uri] = ts
	}
	ts[term] = struct{}{}
}

// LookupTerm 精确匹配（区分大小写）；未知 term 返回空切片
func (i *Index) LookupTerm(term string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sorted(i.forward[term])
}

// LookupTerms：or 取并集，and 取交集；terms 为空时两者均返回空
func (i *Index) LookupTerms(terms []string, op Operator) ([]string, error) {
	if _, err := ParseOperator(string(op)); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []string{}, nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	acc := make(set)
	for u := range i.forward[terms[0]] {
		acc[u] = struct{}{}
	}
	for _, t := range terms[1:] {
		us := i.forward[t]
		switch op {
		case OpOr:
			for u := range us {
				acc[u] = struct{}{}
			}
		case OpAnd:
			for u := range acc {
				if _, ok := us[u]; !ok {
					delete(acc, u)
				}
			}
		}
	}
	return sorted(acc), nil
}

func (i *Index) Terms(uri string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sorted(i.reverse[uri])
}

// Suggest 返回编辑距离不超过 maxDist 的已收录 term（忽略大小写），距离近者在前
func (i *Index) Suggest(term string, maxDist int) ([]string, error) {
	if maxDist < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "negative distance %d", maxDist)
	}
	q := strings.ToLower(term)
	type hit struct {
		term string
		dist int
	}
	var hits []hit
	i.mu.RLock()
	for t := range i.forward {
		if d := levenshtein.ComputeDistance(q, strings.ToLower(t)); d <= maxDist {
			hits = append(hits, hit{t, d})
		}
	}
	i.mu.RUnlock()
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].dist != hits[b].dist {
			return hits[a].dist < hits[b].dist
		}
		return hits[a].term < hits[b].term
	})
	out := make([]string, len(hits))
	for n, h := range hits {
		out[n] = h.term
	}
	return out, nil
}

// Snapshot 为两张映射的拷贝，值已排序
type Snapshot struct {
	Forward map[string][]string
	Reverse map[string][]string
}

func (i *Index) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s := Snapshot{
		Forward: make(map[string][]string, len(i.forward)),
		Reverse: make(map[string][]string, len(i.reverse)),
	}
	for t, us := range i.forward {
		s.Forward[t] = sorted(us)
	}
	for u, ts := range i.reverse {
		s.Reverse[u] = sorted(ts)
	}
	return s
}

type Stats struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Terms    int    `json:"terms"`
	Places   int    `json:"places"`
}

func (i *Index) Stats() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Stats{Name: i.name, Selector: i.selector.String(), Terms: len(i.forward), Places: len(i.reverse)}
}

func sorted(s set) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
