// 包 place：单条地名记录的值对象，包装远端返回的 JSON 载荷及其派生字段（标题、规范 URI）
package place

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrMalformedPayload 表示载荷不是 JSON 对象
var ErrMalformedPayload = errors.New("place payload is not a JSON object")

// 文档注释：地名记录
// 背景：uri/title/data 三者只在一次成功拉取后一起写入；未拉取前视为未加载（data 为空）。
// 约束：重新拉取通过 Replace 整体替换三个字段，读方不会看到半更新状态。
type Place struct {
	mu    sync.RWMutex
	uri   string
	title string
	data  map[string]any
}

// New 返回一个未加载的空记录
func New() *Place { return &Place{} }

// FromJSON 解析 <place-uri>/json 的响应体
// 背景：载荷中的 uri 字段为权威标识；缺失时回退为请求 URI。
func FromJSON(requestURI string, body []byte) (*Place, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrapf(ErrMalformedPayload, "%s: %v", requestURI, err)
	}
	if data == nil {
		return nil, errors.Wrap(ErrMalformedPayload, requestURI)
	}
	p := &Place{uri: requestURI, data: data}
	if s, ok := data["uri"].(string); ok && strings.TrimSpace(s) != "" {
		p.uri = strings.TrimSpace(s)
	}
	if s, ok := data["title"].(string); ok {
		p.title = s
	}
	return p, nil
}

func (p *Place) URI() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uri
}

func (p *Place) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.title
}

// Loaded 报告记录是否已由一次成功拉取填充
func (p *Place) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data != nil
}

// Data 返回载荷的深拷贝；未加载时为 nil
func (p *Place) Data() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.data == nil {
		return nil
	}
	return copyValue(p.data).(map[string]any)
}

// Attr 返回载荷顶层字段的拷贝
func (p *Place) Attr(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[key]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Replace 以 other 的内容整体替换当前记录
func (p *Place) Replace(other *Place) {
	if other == p {
		return
	}
	other.mu.RLock()
	uri, title, data := other.uri, other.title, other.data
	other.mu.RUnlock()
	p.mu.Lock()
	p.uri, p.title, p.data = uri, title, data
	p.mu.Unlock()
}

// ID 返回载荷中的 id 字段（Pleiades 以字符串给出）
func (p *Place) ID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, _ := p.data["id"].(string)
	return s
}

// PlaceTypes 返回 placeTypes 中的字符串项，其他类型项被忽略
func (p *Place) PlaceTypes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	arr, _ := p.data["placeTypes"].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ReprPoint 返回代表点坐标；Pleiades 按 [lon, lat] 顺序给出
func (p *Place) ReprPoint() (lon, lat float64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return parsePoint(p.data["reprPoint"])
}

// Names 返回全部罗马化名称；单个条目内以逗号分隔的异体分别列出，按出现顺序去重
func (p *Place) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	arr, _ := p.data["names"].([]any)
	seen := make(map[string]bool)
	out := make([]string, 0, len(arr))
	for _, n := range arr {
		m, ok := n.(map[string]any)
		if !ok {
			continue
		}
		r, _ := m["romanized"].(string)
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// MarshalJSON 输出 {"uri","title","data"}
func (p *Place) MarshalJSON() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return json.Marshal(struct {
		URI   string         `json:"uri"`
		Title string         `json:"title"`
		Data  map[string]any `json:"data"`
	}{p.uri, p.title, p.data})
}

// ParsePoint 将 [lon, lat] 形式的 JSON 值解析为坐标
func ParsePoint(v any) (lon, lat float64, ok bool) { return parsePoint(v) }

func parsePoint(v any) (float64, float64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return 0, 0, false
	}
	lon, ok1 := arr[0].(float64)
	lat, ok2 := arr[1].(float64)
	if !ok1 || !ok2 || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lon, lat, true
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = copyValue(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = copyValue(e)
		}
		return s
	}
	return v
}
