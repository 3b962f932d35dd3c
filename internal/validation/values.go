package validation

import (
	"encoding/json"
	"fmt"
	"math"

	"plant-config/internal/document"
)

// 通用配置树的取值辅助。JSON 数字解析为 float64，YAML 整数解析为 int，这里统一处理。

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case document.Tree:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asNumber(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// has 字段存在且不为 null
func has(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// refString 读取非空字符串形式的 id 或引用
func refString(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok && s != ""
}

// listField 读取可选的列表字段，字段存在但不是列表时 ok 为 false
func listField(m map[string]any, key string) ([]any, bool) {
	if !has(m, key) {
		return nil, true
	}
	return asList(m[key])
}

// idSet 有序的 id 集合
type idSet struct {
	order []string
	set   map[string]bool
}

func newIDSet() *idSet {
	return &idSet{set: make(map[string]bool)}
}

func (s *idSet) add(id string) bool {
	if s.set[id] {
		return false
	}
	s.set[id] = true
	s.order = append(s.order, id)
	return true
}

func (s *idSet) has(id string) bool {
	return s.set[id]
}
