package web

import (
	"sort"
	"sync"
	"time"

	"plant-config/internal/model"
)

// LineState 用于 UI 展示的产线摘要
type LineState struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Stats     *model.Statistics `json:"stats,omitempty"`
	Valid     *bool             `json:"valid,omitempty"` // 最近一次校验结论
	Errors    int               `json:"errors"`
	Warnings  int               `json:"warnings"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GlobalState 全部产线的快照
type GlobalState struct {
	Lines []LineState `json:"lines"`
}

// LineTracker 追踪各产线的配置摘要，并通过 Hub 通知前端。
// 事件处理器异步执行，每条产线记录最后应用的事件序号，较旧的事件直接丢弃。
type LineTracker struct {
	mu    sync.RWMutex
	lines map[string]LineState
	seen  map[string]uint64 // 产线删除后仍保留，挡住迟到的导入事件
	hub   *Hub
}

func NewLineTracker(hub *Hub) *LineTracker {
	return &LineTracker{lines: make(map[string]LineState), seen: make(map[string]uint64), hub: hub}
}

// advance 调用方持有写锁；seq 不比已应用的新时返回 false
func (t *LineTracker) advance(id string, seq uint64) bool {
	if seq <= t.seen[id] {
		return false
	}
	t.seen[id] = seq
	return true
}

// Seed 启动时用已存在的产线初始化
func (t *LineTracker) Seed(lines []model.ProductionLine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range lines {
		t.lines[l.ID] = LineState{ID: l.ID, Name: l.Name, UpdatedAt: time.Now()}
	}
}

// LineImported 记录导入结果并广播
func (t *LineTracker) LineImported(seq uint64, id, name string, stats model.Statistics) {
	t.mu.Lock()
	ok := t.advance(id, seq)
	if ok {
		t.lines[id] = LineState{ID: id, Name: name, Stats: &stats, UpdatedAt: time.Now()}
	}
	t.mu.Unlock()
	if ok {
		t.broadcast()
	}
}

// LineValidated 记录校验结论，未被追踪的产线忽略
func (t *LineTracker) LineValidated(seq uint64, id string, valid bool, errors, warnings int) {
	t.mu.Lock()
	line, ok := t.lines[id]
	ok = ok && t.advance(id, seq)
	if ok {
		line.Valid = &valid
		line.Errors = errors
		line.Warnings = warnings
		line.UpdatedAt = time.Now()
		t.lines[id] = line
	}
	t.mu.Unlock()
	if ok {
		t.broadcast()
	}
}

// LineDeleted 移除产线并广播
func (t *LineTracker) LineDeleted(seq uint64, id string) {
	t.mu.Lock()
	ok := t.advance(id, seq)
	if ok {
		delete(t.lines, id)
	}
	t.mu.Unlock()
	if ok {
		t.broadcast()
	}
}

func (t *LineTracker) broadcast() {
	if t.hub != nil {
		t.hub.Broadcast(t.Snapshot())
	}
}

// Snapshot 返回按 ID 排序的副本
func (t *LineTracker) Snapshot() GlobalState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state := GlobalState{Lines: make([]LineState, 0, len(t.lines))}
	for _, l := range t.lines {
		state.Lines = append(state.Lines, l)
	}
	sort.Slice(state.Lines, func(i, j int) bool { return state.Lines[i].ID < state.Lines[j].ID })
	return state
}
