package event

import (
	"sync"
	"sync/atomic"
	"time"

	"plant-config/internal/model"
)

// EventType 定义事件的类型
type EventType string

// 配置变更相关的事件类型
const (
	LineImported    EventType = "LineImported"    // 产线导入成功
	ImportRejected  EventType = "ImportRejected"  // 导入被拒绝或回滚
	LineExported    EventType = "LineExported"    // 产线导出
	LineDeleted     EventType = "LineDeleted"     // 产线删除
	LineValidated   EventType = "LineValidated"   // 配置或已存在产线完成校验
	TaxonomyChanged EventType = "TaxonomyChanged" // 类型表增删改
)

// Event 事件负载
type Event struct {
	Type     EventType
	LineID   string
	LineName string
	Stats    model.Statistics // 仅导入事件
	Format   string           // 仅导出事件
	Valid    bool             // 仅校验事件
	Errors   int              // 校验错误数量
	Warnings int              // 校验警告数量
	Taxonomy model.TaxonomyKind
	Action   string // 类型表操作: create/update/delete
	TraceID  string
	Err      error // 仅失败事件
	At       time.Time
	Seq      uint64 // 发布顺序，由 Publish 分配
}

// Handler 是事件处理函数的签名
type Handler func(e Event)

// Bus 内存事件总线，处理器异步执行
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
	seq      atomic.Uint64
}

// NewBus 创建一个新的事件总线实例
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe 订阅一个特定类型的事件
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布事件，每个处理器在独立的 goroutine 中执行，单个处理器阻塞不影响其他处理器。
// 处理器的执行顺序不确定，需要顺序的订阅者按 Seq 判断先后。
func (b *Bus) Publish(e Event) {
	e.Seq = b.seq.Add(1)
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.handlers[e.Type] {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(e)
		}(handler)
	}
}

// Wait 等待已发布事件的处理器全部执行完，用于停机与测试
func (b *Bus) Wait() {
	b.wg.Wait()
}
