// Package trace 为每个请求分配 Trace ID，贯穿日志、事件与变更日志
package trace

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// contextKey 是一个私有类型，用于避免 context key 的冲突
type contextKey string

const traceIDKey contextKey = "traceID"

// Header 请求与响应中携带 Trace ID 的头
const Header = "X-Trace-ID"

// NewID 生成 32 位十六进制的 Trace ID
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithID 将 Trace ID 注入到 Context 中
func WithID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// FromContext 从 Context 中提取 Trace ID
func FromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(traceIDKey).(string)
	return traceID, ok
}

// ID 返回 Context 中的 Trace ID，没有时返回空串
func ID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id
}

// Middleware 沿用调用方传入的 X-Trace-ID，没有则生成新的，并写回响应头
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = NewID()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
