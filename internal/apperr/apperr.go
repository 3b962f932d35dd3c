// Package apperr 定义配置服务统一使用的错误码与结构化错误
//
// 校验引擎只报告问题不返回错误；导入、导出、目录维护等操作返回带错误码的
// *Error，HTTP 层据此映射状态码。
package apperr

import (
	"errors"
	"fmt"
)

// Code 机器可读的错误码
type Code string

const (
	CodeShape      Code = "SHAPE"      // 缺少顶层字段，校验短路
	CodeField      Code = "FIELD"      // 单个实体字段缺失或取值非法
	CodeReference  Code = "REFERENCE"  // 跨实体引用悬空
	CodeUniqueness Code = "UNIQUENESS" // 重复的 step_id、类型名称等
	CodeConflict   Code = "CONFLICT"   // 导入目标 ID 已存在
	CodeNotFound   Code = "NOT_FOUND"  // 产线或记录不存在
	CodeParse      Code = "PARSE"      // 文件或请求体无法解析
	CodeInvalid    Code = "INVALID"    // 配置未通过校验
)

// Error 带错误码的结构化错误
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New 创建一个带格式化消息的错误
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is 判断错误链中是否存在指定错误码
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf 提取错误码，非 *Error 返回空串
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage 返回不带错误码前缀的消息，用于展示给操作员
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
