// Package validation 校验产线配置：既可以校验尚未入库的配置文档，
// 也可以校验已经持久化的产线。校验只报告问题，从不修改状态。
package validation

import (
	"fmt"

	"plant-config/internal/apperr"
)

// Severity 问题严重程度
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue 一条校验问题
type Issue struct {
	Kind     apperr.Code `json:"kind"`
	Severity Severity    `json:"severity"`
	Entity   string      `json:"entity,omitempty"` // 位置上下文，如 工作站[0]
	Message  string      `json:"message"`
}

func (i Issue) String() string {
	if i.Entity == "" {
		return i.Message
	}
	return i.Entity + ": " + i.Message
}

// Verdict 校验结论
type Verdict struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Issues   []Issue  `json:"-"`
}

// ErrorsOf 返回指定错误码的错误
func (v Verdict) ErrorsOf(kind apperr.Code) []Issue {
	var out []Issue
	for _, is := range v.Issues {
		if is.Severity == SeverityError && is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

// Err 校验失败时返回 INVALID 错误，消息为第一条错误
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	if len(v.Errors) == 1 {
		return apperr.New(apperr.CodeInvalid, "配置验证失败: %s", v.Errors[0])
	}
	return apperr.New(apperr.CodeInvalid, "配置验证失败: %s 等 %d 个错误", v.Errors[0], len(v.Errors))
}

// report 按发现顺序累积问题
type report struct {
	issues []Issue
}

func (r *report) errorf(kind apperr.Code, entity, format string, args ...any) {
	r.issues = append(r.issues, Issue{Kind: kind, Severity: SeverityError, Entity: entity, Message: fmt.Sprintf(format, args...)})
}

func (r *report) warnf(kind apperr.Code, entity, format string, args ...any) {
	r.issues = append(r.issues, Issue{Kind: kind, Severity: SeverityWarning, Entity: entity, Message: fmt.Sprintf(format, args...)})
}

func (r *report) verdict() Verdict {
	v := Verdict{Errors: []string{}, Warnings: []string{}, Issues: r.issues}
	for _, is := range r.issues {
		if is.Severity == SeverityError {
			v.Errors = append(v.Errors, is.String())
		} else {
			v.Warnings = append(v.Warnings, is.String())
		}
	}
	v.Valid = len(v.Errors) == 0
	return v
}
