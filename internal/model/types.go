// Package model 定义产线配置的实体与工艺路线图模型
//
// 这里只有结构与访问器，不做任何 I/O；校验逻辑在 validation 包，
// 持久化在 store 包。
package model

import (
	"strings"

	"github.com/google/uuid"
)

// Category 工作站类型与工艺步骤操作共用的五类枚举
type Category string

const (
	CategoryProcessing Category = "processing" // 加工
	CategoryAssembly   Category = "assembly"   // 装配
	CategoryInspection Category = "inspection" // 检验
	CategoryPackaging  Category = "packaging"  // 包装
	CategoryStorage    Category = "storage"    // 存储
)

// Categories 返回全部合法类别，顺序固定，用于错误提示
func Categories() []Category {
	return []Category{CategoryProcessing, CategoryAssembly, CategoryInspection, CategoryPackaging, CategoryStorage}
}

// Valid 判断类别是否属于五类枚举
func (c Category) Valid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// WorkstationStatus 工作站运行状态，导入时不设置，始终为 idle
type WorkstationStatus string

const (
	StatusIdle        WorkstationStatus = "idle"
	StatusProcessing  WorkstationStatus = "processing"
	StatusBreakdown   WorkstationStatus = "breakdown"
	StatusMaintenance WorkstationStatus = "maintenance"
)

func (s WorkstationStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusBreakdown, StatusMaintenance:
		return true
	}
	return false
}

// MergeCondition 并行分支的汇合方式
type MergeCondition string

const (
	MergeAllComplete MergeCondition = "all_complete"
	MergeAnyComplete MergeCondition = "any_complete"
)

func (m MergeCondition) Valid() bool {
	return m == MergeAllComplete || m == MergeAnyComplete
}

// ConditionType 条件路由类型
type ConditionType string

const (
	ConditionQualityCheck  ConditionType = "quality_check"
	ConditionQuantityCheck ConditionType = "quantity_check"
)

func (c ConditionType) Valid() bool {
	return c == ConditionQualityCheck || c == ConditionQuantityCheck
}

// ID 前缀，与导出文件中的 ID 风格保持一致
const (
	PrefixLine          = "line"
	PrefixWorkstation   = "ws"
	PrefixBuffer        = "buf"
	PrefixTransportPath = "path"
	PrefixRoutine       = "routine"
	PrefixStep          = "step"
	PrefixLink          = "link"
	PrefixValueStream   = "vs"
)

// NewID 生成 "<prefix>_<8位十六进制>" 形式的 ID
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:8]
}

// Position 画布坐标
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Properties 自由属性包
type Properties map[string]any
