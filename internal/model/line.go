package model

import "fmt"

// ProductionLine 产线，拥有其下所有工作站、缓冲区、运输路径、工艺路线和价值流配置
type ProductionLine struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DistributionType 加工时间分布类型
type DistributionType string

const (
	DistributionFixed   DistributionType = "fixed"
	DistributionUniform DistributionType = "uniform"
	DistributionNormal  DistributionType = "normal"
)

// ProcessingTime 加工时间描述，按 Type 区分使用的字段
type ProcessingTime struct {
	Type  DistributionType `json:"type" yaml:"type"`
	Value *float64         `json:"value,omitempty" yaml:"value,omitempty"`
	Min   *float64         `json:"min,omitempty" yaml:"min,omitempty"`
	Max   *float64         `json:"max,omitempty" yaml:"max,omitempty"`
	Mean  *float64         `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std   *float64         `json:"std,omitempty" yaml:"std,omitempty"`
}

// Problems 返回描述与其声明类型不一致之处，空切片表示一致
func (p ProcessingTime) Problems() []string {
	switch p.Type {
	case "":
		return []string{"processing_time 缺少 type 字段"}
	case DistributionFixed:
		if p.Value == nil || *p.Value <= 0 {
			return []string{"fixed 类型的 processing_time 需要正数 value"}
		}
	case DistributionUniform:
		if p.Min == nil || p.Max == nil {
			return []string{"uniform 类型需要 min 和 max"}
		}
		if *p.Min >= *p.Max {
			return []string{"uniform 类型的 min 必须小于 max"}
		}
	case DistributionNormal:
		if p.Mean == nil || p.Std == nil {
			return []string{"normal 类型需要 mean 和 std"}
		}
		if *p.Std <= 0 {
			return []string{"normal 类型的 std 必须为正数"}
		}
	default:
		return []string{fmt.Sprintf("processing_time 的 type '%s' 无效，必须是: fixed, uniform, normal", p.Type)}
	}
	return nil
}

// Workstation 工作站
type Workstation struct {
	ID               string            `json:"id"`
	ProductionLineID string            `json:"production_line_id"`
	Name             string            `json:"name"`
	Type             Category          `json:"type"`
	Capacity         int               `json:"capacity"`
	ProcessingTime   ProcessingTime    `json:"processing_time"`
	Status           WorkstationStatus `json:"status"`
	InputBufferID    string            `json:"input_buffer_id,omitempty"`
	OutputBufferID   string            `json:"output_buffer_id,omitempty"`
	Position         *Position         `json:"position,omitempty"`
	Properties       Properties        `json:"properties,omitempty"`
}

// Buffer 缓冲区，CurrentLevel 始终满足 0 <= CurrentLevel <= Capacity
type Buffer struct {
	ID               string     `json:"id"`
	ProductionLineID string     `json:"production_line_id"`
	Name             string     `json:"name"`
	Capacity         int        `json:"capacity"`
	CurrentLevel     int        `json:"current_level"`
	Location         string     `json:"location,omitempty"`
	Position         *Position  `json:"position,omitempty"`
	Properties       Properties `json:"properties,omitempty"`
}

// LevelAllowed 判断库存水平是否在容量范围内
func (b Buffer) LevelAllowed(level int) bool {
	return level >= 0 && level <= b.Capacity
}

// TransportPath 运输路径，产线运输图中的一条有向边
type TransportPath struct {
	ID               string     `json:"id"`
	ProductionLineID string     `json:"production_line_id"`
	FromLocation     string     `json:"from_location"`
	ToLocation       string     `json:"to_location"`
	TransportTime    float64    `json:"transport_time"`
	Capacity         *int       `json:"capacity,omitempty"`
	Properties       Properties `json:"properties,omitempty"`
}

// ValuePoint 价值增加点
type ValuePoint struct {
	WorkstationID string  `json:"workstation_id" yaml:"workstation_id"`
	ValueAdded    float64 `json:"value_added" yaml:"value_added"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// CostPoint 成本发生点
type CostPoint struct {
	WorkstationID string  `json:"workstation_id" yaml:"workstation_id"`
	CostPerUnit   float64 `json:"cost_per_unit" yaml:"cost_per_unit"`
	CostType      string  `json:"cost_type" yaml:"cost_type"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// ValueStreamConfig 价值流配置
type ValueStreamConfig struct {
	ID               string       `json:"id"`
	ProductionLineID string       `json:"production_line_id"`
	Name             string       `json:"name"`
	ValuePoints      []ValuePoint `json:"value_points"`
	CostPoints       []CostPoint  `json:"cost_points"`
}

// TaxonomyKind 全局类型表的种类
type TaxonomyKind string

const (
	TaxonomyOperation   TaxonomyKind = "operation_types"
	TaxonomyWorkstation TaxonomyKind = "workstation_types"
	TaxonomyMaterial    TaxonomyKind = "material_types"
)

// IDPrefix 返回该类型表记录的 ID 前缀
func (k TaxonomyKind) IDPrefix() string {
	switch k {
	case TaxonomyOperation:
		return "optype"
	case TaxonomyWorkstation:
		return "wstype"
	case TaxonomyMaterial:
		return "mattype"
	}
	return "type"
}

func (k TaxonomyKind) Valid() bool {
	return k == TaxonomyOperation || k == TaxonomyWorkstation || k == TaxonomyMaterial
}

// TaxonomyEntry 全局类型表中的一条记录，名称在同一种类内唯一
type TaxonomyEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
