package document

import "plant-config/internal/model"

// Config 配置文件的完整结构
type Config struct {
	ProductionLine LineDoc         `json:"production_line" yaml:"production_line"`
	Routines       []RoutineDoc    `json:"routines" yaml:"routines"`
	ValueStream    *ValueStreamDoc `json:"value_stream,omitempty" yaml:"value_stream,omitempty"`
}

type LineDoc struct {
	ID             string             `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string             `json:"name" yaml:"name"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`
	Workstations   []WorkstationDoc   `json:"workstations" yaml:"workstations"`
	Buffers        []BufferDoc        `json:"buffers" yaml:"buffers"`
	TransportPaths []TransportPathDoc `json:"transport_paths" yaml:"transport_paths"`
}

type WorkstationDoc struct {
	ID             string               `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string               `json:"name" yaml:"name"`
	Type           string               `json:"type" yaml:"type"`
	Capacity       *int                 `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	ProcessingTime model.ProcessingTime `json:"processing_time" yaml:"processing_time"`
	Status         string               `json:"status,omitempty" yaml:"status,omitempty"`
	InputBufferID  string               `json:"input_buffer_id,omitempty" yaml:"input_buffer_id,omitempty"`
	OutputBufferID string               `json:"output_buffer_id,omitempty" yaml:"output_buffer_id,omitempty"`
	Position       *model.Position      `json:"position,omitempty" yaml:"position,omitempty"`
	Properties     map[string]any       `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type BufferDoc struct {
	ID           string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string          `json:"name" yaml:"name"`
	Capacity     int             `json:"capacity" yaml:"capacity"`
	CurrentLevel *int            `json:"current_level,omitempty" yaml:"current_level,omitempty"`
	Location     string          `json:"location,omitempty" yaml:"location,omitempty"`
	Position     *model.Position `json:"position,omitempty" yaml:"position,omitempty"`
	Properties   map[string]any  `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type TransportPathDoc struct {
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	FromLocation  string         `json:"from_location" yaml:"from_location"`
	ToLocation    string         `json:"to_location" yaml:"to_location"`
	TransportTime float64        `json:"transport_time" yaml:"transport_time"`
	Capacity      *int           `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Properties    map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type RoutineDoc struct {
	ID            string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string    `json:"name" yaml:"name"`
	MaterialType  string    `json:"material_type" yaml:"material_type"`
	StartLocation string    `json:"start_location,omitempty" yaml:"start_location,omitempty"`
	EndLocation   string    `json:"end_location,omitempty" yaml:"end_location,omitempty"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Steps         []StepDoc `json:"steps" yaml:"steps"`
	Links         []LinkDoc `json:"links,omitempty" yaml:"links,omitempty"`
}

// StepDoc 文件中的步骤，普通步骤与并行步骤共用一套字段，由 Parallel 区分
type StepDoc struct {
	ID             string           `json:"id,omitempty" yaml:"id,omitempty"`
	StepID         int              `json:"step_id" yaml:"step_id"`
	WorkstationID  string           `json:"workstation_id,omitempty" yaml:"workstation_id,omitempty"`
	Operation      string           `json:"operation" yaml:"operation"`
	ProcessingTime *float64         `json:"processing_time,omitempty" yaml:"processing_time,omitempty"`
	ValueAdded     bool             `json:"value_added" yaml:"value_added"`
	ValueAmount    *float64         `json:"value_amount,omitempty" yaml:"value_amount,omitempty"`
	Conditions     *model.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Parallel       bool             `json:"parallel" yaml:"parallel"`
	Branches       []model.Branch   `json:"branches,omitempty" yaml:"branches,omitempty"`
	MergeCondition string           `json:"merge_condition,omitempty" yaml:"merge_condition,omitempty"`
	NextStep       *model.StepRef   `json:"next_step,omitempty" yaml:"next_step,omitempty"`
	Position       *model.Position  `json:"position,omitempty" yaml:"position,omitempty"`
}

// LinkDoc 步骤连线，端点用 step_id 表示，导入时再映射为步骤记录 ID
type LinkDoc struct {
	FromStepID int `json:"from_step_id" yaml:"from_step_id"`
	ToStepID   int `json:"to_step_id" yaml:"to_step_id"`
}

type ValueStreamDoc struct {
	ID          string             `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	ValuePoints []model.ValuePoint `json:"value_points" yaml:"value_points"`
	CostPoints  []model.CostPoint  `json:"cost_points" yaml:"cost_points"`
}
