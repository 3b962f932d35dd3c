package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Routine 工艺路线，某一物料类型的加工流程
type Routine struct {
	ID               string `json:"id"`
	ProductionLineID string `json:"production_line_id"`
	Name             string `json:"name"`
	MaterialType     string `json:"material_type"`
	StartLocation    string `json:"start_location,omitempty"` // 旧字段，图形化连线出现后由连线推导
	EndLocation      string `json:"end_location,omitempty"`
	Description      string `json:"description,omitempty"`
}

// Branch 并行步骤中的一个分支
type Branch struct {
	WorkstationID  string  `json:"workstation_id" yaml:"workstation_id"`
	ProcessingTime float64 `json:"processing_time" yaml:"processing_time"`
}

// Condition 条件路由配置
type Condition struct {
	Type      ConditionType  `json:"type" yaml:"type"`
	PassRoute *StepRef       `json:"pass_route,omitempty" yaml:"pass_route,omitempty"`
	FailRoute *StepRef       `json:"fail_route,omitempty" yaml:"fail_route,omitempty"`
	PassRate  *float64       `json:"pass_rate,omitempty" yaml:"pass_rate,omitempty"`
	Params    map[string]any `json:"condition_params,omitempty" yaml:"condition_params,omitempty"`
}

// StepKind 步骤形态：*SimpleStep 或 *ParallelStep，调用方用 type switch 穷举
type StepKind interface {
	stepKind()
}

// SimpleStep 普通步骤，最多绑定一个工作站
type SimpleStep struct {
	WorkstationID string // 为空表示未绑定
}

// ParallelStep 并行步骤，按分支分发到多个工作站后再按 MergeCondition 汇合
type ParallelStep struct {
	Branches       []Branch
	MergeCondition MergeCondition
}

func (*SimpleStep) stepKind()   {}
func (*ParallelStep) stepKind() {}

// RoutineStep 工艺路线中的一个节点
type RoutineStep struct {
	ID             string
	RoutineID      string
	StepID         int // 路线内的序号，唯一
	Operation      Category
	Kind           StepKind
	ProcessingTime *float64 // 覆盖工作站的加工时间
	ValueAdded     bool
	ValueAmount    *float64
	Conditions     *Condition
	NextStep       *StepRef // 旧字段
	Position       *Position
}

// IsParallel 是否为并行步骤
func (s RoutineStep) IsParallel() bool {
	_, ok := s.Kind.(*ParallelStep)
	return ok
}

// Participant 参与某一步骤的工作站
type Participant struct {
	WorkstationID  string
	ProcessingTime *float64
}

// Participants 返回步骤实际使用的工作站：普通步骤至多一个，并行步骤为分支列表
func (s RoutineStep) Participants() []Participant {
	switch k := s.Kind.(type) {
	case *SimpleStep:
		if k.WorkstationID == "" {
			return nil
		}
		return []Participant{{WorkstationID: k.WorkstationID, ProcessingTime: s.ProcessingTime}}
	case *ParallelStep:
		out := make([]Participant, 0, len(k.Branches))
		for _, b := range k.Branches {
			pt := b.ProcessingTime
			out = append(out, Participant{WorkstationID: b.WorkstationID, ProcessingTime: &pt})
		}
		return out
	}
	return nil
}

// Targets 返回步骤显式声明的后继 step_id：next_step、pass_route、fail_route
func (s RoutineStep) Targets() []int {
	var refs []*StepRef
	refs = append(refs, s.NextStep)
	if s.Conditions != nil {
		refs = append(refs, s.Conditions.PassRoute, s.Conditions.FailRoute)
	}
	var out []int
	for _, r := range refs {
		if r == nil {
			continue
		}
		if id, ok := r.StepID(); ok {
			out = append(out, id)
		}
	}
	return out
}

// StepRef next_step、pass_route、fail_route 中对其他步骤的引用。
// 文件里既可能写成字符串也可能写成数字，统一按字符串保存。
type StepRef string

// StepID 将引用解析为 step_id
func (r StepRef) StepID() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(string(r)))
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *StepRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = StepRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("步骤引用必须是字符串或数字: %w", err)
	}
	*r = StepRef(n.String())
	return nil
}

// RoutineStepLink 图形化流程中两个步骤之间的连线，端点为步骤记录 ID
type RoutineStepLink struct {
	ID         string `json:"id"`
	RoutineID  string `json:"routine_id"`
	FromStepID string `json:"from_step_id"`
	ToStepID   string `json:"to_step_id"`
}

// RoutineGraph 一条工艺路线及其全部步骤与连线
type RoutineGraph struct {
	Routine Routine
	Steps   []RoutineStep
	Links   []RoutineStepLink
}

// SortSteps 按 step_id 排序
func (g *RoutineGraph) SortSteps() {
	sort.SliceStable(g.Steps, func(i, j int) bool { return g.Steps[i].StepID < g.Steps[j].StepID })
}

// StepByRecordID 按步骤记录 ID 查找
func (g RoutineGraph) StepByRecordID(id string) (RoutineStep, bool) {
	for _, s := range g.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return RoutineStep{}, false
}

// FlowNodes 将步骤转换为顺序视图的节点
func (g RoutineGraph) FlowNodes() []FlowNode {
	nodes := make([]FlowNode, 0, len(g.Steps))
	for _, s := range g.Steps {
		nodes = append(nodes, FlowNode{StepID: s.StepID, Targets: s.Targets()})
	}
	return nodes
}

// LinkEdges 将连线转换为 step_id 之间的边；端点不属于本路线的连线单独返回
func (g RoutineGraph) LinkEdges() ([]FlowEdge, []RoutineStepLink) {
	var edges []FlowEdge
	var dangling []RoutineStepLink
	for _, l := range g.Links {
		from, okFrom := g.StepByRecordID(l.FromStepID)
		to, okTo := g.StepByRecordID(l.ToStepID)
		if !okFrom || !okTo {
			dangling = append(dangling, l)
			continue
		}
		edges = append(edges, FlowEdge{From: from.StepID, To: to.StepID})
	}
	return edges, dangling
}

// Divergence 比较连线与步骤顺序两种流程表示；没有连线时不比较
func (g RoutineGraph) Divergence() (onlySequence, onlyLinks []FlowEdge) {
	links, _ := g.LinkEdges()
	if len(links) == 0 {
		return nil, nil
	}
	return Divergence(SequenceEdges(g.FlowNodes()), links)
}
