package model

import (
	"fmt"
	"sort"
)

// FlowEdge 两个 step_id 之间的有向边
type FlowEdge struct {
	From int
	To   int
}

func (e FlowEdge) String() string {
	return fmt.Sprintf("%d->%d", e.From, e.To)
}

// FlowNode 顺序视图中的步骤：StepID 与显式后继
type FlowNode struct {
	StepID  int
	Targets []int
}

// SequenceEdges 由步骤顺序推导流程边。
// 有显式后继的步骤只指向其后继；否则指向 step_id 顺序中的下一个步骤。
func SequenceEdges(nodes []FlowNode) []FlowEdge {
	sorted := make([]FlowNode, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StepID < sorted[j].StepID })

	var edges []FlowEdge
	for i, n := range sorted {
		if len(n.Targets) > 0 {
			for _, t := range n.Targets {
				edges = append(edges, FlowEdge{From: n.StepID, To: t})
			}
			continue
		}
		if i+1 < len(sorted) {
			edges = append(edges, FlowEdge{From: n.StepID, To: sorted[i+1].StepID})
		}
	}
	return dedupeEdges(edges)
}

// Divergence 返回只出现在顺序视图中的边和只出现在连线中的边
func Divergence(sequence, links []FlowEdge) (onlySequence, onlyLinks []FlowEdge) {
	inLinks := make(map[FlowEdge]bool, len(links))
	for _, e := range links {
		inLinks[e] = true
	}
	inSeq := make(map[FlowEdge]bool, len(sequence))
	for _, e := range sequence {
		inSeq[e] = true
		if !inLinks[e] {
			onlySequence = append(onlySequence, e)
		}
	}
	for _, e := range dedupeEdges(links) {
		if !inSeq[e] {
			onlyLinks = append(onlyLinks, e)
		}
	}
	return onlySequence, onlyLinks
}

func dedupeEdges(edges []FlowEdge) []FlowEdge {
	seen := make(map[FlowEdge]bool, len(edges))
	out := edges[:0:0]
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
