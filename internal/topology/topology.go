// Package topology 对运输路径构成的有向图做连通性检查
package topology

// Edge 一条运输路径
type Edge struct {
	From string
	To   string
}

// Graph 运输路径的邻接表
type Graph struct {
	out      map[string][]string
	inDegree map[string]int
}

// Build 由边列表构建邻接表，端点不必预先声明
func Build(edges []Edge) *Graph {
	g := &Graph{
		out:      make(map[string][]string),
		inDegree: make(map[string]int),
	}
	for _, e := range edges {
		g.out[e.From] = append(g.out[e.From], e.To)
		g.inDegree[e.To]++
	}
	return g
}

// Successors 返回 id 的出边目标
func (g *Graph) Successors(id string) []string {
	return g.out[id]
}

// Degree 返回入度与出度之和
func (g *Graph) Degree(id string) int {
	return len(g.out[id]) + g.inDegree[id]
}

// Isolated 按输入顺序返回没有任何入边或出边的位置，重复的位置只报告一次。
// 只检查孤立节点，不判断整张图是否为单一连通分量。
func (g *Graph) Isolated(locations []string) []string {
	seen := make(map[string]bool, len(locations))
	var isolated []string
	for _, loc := range locations {
		if seen[loc] {
			continue
		}
		seen[loc] = true
		if g.Degree(loc) == 0 {
			isolated = append(isolated, loc)
		}
	}
	return isolated
}
