package core

import (
	"strings"
)

// linkEdge is one nested-document link. Pointer locates the lmay_file
// field that created it.
type linkEdge struct {
	to      string
	pointer string
}

// linkGraph is the directed graph of nested-document links built during
// one reference validation pass. Nodes are canonical document paths.
type linkGraph struct {
	edges map[string][]linkEdge
}

func newLinkGraph() *linkGraph {
	return &linkGraph{edges: make(map[string][]linkEdge)}
}

func (g *linkGraph) addEdge(from, to, ptr string) {
	g.edges[from] = append(g.edges[from], linkEdge{to: to, pointer: ptr})
}

func (g *linkGraph) pointerOf(from, to string) string {
	for _, e := range g.edges[from] {
		if e.to == to {
			return e.pointer
		}
	}
	return ""
}

// reachable returns every node reachable from start, start included.
func (g *linkGraph) reachable(start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[n] {
			if !seen[e.to] {
				seen[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}
	return seen
}

const (
	unvisited = iota
	onStack
	finished
)

// cycles runs an iterative depth-first search from each start in order and
// returns one path per back edge found. Each path runs from the search
// start to the repeated node, e.g. [root a b a]. Loops that are rotations
// of one another are reported once.
func (g *linkGraph) cycles(starts []string) [][]string {
	state := make(map[string]int)
	seen := make(map[string]bool)
	var out [][]string

	type frame struct {
		node string
		next int
	}

	for _, start := range starts {
		if state[start] != unvisited {
			continue
		}
		stack := []frame{{node: start}}
		path := []string{start}
		index := map[string]int{start: 0}
		state[start] = onStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := g.edges[top.node]
			if top.next < len(edges) {
				to := edges[top.next].to
				top.next++
				switch state[to] {
				case unvisited:
					state[to] = onStack
					index[to] = len(path)
					path = append(path, to)
					stack = append(stack, frame{node: to})
				case onStack:
					key := rotationKey(path[index[to]:])
					if !seen[key] {
						seen[key] = true
						cycle := make([]string, len(path), len(path)+1)
						copy(cycle, path)
						out = append(out, append(cycle, to))
					}
				}
				continue
			}
			state[top.node] = finished
			delete(index, top.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return out
}

// rotationKey identifies a loop independently of where it was entered.
func rotationKey(loop []string) string {
	if len(loop) == 0 {
		return ""
	}
	lowest := 0
	for i, n := range loop {
		if n < loop[lowest] {
			lowest = i
		}
	}
	rotated := make([]string, 0, len(loop))
	rotated = append(rotated, loop[lowest:]...)
	rotated = append(rotated, loop[:lowest]...)
	return strings.Join(rotated, "\x00")
}
