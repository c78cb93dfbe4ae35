package artifacts

import (
	"sort"
	"strings"
)

// Edge is a directed dependency from Source to Target.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Raw    string  `json:"raw"`
	Kind   RefKind `json:"kind"`
}

// BrokenReference is an edge whose target does not exist.
type BrokenReference struct {
	Source string `json:"source"`
	Raw    string `json:"reference"`
	Target string `json:"target"`
}

// Graph is the set of visited artifacts and the edges between them.
type Graph struct {
	Nodes  []string          `json:"nodes"`
	Edges  []Edge            `json:"edges"`
	Broken []BrokenReference `json:"broken"`
	Cycles [][]string        `json:"cycles"` // closed paths: first == last
}

// Builder resolves references transitively. A node is expanded at most
// once; a back-edge to a node on the active recursion stack is a cycle.
type Builder struct {
	loader    *Loader
	visited   map[string]bool
	onStack   map[string]bool
	stack     []string
	cycleKeys map[string]bool
	graph     *Graph
}

// NewBuilder creates a Builder that reads through loader.
func NewBuilder(loader *Loader) *Builder {
	return &Builder{loader: loader}
}

func (b *Builder) reset() {
	b.visited = map[string]bool{}
	b.onStack = map[string]bool{}
	b.stack = nil
	b.cycleKeys = map[string]bool{}
	b.graph = &Graph{Nodes: []string{}, Edges: []Edge{}, Broken: []BrokenReference{}, Cycles: [][]string{}}
}

// Resolve returns the graph reachable from root alone.
func (b *Builder) Resolve(root string) *Graph {
	b.reset()
	b.visit(ResolvePath(root))
	return b.finish()
}

// Build returns the graph of every path in roots plus everything they
// reach. Roots are expanded in sorted order so output is deterministic.
func (b *Builder) Build(roots []string) *Graph {
	b.reset()
	sorted := append([]string(nil), roots...)
	sort.Strings(sorted)
	for _, r := range sorted {
		if p := ResolvePath(r); !b.visited[p] {
			b.visit(p)
		}
	}
	return b.finish()
}

func (b *Builder) visit(p string) {
	b.visited[p] = true
	a, err := b.loader.Load(p)
	if err != nil {
		return
	}
	b.graph.Nodes = append(b.graph.Nodes, p)

	b.onStack[p] = true
	b.stack = append(b.stack, p)
	defer func() {
		b.onStack[p] = false
		b.stack = b.stack[:len(b.stack)-1]
	}()

	for _, ref := range a.References {
		b.graph.Edges = append(b.graph.Edges, Edge{Source: p, Target: ref.Target, Raw: ref.Raw, Kind: ref.Kind})
		if !b.loader.Exists(ref.Target) {
			b.graph.Broken = append(b.graph.Broken, BrokenReference{Source: p, Raw: ref.Raw, Target: ref.Target})
			continue
		}
		switch {
		case b.onStack[ref.Target]:
			b.recordCycle(ref.Target)
		case !b.visited[ref.Target]:
			b.visit(ref.Target)
		}
	}
}

// recordCycle stores the stack segment from target to the top, closed
// back to target. Rotations of one cycle are stored once.
func (b *Builder) recordCycle(target string) {
	start := -1
	for i, n := range b.stack {
		if n == target {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}
	cycle := canonicalRotation(b.stack[start:])
	key := strings.Join(cycle, "\x00")
	if b.cycleKeys[key] {
		return
	}
	b.cycleKeys[key] = true
	b.graph.Cycles = append(b.graph.Cycles, append(cycle, cycle[0]))
}

// canonicalRotation rotates nodes so the smallest path comes first.
func canonicalRotation(nodes []string) []string {
	lo := 0
	for i, n := range nodes {
		if n < nodes[lo] {
			lo = i
		}
	}
	out := make([]string, 0, len(nodes))
	out = append(out, nodes[lo:]...)
	return append(out, nodes[:lo]...)
}

func (b *Builder) finish() *Graph {
	g := b.graph
	sort.Strings(g.Nodes)
	sort.SliceStable(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
	sort.SliceStable(g.Broken, func(i, j int) bool {
		if g.Broken[i].Source != g.Broken[j].Source {
			return g.Broken[i].Source < g.Broken[j].Source
		}
		return g.Broken[i].Target < g.Broken[j].Target
	})
	sort.Slice(g.Cycles, func(i, j int) bool {
		return strings.Join(g.Cycles[i], "\x00") < strings.Join(g.Cycles[j], "\x00")
	})
	return g
}

// CyclePath renders a closed cycle as "a → b → a".
func CyclePath(cycle []string) string {
	return strings.Join(cycle, " → ")
}
