package concept

import "sort"

// Neighbor is a concept reached by traversal with the number of hops it took
type Neighbor struct {
	Concept Concept `json:"concept"`
	Depth   int     `json:"depth"`
}

// Related returns the concepts reachable from id within depth hops, following relations in
// either direction. The start concept is excluded. Results are ordered by depth then label.
func (g *Graph) Related(id string, depth int) []Neighbor {
	if depth < 1 || g.Find(id) == nil {
		return []Neighbor{}
	}
	adj := make(map[string][]string)
	for _, r := range g.Relations {
		adj[r.SourceID] = append(adj[r.SourceID], r.TargetID)
		adj[r.TargetID] = append(adj[r.TargetID], r.SourceID)
	}

	dist := map[string]int{id: 0}
	frontier := []string{id}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, cur := range frontier {
			for _, n := range adj[cur] {
				if _, seen := dist[n]; seen {
					continue
				}
				dist[n] = d
				next = append(next, n)
			}
		}
		frontier = next
	}

	out := make([]Neighbor, 0, len(dist)-1)
	for cid, d := range dist {
		if cid == id {
			continue
		}
		if c := g.Find(cid); c != nil {
			out = append(out, Neighbor{Concept: *c, Depth: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Concept.Label < out[j].Concept.Label
	})
	return out
}
