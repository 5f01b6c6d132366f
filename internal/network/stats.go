package network

import (
	"sort"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// Stats are deterministic summary figures for a network.
type Stats struct {
	ConnectionDensity     float64
	ClusteringCoefficient float64
	AvgPathLength         float64
	HubThreshold          int
}

func applyStats(n *domain.PersonaNetwork) {
	s := ComputeStats(n)
	n.ConnectionDensity = s.ConnectionDensity
	n.ClusteringCoefficient = s.ClusteringCoefficient
	n.AvgPathLength = s.AvgPathLength
	n.HubThreshold = s.HubThreshold
}

// ComputeStats derives the statistics over the undirected view of n.
//
//   - density is edges per node
//   - the clustering coefficient is the mean local coefficient over all
//     nodes, counting nodes of degree < 2 as 0
//   - average path length is the mean BFS distance over reachable pairs
//   - the hub threshold is the lowest degree among hubs
func ComputeStats(n *domain.PersonaNetwork) Stats {
	var s Stats
	if n == nil || len(n.Nodes) == 0 {
		return s
	}

	adj := make(map[string]map[string]struct{}, len(n.Nodes))
	for _, id := range n.Nodes {
		adj[id] = map[string]struct{}{}
	}
	for _, e := range n.Edges {
		if _, ok := adj[e.Source]; !ok {
			continue
		}
		if _, ok := adj[e.Target]; !ok {
			continue
		}
		adj[e.Source][e.Target] = struct{}{}
		adj[e.Target][e.Source] = struct{}{}
	}

	s.ConnectionDensity = domain.Round(float64(len(n.Edges))/float64(len(n.Nodes)), 3)

	var total float64
	for _, id := range n.Nodes {
		neigh := sortedKeys(adj[id])
		k := len(neigh)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if _, ok := adj[neigh[i]][neigh[j]]; ok {
					links++
				}
			}
		}
		total += float64(2*links) / float64(k*(k-1))
	}
	s.ClusteringCoefficient = domain.Round(total/float64(len(n.Nodes)), 3)

	var dist, pairs int
	for _, src := range n.Nodes {
		d := bfs(adj, src)
		for id, v := range d {
			if id != src {
				dist += v
				pairs++
			}
		}
	}
	if pairs > 0 {
		s.AvgPathLength = domain.Round(float64(dist)/float64(pairs), 3)
	}

	for i, h := range n.Hubs {
		deg := len(adj[h.PersonaID])
		if i == 0 || deg < s.HubThreshold {
			s.HubThreshold = deg
		}
	}
	return s
}

func bfs(adj map[string]map[string]struct{}, src string) map[string]int {
	dist := map[string]int{src: 0}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range adj[cur] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
