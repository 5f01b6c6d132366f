package network

import (
	"fmt"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// Report counts what validation changed.
type Report struct {
	EdgesRepaired  int
	EdgesDropped   int
	MembersDropped int
	HubsDropped    int
}

// Changed reports whether anything was repaired or dropped.
func (r Report) Changed() bool {
	return r.EdgesRepaired+r.EdgesDropped+r.MembersDropped+r.HubsDropped > 0
}

type pair struct{ s, t string }

// ValidateEdges returns a copy of net whose edges, cluster members and hubs
// all reference ids in known. Near-miss ids are repaired with NormalizeID;
// unresolvable ones, self-loops and duplicate edges are dropped. Edge
// strengths and hub scores are clamped to [0,1]. Nodes are set to nodes and
// statistics are recomputed.
func ValidateEdges(net *domain.PersonaNetwork, nodes []string) (*domain.PersonaNetwork, Report) {
	known := NewIDSet(nodes)
	out := &domain.PersonaNetwork{
		Nodes:    append([]string{}, nodes...),
		Edges:    []domain.Edge{},
		Clusters: []domain.Cluster{},
		Hubs:     []domain.InfluenceHub{},
		Fallback: net.Fallback,
	}
	var rep Report

	seen := make(map[pair]struct{}, len(net.Edges))
	for _, e := range net.Edges {
		src, okS := NormalizeID(e.Source, known)
		tgt, okT := NormalizeID(e.Target, known)
		if !okS || !okT || src == tgt {
			rep.EdgesDropped++
			continue
		}
		if _, dup := seen[pair{src, tgt}]; dup {
			rep.EdgesDropped++
			continue
		}
		seen[pair{src, tgt}] = struct{}{}

		if src != e.Source || tgt != e.Target {
			rep.EdgesRepaired++
		}
		e.Source, e.Target = src, tgt
		e.ConnectionStrength = domain.Clamp01(e.ConnectionStrength)
		out.Edges = append(out.Edges, e)
	}

	for i, c := range net.Clusters {
		members := make([]string, 0, len(c.Members))
		in := make(map[string]struct{}, len(c.Members))
		for _, m := range c.Members {
			id, ok := NormalizeID(m, known)
			if !ok {
				rep.MembersDropped++
				continue
			}
			if _, dup := in[id]; dup {
				continue
			}
			in[id] = struct{}{}
			members = append(members, id)
		}
		if len(members) == 0 {
			continue
		}
		if c.ClusterID == "" {
			c.ClusterID = fmt.Sprintf("cluster_%d", i+1)
		}
		if c.ClusterTraits == nil {
			c.ClusterTraits = []string{}
		}
		c.Members = members
		out.Clusters = append(out.Clusters, c)
	}

	hubs := make(map[string]struct{}, len(net.Hubs))
	for _, h := range net.Hubs {
		id, ok := NormalizeID(h.PersonaID, known)
		if !ok {
			rep.HubsDropped++
			continue
		}
		if _, dup := hubs[id]; dup {
			continue
		}
		hubs[id] = struct{}{}
		out.Hubs = append(out.Hubs, domain.InfluenceHub{PersonaID: id, InfluenceScore: domain.Clamp01(h.InfluenceScore)})
	}

	applyStats(out)
	return out, rep
}
