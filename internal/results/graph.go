package results

import (
	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

const gridStep = 10

// clusterPalette is cycled over clusters in order.
var clusterPalette = []string{
	"#4ade80", "#60a5fa", "#f472b6", "#fbbf24",
	"#a78bfa", "#f87171", "#2dd4bf", "#fb923c",
}

// BuildNodeGraph projects personas and the network for rendering. Node
// positions are a sequential placeholder grid.
func BuildNodeGraph(personas []domain.Persona, reactions []domain.SecondReaction, net *domain.PersonaNetwork, events []domain.InteractionEvent) *domain.NodeGraphData {
	byID := make(map[string]domain.SecondReaction, len(reactions))
	for _, r := range reactions {
		byID[r.PersonaID] = r
	}

	g := &domain.NodeGraphData{
		Nodes:         make([]domain.GraphNode, 0, len(personas)),
		Edges:         []domain.GraphEdge{},
		Clusters:      []domain.GraphCluster{},
		InfluenceHubs: []string{},
	}

	hubs := map[string]bool{}
	if net != nil {
		g.InfluenceHubs = append(g.InfluenceHubs, net.HubIDs()...)
		for _, id := range g.InfluenceHubs {
			hubs[id] = true
		}
	}

	for i, p := range personas {
		r, ok := byID[p.PersonaID]
		sentiment := domain.SentimentNeutral
		if ok && r.UpdatedSentiment != "" {
			sentiment = r.UpdatedSentiment
		}
		g.Nodes = append(g.Nodes, domain.GraphNode{
			ID:         p.PersonaID,
			Name:       p.Name,
			X:          float64(i * gridStep),
			Y:          float64(i * gridStep),
			Engaged:    ok && r.Engaged(),
			Influenced: ok && r.ChangedFromInitial,
			Sentiment:  sentiment,
			IsHub:      hubs[p.PersonaID],
		})
	}

	if net == nil {
		return g
	}

	touched := make(map[[2]string]bool, len(events))
	for _, e := range events {
		touched[[2]string{e.SourcePersonaID, e.TargetPersonaID}] = true
		touched[[2]string{e.TargetPersonaID, e.SourcePersonaID}] = true
	}
	for _, e := range net.Edges {
		g.Edges = append(g.Edges, domain.GraphEdge{
			Edge:                e,
			InteractionOccurred: touched[[2]string{e.Source, e.Target}],
		})
	}
	for i, c := range net.Clusters {
		g.Clusters = append(g.Clusters, domain.GraphCluster{
			Cluster: c,
			Color:   clusterPalette[i%len(clusterPalette)],
		})
	}
	return g
}
