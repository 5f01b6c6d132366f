package network

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/testutil"
	"github.com/tjfontaine/audiencesim/internal/tokens"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		known  []string
		want   string
		wantOK bool
	}{
		{"exact", "p1", []string{"p1"}, "p1", true},
		{"pad to three", "p1", []string{"p001"}, "p001", true},
		{"pad to two", "p1", []string{"p01"}, "p01", true},
		{"repad", "p01", []string{"p001"}, "p001", true},
		{"strip zeros", "p001", []string{"p1"}, "p1", true},
		{"prefix kept", "persona_1", []string{"p1"}, "", false},
		{"no digits", "alice", []string{"p1"}, "", false},
		{"different number", "p2", []string{"p1", "p001"}, "", false},
		{"whitespace", " p3 ", []string{"p3"}, "p3", true},
		{"empty", "", []string{"p1"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.id, NewIDSet(tt.known))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeID(%q) = %q, %v; want %q, %v", tt.id, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func ids(n int) []string {
	return domain.PersonaIDs(testutil.Personas(n))
}

func edgePairs(n *domain.PersonaNetwork) []string {
	out := make([]string, len(n.Edges))
	for i, e := range n.Edges {
		out[i] = e.Source + "->" + e.Target
	}
	return out
}

func TestFallbackNetwork(t *testing.T) {
	tests := []struct {
		name        string
		n           int
		wantEdges   int
		wantMembers int
		wantHubs    []string
	}{
		{"empty", 0, 0, 0, []string{}},
		{"single", 1, 0, 1, []string{"p1"}},
		{"three", 3, 2, 3, []string{"p1"}},
		{"twelve", 12, 10, 10, []string{"p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackNetwork(ids(tt.n))

			if !got.Fallback {
				t.Error("Fallback should be set")
			}
			if len(got.Edges) != tt.wantEdges {
				t.Errorf("edges = %d, want %d", len(got.Edges), tt.wantEdges)
			}
			members := 0
			for _, c := range got.Clusters {
				members += len(c.Members)
			}
			if members != tt.wantMembers {
				t.Errorf("cluster members = %d, want %d", members, tt.wantMembers)
			}
			if diff := cmp.Diff(tt.wantHubs, got.HubIDs()); diff != "" {
				t.Errorf("hubs mismatch (-want +got):\n%s", diff)
			}
			for _, e := range got.Edges {
				if e.ConnectionStrength != 0.5 || e.ConnectionType != "acquaintance" {
					t.Errorf("edge %+v", e)
				}
			}
		})
	}
}

func TestFallbackNetwork_Chain(t *testing.T) {
	got := FallbackNetwork(ids(3))

	if diff := cmp.Diff([]string{"p1->p2", "p2->p3"}, edgePairs(got)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if got.Clusters[0].ClusterID != "default_cluster" {
		t.Errorf("cluster id = %q", got.Clusters[0].ClusterID)
	}
	if got.ConnectionDensity != 0.667 || got.AvgPathLength != 1.333 || got.ClusteringCoefficient != 0 {
		t.Errorf("stats = %v/%v/%v", got.ConnectionDensity, got.AvgPathLength, got.ClusteringCoefficient)
	}
	if got.HubThreshold != 1 {
		t.Errorf("hub threshold = %d, want 1", got.HubThreshold)
	}
}

func TestValidateEdges(t *testing.T) {
	in := &domain.PersonaNetwork{
		Edges: []domain.Edge{
			{Source: "p1", Target: "p2", ConnectionStrength: 0.9},
			{Source: "p001", Target: "p3", ConnectionStrength: 1.5},
			{Source: "p1", Target: "p2", ConnectionStrength: 0.1},
			{Source: "p2", Target: "p2"},
			{Source: "p1", Target: "ghost"},
		},
		Clusters: []domain.Cluster{
			{ClusterID: "fans", Members: []string{"p1", "p01", "ghost"}},
			{Members: []string{"p3"}},
			{ClusterID: "empty", Members: []string{"ghost"}},
		},
		Hubs: []domain.InfluenceHub{
			{PersonaID: "p2", InfluenceScore: 2},
			{PersonaID: "p02", InfluenceScore: 0.5},
			{PersonaID: "ghost", InfluenceScore: 0.5},
		},
	}

	got, rep := ValidateEdges(in, ids(3))

	if diff := cmp.Diff([]string{"p1->p2", "p1->p3"}, edgePairs(got)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if got.Edges[1].ConnectionStrength != 1 {
		t.Errorf("strength = %v, want clamped 1", got.Edges[1].ConnectionStrength)
	}

	wantClusters := []domain.Cluster{
		{ClusterID: "fans", Members: []string{"p1"}, ClusterTraits: []string{}},
		{ClusterID: "cluster_2", Members: []string{"p3"}, ClusterTraits: []string{}},
	}
	if diff := cmp.Diff(wantClusters, got.Clusters); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}

	wantHubs := []domain.InfluenceHub{{PersonaID: "p2", InfluenceScore: 1}}
	if diff := cmp.Diff(wantHubs, got.Hubs); diff != "" {
		t.Errorf("hubs mismatch (-want +got):\n%s", diff)
	}

	wantRep := Report{EdgesRepaired: 1, EdgesDropped: 3, MembersDropped: 2, HubsDropped: 1}
	if rep != wantRep {
		t.Errorf("report = %+v, want %+v", rep, wantRep)
	}
	if diff := cmp.Diff(ids(3), got.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeStats_Triangle(t *testing.T) {
	n := &domain.PersonaNetwork{
		Nodes: []string{"a", "b", "c"},
		Edges: []domain.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "a"},
		},
		Hubs: []domain.InfluenceHub{{PersonaID: "a"}, {PersonaID: "b"}},
	}

	want := Stats{ConnectionDensity: 1, ClusteringCoefficient: 1, AvgPathLength: 1, HubThreshold: 2}
	if got := ComputeStats(n); got != want {
		t.Errorf("ComputeStats() = %+v, want %+v", got, want)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	if got := ComputeStats(&domain.PersonaNetwork{}); got != (Stats{}) {
		t.Errorf("ComputeStats() = %+v, want zero", got)
	}
}

func TestSynthesizer_ModelNetwork(t *testing.T) {
	inv := testutil.StaticInvoker("```json\n" + `{
		"edges": [{"source": "p001", "target": "p2", "connection_strength": 0.7, "connection_type": "friend"},
		          {"source": "p2", "target": "p3", "connection_strength": 0.4, "connection_type": "follower"}],
		"clusters": [{"cluster_id": "c", "members": ["p1", "p2", "p3"], "cluster_traits": ["music"]}],
		"influence_hubs": ["p2"]
	}` + "\n```")
	s := NewSynthesizer(inv)

	reactions := []domain.InitialReaction{
		{PersonaID: "p1", EngagementProbability: 0.9},
		{PersonaID: "p2", EngagementProbability: 0.2},
	}
	got, err := s.Synthesize(context.Background(), "tiktok", testutil.Personas(3), reactions)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got.Fallback {
		t.Error("unexpected fallback network")
	}
	if diff := cmp.Diff([]string{"p1->p2", "p2->p3"}, edgePairs(got)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if got.Hubs[0].InfluenceScore != 1 {
		t.Errorf("bare hub score = %v, want 1", got.Hubs[0].InfluenceScore)
	}

	req := inv.Requests()[0]
	if req.Temperature != 0.7 || req.Tier != "" || !req.JSON {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.Prompt, "Engaged: 1") || !strings.Contains(req.Prompt, "Engagement rate: 50.0%") {
		t.Errorf("prompt missing reaction summary:\n%s", req.Prompt)
	}
}

func TestSynthesizer_ModelFailureFallsBack(t *testing.T) {
	s := NewSynthesizer(testutil.FailingInvoker())

	got, err := s.Synthesize(context.Background(), "tiktok", testutil.Personas(3), nil)
	if domain.KindOf(err) != domain.ErrorKindTransport {
		t.Errorf("error kind = %q, want transport", domain.KindOf(err))
	}
	if diff := cmp.Diff([]string{"p1->p2", "p2->p3"}, edgePairs(got)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizer_NoValidEdges(t *testing.T) {
	inv := testutil.StaticInvoker(`{"edges": [{"source": "alice", "target": "bob"}]}`)
	s := NewSynthesizer(inv)

	got, err := s.Synthesize(context.Background(), "tiktok", testutil.Personas(3), nil)
	if !errors.Is(err, ErrNoValidEdges) || domain.KindOf(err) != domain.ErrorKindValidation {
		t.Errorf("error = %v, want ErrNoValidEdges validation", err)
	}
	if !got.Fallback {
		t.Error("expected fallback network")
	}
}

func TestSynthesizer_BudgetClipsPersonas(t *testing.T) {
	inv := testutil.StaticInvoker(`{"edges": [{"source": "p1", "target": "p2"}]}`)
	s := NewSynthesizer(inv, WithBudget(tokens.NewBudget(60, tokens.NewEstimator())))

	if _, err := s.Synthesize(context.Background(), "tiktok", testutil.Personas(20), nil); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	prompt := inv.Requests()[0].Prompt
	if !strings.Contains(prompt, "more)") {
		t.Errorf("expected clipped persona summary:\n%s", prompt)
	}
	if strings.Contains(prompt, "- p20:") {
		t.Error("last persona should be clipped")
	}
}

func TestStage_Process(t *testing.T) {
	state := domain.NewPipelineState("run-1", domain.PipelineInputs{Platform: "tiktok"})
	state.Personas = testutil.Personas(3)

	res := NewStage(NewSynthesizer(testutil.FailingInvoker())).Process(context.Background(), state)

	if res.Err == nil || res.Err.Kind != domain.ErrorKindTransport {
		t.Fatalf("Err = %v, want transport", res.Err)
	}
	if res.State.Status != domain.StatusNetworkFailed {
		t.Errorf("status = %q", res.State.Status)
	}
	if res.State.PersonaNetwork == nil || !res.State.PersonaNetwork.Fallback {
		t.Error("expected fallback network in state")
	}
	if state.PersonaNetwork != nil {
		t.Error("input state mutated")
	}
}

func TestStage_MissingPersonas(t *testing.T) {
	state := domain.NewPipelineState("run-1", domain.PipelineInputs{Platform: "tiktok"})
	inv := testutil.StaticInvoker("{}")

	res := NewStage(NewSynthesizer(inv)).Process(context.Background(), state)

	if res.Err == nil || res.Err.Kind != domain.ErrorKindMissingUpstream {
		t.Fatalf("Err = %v, want missing_upstream", res.Err)
	}
	if res.State.PersonaNetwork == nil || len(res.State.PersonaNetwork.Edges) != 0 {
		t.Error("expected empty fallback network")
	}
	if inv.Calls() != 0 {
		t.Errorf("model called %d times", inv.Calls())
	}
}

var _ ports.Stage = (*Stage)(nil)
