package interaction

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/network"
	"github.com/tjfontaine/audiencesim/internal/testutil"
)

func testNetwork() *domain.PersonaNetwork {
	return network.FallbackNetwork([]string{"p1", "p2", "p3"})
}

func TestLevel(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.9, LevelHigh},
		{0.71, LevelHigh},
		{0.7, LevelMedium},
		{0.41, LevelMedium},
		{0.4, LevelLow},
		{0, LevelLow},
	}
	for _, tt := range tests {
		if got := Level(tt.p); got != tt.want {
			t.Errorf("Level(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestProjectNetwork(t *testing.T) {
	got := ProjectNetwork(testNetwork())

	want := NetworkProjection{
		Edges: []ProjectedEdge{{S: "p1", T: "p2", W: 0.5}, {S: "p2", T: "p3", W: 0.5}},
		Hubs:  []ProjectedHub{{ID: "p1", Score: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProjectNetwork() mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectReactions(t *testing.T) {
	got := ProjectReactions([]domain.InitialReaction{
		{PersonaID: "p1", WillShare: true, EngagementProbability: 0.8},
		{PersonaID: "p2", EngagementProbability: 0.2},
	})

	want := []string{
		`{"id":"p1","share":true,"level":"high"}`,
		`{"id":"p2","share":false,"level":"low"}`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProjectReactions() mismatch (-want +got):\n%s", diff)
	}
}

func TestSanitize_MergesNormalizedSharers(t *testing.T) {
	known := network.NewIDSet([]string{"p001", "p002", "p003"})
	in := &domain.InteractionResults{
		SharingMap: map[string][]string{
			"p1":   {"p2", "p3"},
			"p01":  {"p002"},
			"p001": {"p3", "p2", "p3"},
		},
	}

	want := map[string][]string{"p001": {"p003", "p002"}}
	for i := 0; i < 20; i++ {
		got, _ := Sanitize(in, known, 10)
		if diff := cmp.Diff(want, got.SharingMap); diff != "" {
			t.Fatalf("sharing map mismatch on pass %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestSanitize(t *testing.T) {
	in := &domain.InteractionResults{
		Events: []domain.InteractionEvent{
			{SourcePersonaID: "p1", TargetPersonaID: "p2", InteractionType: "share", InfluenceStrength: 1.4, Timestamp: 30},
			{EventID: "e2", SourcePersonaID: "p002", TargetPersonaID: "p3", InteractionType: "comment", InfluenceStrength: 0.4, Timestamp: -5},
			{SourcePersonaID: "ghost", TargetPersonaID: "p1", InteractionType: "share"},
			{SourcePersonaID: "p3", TargetPersonaID: "p1", InteractionType: "share", InfluenceStrength: 0.2},
		},
		InfluenceChains: []domain.InfluenceChain{
			{PersonaSequence: []string{"p1", "p2", "ghost", "p3"}, AvgInfluenceStrength: 2},
			{ChainID: "dead", PersonaSequence: []string{"ghost"}},
		},
		SharingMap: map[string][]string{"p1": {"p2", "ghost"}, "nobody": {"p1"}},
	}

	got, rep := Sanitize(in, network.NewIDSet([]string{"p1", "p2", "p3"}), 2)

	wantEvents := []domain.InteractionEvent{
		{EventID: "evt_001", SourcePersonaID: "p1", TargetPersonaID: "p2", InteractionType: "share", InfluenceStrength: 1, Timestamp: 30},
		{EventID: "e2", SourcePersonaID: "p2", TargetPersonaID: "p3", InteractionType: "comment", InfluenceStrength: 0.4},
	}
	if diff := cmp.Diff(wantEvents, got.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	wantChains := []domain.InfluenceChain{
		{ChainID: "chain_1", PersonaSequence: []string{"p1", "p2", "p3"}, AvgInfluenceStrength: 1},
	}
	if diff := cmp.Diff(wantChains, got.InfluenceChains); diff != "" {
		t.Errorf("chains mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string][]string{"p1": {"p2"}}, got.SharingMap); diff != "" {
		t.Errorf("sharing map mismatch (-want +got):\n%s", diff)
	}

	if got.TotalInteractions != 2 || got.UniqueSharers != 1 || got.MaxChainLength != 3 {
		t.Errorf("counts = %d/%d/%d", got.TotalInteractions, got.UniqueSharers, got.MaxChainLength)
	}
	if got.AvgInfluencePerInteraction != 0.7 {
		t.Errorf("avg influence = %v, want 0.7", got.AvgInfluencePerInteraction)
	}

	wantRep := Report{EventsRepaired: 1, EventsDropped: 1, EventsTruncated: 1}
	if rep != wantRep {
		t.Errorf("report = %+v, want %+v", rep, wantRep)
	}
}

func TestSimulator_Simulate(t *testing.T) {
	inv := testutil.StaticInvoker(`{
		"events": [
			{"timestamp": 12, "source_persona_id": "p1", "target_persona_id": "p2", "interaction_type": "share", "influence_strength": 0.8},
			{"timestamp": 40, "source_persona_id": "p9", "target_persona_id": "p2", "interaction_type": "share", "influence_strength": 0.8}
		],
		"total_interactions": 7,
		"unique_sharers": 1
	}`)
	s := NewSimulator(inv)

	got, err := s.Simulate(context.Background(), "tiktok", testNetwork(), []domain.InitialReaction{
		{PersonaID: "p1", WillShare: true, EngagementProbability: 0.9},
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if got.Fallback {
		t.Error("unexpected fallback")
	}
	if got.TotalInteractions != 1 || len(got.Events) != 1 {
		t.Errorf("total = %d, events = %d", got.TotalInteractions, len(got.Events))
	}

	req := inv.Requests()[0]
	if req.Tier != ports.TierFast || req.Temperature != 0.7 || !req.JSON {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.Prompt, `{"id":"p1","share":true,"level":"high"}`) {
		t.Errorf("prompt missing reaction projection:\n%s", req.Prompt)
	}
	if !strings.Contains(req.Prompt, `"s": "p1"`) {
		t.Errorf("prompt missing network projection:\n%s", req.Prompt)
	}
	if strings.Contains(req.Prompt, "acquaintance") {
		t.Error("prompt should carry the projected network only")
	}
}

func TestSimulator_Failures(t *testing.T) {
	tests := []struct {
		name     string
		invoker  *testutil.StubInvoker
		net      *domain.PersonaNetwork
		wantKind domain.ErrorKind
		wantCall int
	}{
		{"no network", testutil.StaticInvoker("{}"), nil, domain.ErrorKindMissingUpstream, 0},
		{"transport", testutil.FailingInvoker(), testNetwork(), domain.ErrorKindTransport, 1},
		{"malformed", testutil.StaticInvoker(`{"events": [`), testNetwork(), domain.ErrorKindMalformedOutput, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSimulator(tt.invoker).Simulate(context.Background(), "tiktok", tt.net, nil)
			if kind := domain.KindOf(err); kind != tt.wantKind {
				t.Errorf("error kind = %q, want %q", kind, tt.wantKind)
			}
			if diff := cmp.Diff(EmptyResults(true), got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
			if tt.invoker.Calls() != tt.wantCall {
				t.Errorf("calls = %d, want %d", tt.invoker.Calls(), tt.wantCall)
			}
		})
	}
}

func TestStage_Process(t *testing.T) {
	state := domain.NewPipelineState("run-1", domain.PipelineInputs{Platform: "tiktok"})
	state.PersonaNetwork = testNetwork()

	res := NewStage(NewSimulator(testutil.FailingInvoker())).Process(context.Background(), state)

	if res.Err == nil || res.Err.Stage != domain.StageInteractions {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.State.Status != domain.StatusInteractionsFailed {
		t.Errorf("status = %q", res.State.Status)
	}
	if res.State.InteractionResults == nil || res.State.InteractionResults.TotalInteractions != 0 {
		t.Errorf("results = %+v", res.State.InteractionResults)
	}
	if res.State.InteractionEvents == nil || len(res.State.InteractionEvents) != 0 {
		t.Errorf("events = %v, want empty", res.State.InteractionEvents)
	}
}

func TestStage_Success(t *testing.T) {
	state := domain.NewPipelineState("run-1", domain.PipelineInputs{Platform: "tiktok"})
	state.PersonaNetwork = testNetwork()
	inv := testutil.StaticInvoker(`{"events": [{"timestamp": 5, "source_persona_id": "p1", "target_persona_id": "p2", "interaction_type": "share", "influence_strength": 0.5}]}`)

	res := NewStage(NewSimulator(inv)).Process(context.Background(), state)

	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.State.Status != domain.StatusInteractionsComplete {
		t.Errorf("status = %q", res.State.Status)
	}
	if len(res.State.InteractionEvents) != 1 || res.State.InteractionEvents[0].EventID != "evt_001" {
		t.Errorf("events = %+v", res.State.InteractionEvents)
	}
}
