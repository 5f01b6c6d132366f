package domain

import (
	"encoding/json"
	"testing"
)

func TestNewPipelineState_DefaultsToVideo(t *testing.T) {
	s := NewPipelineState("run-1", PipelineInputs{ContentID: "v1", Platform: "tiktok"})

	if s.ContentType != ContentVideo {
		t.Errorf("ContentType = %q, want video", s.ContentType)
	}
	if s.Status != StatusInitializing {
		t.Errorf("Status = %q, want initializing", s.Status)
	}
	if s.Errors == nil {
		t.Error("expected non-nil error list")
	}
}

func TestPipelineState_CloneIsolatesErrors(t *testing.T) {
	s := NewPipelineState("run-1", PipelineInputs{Platform: "tiktok"})
	s.Errors = append(s.Errors, "first")

	a := s.WithError("a")
	b := s.WithError("b")

	if len(s.Errors) != 1 {
		t.Fatalf("original errors mutated: %v", s.Errors)
	}
	if a.Errors[1] != "a" || b.Errors[1] != "b" {
		t.Errorf("clones share backing array: a=%v b=%v", a.Errors, b.Errors)
	}
}

func TestRestoreRegressions(t *testing.T) {
	prev := NewPipelineState("run-1", PipelineInputs{Platform: "tiktok"})
	prev.Personas = []Persona{{PersonaID: "p1"}}
	prev.PersonaNetwork = &PersonaNetwork{}
	prev.Errors = []string{"e1"}

	next := prev.Clone()
	next.Personas = nil
	next.PersonaNetwork = nil
	next.Errors = nil

	restored := RestoreRegressions(prev, next)

	if len(restored) != 3 {
		t.Fatalf("restored = %v, want personas, persona_network, errors", restored)
	}
	if len(next.Personas) != 1 || next.PersonaNetwork == nil {
		t.Error("expected fields to be restored")
	}
	if len(next.Errors) != 1 {
		t.Errorf("errors = %v, want [e1]", next.Errors)
	}
}

func TestRestoreRegressions_NoChange(t *testing.T) {
	prev := NewPipelineState("run-1", PipelineInputs{Platform: "tiktok"})
	next := prev.Clone()
	next.Personas = []Persona{{PersonaID: "p1"}}

	if restored := RestoreRegressions(prev, next); len(restored) != 0 {
		t.Errorf("restored = %v, want none", restored)
	}
}

func TestContentAnalysis(t *testing.T) {
	s := NewPipelineState("run-1", PipelineInputs{})
	if s.ContentAnalysis() != nil {
		t.Error("expected nil analysis")
	}

	s.TextAnalysis = Analysis{"content_category": "career"}
	if got := s.ContentAnalysis()["content_category"]; got != "career" {
		t.Errorf("ContentAnalysis() category = %v", got)
	}
}

func TestInfluenceHub_UnmarshalJSON(t *testing.T) {
	var hubs []InfluenceHub
	raw := `["persona_001", {"persona_id": "persona_002", "influence_score": 0.4}]`
	if err := json.Unmarshal([]byte(raw), &hubs); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(hubs) != 2 {
		t.Fatalf("len = %d, want 2", len(hubs))
	}
	if hubs[0].PersonaID != "persona_001" || hubs[0].InfluenceScore != 1.0 {
		t.Errorf("hubs[0] = %+v", hubs[0])
	}
	if hubs[1].PersonaID != "persona_002" || hubs[1].InfluenceScore != 0.4 {
		t.Errorf("hubs[1] = %+v", hubs[1])
	}
}

func TestPersona_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Persona
		wantErr bool
	}{
		{"valid", Persona{PersonaID: "p1", Age: 30, EngagementLikelihood: 0.5}, false},
		{"missing id", Persona{Age: 30}, true},
		{"too young", Persona{PersonaID: "p1", Age: 12}, true},
		{"propensity out of range", Persona{PersonaID: "p1", Age: 30, SharingTendency: 1.2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
