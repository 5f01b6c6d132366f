package codec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

func TestRepair_FencedMatchesUnwrapped(t *testing.T) {
	plain := `{"persona_id": "p1", "will_view": true, "engagement_probability": 0.7}`

	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + plain + "\n```"},
		{"bare fence", "```\n" + plain + "\n```"},
		{"fence with surrounding whitespace", "\n  ```json\n" + plain + "\n```  \n"},
		{"single line fence", "```" + plain + "```"},
	}

	want, err := Repair(plain)
	if err != nil {
		t.Fatalf("Repair(plain) error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Repair(tt.raw)
			if err != nil {
				t.Fatalf("Repair() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Repair() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRepair_SingleElementArrayUnwrapped(t *testing.T) {
	got, err := Repair(`[{"a": 1}]`)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if got["a"] != float64(1) {
		t.Errorf("Repair() = %v, want a=1", got)
	}
}

func TestRepair_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing closing brace", `{"persona_id": "p1", "will_view": true`},
		{"truncated inside fence", "```json\n{\"a\": [1, 2\n```"},
		{"empty", "   "},
		{"prose", "I think the persona would like it."},
		{"multi element array", `[{"a": 1}, {"a": 2}]`},
		{"array of scalars", `[1]`},
		{"unbalanced but ends in brace", `{"a": {"b": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Repair(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedOutput) {
				t.Errorf("error %v does not match ErrMalformedOutput", err)
			}
			if domain.KindOf(err) != domain.ErrorKindMalformedOutput {
				t.Errorf("KindOf() = %q, want malformed_output", domain.KindOf(err))
			}
			var mo *MalformedOutputError
			if !errors.As(err, &mo) || mo.Reason == "" {
				t.Errorf("expected MalformedOutputError with reason, got %T", err)
			}
		})
	}
}

func TestRepairInto(t *testing.T) {
	var r domain.InitialReaction
	raw := "```json\n{\"persona_id\": \"p1\", \"will_view\": true, \"sentiment\": \"positive\"}\n```"
	if err := RepairInto(raw, &r); err != nil {
		t.Fatalf("RepairInto() error = %v", err)
	}
	if r.PersonaID != "p1" || !r.WillView || r.Sentiment != "positive" {
		t.Errorf("RepairInto() = %+v", r)
	}
}

func TestRepairInto_ShapeMismatch(t *testing.T) {
	var r domain.InitialReaction
	err := RepairInto(`{"will_view": "definitely"}`, &r)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("RepairInto() error = %v, want malformed output", err)
	}
}

func TestStrip(t *testing.T) {
	if got := Strip("  {\"a\":1}  "); got != `{"a":1}` {
		t.Errorf("Strip() = %q", got)
	}
	if got := Strip("```json\n[1]\n```"); got != "[1]" {
		t.Errorf("Strip() = %q", got)
	}
}
