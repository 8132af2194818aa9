package interrupt

import (
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func TestResumeRoundTrip(t *testing.T) {
	s := New()
	if err := s.Add("ix-1", "confirm_delete", "destructive action"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Activate()

	if got := len(s.Pending()); got != 1 {
		t.Fatalf("Pending() len = %d, want 1", got)
	}

	input := []models.InterruptResponse{{InterruptID: "ix-1", Response: "yes"}}
	if err := s.Resume(input); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.Activated() {
		t.Fatalf("expected state to deactivate once all interrupts resolved")
	}

	stored, ok := s.Context()["responses"].([]models.InterruptResponse)
	if !ok {
		t.Fatalf("expected Context()[\"responses\"] to hold the resume input, got %#v", s.Context()["responses"])
	}
	if len(stored) != 1 || stored[0].InterruptID != "ix-1" || stored[0].Response != "yes" {
		t.Fatalf("Context()[\"responses\"] = %+v, want %+v", stored, input)
	}
}

func TestResumeUnknownID(t *testing.T) {
	s := New()
	_ = s.Add("ix-1", "confirm", "reason")

	err := s.Resume([]models.InterruptResponse{{InterruptID: "nope", Response: "yes"}})
	if _, ok := err.(*UnknownInterruptIDError); !ok {
		t.Fatalf("err = %v, want *UnknownInterruptIDError", err)
	}
}

func TestResumeEmptyInput(t *testing.T) {
	s := New()
	err := s.Resume(nil)
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("err = %v, want *TypeError", err)
	}
}

func TestDuplicateInterruptName(t *testing.T) {
	s := New()
	if err := s.Add("ix-1", "confirm", "r1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := s.Add("ix-2", "confirm", "r2")
	if _, ok := err.(*DuplicateInterruptNameError); !ok {
		t.Fatalf("err = %v, want *DuplicateInterruptNameError", err)
	}
}

func TestToDictFromDictRoundTrip(t *testing.T) {
	s := New()
	_ = s.Add("ix-1", "confirm", "reason")
	s.Activate()
	s.context["retry"] = true

	snap := s.ToDict()
	restored, err := FromDict(snap)
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	if !restored.Activated() {
		t.Fatalf("expected restored state to be activated")
	}
	if len(restored.Pending()) != 1 {
		t.Fatalf("expected 1 pending interrupt after restore, got %d", len(restored.Pending()))
	}
	if restored.context["retry"] != true {
		t.Fatalf("expected context to roundtrip, got %v", restored.context["retry"])
	}
}
