package agentstate

import "testing"

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	if err := s.Set("count", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got int
	ok, err := s.Get("count", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got != 3 {
		t.Fatalf("Get() = (%v, %v), want (3, true)", got, ok)
	}
}

func TestGetEmptyKeyThrows(t *testing.T) {
	s := New()
	var got string
	_, err := s.Get("", &got)
	if _, ok := err.(EmptyKeyError); !ok {
		t.Fatalf("err = %v, want EmptyKeyError", err)
	}
}

func TestSetEmptyKeyThrows(t *testing.T) {
	s := New()
	err := s.Set("", 1)
	if _, ok := err.(EmptyKeyError); !ok {
		t.Fatalf("err = %v, want EmptyKeyError", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	var got string
	ok, err := s.Get("missing", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing key")
	}
}
