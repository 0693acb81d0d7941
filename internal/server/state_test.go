package server

import (
	"testing"
	"time"
)

func TestStateIsOneShot(t *testing.T) {
	s := newStateStore()
	state := s.Issue("")

	if _, ok := s.Consume(state); !ok {
		t.Fatal("fresh state rejected")
	}
	if _, ok := s.Consume(state); ok {
		t.Fatal("state consumed twice")
	}
}

func TestStateCarriesLinkedUser(t *testing.T) {
	s := newStateStore()
	state := s.Issue("user-42")
	linked, ok := s.Consume(state)
	if !ok || linked != "user-42" {
		t.Fatalf("linked user lost: %q ok=%v", linked, ok)
	}
}

func TestStateExpires(t *testing.T) {
	s := newStateStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	state := s.Issue("")
	current = current.Add(stateTTL + time.Minute)
	if _, ok := s.Consume(state); ok {
		t.Fatal("expired state accepted")
	}
}

func TestStatePruning(t *testing.T) {
	s := newStateStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	old := s.Issue("")
	current = current.Add(stateTTL + time.Minute)
	s.Issue("") // triggers pruning

	s.mu.Lock()
	_, stillThere := s.entries[old]
	s.mu.Unlock()
	if stillThere {
		t.Fatal("expired state not pruned")
	}
}

func TestStatesAreUnique(t *testing.T) {
	s := newStateStore()
	if s.Issue("") == s.Issue("") {
		t.Fatal("two issued states collided")
	}
}
