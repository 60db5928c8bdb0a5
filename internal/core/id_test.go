package core

import (
	"strings"
	"testing"
	"time"
)

func TestNewConversationID_UniqueSequential(t *testing.T) {
	seen := make(map[ConversationID]bool)
	for range 1000 {
		id := NewConversationID()
		if seen[id] {
			t.Fatalf("duplicate conversation id %s", id)
		}
		seen[id] = true
	}
}

func TestConversationID_CreatedAt(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	id := NewConversationID()

	if !strings.HasPrefix(string(id), "conv_") {
		t.Fatalf("unexpected prefix: %s", id)
	}

	created := id.CreatedAt()
	if created.Before(before) || created.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("created time %v out of range", created)
	}
}

func TestConversationID_CreatedAtInvalid(t *testing.T) {
	for _, id := range []ConversationID{"", "sess_x", "conv_notatime_abc"} {
		if got := id.CreatedAt(); !got.IsZero() {
			t.Errorf("CreatedAt(%q) = %v, want zero", id, got)
		}
	}
}
