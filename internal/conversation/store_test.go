package conversation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alexr72/wpcv/internal/core"
)

// oneTokenEach makes budgets in tests read as message counts.
var oneTokenEach = EstimatorFunc(func(string) int { return 1 })

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewFileStore(t.TempDir())
}

func mustCreate(t *testing.T, store *Store) core.ConversationID {
	t.Helper()
	id, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return id
}

func mustAppend(t *testing.T, store *Store, id core.ConversationID, msgs ...core.Message) {
	t.Helper()
	if err := store.Append(id, msgs...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func exchange(n int) []core.Message {
	return []core.Message{
		core.UserMessage(fmt.Sprintf("question %d", n)),
		core.AssistantMessage(fmt.Sprintf("answer %d", n)),
	}
}

func TestStore_HistoryPreservesAppendOrder(t *testing.T) {
	store := NewMemoryStore()
	id := mustCreate(t, store)

	var want []core.Message
	for i := range 5 {
		msgs := exchange(i)
		for _, m := range msgs {
			mustAppend(t, store, id, m)
		}
		want = append(want, msgs...)
	}

	got, err := store.History(id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_HistoryReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	id := mustCreate(t, store)
	mustAppend(t, store, id, core.UserMessage("original"))

	got, _ := store.History(id)
	got[0].Content = "changed"

	again, _ := store.History(id)
	if again[0].Content != "original" {
		t.Errorf("expected stored history to be unaffected, got %q", again[0].Content)
	}
}

func TestStore_UnknownConversation(t *testing.T) {
	store := NewMemoryStore()

	var unknown *UnknownConversationError

	if err := store.Append("conv_missing", core.UserMessage("x")); !errors.As(err, &unknown) {
		t.Errorf("Append: expected UnknownConversationError, got %v", err)
	}
	if _, err := store.History("conv_missing"); !errors.As(err, &unknown) {
		t.Errorf("History: expected UnknownConversationError, got %v", err)
	}
	if _, err := store.Trim("conv_missing", CharEstimator{}, Budget{Limit: 10}); !errors.As(err, &unknown) {
		t.Errorf("Trim: expected UnknownConversationError, got %v", err)
	}
	if err := store.Open("conv_missing"); !errors.As(err, &unknown) {
		t.Errorf("Open: expected UnknownConversationError, got %v", err)
	}
}

func TestStore_AppendReportsPersistFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full unavailable")
	}

	dir := t.TempDir()
	store := NewFileStore(dir)
	id := mustCreate(t, store)

	path := filepath.Join(dir, string(id)+".jsonl")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/dev/full", path); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := store.Append(id, exchange(1)...); err == nil {
		t.Fatal("expected Append to fail when the log cannot be written")
	}
	history, _ := store.History(id)
	if len(history) != 0 {
		t.Errorf("expected no retained messages after a failed persist, got %d", len(history))
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	id := mustCreate(t, store)

	if err := store.Delete(id); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if store.Exists(id) {
		t.Error("expected conversation to be gone")
	}
}

func TestStore_CreateIsUnique(t *testing.T) {
	store := NewMemoryStore()
	seen := make(map[core.ConversationID]bool)

	for range 200 {
		id := mustCreate(t, store)
		if seen[id] {
			t.Fatalf("duplicate conversation id %s", id)
		}
		seen[id] = true
	}
}

func TestTrim_WithinBudgetKeepsEverything(t *testing.T) {
	store := NewMemoryStore()
	id := mustCreate(t, store)
	mustAppend(t, store, id, exchange(1)...)

	result, err := store.Trim(id, oneTokenEach, Budget{Limit: 10, Headroom: 2})
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	if result.Removed != 0 || result.Used != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestTrim_RemovesOldestPairsFirst(t *testing.T) {
	store := NewMemoryStore()
	id := mustCreate(t, store)

	mustAppend(t, store, id, core.SystemMessage("rules"))
	for i := range 4 {
		mustAppend(t, store, id, exchange(i)...)
	}

	// 9 messages, limit 6 with headroom 1 leaves room for 5.
	result, err := store.Trim(id, oneTokenEach, Budget{Limit: 6, Headroom: 1})
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	if result.Removed != 4 {
		t.Errorf("expected 4 removed messages, got %d", result.Removed)
	}

	got, _ := store.History(id)
	want := append([]core.Message{core.SystemMessage("rules")}, append(exchange(2), exchange(3)...)...)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trimmed history mismatch (-want +got):\n%s", diff)
	}
	if result.Used != 5 {
		t.Errorf("expected used 5, got %d", result.Used)
	}
}

func TestTrim_NeverBelowNewestPair(t *testing.T) {
	tests := []struct {
		name     string
		messages []core.Message
		want     []core.Message
	}{
		{
			name:     "system plus pairs",
			messages: append([]core.Message{core.SystemMessage("s")}, append(exchange(1), exchange(2)...)...),
			want:     append([]core.Message{core.SystemMessage("s")}, exchange(2)...),
		},
		{
			name:     "no system",
			messages: append(exchange(1), exchange(2)...),
			want:     exchange(2),
		},
		{
			name: "odd leftover removed singly",
			messages: []core.Message{
				core.SystemMessage("s"),
				core.AssistantMessage("stray"),
				core.UserMessage("q"),
				core.AssistantMessage("a"),
			},
			want: []core.Message{core.SystemMessage("s"), core.UserMessage("q"), core.AssistantMessage("a")},
		},
		{
			name:     "already at floor",
			messages: exchange(7),
			want:     exchange(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			id := mustCreate(t, store)
			mustAppend(t, store, id, tt.messages...)

			result, err := store.Trim(id, CharEstimator{}, Budget{Limit: 1, Headroom: 1000})
			if err != nil {
				t.Fatalf("Trim failed: %v", err)
			}

			got, _ := store.History(id)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("history mismatch (-want +got):\n%s", diff)
			}
			if result.Removed != len(tt.messages)-len(tt.want) {
				t.Errorf("expected %d removed, got %d", len(tt.messages)-len(tt.want), result.Removed)
			}
		})
	}
}

func TestTrim_UsedMatchesRecomputedCost(t *testing.T) {
	store := NewMemoryStore()
	id := mustCreate(t, store)

	for i := range 10 {
		mustAppend(t, store, id,
			core.UserMessage(strings.Repeat("u", 10*i+1)),
			core.AssistantMessage(strings.Repeat("a", 7*i+3)),
		)
	}

	estimator := CharEstimator{}
	result, err := store.Trim(id, estimator, Budget{Limit: 60, Headroom: 10})
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}

	got, _ := store.History(id)
	if want := cost(estimator, got); result.Used != want {
		t.Errorf("used %d drifted from recomputed cost %d", result.Used, want)
	}
	if result.Used+10 > 60 && len(got) > 2 {
		t.Errorf("trim stopped early: used %d with %d messages", result.Used, len(got))
	}
}

func TestCharEstimator(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := (CharEstimator{}).Estimate(tt.text); got != tt.want {
			t.Errorf("Estimate(%d bytes) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestFileStore_OpenRehydrates(t *testing.T) {
	dir := t.TempDir()

	first := NewFileStore(dir)
	id := mustCreate(t, first)
	mustAppend(t, first, id, exchange(1)...)
	mustAppend(t, first, id, exchange(2)...)

	second := NewFileStore(dir)
	if !second.Exists(id) {
		t.Fatal("expected persisted conversation to exist")
	}
	if err := second.Open(id); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := second.History(id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	want := append(exchange(1), exchange(2)...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rehydrated history mismatch (-want +got):\n%s", diff)
	}

	infos, err := second.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 || infos[0].MessageCount != 4 {
		t.Errorf("unexpected list: %+v", infos)
	}
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store := newTestStore(t)

	if store.Exists("../etc/passwd") {
		t.Error("expected path-like id to be rejected")
	}
	if err := store.Delete("../x"); err != nil {
		t.Errorf("Delete of path-like id should be a no-op, got %v", err)
	}
}

func TestStore_ConcurrentConversations(t *testing.T) {
	store := NewMemoryStore()

	ids := make([]core.ConversationID, 8)
	for i := range ids {
		ids[i] = mustCreate(t, store)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id core.ConversationID) {
			defer wg.Done()
			for i := range 50 {
				_ = store.Append(id, exchange(i)...)
				_, _ = store.Trim(id, oneTokenEach, Budget{Limit: 20, Headroom: 2})
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, _ := store.History(id)
		if len(got) > 18 {
			t.Errorf("conversation %s holds %d messages, expected at most 18", id, len(got))
		}
		last := got[len(got)-1]
		if last.Content != "answer 49" {
			t.Errorf("expected newest message to survive, got %q", last.Content)
		}
	}
}

func TestStore_Snapshot(t *testing.T) {
	store := NewMemoryStore()
	id := mustCreate(t, store)
	mustAppend(t, store, id, core.UserMessage("abcdefgh"), core.AssistantMessage("abcd"))

	snap, err := store.Snapshot(id, CharEstimator{}, Budget{Limit: 100, Headroom: 10})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snap.UsedTokens != 3 || snap.RemainingTokens != 87 || len(snap.Messages) != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
