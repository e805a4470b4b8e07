package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

type recordingReconciler struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	block chan struct{}
}

func (r *recordingReconciler) Reconcile(_ context.Context, e *domain.BillingEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e.ID)
	return r.fail[e.ID]
}

func (r *recordingReconciler) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

type memoryStore struct {
	mu       sync.Mutex
	letters  []domain.DeadLetter
	resolved []string
	failed   map[string]string
}

func newMemoryStore(letters ...domain.DeadLetter) *memoryStore {
	return &memoryStore{letters: letters, failed: make(map[string]string)}
}

func (s *memoryStore) Record(context.Context, *domain.BillingEvent, domain.BillingEventOutcome, string) error {
	return nil
}

func (s *memoryStore) SaveDeadLetter(context.Context, *domain.BillingEvent, string) error {
	return nil
}

func (s *memoryStore) PendingDeadLetters(_ context.Context, maxAttempts, limit int) ([]domain.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeadLetter
	for _, l := range s.letters {
		if !l.Resolved && l.Attempts < maxAttempts && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memoryStore) ResolveDeadLetter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, id)
	return nil
}

func (s *memoryStore) FailDeadLetter(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = reason
	return nil
}

func (s *memoryStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved), len(s.failed)
}

func letter(id, eventID, subID string) domain.DeadLetter {
	return domain.DeadLetter{
		ID:       id,
		Attempts: 1,
		Event: domain.BillingEvent{
			ID:           eventID,
			Type:         domain.EventSubscriptionUpdated,
			Subscription: &domain.ProviderSubscription{ID: subID},
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcher_ResolvesAndFails(t *testing.T) {
	rec := &recordingReconciler{fail: map[string]error{"evt_bad": errors.New("db down")}}
	store := newMemoryStore()
	d := NewDispatcher(2, rec, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(letter("dl1", "evt_ok", "sub_1"))
	d.Enqueue(letter("dl2", "evt_bad", "sub_2"))

	waitFor(t, func() bool { r, f := store.counts(); return r == 1 && f == 1 })

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.resolved[0] != "dl1" {
		t.Fatalf("expected dl1 resolved, got %v", store.resolved)
	}
	if store.failed["dl2"] != "db down" {
		t.Fatalf("expected dl2 failure reason, got %v", store.failed)
	}
}

func TestDispatcher_PreservesOrderPerSubscription(t *testing.T) {
	rec := &recordingReconciler{}
	store := newMemoryStore()
	d := NewDispatcher(4, rec, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	want := []string{"e1", "e2", "e3", "e4", "e5"}
	for i, id := range want {
		d.Enqueue(letter("dl"+string(rune('a'+i)), id, "sub_same"))
	}

	waitFor(t, func() bool { return len(rec.order()) == len(want) })
	got := rec.order()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestDispatcher_SkipsInflightLetter(t *testing.T) {
	rec := &recordingReconciler{block: make(chan struct{})}
	d := NewDispatcher(1, rec, newMemoryStore(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	if !d.Enqueue(letter("dl1", "evt_1", "sub_1")) {
		t.Fatal("first enqueue should succeed")
	}
	if d.Enqueue(letter("dl1", "evt_1", "sub_1")) {
		t.Fatal("second enqueue of an in-flight letter should be skipped")
	}
	close(rec.block)

	waitFor(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.inflight) == 0
	})
	if !d.Enqueue(letter("dl1", "evt_1", "sub_1")) {
		t.Fatal("letter should be enqueueable again after completion")
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, &recordingReconciler{}, newMemoryStore(), zerolog.Nop())
	first := d.shardIndex("sub_42")
	for range 10 {
		if d.shardIndex("sub_42") != first {
			t.Fatal("shard index changed for the same key")
		}
	}
	if first < 0 || first >= 8 {
		t.Fatalf("shard index out of range: %d", first)
	}
}

func TestSweeper_EnqueuesEligibleLetters(t *testing.T) {
	exhausted := letter("dl3", "evt_3", "sub_3")
	exhausted.Attempts = 5
	store := newMemoryStore(letter("dl1", "evt_1", "sub_1"), letter("dl2", "evt_2", "sub_2"), exhausted)
	rec := &recordingReconciler{}
	d := NewDispatcher(2, rec, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	s := NewSweeper(SweeperConfig{MaxAttempts: 5}, store, d, zerolog.Nop())
	if n := s.Sweep(ctx); n != 2 {
		t.Fatalf("expected 2 letters queued, got %d", n)
	}
	waitFor(t, func() bool { r, _ := store.counts(); return r == 2 })
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	s := NewSweeper(SweeperConfig{Schedule: "not a schedule"}, newMemoryStore(), NewDispatcher(1, &recordingReconciler{}, newMemoryStore(), zerolog.Nop()), zerolog.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	s := NewSweeper(SweeperConfig{}, newMemoryStore(), NewDispatcher(1, &recordingReconciler{}, newMemoryStore(), zerolog.Nop()), zerolog.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Stop(time.Second)
}
