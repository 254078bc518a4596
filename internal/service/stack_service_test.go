package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/habitstack/internal/apperr"
	"github.com/habitstack/internal/db"
	"github.com/habitstack/internal/lock"
	"github.com/habitstack/internal/logger"
	"github.com/habitstack/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStackService(t *testing.T) (*StackService, *db.ProgressRepository) {
	t.Helper()
	store := setupServiceStore(t)
	progress := db.NewProgressRepository(store)
	return NewStackService(db.NewStackRepository(store), progress, lock.NewKeyedMutex(), logger.NewNop()), progress
}

func TestStackServiceCreateAddsProgress(t *testing.T) {
	svc, progress := newTestStackService(t)
	ctx := context.Background()

	stack, err := svc.Create(ctx, StackInput{
		Name:   "Morning",
		Habits: []db.StackEntry{{HabitID: "h1"}, {HabitID: "h2", Completed: true}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	record, err := progress.Get(ctx, stack.ID)
	if err != nil {
		t.Fatalf("expected progress record, got %v", err)
	}
	if record.CurrentStreak != 0 || record.LongestStreak != 0 || record.CompletionRate != 0 {
		t.Fatalf("expected zeroed progress, got %+v", record)
	}
	if len(record.LastWeekProgress) != db.WeekLength {
		t.Fatalf("expected %d week slots, got %d", db.WeekLength, len(record.LastWeekProgress))
	}
}

func TestStackServiceCreateValidation(t *testing.T) {
	svc, _ := newTestStackService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, StackInput{Name: ""}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for blank name, got %v", err)
	}
	if _, err := svc.Create(ctx, StackInput{Name: "Bad", Habits: []db.StackEntry{{HabitID: " "}}}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for blank habit id, got %v", err)
	}
}

func TestStackServiceToggleScenario(t *testing.T) {
	svc, progress := newTestStackService(t)
	ctx := context.Background()

	stack, err := svc.Create(ctx, StackInput{
		Name:   "Evening",
		Habits: []db.StackEntry{{HabitID: "h1"}, {HabitID: "h2"}, {HabitID: "h3"}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := svc.Toggle(ctx, stack.ID, "h2"); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	record, _ := progress.Get(ctx, stack.ID)
	if record.CompletionRate != 1.0/3.0 || record.CurrentStreak != 0 {
		t.Fatalf("unexpected progress after first toggle: %+v", record)
	}

	done := time.Date(2025, 5, 1, 21, 0, 0, 0, time.UTC)
	svc.now = fixedClock(done)
	for _, id := range []string{"h1", "h3"} {
		if err := svc.Toggle(ctx, stack.ID, id); err != nil {
			t.Fatalf("Toggle %s returned error: %v", id, err)
		}
	}

	record, _ = progress.Get(ctx, stack.ID)
	if record.CompletionRate != 1.0 || record.CurrentStreak != 1 || record.LongestStreak != 1 {
		t.Fatalf("unexpected progress after completing: %+v", record)
	}

	loaded, err := svc.Get(ctx, stack.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded.LastCompleted == nil || !loaded.LastCompleted.Equal(done) {
		t.Fatalf("expected lastCompleted %v, got %v", done, loaded.LastCompleted)
	}
	for i, want := range []string{"h1", "h2", "h3"} {
		if loaded.Habits[i].HabitID != want || !loaded.Habits[i].Completed {
			t.Fatalf("entry %d: unexpected %+v", i, loaded.Habits[i])
		}
	}
}

func TestStackServiceToggleMissingStack(t *testing.T) {
	svc, _ := newTestStackService(t)

	err := svc.Toggle(context.Background(), "missing", "h1")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if apperr.PublicMessage(err) != "Stack not found" {
		t.Fatalf("unexpected message: %s", apperr.PublicMessage(err))
	}
}

func TestStackServiceToggleWithoutProgress(t *testing.T) {
	svc, progress := newTestStackService(t)
	ctx := context.Background()

	stack, err := svc.Create(ctx, StackInput{Name: "Solo", Habits: []db.StackEntry{{HabitID: "h1"}}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := progress.Delete(ctx, stack.ID); err != nil {
		t.Fatalf("Delete progress returned error: %v", err)
	}

	if err := svc.Toggle(ctx, stack.ID, "h1"); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	loaded, _ := svc.Get(ctx, stack.ID)
	if !loaded.Habits[0].Completed {
		t.Fatal("expected entry to be toggled")
	}
	if _, err := progress.Get(ctx, stack.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected toggle not to create progress, got %v", err)
	}
}

func TestStackServiceConcurrentTogglesAreSerialized(t *testing.T) {
	svc, progress := newTestStackService(t)
	ctx := context.Background()

	entries := make([]db.StackEntry, 8)
	for i := range entries {
		entries[i] = db.StackEntry{HabitID: fmt.Sprintf("h%d", i)}
	}
	stack, err := svc.Create(ctx, StackInput{Name: "Busy", Habits: entries})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	var wg sync.WaitGroup
	for i := range entries {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := svc.Toggle(ctx, stack.ID, id); err != nil {
				t.Errorf("Toggle %s returned error: %v", id, err)
			}
		}(entries[i].HabitID)
	}
	wg.Wait()

	loaded, _ := svc.Get(ctx, stack.ID)
	if loaded.CompletedCount() != len(entries) {
		t.Fatalf("expected all %d entries completed, got %d", len(entries), loaded.CompletedCount())
	}
	record, _ := progress.Get(ctx, stack.ID)
	if record.CurrentStreak != 1 || record.CompletionRate != 1 {
		t.Fatalf("unexpected progress: %+v", record)
	}
}

func TestStackServiceUpdate(t *testing.T) {
	svc, _ := newTestStackService(t)
	ctx := context.Background()

	stack, err := svc.Create(ctx, StackInput{Name: "Focus", Habits: []db.StackEntry{{HabitID: "a"}}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Update(ctx, stack.ID, StackPatch{}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for empty patch, got %v", err)
	}

	reordered := []db.StackEntry{{HabitID: "c"}, {HabitID: "a", Completed: true}, {HabitID: "b"}}
	completedAt := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	updated, err := svc.Update(ctx, stack.ID, StackPatch{Habits: &reordered, LastCompleted: &completedAt})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "Focus" {
		t.Fatalf("expected name unchanged, got %s", updated.Name)
	}

	loaded, _ := svc.Get(ctx, stack.ID)
	for i, want := range []string{"c", "a", "b"} {
		if loaded.Habits[i].HabitID != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, loaded.Habits[i].HabitID)
		}
	}
	if loaded.LastCompleted == nil || !loaded.LastCompleted.Equal(completedAt) {
		t.Fatalf("expected lastCompleted %v, got %v", completedAt, loaded.LastCompleted)
	}

	if _, err := svc.Update(ctx, "missing", StackPatch{Name: strPtr("x")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStackServiceDeleteRemovesProgress(t *testing.T) {
	svc, progress := newTestStackService(t)
	ctx := context.Background()

	stack, err := svc.Create(ctx, StackInput{Name: "Temp", Habits: []db.StackEntry{{HabitID: "a"}}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := svc.Toggle(ctx, stack.ID, "a"); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	if err := svc.Delete(ctx, stack.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := progress.Get(ctx, stack.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected progress to be deleted, got %v", err)
	}
	if err := svc.Delete(ctx, stack.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	fresh, err := progress.GetOrCreate(ctx, stack.ID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if fresh.CurrentStreak != 0 || fresh.LongestStreak != 0 {
		t.Fatalf("expected fresh zeroed record, got %+v", fresh)
	}
}

// failingProgress 包装真实仓库，让 Put 失败
type failingProgress struct {
	ProgressStore
	putErr error
}

func (f *failingProgress) Put(context.Context, *db.ProgressData) error {
	return f.putErr
}

func TestStackServiceToggleProgressDivergence(t *testing.T) {
	store := setupServiceStore(t)
	stacks := db.NewStackRepository(store)
	progress := &failingProgress{
		ProgressStore: db.NewProgressRepository(store),
		putErr:        apperr.Store("put progress", context.DeadlineExceeded),
	}

	core, logs := observer.New(zap.ErrorLevel)
	svc := NewStackService(stacks, progress, lock.NewKeyedMutex(), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	ctx := context.Background()

	stack, err := svc.Create(ctx, StackInput{Name: "Split", Habits: []db.StackEntry{{HabitID: "a"}}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	before := testutil.ToFloat64(metrics.ProgressDivergence)
	err = svc.Toggle(ctx, stack.ID, "a")
	if !errors.Is(err, apperr.ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if !apperr.IsRetryable(err) {
		t.Fatalf("expected retryable failure, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.ProgressDivergence) - before; got != 1 {
		t.Fatalf("expected divergence counter +1, got %v", got)
	}

	// stack 写入已生效
	loaded, _ := stacks.Get(ctx, stack.ID)
	if !loaded.Habits[0].Completed {
		t.Fatal("expected stack write to persist")
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 error log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["stack_id"] != stack.ID || fields["progress_id"] == "" {
		t.Fatalf("expected both ids in log, got %v", fields)
	}
}

// blockingLocker 总是等到 ctx 结束
type blockingLocker struct{}

func (blockingLocker) Lock(ctx context.Context, _ string) (lock.Unlock, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStackServiceToggleLockTimeout(t *testing.T) {
	store := setupServiceStore(t)
	svc := NewStackService(db.NewStackRepository(store), db.NewProgressRepository(store), blockingLocker{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := svc.Toggle(ctx, "s1", "h1")
	if !errors.Is(err, apperr.ErrStoreFailure) || !apperr.IsRetryable(err) {
		t.Fatalf("expected retryable store failure, got %v", err)
	}
}

func TestStackServiceKeepsHabitIDVerbatim(t *testing.T) {
	svc, _ := newTestStackService(t)
	ctx := context.Background()

	ids := []string{"a<b>c", "x&amp;y", "<id>"}
	entries := make([]db.StackEntry, len(ids))
	for i, id := range ids {
		entries[i] = db.StackEntry{HabitID: "  " + id + " "}
	}
	stack, err := svc.Create(ctx, StackInput{Name: "Markup", Habits: entries})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	for i, id := range ids {
		if stack.Habits[i].HabitID != id {
			t.Fatalf("entry %d: expected %q, got %q", i, id, stack.Habits[i].HabitID)
		}
	}

	for _, id := range ids {
		if err := svc.Toggle(ctx, stack.ID, id); err != nil {
			t.Fatalf("Toggle %q returned error: %v", id, err)
		}
	}
	loaded, err := svc.Get(ctx, stack.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	for i, entry := range loaded.Habits {
		if entry.HabitID != ids[i] || !entry.Completed {
			t.Fatalf("entry %d: expected %q completed, got %+v", i, ids[i], entry)
		}
	}
}

func TestStackServiceToggleUnmatchedIDOnCompletedStack(t *testing.T) {
	for _, habitID := range []string{"", "not-in-stack"} {
		t.Run("id="+habitID, func(t *testing.T) {
			svc, progress := newTestStackService(t)
			ctx := context.Background()

			stack, err := svc.Create(ctx, StackInput{
				Name:   "Done",
				Habits: []db.StackEntry{{HabitID: "h1", Completed: true}},
			})
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}

			now := time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)
			svc.now = fixedClock(now)
			if err := svc.Toggle(ctx, stack.ID, habitID); err != nil {
				t.Fatalf("Toggle returned error: %v", err)
			}

			record, err := progress.Get(ctx, stack.ID)
			if err != nil {
				t.Fatalf("progress Get returned error: %v", err)
			}
			if record.CurrentStreak != 1 || record.LongestStreak != 1 || record.CompletionRate != 1 {
				t.Fatalf("expected streak 1/1 and rate 1, got %+v", record)
			}

			loaded, _ := svc.Get(ctx, stack.ID)
			if !loaded.Habits[0].Completed {
				t.Fatal("expected entry to stay completed")
			}
			if loaded.LastCompleted == nil || !loaded.LastCompleted.Equal(now) {
				t.Fatalf("expected lastCompleted %v, got %v", now, loaded.LastCompleted)
			}
		})
	}
}

// failingProgressCreate 让新建进度记录失败
type failingProgressCreate struct {
	ProgressStore
}

func (failingProgressCreate) Create(context.Context, *db.ProgressData) error {
	return apperr.Store("create progress", errors.New("disk full"))
}

func TestStackServiceCreateRollsBackWhenProgressFails(t *testing.T) {
	store := setupServiceStore(t)
	stacks := db.NewStackRepository(store)
	progress := failingProgressCreate{ProgressStore: db.NewProgressRepository(store)}

	core, logs := observer.New(zap.ErrorLevel)
	svc := NewStackService(stacks, progress, nil, &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	ctx := context.Background()

	_, err := svc.Create(ctx, StackInput{Name: "Orphan", Habits: []db.StackEntry{{HabitID: "a"}}})
	if !errors.Is(err, apperr.ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}

	remaining, err := stacks.List(ctx, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected stack to be rolled back, got %d stacks", len(remaining))
	}
	if logs.FilterMessage("create progress for new stack failed, stack rolled back").Len() != 1 {
		t.Fatalf("expected rollback log, got %v", logs.All())
	}
}
