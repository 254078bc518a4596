package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/habitstack/internal/apperr"
	"github.com/habitstack/internal/db"
	"github.com/habitstack/internal/lock"
	"github.com/habitstack/internal/logger"
	"github.com/habitstack/internal/metrics"
)

// StackStore 是 stack 持久化接口，db.StackRepository 为默认实现
type StackStore interface {
	List(ctx context.Context, search string) ([]db.HabitStack, error)
	Get(ctx context.Context, id string) (*db.HabitStack, error)
	Create(ctx context.Context, stack *db.HabitStack) error
	Put(ctx context.Context, stack *db.HabitStack) error
	Delete(ctx context.Context, id string) error
}

// ProgressStore 是进度持久化接口，db.ProgressRepository 为默认实现
type ProgressStore interface {
	List(ctx context.Context) ([]db.ProgressData, error)
	Get(ctx context.Context, stackID string) (*db.ProgressData, error)
	GetOrCreate(ctx context.Context, stackID string) (*db.ProgressData, error)
	Create(ctx context.Context, record *db.ProgressData) error
	Put(ctx context.Context, record *db.ProgressData) error
	Delete(ctx context.Context, stackID string) error
}

// StackService 负责 stack 的增删改查与完成状态切换
// 对同一个 stack 的读-改-写都在 locker 持有的锁内完成
type StackService struct {
	stacks   StackStore
	progress ProgressStore
	locker   lock.Locker
	log      *logger.Logger
	now      func() time.Time
}

// StackInput 定义创建 stack 时的字段
type StackInput struct {
	Name   string
	Habits []db.StackEntry
}

// StackPatch 为部分更新；Habits 非 nil 时整体替换条目序列
type StackPatch struct {
	Name          *string
	Habits        *[]db.StackEntry
	LastCompleted *time.Time
}

// IsEmpty 在没有任何字段需要更新时返回 true
func (p StackPatch) IsEmpty() bool {
	return p.Name == nil && p.Habits == nil && p.LastCompleted == nil
}

// NewStackService 构造 StackService；locker 为 nil 时使用进程内锁
func NewStackService(stacks StackStore, progress ProgressStore, locker lock.Locker, log *logger.Logger) *StackService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &StackService{
		stacks:   stacks,
		progress: progress,
		locker:   locker,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List 返回全部 stack，search 非空时按名称过滤
func (s *StackService) List(ctx context.Context, search string) ([]db.HabitStack, error) {
	return s.stacks.List(ctx, search)
}

// Get 根据 ID 获取 stack
func (s *StackService) Get(ctx context.Context, id string) (*db.HabitStack, error) {
	return s.stacks.Get(ctx, id)
}

// Create 新建 stack，并同时写入一条归零的进度记录
func (s *StackService) Create(ctx context.Context, input StackInput) (*db.HabitStack, error) {
	name := cleanText(input.Name)
	if name == "" {
		return nil, apperr.Invalid("Stack name is required")
	}
	entries, err := cleanEntries(input.Habits)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stack := db.NewHabitStack(name, entries, now)
	if err := s.stacks.Create(ctx, &stack); err != nil {
		return nil, err
	}

	progress := db.NewProgressData(stack.ID, now)
	if err := s.progress.Create(ctx, &progress); err != nil {
		// 进度记录写入失败时撤销 stack
		if delErr := s.stacks.Delete(ctx, stack.ID); delErr != nil {
			s.log.Error("create progress for new stack failed, stack left without progress",
				"stack_id", stack.ID, "error", err, "rollback_error", delErr)
			return nil, err
		}
		s.log.Error("create progress for new stack failed, stack rolled back", "stack_id", stack.ID, "error", err)
		return nil, err
	}

	return &stack, nil
}

// Update 合并 patch 中提供的字段，条目顺序按请求保存
func (s *StackService) Update(ctx context.Context, id string, patch StackPatch) (*db.HabitStack, error) {
	if patch.IsEmpty() {
		return nil, apperr.Invalid("No data to update")
	}

	var name *string
	if patch.Name != nil {
		name = cleanTextPtr(patch.Name)
		if *name == "" {
			return nil, apperr.Invalid("Stack name cannot be empty")
		}
	}
	var entries []db.StackEntry
	if patch.Habits != nil {
		cleaned, err := cleanEntries(*patch.Habits)
		if err != nil {
			return nil, err
		}
		entries = cleaned
	}

	unlock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.stacks.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := existing.Clone()
	if name != nil {
		next.Name = *name
	}
	if patch.Habits != nil {
		next.Habits = entries
	}
	if patch.LastCompleted != nil {
		completedAt := patch.LastCompleted.UTC()
		next.LastCompleted = &completedAt
	}

	if err := s.stacks.Put(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete 删除 stack 及其进度记录
func (s *StackService) Delete(ctx context.Context, id string) error {
	unlock, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.stacks.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.progress.Delete(ctx, id); err != nil {
		s.log.Error("delete progress after stack delete failed", "stack_id", id, "error", err)
		return err
	}
	return nil
}

// Toggle 翻转 stack 中某个习惯的完成状态，并更新进度
// stack 不存在返回 NotFound；habitID 为空或不在 stack 中不算错误，仍会重算进度
// 进度记录不存在时只更新 stack
func (s *StackService) Toggle(ctx context.Context, stackID, habitID string) error {
	err := s.toggle(ctx, stackID, habitID)
	switch {
	case err == nil:
		metrics.ToggleTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	case errors.Is(err, apperr.ErrNotFound):
		metrics.ToggleTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
	default:
		metrics.ToggleTotal.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return err
}

func (s *StackService) toggle(ctx context.Context, stackID, habitID string) error {
	if stackID == "" {
		return apperr.Invalid("stack_id is required")
	}

	unlock, err := s.acquire(ctx, stackID)
	if err != nil {
		return err
	}
	defer unlock()

	stack, err := s.stacks.Get(ctx, stackID)
	if err != nil {
		return err
	}

	progress, err := s.progress.Get(ctx, stackID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		progress = nil
	}

	next, updated := ToggleHabit(*stack, progress, habitID, s.now())

	if err := s.stacks.Put(ctx, &next); err != nil {
		return err
	}
	if next.AllCompleted() {
		metrics.StackCompletions.Inc()
	}

	if updated == nil {
		return nil
	}
	if err := s.progress.Put(ctx, updated); err != nil {
		metrics.ProgressDivergence.Inc()
		s.log.Error("progress write failed after stack write",
			"stack_id", stackID,
			"progress_id", updated.ID,
			"habit_id", habitID,
			"error", err,
		)
		return err
	}
	return nil
}

func (s *StackService) acquire(ctx context.Context, stackID string) (lock.Unlock, error) {
	return acquireStackLock(ctx, s.locker, stackID)
}

func acquireStackLock(ctx context.Context, locker lock.Locker, stackID string) (lock.Unlock, error) {
	start := time.Now()
	unlock, err := locker.Lock(ctx, stackID)
	metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Store("acquire stack lock", err)
	}
	return unlock, nil
}

// cleanEntries 只去掉 habitId 两端空白，id 是外部引用，内容原样保存
func cleanEntries(entries []db.StackEntry) ([]db.StackEntry, error) {
	out := make([]db.StackEntry, len(entries))
	for i, entry := range entries {
		id := strings.TrimSpace(entry.HabitID)
		if id == "" {
			return nil, apperr.Invalidf("habits[%d].habitId is required", i)
		}
		out[i] = db.StackEntry{HabitID: id, Completed: entry.Completed}
	}
	return out, nil
}
