package service

import (
	"context"
	"time"

	"github.com/habitstack/internal/apperr"
	"github.com/habitstack/internal/db"
	"github.com/habitstack/internal/lock"
)

// ProgressService 负责进度记录的查询与手动修正
type ProgressService struct {
	progress ProgressStore
	locker   lock.Locker
	now      func() time.Time
}

// ProgressPatch 为部分更新，nil 字段保持原值
type ProgressPatch struct {
	CurrentStreak    *int
	LongestStreak    *int
	CompletionRate   *float64
	LastWeekProgress *[]bool
}

// NewProgressService 构造 ProgressService；locker 应与 StackService 共用
func NewProgressService(progress ProgressStore, locker lock.Locker) *ProgressService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &ProgressService{
		progress: progress,
		locker:   locker,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List 返回全部进度记录
func (s *ProgressService) List(ctx context.Context) ([]db.ProgressData, error) {
	return s.progress.List(ctx)
}

// Get 返回 stack 的进度，不存在时创建归零记录；不检查 stack 是否存在
func (s *ProgressService) Get(ctx context.Context, stackID string) (*db.ProgressData, error) {
	return s.progress.GetOrCreate(ctx, stackID)
}

// Update 合并 patch 后写回；记录不存在返回 NotFound
// 空 patch 只刷新 updated_at
func (s *ProgressService) Update(ctx context.Context, stackID string, patch ProgressPatch) (*db.ProgressData, error) {
	unlock, err := acquireStackLock(ctx, s.locker, stackID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.progress.Get(ctx, stackID)
	if err != nil {
		return nil, err
	}

	next := existing.Clone()
	if patch.CurrentStreak != nil {
		next.CurrentStreak = *patch.CurrentStreak
	}
	if patch.LongestStreak != nil {
		next.LongestStreak = *patch.LongestStreak
	}
	if patch.CompletionRate != nil {
		next.CompletionRate = *patch.CompletionRate
	}
	if patch.LastWeekProgress != nil {
		if len(*patch.LastWeekProgress) != db.WeekLength {
			return nil, apperr.Invalidf("last_week_progress must have %d entries", db.WeekLength)
		}
		next.LastWeekProgress = append(next.LastWeekProgress[:0:0], *patch.LastWeekProgress...)
	}
	if err := validateProgress(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()

	if err := s.progress.Put(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func validateProgress(p db.ProgressData) error {
	switch {
	case p.CurrentStreak < 0 || p.LongestStreak < 0:
		return apperr.Invalid("streaks must not be negative")
	case p.CompletionRate < 0 || p.CompletionRate > 1:
		return apperr.Invalid("completion_rate must be between 0 and 1")
	case p.LongestStreak < p.CurrentStreak:
		return apperr.Invalid("longest_streak must not be less than current_streak")
	}
	return nil
}
