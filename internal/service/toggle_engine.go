package service

import (
	"time"

	"github.com/habitstack/internal/db"
)

// ToggleHabit 翻转 stack 中 habitID 对应条目的完成状态，并重新计算派生数据。
//
// 规则：
//   - 所有 habitId 相同的条目都会翻转，其余条目原样保留，顺序不变；
//     没有匹配条目时列表不变，但后续重算照常执行。
//   - 全部条目完成（空 stack 视为完成）时 LastCompleted 置为 now，否则保持原值。
//   - progress 非空时：completion_rate = 完成数 / 总数（总数为 0 时为 0）；
//     全部完成则 current_streak 加一，未完成时不清零；
//     longest_streak = max(longest_streak, current_streak)；updated_at = now。
//   - progress 为空时返回 nil。
//
// 输入不会被修改，结果由调用方持久化。
func ToggleHabit(stack db.HabitStack, progress *db.ProgressData, habitID string, now time.Time) (db.HabitStack, *db.ProgressData) {
	next := stack.Clone()
	for i := range next.Habits {
		if next.Habits[i].HabitID == habitID {
			next.Habits[i].Completed = !next.Habits[i].Completed
		}
	}

	allCompleted := next.AllCompleted()
	if allCompleted {
		completedAt := now
		next.LastCompleted = &completedAt
	}

	if progress == nil {
		return next, nil
	}

	updated := progress.Clone()
	updated.CompletionRate = next.CompletionRate()
	if allCompleted {
		updated.CurrentStreak++
	}
	if updated.CurrentStreak > updated.LongestStreak {
		updated.LongestStreak = updated.CurrentStreak
	}
	updated.UpdatedAt = now

	return next, &updated
}
