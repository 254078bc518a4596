package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StackEntry 是习惯在某个 stack 中的成员记录，带独立的完成标记
type StackEntry struct {
	HabitID   string `json:"habitId" binding:"required"`
	Completed bool   `json:"completed"`
}

// HabitStack 定义习惯组合；Habits 顺序即执行顺序，以 JSON 列整体存储
// LastCompleted 记录最近一次全部完成的时间
type HabitStack struct {
	ID            string                          `gorm:"primaryKey;size:36" json:"id"`
	Name          string                          `gorm:"not null;index" json:"name"`
	Habits        datatypes.JSONSlice[StackEntry] `json:"habits"`
	CreatedAt     time.Time                       `json:"created_at"`
	LastCompleted *time.Time                      `json:"lastCompleted"`
}

// TableName 固定集合名
func (HabitStack) TableName() string {
	return "stacks"
}

// NewHabitStack 生成带 ID 与创建时间的 stack，entries 会被复制
func NewHabitStack(name string, entries []StackEntry, now time.Time) HabitStack {
	return HabitStack{
		ID:        uuid.NewString(),
		Name:      name,
		Habits:    cloneEntries(entries),
		CreatedAt: now,
	}
}

// CompletedCount 返回已完成的条目数
func (s HabitStack) CompletedCount() int {
	count := 0
	for _, entry := range s.Habits {
		if entry.Completed {
			count++
		}
	}
	return count
}

// AllCompleted 在全部条目完成时返回 true，空 stack 视为完成
func (s HabitStack) AllCompleted() bool {
	for _, entry := range s.Habits {
		if !entry.Completed {
			return false
		}
	}
	return true
}

// CompletionRate 返回完成比例，空 stack 为 0
func (s HabitStack) CompletionRate() float64 {
	if len(s.Habits) == 0 {
		return 0
	}
	return float64(s.CompletedCount()) / float64(len(s.Habits))
}

// Clone 深拷贝，避免共享底层切片与时间指针
func (s HabitStack) Clone() HabitStack {
	out := s
	out.Habits = cloneEntries(s.Habits)
	if s.LastCompleted != nil {
		t := *s.LastCompleted
		out.LastCompleted = &t
	}
	return out
}

func cloneEntries(entries []StackEntry) datatypes.JSONSlice[StackEntry] {
	out := make(datatypes.JSONSlice[StackEntry], len(entries))
	copy(out, entries)
	return out
}
