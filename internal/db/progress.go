package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WeekLength 是 last_week_progress 的固定长度
const WeekLength = 7

// ProgressData 记录 stack 的连胜与完成率，StackID 唯一
// UpdatedAt 由调用方写入，关闭 gorm 的自动更新时间
type ProgressData struct {
	ID               string                    `gorm:"primaryKey;size:36" json:"id"`
	StackID          string                    `gorm:"size:36;uniqueIndex;not null" json:"stack_id"`
	CurrentStreak    int                       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int                       `gorm:"not null;default:0" json:"longest_streak"`
	CompletionRate   float64                   `gorm:"not null;default:0" json:"completion_rate"`
	LastWeekProgress datatypes.JSONSlice[bool] `json:"last_week_progress"`
	UpdatedAt        time.Time                 `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName 固定集合名
func (ProgressData) TableName() string {
	return "progress_data"
}

// NewProgressData 生成归零的进度记录
func NewProgressData(stackID string, now time.Time) ProgressData {
	return ProgressData{
		ID:               uuid.NewString(),
		StackID:          stackID,
		LastWeekProgress: make(datatypes.JSONSlice[bool], WeekLength),
		UpdatedAt:        now,
	}
}

// Clone 深拷贝 LastWeekProgress
func (p ProgressData) Clone() ProgressData {
	out := p
	if p.LastWeekProgress != nil {
		out.LastWeekProgress = make(datatypes.JSONSlice[bool], len(p.LastWeekProgress))
		copy(out.LastWeekProgress, p.LastWeekProgress)
	}
	return out
}
