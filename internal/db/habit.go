package db

import (
	"time"

	"github.com/google/uuid"
)

// Habit 定义了习惯模型
// Category 存储分类 ID，不做外键校验；Time 为预计耗时（分钟）
type Habit struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Category    string    `gorm:"size:64;index" json:"category"`
	Time        int       `gorm:"not null;default:0" json:"time"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 固定集合名
func (Habit) TableName() string {
	return "habits"
}

// NewHabit 生成带 ID 与创建时间的习惯
func NewHabit(name, category string, minutes int, description string, now time.Time) Habit {
	return Habit{
		ID:          uuid.NewString(),
		Name:        name,
		Category:    category,
		Time:        minutes,
		Description: description,
		CreatedAt:   now,
	}
}
