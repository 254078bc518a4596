package db

import (
	"time"

	"github.com/google/uuid"
)

// HabitCategory 定义习惯分类，Color/Icon 为前端展示用的标识
type HabitCategory struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Color     string    `gorm:"size:64" json:"color"`
	Icon      string    `gorm:"size:64" json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 固定集合名
func (HabitCategory) TableName() string {
	return "categories"
}

// NewHabitCategory 生成带 ID 与创建时间的分类
func NewHabitCategory(name, color, icon string, now time.Time) HabitCategory {
	return HabitCategory{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		Icon:      icon,
		CreatedAt: now,
	}
}
