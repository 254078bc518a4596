package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/habitstack/internal/apperr"
	"github.com/habitstack/internal/db"
	"gorm.io/gorm"
)

// HabitService 负责 Habit 数据的增删改查
// Category 只是分类 ID 的引用，不校验其是否存在
type HabitService struct {
	store *db.Store
	now   func() time.Time
}

// HabitFilter 描述列表过滤条件
type HabitFilter struct {
	Category string
	Search   string
}

// HabitInput 定义创建习惯时的字段
type HabitInput struct {
	Name        string
	Category    string
	Time        int
	Description string
}

// HabitPatch 为部分更新，nil 字段保持原值
type HabitPatch struct {
	Name        *string
	Category    *string
	Time        *int
	Description *string
}

// IsEmpty 在没有任何字段需要更新时返回 true
func (p HabitPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Time == nil && p.Description == nil
}

// NewHabitService 构造 HabitService
func NewHabitService(store *db.Store) *HabitService {
	return &HabitService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List 返回习惯集合，支持按分类与名称筛选
func (s *HabitService) List(ctx context.Context, filter HabitFilter) ([]db.Habit, error) {
	tx, cancel := s.store.Session(ctx)
	defer cancel()

	query := tx.Model(&db.Habit{})
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := fmt.Sprintf("%%%s%%", strings.ToLower(search))
		query = query.Where("LOWER(name) LIKE ?", like)
	}

	habits := make([]db.Habit, 0)
	if err := query.Order("created_at ASC").Find(&habits).Error; err != nil {
		return nil, db.Classify("list habits", "Habit", err)
	}
	return habits, nil
}

// Get 根据 ID 获取习惯
func (s *HabitService) Get(ctx context.Context, id string) (*db.Habit, error) {
	tx, cancel := s.store.Session(ctx)
	defer cancel()

	var habit db.Habit
	if err := tx.Where("id = ?", id).First(&habit).Error; err != nil {
		return nil, db.Classify("get habit", "Habit", err)
	}
	return &habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(ctx context.Context, input HabitInput) (*db.Habit, error) {
	name := cleanText(input.Name)
	if name == "" {
		return nil, apperr.Invalid("Habit name is required")
	}
	if input.Time < 0 {
		return nil, apperr.Invalid("Habit time must not be negative")
	}

	habit := db.NewHabit(name, strings.TrimSpace(input.Category), input.Time, cleanText(input.Description), s.now())

	tx, cancel := s.store.Session(ctx)
	defer cancel()
	if err := tx.Create(&habit).Error; err != nil {
		return nil, db.Classify("create habit", "Habit", err)
	}
	return &habit, nil
}

// Update 合并 patch 中提供的字段；空 patch 返回 InvalidRequest 且不读库
func (s *HabitService) Update(ctx context.Context, id string, patch HabitPatch) (*db.Habit, error) {
	if patch.IsEmpty() {
		return nil, apperr.Invalid("No data to update")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := cleanTextPtr(patch.Name); name != nil {
		if *name == "" {
			return nil, apperr.Invalid("Habit name cannot be empty")
		}
		existing.Name = *name
	}
	if patch.Category != nil {
		existing.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Time != nil {
		if *patch.Time < 0 {
			return nil, apperr.Invalid("Habit time must not be negative")
		}
		existing.Time = *patch.Time
	}
	if description := cleanTextPtr(patch.Description); description != nil {
		existing.Description = *description
	}

	tx, cancel := s.store.Session(ctx)
	defer cancel()
	if err := tx.Save(existing).Error; err != nil {
		return nil, db.Classify("update habit", "Habit", err)
	}
	return existing, nil
}

// Delete 删除习惯；stack 中对它的引用保留
func (s *HabitService) Delete(ctx context.Context, id string) error {
	tx, cancel := s.store.Session(ctx)
	defer cancel()

	result := tx.Where("id = ?", id).Delete(&db.Habit{})
	if result.Error != nil {
		return db.Classify("delete habit", "Habit", result.Error)
	}
	if result.RowsAffected == 0 {
		return db.Classify("delete habit", "Habit", gorm.ErrRecordNotFound)
	}
	return nil
}
