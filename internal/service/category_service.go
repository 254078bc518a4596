package service

import (
	"context"
	"strings"
	"time"

	"github.com/habitstack/internal/apperr"
	"github.com/habitstack/internal/db"
)

// CategoryService 管理习惯分类，只支持创建与列表
type CategoryService struct {
	store *db.Store
	now   func() time.Time
}

// CategoryInput 定义创建分类时的字段
type CategoryInput struct {
	Name  string
	Color string
	Icon  string
}

// NewCategoryService 构造 CategoryService
func NewCategoryService(store *db.Store) *CategoryService {
	return &CategoryService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List 按创建时间返回全部分类
func (s *CategoryService) List(ctx context.Context) ([]db.HabitCategory, error) {
	tx, cancel := s.store.Session(ctx)
	defer cancel()

	categories := make([]db.HabitCategory, 0)
	if err := tx.Order("created_at ASC").Find(&categories).Error; err != nil {
		return nil, db.Classify("list categories", "Category", err)
	}
	return categories, nil
}

// Create 新建分类，三个字段都必填
func (s *CategoryService) Create(ctx context.Context, input CategoryInput) (*db.HabitCategory, error) {
	name := cleanText(input.Name)
	color := strings.TrimSpace(input.Color)
	icon := strings.TrimSpace(input.Icon)
	if name == "" || color == "" || icon == "" {
		return nil, apperr.Invalid("Category name, color and icon are required")
	}

	category := db.NewHabitCategory(name, color, icon, s.now())

	tx, cancel := s.store.Session(ctx)
	defer cancel()
	if err := tx.Create(&category).Error; err != nil {
		return nil, db.Classify("create category", "Category", err)
	}
	return &category, nil
}
