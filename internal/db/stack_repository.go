package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// StackRepository 负责 HabitStack 的读写
type StackRepository struct {
	store *Store
}

// NewStackRepository 构造 StackRepository
func NewStackRepository(store *Store) *StackRepository {
	return &StackRepository{store: store}
}

// List 返回全部 stack，search 非空时按名称做不区分大小写的包含匹配
func (r *StackRepository) List(ctx context.Context, search string) ([]HabitStack, error) {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	query := tx.Model(&HabitStack{})
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", fmt.Sprintf("%%%s%%", strings.ToLower(search)))
	}

	var stacks []HabitStack
	if err := query.Order("created_at ASC").Find(&stacks).Error; err != nil {
		return nil, Classify("list stacks", "Stack", err)
	}
	for i := range stacks {
		normalizeStack(&stacks[i])
	}
	return stacks, nil
}

// Get 根据 ID 获取 stack，不存在时返回 NotFound
func (r *StackRepository) Get(ctx context.Context, id string) (*HabitStack, error) {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	var stack HabitStack
	if err := tx.Where("id = ?", id).First(&stack).Error; err != nil {
		return nil, Classify("get stack", "Stack", err)
	}
	normalizeStack(&stack)
	return &stack, nil
}

// Create 插入新 stack
func (r *StackRepository) Create(ctx context.Context, stack *HabitStack) error {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	normalizeStack(stack)
	if err := tx.Create(stack).Error; err != nil {
		return Classify("create stack", "Stack", err)
	}
	return nil
}

// Put 整体写回 stack（不存在时插入）
func (r *StackRepository) Put(ctx context.Context, stack *HabitStack) error {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	normalizeStack(stack)
	if err := tx.Save(stack).Error; err != nil {
		return Classify("put stack", "Stack", err)
	}
	return nil
}

// Delete 删除 stack，不存在时返回 NotFound
func (r *StackRepository) Delete(ctx context.Context, id string) error {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	result := tx.Where("id = ?", id).Delete(&HabitStack{})
	if result.Error != nil {
		return Classify("delete stack", "Stack", result.Error)
	}
	if result.RowsAffected == 0 {
		return Classify("delete stack", "Stack", gorm.ErrRecordNotFound)
	}
	return nil
}

func normalizeStack(stack *HabitStack) {
	if stack.Habits == nil {
		stack.Habits = cloneEntries(nil)
	}
}
