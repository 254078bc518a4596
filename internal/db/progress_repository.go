package db

import (
	"context"
	"errors"
	"time"

	"github.com/habitstack/internal/apperr"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm/clause"
)

// ProgressRepository 负责 ProgressData 的读写，以 stack_id 为键
type ProgressRepository struct {
	store  *Store
	create singleflight.Group
	now    func() time.Time
}

// NewProgressRepository 构造 ProgressRepository
func NewProgressRepository(store *Store) *ProgressRepository {
	return &ProgressRepository{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List 返回全部进度记录
func (r *ProgressRepository) List(ctx context.Context) ([]ProgressData, error) {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	var records []ProgressData
	if err := tx.Order("updated_at ASC").Find(&records).Error; err != nil {
		return nil, Classify("list progress", "Progress data", err)
	}
	for i := range records {
		normalizeProgress(&records[i])
	}
	return records, nil
}

// Get 根据 stack_id 获取进度，不存在时返回 NotFound
func (r *ProgressRepository) Get(ctx context.Context, stackID string) (*ProgressData, error) {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	var record ProgressData
	if err := tx.Where("stack_id = ?", stackID).First(&record).Error; err != nil {
		return nil, Classify("get progress", "Progress data", err)
	}
	normalizeProgress(&record)
	return &record, nil
}

// Create 插入新记录；stack_id 冲突时视为存储失败
func (r *ProgressRepository) Create(ctx context.Context, record *ProgressData) error {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	normalizeProgress(record)
	if err := tx.Create(record).Error; err != nil {
		return Classify("create progress", "Progress data", err)
	}
	return nil
}

// Put 整体写回进度记录（不存在时插入）
func (r *ProgressRepository) Put(ctx context.Context, record *ProgressData) error {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	normalizeProgress(record)
	if err := tx.Save(record).Error; err != nil {
		return Classify("put progress", "Progress data", err)
	}
	return nil
}

// Delete 删除 stack 对应的进度，记录不存在不算错误
func (r *ProgressRepository) Delete(ctx context.Context, stackID string) error {
	tx, cancel := r.store.Session(ctx)
	defer cancel()

	if err := tx.Where("stack_id = ?", stackID).Delete(&ProgressData{}).Error; err != nil {
		return Classify("delete progress", "Progress data", err)
	}
	return nil
}

// GetOrCreate 返回已有记录，或创建并保存一条归零记录
// 同一进程内的并发调用合并为一次；跨进程依赖 stack_id 唯一索引 + ON CONFLICT DO NOTHING
func (r *ProgressRepository) GetOrCreate(ctx context.Context, stackID string) (*ProgressData, error) {
	v, err, _ := r.create.Do(stackID, func() (interface{}, error) {
		existing, err := r.Get(ctx, stackID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}

		fresh := NewProgressData(stackID, r.now())
		tx, cancel := r.store.Session(ctx)
		defer cancel()
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stack_id"}},
			DoNothing: true,
		}).Create(&fresh).Error; err != nil {
			return nil, Classify("create progress", "Progress data", err)
		}

		return r.Get(ctx, stackID)
	})
	if err != nil {
		return nil, err
	}

	record := v.(*ProgressData).Clone()
	return &record, nil
}

func normalizeProgress(record *ProgressData) {
	if len(record.LastWeekProgress) != WeekLength {
		week := make([]bool, WeekLength)
		copy(week, record.LastWeekProgress)
		record.LastWeekProgress = week
	}
}
