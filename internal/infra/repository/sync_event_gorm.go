package repository

import (
	"context"

	"cart-service/internal/domain/model"
	repo "cart-service/internal/repository"

	"gorm.io/gorm"
)

type syncEventGormRepository struct {
	db *gorm.DB
}

func NewSyncEventGormRepository(db *gorm.DB) repo.SyncEventRepository {
	return &syncEventGormRepository{db: db}
}

func (r *syncEventGormRepository) Create(ctx context.Context, ev model.SyncEvent) error {
	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return err
	}
	return nil
}

func (r *syncEventGormRepository) List(ctx context.Context, filter repo.SyncEventFilter) ([]model.SyncEvent, error) {
	q := r.db.WithContext(ctx).Model(&model.SyncEvent{})

	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Kind != nil {
		q = q.Where("kind = ?", *filter.Kind)
	}

	//新しい順
	q = q.Order("id DESC")

	// limit/offset
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	q = q.Limit(limit).Offset(filter.Offset)

	var events []model.SyncEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
