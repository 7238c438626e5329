package repository

import (
	"context"

	"cart-service/internal/domain/model"
)

// 同期イベントの絞り込み条件。
type SyncEventFilter struct {
	ProductID *int64
	Kind      *model.SyncEventKind
	Limit     int
	Offset    int
}

// 同期イベントの保存・一覧取得の約束。
type SyncEventRepository interface {
	//1件保存
	Create(ctx context.Context, ev model.SyncEvent) error

	//条件で一覧取得（新しい順）
	List(ctx context.Context, filter SyncEventFilter) ([]model.SyncEvent, error)
}
