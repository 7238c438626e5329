package repository

import (
	"context"
	"errors"

	"cart-service/internal/domain/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")

	// (user_id, product_id) の一意制約違反
	ErrDuplicate = errors.New("duplicate")

	// 数量が上限（model.MaxQuantity）を超える
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)

// 利用者本人が行う明細の操作。
// 所有者チェックは userID を条件に含めて1文で行う。
type CartItemRepository interface {
	// 追加順（created_at, id）で返す
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error)

	// 一意制約違反は ErrDuplicate
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)

	// 既存行の数量を加算する。行が無ければ ErrNotFound、上限超えは ErrQuantityLimit
	IncrementQuantity(ctx context.Context, userID uuid.UUID, productID int64, addQty int64) (model.CartItem, error)

	UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, qty int64) (model.CartItem, error)
	DeleteOwned(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) error

	// 削除件数を返す（0件でもエラーにしない）
	DeleteAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}
