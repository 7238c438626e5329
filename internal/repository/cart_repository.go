package repository

import (
	"context"
)

// カタログ通知の内容（商品更新）
type PriceUpdate struct {
	ProductID int64
	Price     int64
	Name      string
	Image     *string

	// 0ならバージョン判定をしない
	Version int64
}

// カタログ通知による一括更新。
// product_id が一致する全ユーザーの明細を1文で更新し、更新件数を返す。
type CartSyncRepository interface {
	ApplyPriceUpdate(ctx context.Context, u PriceUpdate) (int64, error)
	SetOutOfStock(ctx context.Context, productID int64, outOfStock bool, version int64) (int64, error)
	MarkDeleted(ctx context.Context, productID int64) (int64, error)
}
