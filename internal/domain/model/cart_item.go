package model

import (
	"time"

	"github.com/google/uuid"
)

// 数量と単価の上限。合計（単価×数量の和）がint64に収まる範囲にする。
const (
	MaxQuantity  int64 = 9999
	MaxUnitPrice int64 = 1_000_000_000
)

// 追加時点の商品情報（スナップショット）
// 価格は追加後に変わらない。名前と画像はカタログ通知でのみ更新される。
type ProductSnapshot struct {
	ProductName  string  `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductPrice int64   `gorm:"not null" json:"product_price"`
	ProductImage *string `gorm:"type:varchar(512)" json:"product_image"`
}

// カタログ通知だけが書き換える同期フラグ
type SyncMirror struct {
	PriceChanged   bool   `gorm:"not null;default:false" json:"price_changed"`
	CurrentPrice   *int64 `json:"current_price"`
	OutOfStock     bool   `gorm:"not null;default:false" json:"out_of_stock"`
	ProductDeleted bool   `gorm:"not null;default:false" json:"product_deleted"`

	// 最後に適用した通知のバージョン（0は未設定）
	PriceVersion int64 `gorm:"not null;default:0" json:"-"`
	StockVersion int64 `gorm:"not null;default:0" json:"-"`
}

// カートの明細
// (user_id, product_id) で1行だけ存在する。
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_cart_items_user_product,priority:1" json:"user_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:ux_cart_items_user_product,priority:2;index:ix_cart_items_product" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`

	ProductSnapshot `gorm:"embedded"`
	SyncMirror      `gorm:"embedded"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// EffectiveUnitPrice は合計計算に使う単価。
// 価格が変わっていれば current_price、そうでなければ追加時点の価格。
func (it CartItem) EffectiveUnitPrice() int64 {
	if it.PriceChanged && it.CurrentPrice != nil {
		return *it.CurrentPrice
	}
	return it.ProductPrice
}

// 明細の小計
func (it CartItem) LineTotal() int64 {
	return it.EffectiveUnitPrice() * it.Quantity
}
