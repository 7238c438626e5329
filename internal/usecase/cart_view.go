package usecase

import (
	"time"

	"cart-service/internal/domain/model"

	"github.com/google/uuid"
)

// 明細1件のレスポンス。スナップショットと同期フラグをそのまま返す。
type CartItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`

	// 追加時点のスナップショット
	ProductName  string  `json:"product_name"`
	ProductPrice int64   `json:"product_price"`
	ProductImage *string `json:"product_image"`

	// 同期フラグ
	PriceChanged   bool   `json:"price_changed"`
	CurrentPrice   *int64 `json:"current_price"`
	OutOfStock     bool   `json:"out_of_stock"`
	ProductDeleted bool   `json:"product_deleted"`

	// 合計に使った単価
	EffectivePrice int64 `json:"effective_price"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// カート全体
type CartView struct {
	Items         []CartItemResponse `json:"items"`
	TotalPrice    int64              `json:"total_price"`
	TotalQuantity int64              `json:"total_quantity"`
}

func toCartItemResponse(it model.CartItem) CartItemResponse {
	return CartItemResponse{
		ID:             it.ID,
		ProductID:      it.ProductID,
		Quantity:       it.Quantity,
		ProductName:    it.ProductName,
		ProductPrice:   it.ProductPrice,
		ProductImage:   it.ProductImage,
		PriceChanged:   it.PriceChanged,
		CurrentPrice:   it.CurrentPrice,
		OutOfStock:     it.OutOfStock,
		ProductDeleted: it.ProductDeleted,
		EffectivePrice: it.EffectiveUnitPrice(),
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

// BuildCartView は明細から合計を計算する（書き込みはしない）。
// 削除済み・在庫切れの明細も除外せずに合計へ含める。
func BuildCartView(items []model.CartItem) CartView {
	view := CartView{Items: make([]CartItemResponse, 0, len(items))}

	for _, it := range items {
		view.Items = append(view.Items, toCartItemResponse(it))
		view.TotalPrice += it.LineTotal()
		view.TotalQuantity += it.Quantity
	}

	return view
}
