package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cart-service/internal/catalog"
	"cart-service/internal/domain/model"
	repo "cart-service/internal/repository"

	"github.com/google/uuid"
)

// 商品サービスへの問い合わせ。
// 404は catalog.ErrProductNotFound、通信失敗は *catalog.UnavailableError を返す約束。
type CatalogClient interface {
	Fetch(ctx context.Context, productID int64) (model.CatalogProduct, error)
}

type IDGenerator interface {
	NewID() uuid.UUID
}

type Clock interface {
	Now() time.Time
}

// CartUsecase は /cart の業務ロジックです。
type CartUsecase struct {
	items   repo.CartItemRepository
	tx      repo.TransactionManager
	catalog CatalogClient
	idGen   IDGenerator
	clock   Clock
	log     *slog.Logger
}

// DI
func NewCartUsecase(
	items repo.CartItemRepository,
	tx repo.TransactionManager,
	catalog CatalogClient,
	idGen IDGenerator,
	clock Clock,
	logger *slog.Logger,
) *CartUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartUsecase{
		items:   items,
		tx:      tx,
		catalog: catalog,
		idGen:   idGen,
		clock:   clock,
		log:     logger,
	}
}

type AddItemInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateQuantityInput struct {
	Quantity int64
}

// GetCart はカートと合計を返す。
func (u *CartUsecase) GetCart(ctx context.Context, userID uuid.UUID) (CartView, error) {
	if userID == uuid.Nil {
		return CartView{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	items, err := u.items.ListByUserID(ctx, userID)
	if err != nil {
		return CartView{}, fmt.Errorf("list cart items: %w", err)
	}

	u.log.InfoContext(ctx, "cart_retrieved",
		"user_id", userID.String(),
		"items_count", len(items),
	)
	return BuildCartView(items), nil
}

// ListItems は注文サービス向けに明細をフラグ付きでそのまま返す。
func (u *CartUsecase) ListItems(ctx context.Context, userID uuid.UUID) ([]CartItemResponse, error) {
	if userID == uuid.Nil {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	items, err := u.items.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	out := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toCartItemResponse(it))
	}
	return out, nil
}

// AddItem はカートに追加（同一商品は数量加算）。
// 既存の明細があれば商品サービスには問い合わせない。
func (u *CartUsecase) AddItem(ctx context.Context, userID uuid.UUID, in AddItemInput) (CartItemResponse, error) {
	if userID == uuid.Nil {
		return CartItemResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 || in.Quantity > model.MaxQuantity {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 既存ありだったら数量を増やす
	merged, err := u.items.IncrementQuantity(ctx, userID, in.ProductID, in.Quantity)
	if err == nil {
		u.log.InfoContext(ctx, "cart_item_merged",
			"user_id", userID.String(),
			"product_id", in.ProductID,
			"quantity", merged.Quantity,
		)
		return toCartItemResponse(merged), nil
	}
	if errors.Is(err, repo.ErrQuantityLimit) {
		return CartItemResponse{}, quantityLimitError()
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return CartItemResponse{}, fmt.Errorf("increment quantity: %w", err)
	}

	// 無い場合は商品サービスから最新の情報を取る
	p, err := u.catalog.Fetch(ctx, in.ProductID)
	if err != nil {
		return CartItemResponse{}, mapCatalogError(in.ProductID, err)
	}

	now := u.clock.Now()
	newItem := model.CartItem{
		ID:              u.idGen.NewID(),
		UserID:          userID,
		ProductID:       in.ProductID,
		Quantity:        in.Quantity,
		ProductSnapshot: p.Snapshot(),
		SyncMirror:      model.SyncMirror{PriceVersion: p.Version},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var out model.CartItem
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		created, err := r.CartItems().Create(ctx, newItem)
		if err == nil {
			out = created
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return err
		}

		//同時に同じ商品が追加されていた場合は加算に切り替える
		merged, err := r.CartItems().IncrementQuantity(ctx, userID, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}
		out = merged
		return nil
	})
	if errors.Is(err, repo.ErrQuantityLimit) {
		return CartItemResponse{}, quantityLimitError()
	}
	if err != nil {
		return CartItemResponse{}, fmt.Errorf("create cart item: %w", err)
	}

	u.log.InfoContext(ctx, "cart_item_added",
		"user_id", userID.String(),
		"product_id", in.ProductID,
		"quantity", out.Quantity,
	)
	return toCartItemResponse(out), nil
}

// 数量変更（本人の明細だけ）。スナップショットとフラグは触らない。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, in UpdateQuantityInput) (CartItemResponse, error) {
	if userID == uuid.Nil {
		return CartItemResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Quantity < 1 || in.Quantity > model.MaxQuantity {
		return CartItemResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	item, err := u.items.UpdateQuantity(ctx, userID, itemID, in.Quantity)
	if errors.Is(err, repo.ErrNotFound) {
		return CartItemResponse{}, NewHTTPError(http.StatusNotFound, fmt.Sprintf("Cart item %s not found", itemID))
	}
	if err != nil {
		return CartItemResponse{}, fmt.Errorf("update quantity: %w", err)
	}

	u.log.InfoContext(ctx, "cart_item_quantity_updated",
		"user_id", userID.String(),
		"item_id", itemID.String(),
		"quantity", item.Quantity,
	)
	return toCartItemResponse(item), nil
}

// 明細削除（本人の明細だけ）
func (u *CartUsecase) RemoveItem(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) error {
	if userID == uuid.Nil {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	err := u.items.DeleteOwned(ctx, userID, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Cart item %s not found", itemID))
	}
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	u.log.InfoContext(ctx, "cart_item_removed",
		"user_id", userID.String(),
		"item_id", itemID.String(),
	)
	return nil
}

// ClearCart はユーザーの明細を全削除して件数を返す（空でも成功）。
// 利用者本人の操作と、注文確定後の内部呼び出しの両方で使う。
func (u *CartUsecase) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	deleted, err := u.items.DeleteAllByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	u.log.InfoContext(ctx, "cart_cleared",
		"user_id", userID.String(),
		"deleted_rows", deleted,
	)
	return deleted, nil
}

func quantityLimitError() error {
	return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("quantity must be <= %d", model.MaxQuantity))
}

// 商品サービスのエラーを利用者向けに変換
func mapCatalogError(productID int64, err error) error {
	if errors.Is(err, catalog.ErrProductNotFound) {
		return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product with id=%d not found in Product Service", productID))
	}
	if catalog.IsUnavailable(err) {
		return NewHTTPError(http.StatusServiceUnavailable, "Product Service is temporarily unavailable")
	}
	return fmt.Errorf("fetch product %d: %w", productID, err)
}
