package repository

import (
	"context"
	"errors"
	"time"

	"cart-service/internal/domain/model"
	repo "cart-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーの明細を追加順で取得
func (r *CartGormRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 明細を新規作成
// Tx内から呼ばれた場合はSAVEPOINTになるので、一意制約違反の後も外側のTxを続けられる。
func (r *CartGormRepository) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&item).Error
	})
	if isUniqueViolation(err) {
		return model.CartItem{}, repo.ErrDuplicate
	}
	if isCheckViolation(err) {
		return model.CartItem{}, repo.ErrQuantityLimit
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// 同一商品は数量加算（読み取り→書き込みではなく1文で加算）
func (r *CartGormRepository) IncrementQuantity(ctx context.Context, userID uuid.UUID, productID int64, addQty int64) (model.CartItem, error) {
	if addQty <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}
	if addQty > model.MaxQuantity {
		return model.CartItem{}, repo.ErrQuantityLimit
	}

	var items []model.CartItem
	res := r.db.WithContext(ctx).
		Model(&items).
		Clauses(clause.Returning{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", addQty),
			"updated_at": time.Now(),
		})

	if isCheckViolation(res.Error) {
		return model.CartItem{}, repo.ErrQuantityLimit
	}
	if res.Error != nil {
		return model.CartItem{}, res.Error
	}
	if res.RowsAffected == 0 || len(items) == 0 {
		return model.CartItem{}, repo.ErrNotFound
	}
	return items[0], nil
}

// 明細の数量を更新（本人の明細だけ）
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, qty int64) (model.CartItem, error) {
	var items []model.CartItem
	res := r.db.WithContext(ctx).
		Model(&items).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Updates(map[string]interface{}{
			"quantity":   qty,
			"updated_at": time.Now(),
		})

	if isCheckViolation(res.Error) {
		return model.CartItem{}, repo.ErrQuantityLimit
	}
	if res.Error != nil {
		return model.CartItem{}, res.Error
	}
	if res.RowsAffected == 0 || len(items) == 0 {
		return model.CartItem{}, repo.ErrNotFound
	}
	return items[0], nil
}

// 明細を削除（本人の明細だけ）
func (r *CartGormRepository) DeleteOwned(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ユーザーの明細を全削除
func (r *CartGormRepository) DeleteAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.CartItem{})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 商品更新を全ユーザーの明細へ反映
// price_changed は行ごとに「追加時点の価格」と比較する。
// 新価格が追加時点の価格と同じ行は current_price を NULL に戻す（current_price は price_changed のときだけ値を持つ）。
func (r *CartGormRepository) ApplyPriceUpdate(ctx context.Context, u repo.PriceUpdate) (int64, error) {
	values := map[string]interface{}{
		"current_price": gorm.Expr("CASE WHEN product_price <> ? THEN ?::bigint ELSE NULL END", u.Price, u.Price),
		"price_changed": gorm.Expr("product_price <> ?", u.Price),
		"product_name":  u.Name,
		"product_image": u.Image,
		"updated_at":    time.Now(),
	}

	q := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("product_id = ?", u.ProductID)

	//古いバージョンの通知は当てない
	if u.Version > 0 {
		q = q.Where("price_version <= ?", u.Version)
		values["price_version"] = u.Version
	}

	res := q.Updates(values)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 在庫切れフラグを全ユーザーの明細へ反映
func (r *CartGormRepository) SetOutOfStock(ctx context.Context, productID int64, outOfStock bool, version int64) (int64, error) {
	values := map[string]interface{}{
		"out_of_stock": outOfStock,
		"updated_at":   time.Now(),
	}

	q := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("product_id = ?", productID)

	if version > 0 {
		q = q.Where("stock_version <= ?", version)
		values["stock_version"] = version
	}

	res := q.Updates(values)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 削除済み（tombstone）にする。行は消さない。
func (r *CartGormRepository) MarkDeleted(ctx context.Context, productID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"product_deleted": true,
			"updated_at":      time.Now(),
		})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// quantity の CHECK 制約違反
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}
