package repository

import (
	"context"

	repo "cart-service/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	cartItems  repo.CartItemRepository
	cartSync   repo.CartSyncRepository
	syncEvents repo.SyncEventRepository
}

func (r *txReposGorm) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *txReposGorm) CartSync() repo.CartSyncRepository    { return r.cartSync }
func (r *txReposGorm) SyncEvents() repo.SyncEventRepository { return r.syncEvents }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		cart := NewCartGormRepository(tx)
		r := &txReposGorm{
			cartItems:  cart,
			cartSync:   cart,
			syncEvents: NewSyncEventGormRepository(tx),
		}
		return fn(r)
	})
}
