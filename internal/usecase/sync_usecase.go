package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cart-service/internal/domain/model"
	repo "cart-service/internal/repository"
)

// カタログ通知の共通部分
type Notification struct {
	ProductID int64
	// 0ならバージョン判定をしない
	Version int64
	Source  model.SyncEventSource
}

// 商品更新通知の中身
type ProductUpdate struct {
	Title    string  `json:"title"`
	Price    int64   `json:"price"`
	ImageURL *string `json:"image_url"`
}

// SyncUsecase はカタログ通知を全ユーザーの明細へ一括で反映する。
// 行ごとのループはせず、通知1件につきUPDATE1文＋記録1件を1つのTxで行う。
type SyncUsecase struct {
	tx     repo.TransactionManager
	events repo.SyncEventRepository
	log    *slog.Logger
}

// DI
func NewSyncUsecase(tx repo.TransactionManager, events repo.SyncEventRepository, logger *slog.Logger) *SyncUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncUsecase{tx: tx, events: events, log: logger}
}

// 商品更新：名前と画像を上書きし、価格が追加時点と違えば price_changed を立てる。
func (u *SyncUsecase) ApplyPriceUpdate(ctx context.Context, n Notification, in ProductUpdate) (int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return 0, NewHTTPError(http.StatusBadRequest, "title required")
	}
	if in.Price < 0 || in.Price > model.MaxUnitPrice {
		return 0, NewHTTPError(http.StatusBadRequest, fmt.Sprintf("price must be between 0 and %d", model.MaxUnitPrice))
	}

	upd := repo.PriceUpdate{
		ProductID: n.ProductID,
		Price:     in.Price,
		Name:      in.Title,
		Image:     in.ImageURL,
		Version:   n.Version,
	}
	return u.apply(ctx, n, model.SyncEventProductUpdated, in, func(r repo.TxRepos) (int64, error) {
		return r.CartSync().ApplyPriceUpdate(ctx, upd)
	})
}

// 在庫切れ（true）／在庫復活（false）
func (u *SyncUsecase) ApplyOutOfStock(ctx context.Context, n Notification, outOfStock bool) (int64, error) {
	kind := model.SyncEventBackInStock
	if outOfStock {
		kind = model.SyncEventOutOfStock
	}
	payload := map[string]bool{"out_of_stock": outOfStock}

	return u.apply(ctx, n, kind, payload, func(r repo.TxRepos) (int64, error) {
		return r.CartSync().SetOutOfStock(ctx, n.ProductID, outOfStock, n.Version)
	})
}

// 商品削除：tombstoneを立てる。行は消さず、フラグが戻ることもない。
func (u *SyncUsecase) ApplyDeleted(ctx context.Context, n Notification) (int64, error) {
	payload := map[string]bool{"product_deleted": true}

	return u.apply(ctx, n, model.SyncEventProductDeleted, payload, func(r repo.TxRepos) (int64, error) {
		return r.CartSync().MarkDeleted(ctx, n.ProductID)
	})
}

// 同期イベント一覧の条件（Kindは空なら全種別、Limitは0なら既定値）
type EventQuery struct {
	Kind   model.SyncEventKind
	Limit  int
	Offset int
}

// 直近の同期イベントを返す
func (u *SyncUsecase) ListEvents(ctx context.Context, productID int64, q EventQuery) ([]model.SyncEvent, error) {
	if productID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if q.Limit < 0 || q.Limit > 200 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if q.Offset < 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	filter := repo.SyncEventFilter{ProductID: &productID, Limit: q.Limit, Offset: q.Offset}
	if q.Kind != "" {
		if !q.Kind.Valid() {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid kind")
		}
		kind := q.Kind
		filter.Kind = &kind
	}

	events, err := u.events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sync events: %w", err)
	}
	return events, nil
}

// 一括更新と記録を1つのTxで行う。該当0件も成功。
func (u *SyncUsecase) apply(
	ctx context.Context,
	n Notification,
	kind model.SyncEventKind,
	payload interface{},
	update func(r repo.TxRepos) (int64, error),
) (int64, error) {
	if n.ProductID <= 0 {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if n.Version < 0 {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid version")
	}
	if n.Source == "" {
		n.Source = model.SyncSourceWebhook
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	var rows int64
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		affected, err := update(r)
		if err != nil {
			return err
		}
		rows = affected

		return r.SyncEvents().Create(ctx, model.SyncEvent{
			ProductID:    n.ProductID,
			Kind:         kind,
			Source:       n.Source,
			Version:      n.Version,
			PayloadJSON:  string(payloadJSON),
			AffectedRows: affected,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("apply %s for product %d: %w", kind, n.ProductID, err)
	}

	u.log.InfoContext(ctx, string(kind)+"_handled",
		"product_id", n.ProductID,
		"affected_rows", rows,
		"version", n.Version,
		"source", string(n.Source),
	)
	return rows, nil
}
