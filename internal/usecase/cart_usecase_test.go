package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cart-service/internal/catalog"
	"cart-service/internal/domain/model"
	repo "cart-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testUserID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	otherUserID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	newItemID   = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	testNow     = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

type cartFixture struct {
	uc      *CartUsecase
	items   *MockCartItemRepository
	tx      *fakeTxManager
	catalog *MockCatalogClient
}

func newCartFixture() cartFixture {
	items := new(MockCartItemRepository)
	tx := &fakeTxManager{items: items, sync: new(MockCartSyncRepository), events: new(MockSyncEventRepository)}
	cat := new(MockCatalogClient)

	uc := NewCartUsecase(items, tx, cat, fixedIDGen{id: newItemID}, fixedClock{now: testNow}, discardLogger())
	return cartFixture{uc: uc, items: items, tx: tx, catalog: cat}
}

func requireHTTPError(t *testing.T, err error, status int) *HTTPError {
	t.Helper()
	he, ok := AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	assert.Equal(t, status, he.Status)
	return he
}

func expectedNewItem(productID, qty int64, p model.CatalogProduct) model.CartItem {
	return model.CartItem{
		ID:              newItemID,
		UserID:          testUserID,
		ProductID:       productID,
		Quantity:        qty,
		ProductSnapshot: p.Snapshot(),
		SyncMirror:      model.SyncMirror{PriceVersion: p.Version},
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

// Test: 新規追加はカタログから取得したスナップショットで作成
func TestAddItem_NewRowFromCatalog(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	p := model.CatalogProduct{ID: 42, Name: "Keyboard", Price: 1000, Image: strPtr("https://img/k.png"), Version: 2}
	want := expectedNewItem(42, 1, p)

	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(1)).Return(model.CartItem{}, repo.ErrNotFound).Once()
	f.catalog.On("Fetch", ctx, int64(42)).Return(p, nil).Once()
	f.items.On("Create", ctx, want).Return(want, nil).Once()

	out, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 42, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, newItemID, out.ID)
	assert.Equal(t, "Keyboard", out.ProductName)
	assert.Equal(t, int64(1000), out.ProductPrice)
	assert.False(t, out.PriceChanged)
	assert.Nil(t, out.CurrentPrice)
	assert.Equal(t, int64(1000), out.EffectivePrice)
	assert.Equal(t, 1, f.tx.calls)

	f.items.AssertExpectations(t)
	f.catalog.AssertExpectations(t)
}

// Test: 同じ商品を2回追加すると1行で数量3（2回目はカタログを呼ばない）
func TestAddItem_MergeSkipsCatalog(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	merged := model.CartItem{
		ID: newItemID, UserID: testUserID, ProductID: 42, Quantity: 3,
		ProductSnapshot: model.ProductSnapshot{ProductName: "Keyboard", ProductPrice: 1000},
	}
	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(2)).Return(merged, nil).Once()

	out, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 42, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Quantity)
	assert.Equal(t, newItemID, out.ID)

	f.catalog.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	f.items.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 0, f.tx.calls)
}

// Test: 同時追加で一意制約に当たったら加算に切り替える
func TestAddItem_DuplicateRaceFallsBackToMerge(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	p := model.CatalogProduct{ID: 42, Name: "Keyboard", Price: 1000}
	want := expectedNewItem(42, 1, p)
	merged := want
	merged.ID = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	merged.Quantity = 2

	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(1)).Return(model.CartItem{}, repo.ErrNotFound).Once()
	f.catalog.On("Fetch", ctx, int64(42)).Return(p, nil).Once()
	f.items.On("Create", ctx, want).Return(model.CartItem{}, repo.ErrDuplicate).Once()
	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(1)).Return(merged, nil).Once()

	out, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 42, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, merged.ID, out.ID)
	assert.Equal(t, int64(2), out.Quantity)

	f.items.AssertExpectations(t)
}

// Test: カタログがタイムアウトしたら503で行は作らない
func TestAddItem_CatalogUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	f.items.On("IncrementQuantity", ctx, testUserID, int64(99), int64(1)).Return(model.CartItem{}, repo.ErrNotFound).Once()
	f.catalog.On("Fetch", ctx, int64(99)).
		Return(model.CatalogProduct{}, &catalog.UnavailableError{ProductID: 99, Err: context.DeadlineExceeded}).Once()

	_, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 99, Quantity: 1})
	he := requireHTTPError(t, err, http.StatusServiceUnavailable)
	assert.Equal(t, "service_unavailable", he.Type)

	f.items.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 0, f.tx.calls)
}

func TestAddItem_CatalogNotFound(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	f.items.On("IncrementQuantity", ctx, testUserID, int64(7), int64(1)).Return(model.CartItem{}, repo.ErrNotFound).Once()
	f.catalog.On("Fetch", ctx, int64(7)).Return(model.CatalogProduct{}, catalog.ErrProductNotFound).Once()

	_, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 7, Quantity: 1})
	he := requireHTTPError(t, err, http.StatusNotFound)
	assert.Equal(t, "Product with id=7 not found in Product Service", he.Message)

	f.items.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAddItem_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	_, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 0, Quantity: 1})
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 1, Quantity: 0})
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 1, Quantity: model.MaxQuantity + 1})
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = f.uc.AddItem(ctx, uuid.Nil, AddItemInput{ProductID: 1, Quantity: 1})
	requireHTTPError(t, err, http.StatusUnauthorized)

	f.items.AssertNotCalled(t, "IncrementQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Test: 加算で上限を超える場合は400
func TestAddItem_MergeOverLimit(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(5000)).
		Return(model.CartItem{}, repo.ErrQuantityLimit).Once()

	_, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 42, Quantity: 5000})
	he := requireHTTPError(t, err, http.StatusBadRequest)
	assert.Equal(t, "quantity must be <= 9999", he.Message)

	f.catalog.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

// Test: 同時追加の加算側で上限を超えた場合も400
func TestAddItem_DuplicateRaceOverLimit(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	p := model.CatalogProduct{ID: 42, Name: "Keyboard", Price: 1000}
	want := expectedNewItem(42, 9000, p)

	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(9000)).Return(model.CartItem{}, repo.ErrNotFound).Once()
	f.catalog.On("Fetch", ctx, int64(42)).Return(p, nil).Once()
	f.items.On("Create", ctx, want).Return(model.CartItem{}, repo.ErrDuplicate).Once()
	f.items.On("IncrementQuantity", ctx, testUserID, int64(42), int64(9000)).Return(model.CartItem{}, repo.ErrQuantityLimit).Once()

	_, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 42, Quantity: 9000})
	requireHTTPError(t, err, http.StatusBadRequest)
}

func TestAddItem_StoreErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()
	dbErr := errors.New("connection reset")

	f.items.On("IncrementQuantity", ctx, testUserID, int64(1), int64(1)).Return(model.CartItem{}, dbErr).Once()

	_, err := f.uc.AddItem(ctx, testUserID, AddItemInput{ProductID: 1, Quantity: 1})
	assert.ErrorIs(t, err, dbErr)
	_, isHTTP := AsHTTPError(err)
	assert.False(t, isHTTP)
}

// Test: 合計は実効単価で計算し、削除済み・在庫切れも含める
func TestGetCart_Totals(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	items := []model.CartItem{
		{
			ID: uuid.New(), ProductID: 42, Quantity: 1,
			ProductSnapshot: model.ProductSnapshot{ProductName: "Keyboard", ProductPrice: 1000},
			SyncMirror:      model.SyncMirror{PriceChanged: true, CurrentPrice: int64Ptr(1200)},
		},
		{
			ID: uuid.New(), ProductID: 7, Quantity: 2,
			ProductSnapshot: model.ProductSnapshot{ProductName: "Cable", ProductPrice: 300},
			SyncMirror:      model.SyncMirror{OutOfStock: true, ProductDeleted: true},
		},
	}
	f.items.On("ListByUserID", ctx, testUserID).Return(items, nil).Once()

	view, err := f.uc.GetCart(ctx, testUserID)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, int64(1800), view.TotalPrice)
	assert.Equal(t, int64(3), view.TotalQuantity)
	assert.Equal(t, int64(1200), view.Items[0].EffectivePrice)
	assert.True(t, view.Items[1].ProductDeleted)
}

// Test: 並び順は入力（追加順）のまま
func TestBuildCartView_KeepsOrder(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	items := []model.CartItem{
		{ID: ids[0], ProductID: 30, Quantity: 1},
		{ID: ids[1], ProductID: 10, Quantity: 1},
		{ID: ids[2], ProductID: 20, Quantity: 1},
	}

	view := BuildCartView(items)
	require.Len(t, view.Items, 3)
	for i, id := range ids {
		assert.Equal(t, id, view.Items[i].ID)
	}
}

// Test: 上限いっぱいの明細でも合計は正の値
func TestBuildCartView_MaxBoundsDoNotOverflow(t *testing.T) {
	items := make([]model.CartItem, 0, 1000)
	for i := 0; i < 1000; i++ {
		items = append(items, model.CartItem{
			ID:              uuid.New(),
			ProductID:       int64(i + 1),
			Quantity:        model.MaxQuantity,
			ProductSnapshot: model.ProductSnapshot{ProductPrice: model.MaxUnitPrice},
		})
	}

	view := BuildCartView(items)
	assert.Equal(t, model.MaxQuantity*model.MaxUnitPrice*1000, view.TotalPrice)
	assert.Greater(t, view.TotalPrice, int64(0))
	assert.Equal(t, model.MaxQuantity*1000, view.TotalQuantity)
}

func TestGetCart_Empty(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()
	f.items.On("ListByUserID", ctx, testUserID).Return([]model.CartItem{}, nil).Once()

	view, err := f.uc.GetCart(ctx, testUserID)
	require.NoError(t, err)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.Equal(t, int64(0), view.TotalPrice)
}

func TestListItems(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()
	items := []model.CartItem{{ID: newItemID, UserID: testUserID, ProductID: 5, Quantity: 4,
		SyncMirror: model.SyncMirror{OutOfStock: true}}}
	f.items.On("ListByUserID", ctx, testUserID).Return(items, nil).Once()

	out, err := f.uc.ListItems(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].OutOfStock)

	_, err = f.uc.ListItems(ctx, uuid.Nil)
	requireHTTPError(t, err, http.StatusBadRequest)
}

func TestUpdateQuantity_OK(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	updated := model.CartItem{ID: newItemID, UserID: testUserID, ProductID: 42, Quantity: 5,
		ProductSnapshot: model.ProductSnapshot{ProductPrice: 1000}}
	f.items.On("UpdateQuantity", ctx, testUserID, newItemID, int64(5)).Return(updated, nil).Once()

	out, err := f.uc.UpdateQuantity(ctx, testUserID, newItemID, UpdateQuantityInput{Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.Quantity)
	assert.Equal(t, int64(1000), out.ProductPrice)
}

// Test: 他人の明細は見つからない扱い
func TestUpdateQuantity_OtherUsersItem(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	f.items.On("UpdateQuantity", ctx, otherUserID, newItemID, int64(2)).Return(model.CartItem{}, repo.ErrNotFound).Once()

	_, err := f.uc.UpdateQuantity(ctx, otherUserID, newItemID, UpdateQuantityInput{Quantity: 2})
	he := requireHTTPError(t, err, http.StatusNotFound)
	assert.Equal(t, "not_found", he.Type)
	assert.Contains(t, he.Message, newItemID.String())
}

func TestUpdateQuantity_Invalid(t *testing.T) {
	f := newCartFixture()

	_, err := f.uc.UpdateQuantity(context.Background(), testUserID, newItemID, UpdateQuantityInput{Quantity: 0})
	requireHTTPError(t, err, http.StatusBadRequest)

	_, err = f.uc.UpdateQuantity(context.Background(), testUserID, newItemID, UpdateQuantityInput{Quantity: 92233720368547758})
	requireHTTPError(t, err, http.StatusBadRequest)
	f.items.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	f.items.On("DeleteOwned", ctx, testUserID, newItemID).Return(nil).Once()
	require.NoError(t, f.uc.RemoveItem(ctx, testUserID, newItemID))

	f.items.On("DeleteOwned", ctx, otherUserID, newItemID).Return(repo.ErrNotFound).Once()
	requireHTTPError(t, f.uc.RemoveItem(ctx, otherUserID, newItemID), http.StatusNotFound)
}

// Test: 空のカートを消しても成功
func TestClearCart_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()

	f.items.On("DeleteAllByUserID", ctx, testUserID).Return(int64(3), nil).Once()
	f.items.On("DeleteAllByUserID", ctx, testUserID).Return(int64(0), nil).Once()

	n, err := f.uc.ClearCart(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.uc.ClearCart(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
