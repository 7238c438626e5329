package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"cart-service/internal/domain/model"
	repo "cart-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// =====================
// repository モック
// =====================

type MockCartItemRepository struct {
	mock.Mock
}

func (m *MockCartItemRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *MockCartItemRepository) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(model.CartItem), args.Error(1)
}

func (m *MockCartItemRepository) IncrementQuantity(ctx context.Context, userID uuid.UUID, productID int64, addQty int64) (model.CartItem, error) {
	args := m.Called(ctx, userID, productID, addQty)
	return args.Get(0).(model.CartItem), args.Error(1)
}

func (m *MockCartItemRepository) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, qty int64) (model.CartItem, error) {
	args := m.Called(ctx, userID, itemID, qty)
	return args.Get(0).(model.CartItem), args.Error(1)
}

func (m *MockCartItemRepository) DeleteOwned(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) error {
	args := m.Called(ctx, userID, itemID)
	return args.Error(0)
}

func (m *MockCartItemRepository) DeleteAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

var _ repo.CartItemRepository = (*MockCartItemRepository)(nil)

type MockCartSyncRepository struct {
	mock.Mock
}

func (m *MockCartSyncRepository) ApplyPriceUpdate(ctx context.Context, u repo.PriceUpdate) (int64, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartSyncRepository) SetOutOfStock(ctx context.Context, productID int64, outOfStock bool, version int64) (int64, error) {
	args := m.Called(ctx, productID, outOfStock, version)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartSyncRepository) MarkDeleted(ctx context.Context, productID int64) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

var _ repo.CartSyncRepository = (*MockCartSyncRepository)(nil)

type MockSyncEventRepository struct {
	mock.Mock
}

func (m *MockSyncEventRepository) Create(ctx context.Context, ev model.SyncEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockSyncEventRepository) List(ctx context.Context, filter repo.SyncEventFilter) ([]model.SyncEvent, error) {
	args := m.Called(ctx, filter)
	evs, _ := args.Get(0).([]model.SyncEvent)
	return evs, args.Error(1)
}

var _ repo.SyncEventRepository = (*MockSyncEventRepository)(nil)

// Txはモックをそのまま渡すだけ（fnのエラーをそのまま返す）
type fakeTxManager struct {
	items  *MockCartItemRepository
	sync   *MockCartSyncRepository
	events *MockSyncEventRepository
	calls  int
}

func (f *fakeTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	f.calls++
	return fn(f)
}

func (f *fakeTxManager) CartItems() repo.CartItemRepository   { return f.items }
func (f *fakeTxManager) CartSync() repo.CartSyncRepository    { return f.sync }
func (f *fakeTxManager) SyncEvents() repo.SyncEventRepository { return f.events }

// =====================
// 外部依存のモック
// =====================

type MockCatalogClient struct {
	mock.Mock
}

func (m *MockCatalogClient) Fetch(ctx context.Context, productID int64) (model.CatalogProduct, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(model.CatalogProduct), args.Error(1)
}

var _ CatalogClient = (*MockCatalogClient)(nil)

type fixedIDGen struct {
	id uuid.UUID
}

func (g fixedIDGen) NewID() uuid.UUID { return g.id }

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }
