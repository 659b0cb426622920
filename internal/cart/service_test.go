package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/cakeshop/internal/model"
	"github.com/hitoshi/cakeshop/internal/repository"
)

// --- モック定義 ---

// memCartRepo は一意性制約とマージ加算を模したインメモリのカートリポジトリ。
type memCartRepo struct {
	mu         sync.Mutex
	carts      map[int64]*model.Cart // customerID -> cart
	items      map[int64]*model.CartItem
	nextCartID int64
	nextItemID int64
	createHits int

	findByCustomerIDFn func(ctx context.Context, customerID int64) (*model.Cart, error)
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{
		carts: make(map[int64]*model.Cart),
		items: make(map[int64]*model.CartItem),
	}
}

func (m *memCartRepo) FindByCustomerID(ctx context.Context, customerID int64) (*model.Cart, error) {
	if m.findByCustomerIDFn != nil {
		return m.findByCustomerIDFn(ctx, customerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[customerID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memCartRepo) Create(_ context.Context, customerID int64) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createHits++
	if _, ok := m.carts[customerID]; ok {
		return nil, repository.ErrDuplicate
	}
	m.nextCartID++
	c := &model.Cart{ID: m.nextCartID, CustomerID: customerID, Status: model.CartStatusOpen, CreatedAt: time.Now()}
	m.carts[customerID] = c
	cp := *c
	return &cp, nil
}

func (m *memCartRepo) UpsertItem(_ context.Context, cartID, cakeID int64, qty int, price float64) (*model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.CartID == cartID && it.CakeID == cakeID {
			if it.Quantity+qty > model.MaxItemQuantity {
				return nil, repository.ErrOutOfRange
			}
			it.Quantity += qty
			cp := *it
			return &cp, nil
		}
	}
	m.nextItemID++
	it := &model.CartItem{ID: m.nextItemID, CartID: cartID, CakeID: cakeID, Quantity: qty, PriceAtAdd: price, AddedAt: time.Now()}
	m.items[it.ID] = it
	cp := *it
	return &cp, nil
}

func (m *memCartRepo) UpdateItemQuantity(_ context.Context, cartID, itemID int64, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok || it.CartID != cartID {
		return false, nil
	}
	if qty > model.MaxItemQuantity {
		return false, repository.ErrOutOfRange
	}
	it.Quantity = qty
	return true, nil
}

func (m *memCartRepo) DeleteItem(_ context.Context, cartID, itemID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok || it.CartID != cartID {
		return false, nil
	}
	delete(m.items, itemID)
	return true, nil
}

func (m *memCartRepo) ListLines(_ context.Context, cartID int64) ([]model.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []model.CartLine
	for _, it := range m.items {
		if it.CartID != cartID {
			continue
		}
		lines = append(lines, model.CartLine{
			ItemID:    it.ID,
			CakeID:    it.CakeID,
			Quantity:  it.Quantity,
			Price:     it.PriceAtAdd,
			LineTotal: it.PriceAtAdd * float64(it.Quantity),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID > lines[j].ItemID })
	return lines, nil
}

func (m *memCartRepo) ClearItems(_ context.Context, cartID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, it := range m.items {
		if it.CartID == cartID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

type mockUserFinder struct {
	users map[string]*model.User
}

func (m *mockUserFinder) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.users[email], nil
}

type mockCakeFinder struct {
	cakes    map[int64]*model.Cake
	findByID func(ctx context.Context, id int64) (*model.Cake, error)
}

func (m *mockCakeFinder) FindByID(ctx context.Context, id int64) (*model.Cake, error) {
	if m.findByID != nil {
		return m.findByID(ctx, id)
	}
	return m.cakes[id], nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// countingTx はWithinTxの呼び出し回数を数える。
type countingTx struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return fn(ctx)
}

const customerEmail = "customer@example.com"

type fixture struct {
	svc   *Service
	carts *memCartRepo
	cakes *mockCakeFinder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	carts := newMemCartRepo()
	users := &mockUserFinder{users: map[string]*model.User{
		customerEmail:         {ID: 10, Email: customerEmail, Role: model.RoleCustomer},
		"other@example.com": {ID: 11, Email: "other@example.com", Role: model.RoleCustomer},
	}}
	cakes := &mockCakeFinder{cakes: map[int64]*model.Cake{
		1: {ID: 1, Price: 250},
		2: {ID: 2, Price: 400},
	}}
	svc := NewService(carts, users, cakes, passthroughTx{}, nil, ServiceConfig{StoreTimeout: time.Second})
	return &fixture{svc: svc, carts: carts, cakes: cakes}
}

func assertKind(t *testing.T, err error, want model.ErrorKind) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != want {
		t.Fatalf("Kind = %v, want %v (%v)", apiErr.Kind, want, apiErr)
	}
}

// --- テスト ---

func TestAddToCart_SameCakeTwice_MergesIntoOneLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddToCart(ctx, customerEmail, 1, 2); err != nil {
		t.Fatalf("first AddToCart returned error: %v", err)
	}
	item, err := f.svc.AddToCart(ctx, customerEmail, 1, 3)
	if err != nil {
		t.Fatalf("second AddToCart returned error: %v", err)
	}
	if item.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", item.Quantity)
	}

	view, err := f.svc.GetCart(ctx, customerEmail)
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("lines = %d, want 1", len(view.Items))
	}
	if view.GrandTotal != 1250 {
		t.Errorf("GrandTotal = %v, want 1250", view.GrandTotal)
	}
}

func TestAddToCart_InvalidQuantity_ReturnsBadRequest(t *testing.T) {
	f := newFixture(t)
	for _, qty := range []int{0, -1, model.MaxItemQuantity + 1, 1 << 31, 1 << 40} {
		_, err := f.svc.AddToCart(context.Background(), customerEmail, 1, qty)
		assertKind(t, err, model.KindBadRequest)
	}
	if len(f.carts.items) != 0 {
		t.Errorf("items = %d, want 0", len(f.carts.items))
	}
}

func TestAddToCart_MaxQuantity_Accepted(t *testing.T) {
	f := newFixture(t)
	item, err := f.svc.AddToCart(context.Background(), customerEmail, 1, model.MaxItemQuantity)
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	if item.Quantity != model.MaxItemQuantity {
		t.Errorf("Quantity = %d, want %d", item.Quantity, model.MaxItemQuantity)
	}
}

// 加算後の数量が上限を超える場合は400で、既存の数量は変わらない。
func TestAddToCart_MergeBeyondLimit_ReturnsBadRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddToCart(ctx, customerEmail, 1, 6000); err != nil {
		t.Fatalf("first AddToCart returned error: %v", err)
	}
	_, err := f.svc.AddToCart(ctx, customerEmail, 1, 6000)
	assertKind(t, err, model.KindBadRequest)

	view, err := f.svc.GetCart(ctx, customerEmail)
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 6000 {
		t.Errorf("items = %+v, want one line with quantity 6000", view.Items)
	}
}

func TestUpdateQuantity_AboveLimit_ReturnsBadRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.AddToCart(ctx, customerEmail, 1, 2)
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	for _, qty := range []int{model.MaxItemQuantity + 1, 1 << 31} {
		err := f.svc.UpdateQuantity(ctx, customerEmail, item.ID, qty)
		assertKind(t, err, model.KindBadRequest)
	}
	if got := f.carts.items[item.ID].Quantity; got != 2 {
		t.Errorf("Quantity = %d, want 2", got)
	}
}

// 読み取りで作成が起こり得るGetCartとClearCartもトランザクション内で実行する。
func TestGetCartAndClearCart_RunInsideTransaction(t *testing.T) {
	f := newFixture(t)
	tx := &countingTx{}
	f.svc.txm = tx
	ctx := context.Background()

	if _, err := f.svc.GetCart(ctx, customerEmail); err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("WithinTx calls after GetCart = %d, want 1", tx.calls)
	}
	if err := f.svc.ClearCart(ctx, customerEmail); err != nil {
		t.Fatalf("ClearCart returned error: %v", err)
	}
	if tx.calls != 2 {
		t.Errorf("WithinTx calls after ClearCart = %d, want 2", tx.calls)
	}
}

func TestAddToCart_MissingCake_ReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddToCart(context.Background(), customerEmail, 99, 1)
	assertKind(t, err, model.KindNotFound)
}

func TestAddToCart_MissingCustomer_ReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddToCart(context.Background(), "ghost@example.com", 1, 1)
	assertKind(t, err, model.KindNotFound)
}

func TestAddToCart_SlowStore_ReturnsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.svc.config.StoreTimeout = 10 * time.Millisecond
	f.cakes.findByID = func(ctx context.Context, _ int64) (*model.Cake, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.svc.AddToCart(context.Background(), customerEmail, 1, 1)
	assertKind(t, err, model.KindUnavailable)
}

func TestUpdateQuantity_ZeroRemovesLineAndUpdatesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.AddToCart(ctx, customerEmail, 1, 2)
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	if _, err := f.svc.AddToCart(ctx, customerEmail, 2, 1); err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}

	if err := f.svc.UpdateQuantity(ctx, customerEmail, a.ID, 0); err != nil {
		t.Fatalf("UpdateQuantity returned error: %v", err)
	}

	view, err := f.svc.GetCart(ctx, customerEmail)
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].CakeID != 2 {
		t.Fatalf("items = %+v, want only cake 2", view.Items)
	}
	if view.GrandTotal != 400 {
		t.Errorf("GrandTotal = %v, want 400", view.GrandTotal)
	}
}

func TestUpdateQuantity_SetsExactValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.AddToCart(ctx, customerEmail, 1, 2)
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	if err := f.svc.UpdateQuantity(ctx, customerEmail, a.ID, 7); err != nil {
		t.Fatalf("UpdateQuantity returned error: %v", err)
	}

	view, _ := f.svc.GetCart(ctx, customerEmail)
	if view.Items[0].Quantity != 7 || view.GrandTotal != 1750 {
		t.Errorf("line = %+v total = %v, want qty 7 total 1750", view.Items[0], view.GrandTotal)
	}
}

func TestUpdateQuantity_OtherCustomersItem_ReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.AddToCart(ctx, customerEmail, 1, 2)
	if err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	if _, err := f.svc.GetCart(ctx, "other@example.com"); err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}

	assertKind(t, f.svc.UpdateQuantity(ctx, "other@example.com", a.ID, 5), model.KindNotFound)
	assertKind(t, f.svc.RemoveItem(ctx, "other@example.com", a.ID), model.KindNotFound)
}

func TestRemoveItem_MissingItem_ReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.GetCart(ctx, customerEmail); err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	assertKind(t, f.svc.RemoveItem(ctx, customerEmail, 12345), model.KindNotFound)
}

func TestGetCart_NewestLineFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, cakeID := range []int64{1, 2} {
		if _, err := f.svc.AddToCart(ctx, customerEmail, cakeID, 1); err != nil {
			t.Fatalf("AddToCart returned error: %v", err)
		}
	}

	view, err := f.svc.GetCart(ctx, customerEmail)
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(view.Items) != 2 || view.Items[0].CakeID != 2 {
		t.Errorf("items = %+v, want cake 2 first", view.Items)
	}
	if view.GrandTotal != 650 {
		t.Errorf("GrandTotal = %v, want 650", view.GrandTotal)
	}
}

func TestGetCart_EmptyCart_ReturnsEmptyItems(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.GetCart(context.Background(), customerEmail)
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if view.Items == nil || len(view.Items) != 0 || view.GrandTotal != 0 {
		t.Errorf("view = %+v, want empty non-nil items and zero total", view)
	}
}

func TestClearCart_RemovesItemsKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddToCart(ctx, customerEmail, 1, 2); err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}
	before, _ := f.svc.GetCart(ctx, customerEmail)

	if err := f.svc.ClearCart(ctx, customerEmail); err != nil {
		t.Fatalf("ClearCart returned error: %v", err)
	}

	after, err := f.svc.GetCart(ctx, customerEmail)
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if len(after.Items) != 0 {
		t.Errorf("items after clear = %d, want 0", len(after.Items))
	}
	if after.CartID != before.CartID {
		t.Errorf("CartID changed from %d to %d", before.CartID, after.CartID)
	}
}

func TestGetOrCreateCart_Concurrent_SingleCart(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	ids := make([]int64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.svc.GetOrCreateCart(context.Background(), 10)
			errs[i] = err
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d returned error: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Errorf("call %d got cart %d, want %d", i, ids[i], ids[0])
		}
	}
	if len(f.carts.carts) != 1 {
		t.Errorf("carts = %d, want 1", len(f.carts.carts))
	}
}

func TestGetOrCreateCart_LostInsertRace_RereadsExisting(t *testing.T) {
	f := newFixture(t)

	// 1回目の検索では未作成に見えるが、挿入時には別リクエストが作成済み
	existing := &model.Cart{ID: 77, CustomerID: 10, Status: model.CartStatusOpen}
	f.carts.carts[10] = existing
	calls := 0
	f.carts.findByCustomerIDFn = func(_ context.Context, _ int64) (*model.Cart, error) {
		calls++
		if calls == 1 {
			return nil, nil
		}
		return existing, nil
	}

	c, err := f.svc.GetOrCreateCart(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetOrCreateCart returned error: %v", err)
	}
	if c.ID != 77 {
		t.Errorf("cart ID = %d, want 77", c.ID)
	}
	if f.carts.createHits != 1 {
		t.Errorf("create attempts = %d, want 1", f.carts.createHits)
	}
}
