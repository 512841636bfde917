package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordingNotifier 记录收到的补货事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []ReorderEvent
}

func (n *recordingNotifier) ReorderThresholdCrossed(_ context.Context, evt ReorderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) Events() []ReorderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ReorderEvent(nil), n.events...)
}

type serviceFixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	notifier  *recordingNotifier
	inventory *InventoryService
	guard     *AccessGuard
	ctx       context.Context
}

// setupServiceTest seeds two suppliers, a dealer and a suspended supplier:
//
//	sup1: warehouses w1, w2; products p1 (also sold by dealer1), p2; inv1 = p1@w1 100, inv2 = p2@w1 50
//	sup2: warehouse w3; product p3; inv3 = p3@w3 10
func setupServiceTest(t *testing.T) *serviceFixture {
	db := testutil.SetupTestDB(t)

	dealer := "dealer1"
	p1 := testutil.Product("p1", "sup1")
	p1.DealerID = &dealer
	suspended := testutil.Company("susp", entity.CompanyTypeSupplier)
	suspended.Status = entity.CompanyStatusSuspended

	inv1 := testutil.Inventory("inv1", "p1", "w1", "sup1", "100")
	inv1.AutoReorder = true
	inv1.ReorderPoint = decimal.NewNullDecimal(decimal.NewFromInt(20))
	inv1.ReorderQuantity = decimal.NewNullDecimal(decimal.NewFromInt(200))

	testutil.Seed(t, db,
		testutil.Company("sup1", entity.CompanyTypeSupplier),
		testutil.Company("sup2", entity.CompanyTypeSupplier),
		testutil.Company("dealer1", entity.CompanyTypeDealer),
		suspended,
		testutil.Warehouse("w1", "sup1"),
		testutil.Warehouse("w2", "sup1"),
		testutil.Warehouse("w3", "sup2"),
		p1,
		testutil.Product("p2", "sup1"),
		testutil.Product("p3", "sup2"),
		inv1,
		testutil.Inventory("inv2", "p2", "w1", "sup1", "50"),
		testutil.Inventory("inv3", "p3", "w3", "sup2", "10"),
	)

	repos := repository.NewRepositories(db)
	notifier := &recordingNotifier{}
	logger := zap.NewNop()
	return &serviceFixture{
		db:        db,
		repos:     repos,
		notifier:  notifier,
		inventory: NewInventoryService(repos, notifier, logger),
		guard:     NewAccessGuard(repos, nil, logger),
		ctx:       context.Background(),
	}
}

func (f *serviceFixture) quantity(t *testing.T, inventoryID string) decimal.Decimal {
	t.Helper()
	inv, err := f.repos.Inventory.FindByID(f.ctx, inventoryID, repository.LockNone)
	if err != nil {
		t.Fatalf("load inventory %s: %v", inventoryID, err)
	}
	return inv.Quantity
}

func (f *serviceFixture) ledgerCount(t *testing.T, inventoryID string) int64 {
	t.Helper()
	_, total, err := f.repos.Inventory.ListTransactions(f.ctx, inventoryID, 1, 100)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return total
}

func fixedClock(ts string) func() time.Time {
	at, _ := time.Parse(time.RFC3339, ts)
	return func() time.Time { return at }
}

func expectQty(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(testutil.Qty(want)) {
		t.Errorf("%s: expected %s, got %s", what, want, got)
	}
}
