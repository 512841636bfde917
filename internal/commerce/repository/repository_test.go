package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/testutil"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
)

func setupRepositoryTest(t *testing.T) (*Repositories, context.Context) {
	db := testutil.SetupTestDB(t)
	testutil.Seed(t, db,
		testutil.Company("c1", entity.CompanyTypeSupplier),
		testutil.Company("c2", entity.CompanyTypeSupplier),
		testutil.Warehouse("w1", "c1"),
		testutil.Warehouse("w2", "c2"),
		testutil.Product("p1", "c1"),
		testutil.Inventory("inv1", "p1", "w1", "c1", "100"),
	)
	return NewRepositories(db), context.Background()
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	boom := errors.New("boom")
	err := repos.RunInTransaction(ctx, func(tx *Repositories) error {
		if err := tx.Inventory.UpdateQuantity(ctx, "inv1", testutil.Qty("10")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	inv, err := repos.Inventory.FindByID(ctx, "inv1", LockNone)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !inv.Quantity.Equal(testutil.Qty("100")) {
		t.Errorf("Expected quantity 100 after rollback, got %s", inv.Quantity)
	}
}

func TestRunInTransaction_Commits(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	err := repos.RunInTransaction(ctx, func(tx *Repositories) error {
		return tx.Inventory.UpdateQuantity(ctx, "inv1", testutil.Qty("42.5"))
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}
	inv, _ := repos.Inventory.FindByID(ctx, "inv1", LockUpdate)
	if !inv.Quantity.Equal(testutil.Qty("42.5")) {
		t.Errorf("Expected 42.5, got %s", inv.Quantity)
	}
}

func TestInventory_FindByIDAndCompanyHidesOtherTenants(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	if _, err := repos.Inventory.FindByIDAndCompany(ctx, "inv1", "c1", LockNone); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	_, err := repos.Inventory.FindByIDAndCompany(ctx, "inv1", "c2", LockNone)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for other tenant, got %v", err)
	}
}

func TestInventory_DuplicateKeyIsConflict(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	err := repos.Inventory.Create(ctx, testutil.Inventory("inv-dup", "p1", "w1", "c1", "5"))
	if !errors.Is(err, apperr.ErrTransactionConflict) {
		t.Fatalf("Expected transaction conflict, got %v", err)
	}
	if !apperr.IsRetryable(err) {
		t.Error("duplicate inventory row should be retryable")
	}
}

func TestBatch_DuplicateNumberPerCompany(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	if err := repos.Batch.Create(ctx, testutil.Batch("b1", "LOT-1", "p1", "w1", "c1", "10")); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	err := repos.Batch.Create(ctx, testutil.Batch("b2", "LOT-1", "p1", "w1", "c1", "5"))
	if !errors.Is(err, apperr.ErrDuplicateBatchNumber) {
		t.Fatalf("Expected duplicate batch number, got %v", err)
	}
	// 其他公司可以使用相同批次号
	if err := repos.Batch.Create(ctx, testutil.Batch("b3", "LOT-1", "p1", "w2", "c2", "5")); err != nil {
		t.Fatalf("same number in another company should be allowed: %v", err)
	}

	count, err := repos.Batch.CountByNumber(ctx, "c1", "LOT-1", "b1")
	if err != nil || count != 0 {
		t.Errorf("Expected 0 other batches, got %d (%v)", count, err)
	}
}

func TestBatch_SumActiveQuantity(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	retired := testutil.Batch("b3", "LOT-3", "p1", "w1", "c1", "7")
	retired.Status = entity.BatchStatusRetired
	testutil.Seed(t, repos.DB(),
		testutil.Batch("b1", "LOT-1", "p1", "w1", "c1", "60.25"),
		testutil.Batch("b2", "LOT-2", "p1", "w1", "c1", "39.75"),
		retired,
	)

	sum, err := repos.Batch.SumActiveQuantity(ctx, "p1", "w1", "c1")
	if err != nil {
		t.Fatalf("SumActiveQuantity failed: %v", err)
	}
	if !sum.Equal(testutil.Qty("100")) {
		t.Errorf("Expected 100, got %s", sum)
	}
}

func TestCompany_FindByIDNotFound(t *testing.T) {
	repos, ctx := setupRepositoryTest(t)

	_, err := repos.Company.FindByID(ctx, "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	ids, err := repos.Company.ListIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Errorf("Expected 2 company ids, got %v (%v)", ids, err)
	}
}
