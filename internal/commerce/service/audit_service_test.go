package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/testutil"
	"go.uber.org/zap"
)

func TestAuditRecordAndList(t *testing.T) {
	f := setupServiceTest(t)
	audit := NewAuditService(f.repos.SecurityLog, zap.NewNop())
	tc := testutil.ValidatedTenant("u1", "sup1", entity.CompanyTypeSupplier, entity.UserRoleStaff)

	audit.Record(f.ctx, tc, AuditEvent{
		Event:   entity.SecurityEventCrossTenantDenied,
		Method:  "GET",
		URL:     "/api/v1/companies/sup1/inventory/inv3",
		Details: map[string]interface{}{"resource_id": "inv3"},
	})
	audit.Record(f.ctx, tc, AuditEvent{Event: entity.SecurityEventInventoryAdjustment})
	audit.Record(f.ctx, nil, AuditEvent{Event: entity.SecurityEventRateLimited, ClientIP: "10.0.0.1"})

	items, total, err := audit.List(f.ctx, "sup1", "", 1, 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("Expected 2 entries for sup1, got %d", total)
	}

	denied, total, err := audit.List(f.ctx, "sup1", entity.SecurityEventCrossTenantDenied, 1, 20)
	if err != nil || total != 1 {
		t.Fatalf("Expected 1 denied entry, got %d (%v)", total, err)
	}
	if denied[0].UserID != "u1" || denied[0].Role != entity.UserRoleStaff {
		t.Errorf("principal not recorded: %+v", denied[0])
	}
	if denied[0].Details["resource_id"] != "inv3" {
		t.Errorf("details not recorded: %v", denied[0].Details)
	}

	var anonymous int64
	f.db.Model(&entity.SecurityAuditLog{}).Where("company_id = ?", "").Count(&anonymous)
	if anonymous != 1 {
		t.Errorf("Expected unauthenticated event to be stored, got %d", anonymous)
	}
}

func TestAuditRecordSwallowsStoreErrors(t *testing.T) {
	f := setupServiceTest(t)
	audit := NewAuditService(f.repos.SecurityLog, zap.NewNop())

	if err := f.db.Migrator().DropTable(&entity.SecurityAuditLog{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	// 不应 panic，也不向调用方返回错误
	audit.Record(f.ctx, nil, AuditEvent{Event: entity.SecurityEventIntegrityCheck})
}

func TestRedisReorderPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, ReorderChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	f := setupServiceTest(t)
	svc := NewInventoryService(f.repos, NewRedisReorderPublisher(rdb, ""), zap.NewNop())
	if _, err := svc.AdjustInventoryQuantity(ctx, AdjustRequest{
		InventoryID: "inv1", CompanyID: "sup1", Adjustment: testutil.Qty("-85"), Reason: "damaged",
	}); err != nil {
		t.Fatalf("AdjustInventoryQuantity failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var evt ReorderEvent
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if evt.InventoryID != "inv1" || evt.CompanyID != "sup1" {
			t.Errorf("unexpected event %+v", evt)
		}
		expectQty(t, "event quantity", evt.Quantity, "15")
		expectQty(t, "reorder quantity", evt.ReorderQuantity.Decimal, "200")
	case <-ctx.Done():
		t.Fatal("reorder event not published")
	}
}

func TestReorderPublishFailureDoesNotFailMutation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	f := setupServiceTest(t)
	svc := NewInventoryService(f.repos, NewRedisReorderPublisher(rdb, ReorderChannel), zap.NewNop())
	if _, err := svc.AdjustInventoryQuantity(f.ctx, AdjustRequest{
		InventoryID: "inv1", CompanyID: "sup1", Adjustment: testutil.Qty("-90"), Reason: "damaged",
	}); err != nil {
		t.Fatalf("mutation must commit even when the event cannot be sent: %v", err)
	}
	expectQty(t, "quantity", f.quantity(t, "inv1"), "10")
}
