package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/commerce/testutil"
	"github.com/tienbob/Tubex-sub002/internal/config"
	"github.com/tienbob/Tubex-sub002/internal/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// setupHandlerTest wires the full route tree against sqlite. sup1 owns w1, w2, p1 and
// inv1 (p1@w1, 100); sup2 owns w3, p3 and inv3 (p3@w3, 10); dealer1 buys from sup1.
func setupHandlerTest(t *testing.T) *testEnv {
	db := testutil.SetupTestDB(t)

	inv1 := testutil.Inventory("inv1", "p1", "w1", "sup1", "100")
	inv1.AutoReorder = true
	inv1.ReorderPoint = decimal.NewNullDecimal(decimal.NewFromInt(20))
	testutil.Seed(t, db,
		testutil.Company("sup1", entity.CompanyTypeSupplier),
		testutil.Company("sup2", entity.CompanyTypeSupplier),
		testutil.Company("dealer1", entity.CompanyTypeDealer),
		testutil.Warehouse("w1", "sup1"),
		testutil.Warehouse("w2", "sup1"),
		testutil.Warehouse("w3", "sup2"),
		testutil.Product("p1", "sup1"),
		testutil.Product("p3", "sup2"),
		inv1,
		testutil.Inventory("inv3", "p3", "w3", "sup2", "10"),
	)

	logger := zap.NewNop()
	repos := repository.NewRepositories(db)
	svc := service.NewServices(repos, nil, &config.Config{}, logger)
	h := NewHandlers(svc, repos, logger)

	r := testutil.SetupRouter()
	r.Use(middleware.RequestID())
	RegisterRoutes(r, h, svc, RouteOptions{
		JWTSecret: testutil.JWTSecret,
		RateLimit: middleware.RateLimitOptions{
			MaxRequests: 1000,
			Window:      time.Minute,
			Store:       middleware.NewMemoryCounterStore(),
			Logger:      logger,
		},
	})
	return &testEnv{DB: db, Router: r}
}

func tokenFor(companyID, role string) string {
	return testutil.GenerateTestToken("u-"+companyID, companyID, role, companyID+"@test.com")
}

func countAudit(db *gorm.DB, event string) int64 {
	var n int64
	db.Model(&entity.SecurityAuditLog{}).Where("event = ?", event).Count(&n)
	return n
}

func TestHealth(t *testing.T) {
	env := setupHandlerTest(t)
	w := testutil.DoRequest(env.Router, "GET", "/health/live", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestGetInventory(t *testing.T) {
	env := setupHandlerTest(t)
	token := tokenFor("sup1", entity.UserRoleStaff)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/inventory/inv1", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["id"] != "inv1" || data["quantity"] != "100" {
		t.Errorf("unexpected inventory %v", data)
	}
}

func TestCrossTenantInventoryIsHidden(t *testing.T) {
	env := setupHandlerTest(t)
	token := tokenFor("sup1", entity.UserRoleAdmin)

	// 其他公司的库存与不存在的库存返回相同信息
	foreign := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/inventory/inv3", nil, token)
	missing := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/inventory/nope", nil, token)
	if foreign.Code != http.StatusForbidden {
		t.Errorf("foreign: expected 403, got %d", foreign.Code)
	}
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", missing.Code)
	}
	if testutil.ParseResponse(foreign)["message"] != testutil.ParseResponse(missing)["message"] {
		t.Error("foreign and missing rows must not be distinguishable by message")
	}
	if n := countAudit(env.DB, entity.SecurityEventCrossTenantDenied); n != 1 {
		t.Errorf("Expected one cross tenant audit row, got %d", n)
	}

	// 请求其他公司的路径
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup2/inventory/inv3", nil, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("other company path: expected 403, got %d", w.Code)
	}
	if n := countAudit(env.DB, entity.SecurityEventCompanyAccessDenied); n != 1 {
		t.Errorf("Expected one company access audit row, got %d", n)
	}
}

func TestUnauthenticated(t *testing.T) {
	env := setupHandlerTest(t)
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/inventory/inv1", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestAdjustInventory(t *testing.T) {
	env := setupHandlerTest(t)
	token := tokenFor("sup1", entity.UserRoleManager)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/companies/sup1/inventory/inv1/adjust", map[string]interface{}{
		"adjustment": -85,
		"reason":     "damaged in transit",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["quantity"] != "15" {
		t.Errorf("Expected quantity 15, got %v", data["quantity"])
	}
	if data["last_reorder_date"] == nil {
		t.Error("Expected reorder date to be stamped")
	}
	if n := countAudit(env.DB, entity.SecurityEventInventoryAdjustment); n != 1 {
		t.Errorf("Expected adjustment to be audited, got %d", n)
	}

	// 扣减超过现有数量
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/companies/sup1/inventory/inv1/adjust", map[string]interface{}{
		"adjustment": "-20",
		"reason":     "count",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"] != float64(40002) {
		t.Errorf("Expected 40002, got %v", resp["code"])
	}
	details := resp["data"].(map[string]interface{})
	if details["available"] != "15" || details["requested"] != "20" {
		t.Errorf("unexpected quantity details %v", details)
	}

	// 缺少原因
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/companies/sup1/inventory/inv1/adjust", map[string]interface{}{
		"adjustment": 5,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without reason, got %d", w.Code)
	}
}

func TestCheckAvailability(t *testing.T) {
	env := setupHandlerTest(t)
	token := tokenFor("sup1", entity.UserRoleStaff)
	path := "/api/v1/companies/sup1/inventory/check-availability"

	w := testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{
		"product_id": "p1", "warehouse_id": "w1", "quantity": 60,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{
		"product_id": "p1", "warehouse_id": "w1", "quantity": 150,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if resp := testutil.ParseResponse(w); resp["code"] != float64(40001) {
		t.Errorf("Expected 40001, got %v", resp["code"])
	}

	// 其他公司仓库
	w = testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{
		"product_id": "p3", "warehouse_id": "w3", "quantity": 1,
	}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}
}

func TestTransfer(t *testing.T) {
	env := setupHandlerTest(t)
	token := tokenFor("sup1", entity.UserRoleManager)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/companies/sup1/inventory/transfer", map[string]interface{}{
		"source_warehouse_id": "w1",
		"target_warehouse_id": "w2",
		"product_id":          "p1",
		"quantity":            "30",
		"reason":              "rebalance",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	source := data["source"].(map[string]interface{})
	target := data["target"].(map[string]interface{})
	if source["quantity"] != "70" || target["quantity"] != "30" {
		t.Errorf("unexpected quantities: source %v target %v", source["quantity"], target["quantity"])
	}
	if n := countAudit(env.DB, entity.SecurityEventStockTransfer); n != 1 {
		t.Errorf("Expected transfer to be audited, got %d", n)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/companies/sup1/inventory/transfer", map[string]interface{}{
		"source_warehouse_id": "w1",
		"target_warehouse_id": "w3",
		"product_id":          "p1",
		"quantity":            "1",
	}, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("transfer into another company's warehouse: expected 403, got %d", w.Code)
	}
}

func TestPlaceAndCancelOrder(t *testing.T) {
	env := setupHandlerTest(t)
	dealer := tokenFor("dealer1", entity.UserRoleManager)
	supplier := tokenFor("sup1", entity.UserRoleStaff)
	outsider := tokenFor("sup2", entity.UserRoleAdmin)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/companies/dealer1/orders", map[string]interface{}{
		"supplier_id":  "sup1",
		"warehouse_id": "w1",
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 40, "unit_price": "12.50"},
		},
	}, dealer)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	order := testutil.ParseResponse(w)["data"].(map[string]interface{})
	orderID := order["id"].(string)
	if order["total_amount"] != "500" {
		t.Errorf("Expected total 500, got %v", order["total_amount"])
	}

	// 供货方可以查看，无关公司不行
	if w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/orders/"+orderID, nil, supplier); w.Code != http.StatusOK {
		t.Errorf("supplier view: expected 200, got %d", w.Code)
	}
	if w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup2/orders/"+orderID, nil, outsider); w.Code != http.StatusForbidden {
		t.Errorf("outsider view: expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/companies/dealer1/orders/"+orderID+"/cancel", nil, dealer)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/companies/dealer1/orders/"+orderID+"/cancel", nil, dealer)
	if w.Code != http.StatusBadRequest {
		t.Errorf("second cancel: expected 400, got %d", w.Code)
	}

	inv := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/inventory/inv1", nil, supplier)
	if data := testutil.ParseResponse(inv)["data"].(map[string]interface{}); data["quantity"] != "100" {
		t.Errorf("Expected stock restored to 100, got %v", data["quantity"])
	}
}

func TestUpdateWarehouseOwnershipRejected(t *testing.T) {
	env := setupHandlerTest(t)
	token := tokenFor("sup1", entity.UserRoleAdmin)

	w := testutil.DoRequest(env.Router, "PUT", "/api/v1/companies/sup1/warehouses/w1", map[string]interface{}{
		"company_id": "sup2",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/companies/sup1/warehouses/w1", map[string]interface{}{
		"name":   "North DC",
		"status": entity.WarehouseStatusMaintenance,
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["name"] != "North DC" || data["company_id"] != "sup1" {
		t.Errorf("unexpected warehouse %v", data)
	}
}

func TestIntegrityEndpointsRequireAdmin(t *testing.T) {
	env := setupHandlerTest(t)

	staff := tokenFor("sup1", entity.UserRoleStaff)
	if w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/integrity", nil, staff); w.Code != http.StatusForbidden {
		t.Fatalf("staff: expected 403, got %d", w.Code)
	}

	admin := tokenFor("sup1", entity.UserRoleAdmin)
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/integrity", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["is_valid"] != true || data["company_id"] != "sup1" {
		t.Errorf("unexpected report %v", data)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/integrity/reconcile?product_id=p1&warehouse_id=w1", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("reconcile: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if result["is_consistent"] != false || result["discrepancy"] != "100" {
		t.Errorf("inventory without batches should report a discrepancy, got %v", result)
	}

	if w := testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/integrity/reconcile", nil, admin); w.Code != http.StatusBadRequest {
		t.Errorf("reconcile without params: expected 400, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/companies/sup1/audit-logs?event="+entity.SecurityEventIntegrityCheck, nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("audit logs: expected 200, got %d", w.Code)
	}
	logs := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if logs["total"] != float64(1) {
		t.Errorf("Expected one integrity_check audit row, got %v", logs["total"])
	}
}

func TestIntegrityPaymentCheck(t *testing.T) {
	env := setupHandlerTest(t)
	orderID := "o1"
	testutil.Seed(t, env.DB,
		&entity.Order{ID: orderID, CompanyID: "dealer1", SupplierID: "sup1", WarehouseID: "w1", Status: entity.OrderStatusConfirmed},
		&entity.Payment{ID: "pay-sup1", CompanyID: "sup1", OrderID: &orderID, ReconciliationStatus: entity.ReconciliationPending},
		&entity.Payment{ID: "pay-sup2", CompanyID: "sup2", ReconciliationStatus: entity.ReconciliationPending},
	)
	admin := tokenFor("sup1", entity.UserRoleAdmin)
	base := "/api/v1/companies/sup1/integrity/payments/"

	w := testutil.DoRequest(env.Router, "GET", base+"pay-sup1", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("own payment: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data := testutil.ParseResponse(w)["data"].(map[string]interface{}); data["valid"] != true {
		t.Errorf("unexpected response %v", data)
	}

	foreign := testutil.DoRequest(env.Router, "GET", base+"pay-sup2", nil, admin)
	if foreign.Code != http.StatusForbidden {
		t.Fatalf("foreign payment: expected 403, got %d", foreign.Code)
	}
	missing := testutil.DoRequest(env.Router, "GET", base+"missing", nil, admin)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing payment: expected 404, got %d", missing.Code)
	}
	if testutil.ParseResponse(foreign)["message"] != testutil.ParseResponse(missing)["message"] {
		t.Error("foreign and missing payments must be indistinguishable")
	}
}
