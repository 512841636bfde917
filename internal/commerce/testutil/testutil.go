package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "tubex-test-jwt-secret"

// SetupTestDB opens an isolated in-memory sqlite database with every table migrated.
// A single connection is used, so code under test must not touch the outer handle
// while a transaction is open.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared", uuid.New().String()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.Models()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, companyID, role, email string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        userID,
		"uid":        userID,
		"company_id": companyID,
		"role":       role,
		"email":      email,
		"iss":        "tubex",
		"iat":        now.Unix(),
		"exp":        now.Add(24 * time.Hour).Unix(),
		"jti":        fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ValidatedTenant returns a tenant context that has already passed the company guard.
func ValidatedTenant(userID, companyID, companyType, role string) *tenant.Context {
	tc := tenant.New(tenant.Principal{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		Email:     userID + "@test.com",
	})
	tc.MarkCompanyAccessValidated(companyType)
	return tc
}

// Qty parses a decimal literal, failing loudly on typos in test data.
func Qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Seed inserts rows in order.
func Seed(t *testing.T, db *gorm.DB, rows ...interface{}) {
	t.Helper()
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("Failed to seed %T: %v", row, err)
		}
	}
}

func Company(id, companyType string) *entity.Company {
	return &entity.Company{
		ID:     id,
		Name:   "Company " + id,
		Type:   companyType,
		Status: entity.CompanyStatusActive,
	}
}

func Warehouse(id, companyID string) *entity.Warehouse {
	return &entity.Warehouse{
		ID:        id,
		CompanyID: companyID,
		Name:      "Warehouse " + id,
		Capacity:  Qty("10000"),
		Type:      entity.WarehouseTypeMain,
		Status:    entity.WarehouseStatusActive,
	}
}

func Product(id, supplierID string) *entity.Product {
	return &entity.Product{
		ID:         id,
		SupplierID: supplierID,
		Name:       "Product " + id,
		SKU:        "SKU-" + id,
		Unit:       "bag",
		Status:     entity.ProductStatusActive,
	}
}

func Inventory(id, productID, warehouseID, companyID, quantity string) *entity.Inventory {
	return &entity.Inventory{
		ID:          id,
		ProductID:   productID,
		WarehouseID: warehouseID,
		CompanyID:   companyID,
		Quantity:    Qty(quantity),
		Unit:        "bag",
	}
}

func Batch(id, number, productID, warehouseID, companyID, quantity string) *entity.Batch {
	return &entity.Batch{
		ID:          id,
		BatchNumber: number,
		ProductID:   productID,
		WarehouseID: warehouseID,
		CompanyID:   companyID,
		Quantity:    Qty(quantity),
		Unit:        "bag",
		Status:      entity.BatchStatusActive,
	}
}
