// Package testutil provides isolated databases, routers and tokens for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"orderflow/internal/database"
	"orderflow/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "orderflow-test-secret"

var dbSeq atomic.Int64

// SetupTestDB opens a private in-memory sqlite database with every table
// migrated. The pool is capped at one connection so the shared-cache
// database lives as long as the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
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

// GenerateTestToken signs a token carrying the claims the auth middleware reads
func GenerateTestToken(actor model.Actor) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  actor.UID,
		"name": actor.Name,
		"role": string(actor.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	if actor.ManagerID != nil {
		claims["manager_id"] = *actor.ManagerID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
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

// ParseResponse decodes the response envelope into a generic map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// Staff is the roster used across service and handler tests:
//
//	director (top-level manager)
//	├── m1 (department manager) ── s1, s2 (sales)
//	├── m2 (department manager) ── s3 (sales)
//	└── w1, w2 (warehouse managers) ── p1, p2 under w1, p3 under w2
var Staff = map[string]model.StaffUser{
	"director": {UID: "director", DisplayName: "Director", Role: model.RoleManager},
	"admin":    {UID: "admin", DisplayName: "Admin", Role: model.RoleAdmin},
	"m1":       {UID: "m1", DisplayName: "Manager One", Role: model.RoleManager, ManagerID: Ptr("director")},
	"m2":       {UID: "m2", DisplayName: "Manager Two", Role: model.RoleManager, ManagerID: Ptr("director")},
	"s1":       {UID: "s1", DisplayName: "Sales One", Role: model.RoleSales, ManagerID: Ptr("m1")},
	"s2":       {UID: "s2", DisplayName: "Sales Two", Role: model.RoleSales, ManagerID: Ptr("m1")},
	"s3":       {UID: "s3", DisplayName: "Sales Three", Role: model.RoleSales, ManagerID: Ptr("m2")},
	"w1":       {UID: "w1", DisplayName: "Warehouse One", Role: model.RoleWarehouseManager, ManagerID: Ptr("director")},
	"w2":       {UID: "w2", DisplayName: "Warehouse Two", Role: model.RoleWarehouseManager, ManagerID: Ptr("director")},
	"p1":       {UID: "p1", DisplayName: "Picker One", Role: model.RolePicker, ManagerID: Ptr("w1")},
	"p2":       {UID: "p2", DisplayName: "Picker Two", Role: model.RolePicker, ManagerID: Ptr("w1")},
	"p3":       {UID: "p3", DisplayName: "Picker Three", Role: model.RolePicker, ManagerID: Ptr("w2")},
}

// SeedStaff inserts the shared roster
func SeedStaff(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, u := range Staff {
		u := u
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("Failed to seed staff %s: %v", u.UID, err)
		}
	}
}

// Actor returns the identity of a roster member
func Actor(uid string) model.Actor {
	u, ok := Staff[uid]
	if !ok {
		panic("unknown test staff " + uid)
	}
	return model.Actor{UID: u.UID, Name: u.DisplayName, Role: u.Role, ManagerID: u.ManagerID}
}

// SeedStock sets variant quantities, keyed by product id with size M and no color
func SeedStock(t *testing.T, db *gorm.DB, quantities map[string]int) {
	t.Helper()
	for productID, qty := range quantities {
		level := model.StockLevel{ProductID: productID, Size: "M", Quantity: qty}
		if err := db.Create(&level).Error; err != nil {
			t.Fatalf("Failed to seed stock %s: %v", productID, err)
		}
	}
}

// StockOf reads the quantity of a size M, colorless variant
func StockOf(t *testing.T, db *gorm.DB, productID string) int {
	t.Helper()
	var level model.StockLevel
	if err := db.Where("product_id = ? AND size = ? AND color = ?", productID, "M", "").First(&level).Error; err != nil {
		t.Fatalf("Failed to read stock %s: %v", productID, err)
	}
	return level.Quantity
}

// Item builds a size M order line
func Item(productID string, qty int, price int64) model.OrderItem {
	return model.OrderItem{
		ProductID:   productID,
		ProductName: "Product " + productID,
		SKU:         productID,
		Price:       decimal.NewFromInt(price),
		Qty:         qty,
		Variant:     model.ItemVariant{Size: "M"},
	}
}
