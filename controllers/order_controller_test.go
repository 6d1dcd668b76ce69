package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/middleware"
	"github.com/bimworks/bimworks-api/models"
	"github.com/bimworks/bimworks-api/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Auto-migrate the Profile and Order models
	if err := db.AutoMigrate(&models.Profile{}, &models.Order{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

func setupTestConfig() {
	config.SetConfig(&config.Config{
		AppURL: "http://localhost:5173",
	})
}

// mockAuthMiddleware simulates the JWT middleware for testing.
// It sets up the context exactly as the real EnsureValidToken middleware does.
// The access token matches what the fake identity provider resolves back to
// the same subject.
func mockAuthMiddleware(subject string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", subject)
		c.Set("access_token", "token-for-"+subject)
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{},
		})
		c.Next()
	}
}

func seedProfile(t *testing.T, db *gorm.DB, id, userType string) models.Profile {
	profile := models.Profile{
		ID:        id,
		FirstName: "Test",
		LastName:  "User",
		Email:     id + "@example.com",
		UserType:  userType,
		IsActive:  true,
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("Failed to seed profile: %v", err)
	}
	return profile
}

func seedOrder(t *testing.T, db *gorm.DB, customerID string, status models.Status, amount *float64) models.Order {
	order := models.Order{
		CustomerID:   customerID,
		ProjectTitle: "Seeded project",
		Description:  "Seeded description",
		Service:      models.ServiceBIMModeling,
		Urgency:      models.UrgencyStandard,
		Status:       status,
		Amount:       amount,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}
	return order
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestCreateOrder(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()
	services.SetFeedService(nil)

	customer := seedProfile(t, db, "auth0|customer123", models.UserTypeCustomer)
	seedProfile(t, db, "auth0|admin123", models.UserTypeAdmin)

	tests := []struct {
		name           string
		subject        string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, response map[string]interface{})
	}{
		{
			name:    "Successfully create order as customer",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"description":   "Convert scans",
				"service":       "bim-modeling",
				"urgency":       "rush",
				"budget":        "1000-2500",
				"polycam_link":  "https://poly.cam/x",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "Warehouse A", data["project_title"])
				assert.Equal(t, "submitted", data["status"])
				assert.Equal(t, customer.ID, data["customer_id"])
				assert.Equal(t, "rush", data["urgency"])
				assert.True(t, strings.HasPrefix(data["order_number"].(string), "ORD-"))
				assert.Nil(t, data["amount"])
				assert.Nil(t, data["delivery_date"])

				// Verify customer relationship is loaded
				customerData := data["customer"].(map[string]interface{})
				assert.Equal(t, customer.Email, customerData["email"])
			},
		},
		{
			name:    "Urgency defaults to standard",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"project_title": "Office tower",
				"description":   "As-built drawings for floors 1-4",
				"service":       "as-built-drawings",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "standard", data["urgency"])
			},
		},
		{
			name:    "Fail to create order as admin",
			subject: "auth0|admin123",
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"description":   "Convert scans",
				"service":       "bim-modeling",
			},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:    "Fail with missing project title",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"description": "Convert scans",
				"service":     "bim-modeling",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:    "Fail with missing description",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"service":       "bim-modeling",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:    "Fail with missing service",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"description":   "Convert scans",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:    "Fail with unknown service code",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"description":   "Convert scans",
				"service":       "laser-scanning",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_SERVICE",
		},
		{
			name:    "Fail with unknown urgency",
			subject: customer.ID,
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"description":   "Convert scans",
				"service":       "bim-modeling",
				"urgency":       "immediate",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_URGENCY",
		},
		{
			name:    "Fail with profile not found",
			subject: "auth0|nonexistent",
			requestBody: map[string]interface{}{
				"project_title": "Warehouse A",
				"description":   "Convert scans",
				"service":       "bim-modeling",
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "PROFILE_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.POST("/orders", mockAuthMiddleware(tt.subject), CreateOrder)

			body, _ := json.Marshal(tt.requestBody)
			req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)

			if tt.expectedError != "" {
				assert.False(t, response["success"].(bool))
				errorData := response["error"].(map[string]interface{})
				assert.Equal(t, tt.expectedError, errorData["code"])
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, response)
			}
		})
	}
}

func TestCreateOrder_PublishesFeedEvent(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()

	feed := services.NewMockFeedService()
	feed.SetAsMockForTesting()
	defer services.SetFeedService(nil)

	customer := seedProfile(t, db, "auth0|feedcust", models.UserTypeCustomer)

	router := setupTestRouter()
	router.POST("/orders", mockAuthMiddleware(customer.ID), CreateOrder)

	body, _ := json.Marshal(map[string]interface{}{
		"project_title": "Warehouse A",
		"description":   "Convert scans",
		"service":       "scan-to-bim",
	})
	req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	events := feed.PublishedEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, services.EventOrderInserted, events[0].Type)
	assert.Equal(t, customer.ID, events[0].Order.CustomerID)
	assert.Nil(t, events[0].OldStatus)
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()
	services.SetFeedService(nil)

	// No auth middleware: the handler must reject before touching the database
	router := setupTestRouter()
	router.POST("/orders", CreateOrder)

	body, _ := json.Marshal(map[string]interface{}{
		"project_title": "Warehouse A",
		"description":   "Convert scans",
		"service":       "bim-modeling",
	})
	req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(0), count, "no order may be written for an unauthenticated caller")
}

func TestGetOrders(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()
	services.SetFeedService(nil)

	customer := seedProfile(t, db, "auth0|listcust", models.UserTypeCustomer)
	other := seedProfile(t, db, "auth0|othercust", models.UserTypeCustomer)
	admin := seedProfile(t, db, "auth0|listadmin", models.UserTypeAdmin)

	first := seedOrder(t, db, customer.ID, models.StatusSubmitted, nil)
	// Force distinct creation times so ordering is deterministic
	db.Model(&first).Update("created_at", time.Now().Add(-time.Hour))
	second := seedOrder(t, db, customer.ID, models.StatusInProgress, nil)
	seedOrder(t, db, other.ID, models.StatusSubmitted, nil)

	router := setupTestRouter()
	router.GET("/orders", func(c *gin.Context) {
		mockAuthMiddleware(c.GetHeader("X-Test-Subject"))(c)
	}, GetOrders)

	fetch := func(subject string) []map[string]interface{} {
		req, _ := http.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("X-Test-Subject", subject)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		raw := response["data"].([]interface{})
		orders := make([]map[string]interface{}, len(raw))
		for i := range raw {
			orders[i] = raw[i].(map[string]interface{})
		}
		return orders
	}

	// Customer sees only their own orders, newest first
	orders := fetch(customer.ID)
	assert.Len(t, orders, 2)
	assert.Equal(t, float64(second.ID), orders[0]["id"])
	assert.Equal(t, float64(first.ID), orders[1]["id"])

	// Admin sees all orders
	assert.Len(t, fetch(admin.ID), 3)

	// A customer with no orders gets an empty list, not an error
	empty := seedProfile(t, db, "auth0|emptycust", models.UserTypeCustomer)
	assert.Len(t, fetch(empty.ID), 0)
}

func TestGetOrderStats(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()
	services.SetFeedService(nil)

	customer := seedProfile(t, db, "auth0|statscust", models.UserTypeCustomer)

	router := setupTestRouter()
	router.GET("/orders/stats", mockAuthMiddleware(customer.ID), GetOrderStats)

	fetchStats := func() map[string]interface{} {
		req, _ := http.NewRequest(http.MethodGet, "/orders/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		return response["data"].(map[string]interface{})
	}

	// Zero orders: everything is zero
	stats := fetchStats()
	assert.Equal(t, float64(0), stats["totalOrders"])
	assert.Equal(t, float64(0), stats["totalAmount"])
	assert.Equal(t, float64(0), stats["completedAmount"])

	// One order per status, plus null amounts treated as zero
	seedOrder(t, db, customer.ID, models.StatusSubmitted, floatPtr(100))
	seedOrder(t, db, customer.ID, models.StatusAssigned, floatPtr(50))
	seedOrder(t, db, customer.ID, models.StatusInProgress, floatPtr(200))
	seedOrder(t, db, customer.ID, models.StatusForRevision, nil)
	seedOrder(t, db, customer.ID, models.StatusDelivered, floatPtr(400))
	seedOrder(t, db, customer.ID, models.StatusCancelled, floatPtr(999))

	stats = fetchStats()
	assert.Equal(t, float64(6), stats["totalOrders"])
	assert.Equal(t, float64(1), stats["submitted"])
	assert.Equal(t, float64(1), stats["assigned"])
	assert.Equal(t, float64(1), stats["inProgress"])
	assert.Equal(t, float64(1), stats["forRevision"])
	assert.Equal(t, float64(1), stats["delivered"])
	assert.Equal(t, float64(1), stats["cancelled"])
	// Active amounts: submitted (100) + in-progress (200) + for-revision (null -> 0)
	assert.Equal(t, float64(300), stats["totalAmount"])
	// Completed amounts: delivered only
	assert.Equal(t, float64(400), stats["completedAmount"])

	// Stats stay consistent with the order list
	var orders []models.Order
	db.Where("customer_id = ?", customer.ID).Find(&orders)
	assert.Equal(t, float64(len(orders)), stats["totalOrders"])
}

func TestGetOrder(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()
	services.SetFeedService(nil)

	owner := seedProfile(t, db, "auth0|owner", models.UserTypeCustomer)
	stranger := seedProfile(t, db, "auth0|stranger", models.UserTypeCustomer)
	admin := seedProfile(t, db, "auth0|getadmin", models.UserTypeAdmin)

	order := seedOrder(t, db, owner.ID, models.StatusSubmitted, nil)

	router := setupTestRouter()
	router.GET("/orders/:id", func(c *gin.Context) {
		mockAuthMiddleware(c.GetHeader("X-Test-Subject"))(c)
	}, GetOrder)

	fetch := func(subject string, orderID uint) *httptest.ResponseRecorder {
		req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil)
		req.Header.Set("X-Test-Subject", subject)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Owner fetches their own order
	w := fetch(owner.ID, order.ID)
	assert.Equal(t, http.StatusOK, w.Code)

	// A different customer gets a 404 even though the id exists
	w = fetch(stranger.ID, order.ID)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	errorData := response["error"].(map[string]interface{})
	assert.Equal(t, "ORDER_NOT_FOUND", errorData["code"])

	// Admin can fetch any order
	w = fetch(admin.ID, order.ID)
	assert.Equal(t, http.StatusOK, w.Code)

	// Genuinely missing order
	w = fetch(owner.ID, 99999)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()

	feed := services.NewMockFeedService()
	feed.SetAsMockForTesting()
	defer services.SetFeedService(nil)

	customer := seedProfile(t, db, "auth0|statuscust", models.UserTypeCustomer)
	admin := seedProfile(t, db, "auth0|statusadmin", models.UserTypeAdmin)

	router := setupTestRouter()
	router.PATCH("/orders/:id/status", func(c *gin.Context) {
		mockAuthMiddleware(c.GetHeader("X-Test-Subject"))(c)
	}, UpdateOrderStatus)

	update := func(subject string, orderID uint, status string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"status": status})
		req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("/orders/%d/status", orderID), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Subject", subject)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Customer cannot update status", func(t *testing.T) {
		order := seedOrder(t, db, customer.ID, models.StatusSubmitted, nil)
		w := update(customer.ID, order.ID, "in-progress")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Admin performs a legal transition", func(t *testing.T) {
		order := seedOrder(t, db, customer.ID, models.StatusSubmitted, nil)
		before := order.UpdatedAt
		time.Sleep(20 * time.Millisecond)

		w := update(admin.ID, order.ID, "in-progress")
		assert.Equal(t, http.StatusOK, w.Code)

		var stored models.Order
		assert.NoError(t, db.First(&stored, order.ID).Error)
		assert.Equal(t, models.StatusInProgress, stored.Status)
		assert.True(t, stored.UpdatedAt.After(before), "updated_at must be refreshed on status change")

		events := feed.PublishedEvents()
		last := events[len(events)-1]
		assert.Equal(t, services.EventOrderUpdated, last.Type)
		assert.NotNil(t, last.OldStatus)
		assert.Equal(t, models.StatusSubmitted, *last.OldStatus)
	})

	t.Run("Illegal transition is rejected", func(t *testing.T) {
		order := seedOrder(t, db, customer.ID, models.StatusDelivered, nil)
		w := update(admin.ID, order.ID, "submitted")
		assert.Equal(t, http.StatusConflict, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		errorData := response["error"].(map[string]interface{})
		assert.Equal(t, "INVALID_STATUS_TRANSITION", errorData["code"])

		var stored models.Order
		assert.NoError(t, db.First(&stored, order.ID).Error)
		assert.Equal(t, models.StatusDelivered, stored.Status)
	})

	t.Run("Unknown status is rejected", func(t *testing.T) {
		order := seedOrder(t, db, customer.ID, models.StatusSubmitted, nil)
		w := update(admin.ID, order.ID, "shipped")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing order", func(t *testing.T) {
		w := update(admin.ID, 99999, "in-progress")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateOrderPricing(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)
	setupTestConfig()
	services.SetFeedService(nil)

	customer := seedProfile(t, db, "auth0|pricecust", models.UserTypeCustomer)
	admin := seedProfile(t, db, "auth0|priceadmin", models.UserTypeAdmin)

	order := seedOrder(t, db, customer.ID, models.StatusSubmitted, nil)

	router := setupTestRouter()
	router.PATCH("/orders/:id/pricing", func(c *gin.Context) {
		mockAuthMiddleware(c.GetHeader("X-Test-Subject"))(c)
	}, UpdateOrderPricing)

	price := func(subject string, orderID uint, body map[string]interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("/orders/%d/pricing", orderID), bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Subject", subject)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Customers cannot price orders
	w := price(customer.ID, order.ID, map[string]interface{}{"amount": 1500.0})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin sets amount and delivery date
	w = price(admin.ID, order.ID, map[string]interface{}{
		"amount":        1500.0,
		"delivery_date": "2024-02-20T00:00:00Z",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var stored models.Order
	assert.NoError(t, db.First(&stored, order.ID).Error)
	assert.NotNil(t, stored.Amount)
	assert.Equal(t, 1500.0, *stored.Amount)
	assert.NotNil(t, stored.DeliveryDate)

	// Empty pricing body is rejected
	w = price(admin.ID, order.ID, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
